package marketplace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	seller = Actor{ID: "s1", Name: "Seller"}
	buyer  = Actor{ID: "b1", Name: "Buyer"}
	admin  = Actor{ID: "a1", Name: "Admin", Admin: true}
)

func setup(t *testing.T) (*Service, *Category) {
	t.Helper()
	svc := NewService(NewMemoryCategoryRepository(), NewMemoryRepository(), "EUR")
	c, err := svc.CreateCategory(context.Background(), CategoryInput{
		Name: "Boots", MinPrice: d("5"), MaxPrice: d("200"), CommissionRate: d("7.5"),
	})
	require.NoError(t, err)
	return svc, c
}

func TestCategoryRules(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	assert.Equal(t, "boots", c.Slug)

	_, err := svc.CreateCategory(ctx, CategoryInput{Name: "Bad", MinPrice: d("10"), MaxPrice: d("5")})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Bad", CommissionRate: d("101")})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "BOOTS"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	assert.True(t, c.PriceAllowed(d("5")))
	assert.True(t, c.PriceAllowed(d("200")))
	assert.False(t, c.PriceAllowed(d("200.01")))
	assert.True(t, (&Category{}).PriceAllowed(d("99999")), "no upper bound")
	assert.Equal(t, "3.75", c.Commission(d("50")).StringFixed(2))

	_, err = svc.Create(ctx, seller, ListingInput{CategoryID: c.ID, Title: "Size 9", Price: d("40"), Condition: ConditionGood})
	require.NoError(t, err)
	assert.True(t, errors.Is(svc.DeleteCategory(ctx, c.ID), apperr.ErrConflict))
}

func TestCreateListingValidatesAndSanitises(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, seller, ListingInput{
		CategoryID:  c.ID,
		Title:       "<b>Predator</b> boots",
		Description: `Barely worn <img src=x onerror=alert(1)> & clean`,
		Price:       d("45.5"),
		Condition:   ConditionLikeNew,
	})
	require.NoError(t, err)
	assert.Equal(t, "Predator boots", l.Title)
	assert.Equal(t, "Barely worn  & clean", l.Description)
	assert.Equal(t, StatusActive, l.Status)
	assert.Equal(t, "Boots", l.CategoryName)

	_, err = svc.Create(ctx, seller, ListingInput{CategoryID: c.ID, Title: "x", Price: d("1"), Condition: ConditionNew})
	assert.True(t, errors.Is(err, apperr.ErrInvalid), "below the category minimum")
	_, err = svc.Create(ctx, seller, ListingInput{CategoryID: c.ID, Title: "x", Price: d("10"), Condition: "mint"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.Create(ctx, seller, ListingInput{CategoryID: "missing", Title: "x", Price: d("10"), Condition: ConditionNew})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestListingLifecycle(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	l, err := svc.Create(ctx, seller, ListingInput{CategoryID: c.ID, Title: "Shin pads", Price: d("20"), Condition: ConditionGood})
	require.NoError(t, err)

	_, err = svc.Update(ctx, buyer, l.ID, ListingInput{CategoryID: c.ID, Title: "Mine now", Price: d("20"), Condition: ConditionGood})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.MarkSold(ctx, seller, l.ID)
	assert.True(t, errors.Is(err, apperr.ErrConflict), "must be reserved first")

	reserved, err := svc.Reserve(ctx, l.ID, buyer.ID, d("18"))
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, reserved.Status)
	assert.Equal(t, "1.35", reserved.Commission.StringFixed(2))

	_, err = svc.Reserve(ctx, l.ID, "b2", d("19"))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	_, err = svc.Update(ctx, seller, l.ID, ListingInput{CategoryID: c.ID, Title: "Edit", Price: d("20"), Condition: ConditionGood})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	sold, err := svc.MarkSold(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, sold.Status)
	assert.NotNil(t, sold.SoldAt)

	_, err = svc.Withdraw(ctx, seller, l.ID)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestConcurrentReserveHasOneWinner(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	l, err := svc.Create(ctx, seller, ListingInput{CategoryID: c.ID, Title: "Ball", Price: d("15"), Condition: ConditionNew})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Reserve(ctx, l.ID, buyer.ID, d("15")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestListFilters(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	for _, p := range []string{"10", "50", "150"} {
		_, err := svc.Create(ctx, seller, ListingInput{CategoryID: c.ID, Title: "Boots " + p, Price: d(p), Condition: ConditionGood})
		require.NoError(t, err)
	}
	other, err := svc.Create(ctx, buyer, ListingInput{CategoryID: c.ID, Title: "Gloves", Price: d("30"), Condition: ConditionFair})
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, buyer, other.ID)
	require.NoError(t, err)

	lo, hi := d("20"), d("160")
	res, err := svc.List(ctx, Query{MinPrice: &lo, MaxPrice: &hi, Status: StatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)

	res, err = svc.List(ctx, Query{Search: "glove"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	res, err = svc.List(ctx, Query{SellerID: seller.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)

	_, err = svc.List(ctx, Query{MinPrice: &hi, MaxPrice: &lo})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	n, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
