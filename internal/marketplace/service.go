package marketplace

import (
	"context"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CategoryInput struct {
	Name           string          `json:"name" binding:"required,max=100"`
	Slug           string          `json:"slug" binding:"max=100"`
	Description    string          `json:"description" binding:"max=2000"`
	MinPrice       decimal.Decimal `json:"minPrice"`
	MaxPrice       decimal.Decimal `json:"maxPrice"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	Active         *bool           `json:"active"`
	SortOrder      int             `json:"sortOrder"`
}

type ListingInput struct {
	CategoryID  string          `json:"categoryId" binding:"required"`
	Title       string          `json:"title" binding:"required,max=140"`
	Description string          `json:"description" binding:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Condition   Condition       `json:"condition" binding:"required"`
}

// Actor is the user performing a listing change.
type Actor struct {
	ID    string
	Name  string
	Admin bool
}

// ClosedHook runs after a seller withdraws a listing.
type ClosedHook interface {
	ListingClosed(ctx context.Context, l *Listing)
}

type Service struct {
	categories CategoryRepository
	repo       Repository
	currency   string
	onClosed   ClosedHook
	now        func() time.Time
}

func NewService(categories CategoryRepository, repo Repository, currency string) *Service {
	if currency == "" {
		currency = "EUR"
	}
	return &Service{categories: categories, repo: repo, currency: currency, now: time.Now}
}

// OnListingClosed registers the hook; set during wiring, before requests are served.
func (s *Service) OnListingClosed(h ClosedHook) {
	s.onClosed = h
}

var hundred = decimal.NewFromInt(100)

func applyCategory(c *Category, in CategoryInput) error {
	c.Name = strings.TrimSpace(in.Name)
	if c.Name == "" {
		return apperr.Invalid("name is required")
	}
	c.Slug = models.Slugify(in.Slug)
	if c.Slug == "" {
		c.Slug = models.Slugify(c.Name)
	}
	if c.Slug == "" {
		return apperr.Invalid("slug must contain letters or digits")
	}
	if in.MinPrice.IsNegative() || in.MaxPrice.IsNegative() {
		return apperr.Invalid("price bounds cannot be negative")
	}
	if !in.MaxPrice.IsZero() && in.MaxPrice.LessThan(in.MinPrice) {
		return apperr.Invalid("maxPrice must not be below minPrice")
	}
	if in.CommissionRate.IsNegative() || in.CommissionRate.GreaterThan(hundred) {
		return apperr.Invalid("commissionRate must be between 0 and 100")
	}
	c.Description = validation.PlainText(in.Description)
	c.MinPrice = in.MinPrice.Round(2)
	c.MaxPrice = in.MaxPrice.Round(2)
	c.CommissionRate = in.CommissionRate
	if in.Active != nil {
		c.Active = *in.Active
	}
	c.SortOrder = in.SortOrder
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	now := s.now().UTC()
	c := &Category{ID: uuid.NewString(), Active: true, CreatedAt: now, UpdatedAt: now}
	if err := applyCategory(c, in); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCategory(c, in); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.categories.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("category has %d listings", n)
	}
	return s.categories.Delete(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context, includeInactive bool) ([]Category, error) {
	out, err := s.categories.List(ctx, includeInactive)
	if out == nil {
		out = []Category{}
	}
	return out, err
}

func (s *Service) checkListing(ctx context.Context, in ListingInput) (*Category, error) {
	if !in.Condition.Valid() {
		return nil, apperr.Invalid("condition must be new, like_new, good or fair")
	}
	if in.Price.Sign() <= 0 {
		return nil, apperr.Invalid("price must be positive")
	}
	c, err := s.categories.Get(ctx, in.CategoryID)
	if err != nil {
		return nil, apperr.Invalid("unknown category")
	}
	if !c.Active {
		return nil, apperr.Invalid("category %q is closed", c.Name)
	}
	if !c.PriceAllowed(in.Price) {
		if c.MaxPrice.IsZero() {
			return nil, apperr.Invalid("price must be at least %s for %s", c.MinPrice.StringFixed(2), c.Name)
		}
		return nil, apperr.Invalid("price must be between %s and %s for %s", c.MinPrice.StringFixed(2), c.MaxPrice.StringFixed(2), c.Name)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, seller Actor, in ListingInput) (*Listing, error) {
	c, err := s.checkListing(ctx, in)
	if err != nil {
		return nil, err
	}
	title := validation.PlainText(in.Title)
	if title == "" {
		return nil, apperr.Invalid("title is required")
	}
	now := s.now().UTC()
	l := &Listing{
		ID:           uuid.NewString(),
		SellerID:     seller.ID,
		SellerName:   seller.Name,
		CategoryID:   c.ID,
		CategoryName: c.Name,
		Title:        title,
		Description:  validation.PlainText(in.Description),
		Price:        in.Price.Round(2),
		Currency:     s.currency,
		Condition:    in.Condition,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	logger.Infof("listing %s created by %s", l.ID, seller.ID)
	return l, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Listing, error) {
	return s.repo.Get(ctx, id)
}

// owned loads a listing the actor may change.
func (s *Service) owned(ctx context.Context, who Actor, id string) (*Listing, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Admin && l.SellerID != who.ID {
		return nil, apperr.Forbidden("only the seller can change this listing")
	}
	return l, nil
}

func (s *Service) Update(ctx context.Context, who Actor, id string, in ListingInput) (*Listing, error) {
	l, err := s.owned(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusActive {
		return nil, apperr.Conflict("a %s listing cannot be edited", l.Status)
	}
	c, err := s.checkListing(ctx, in)
	if err != nil {
		return nil, err
	}
	title := validation.PlainText(in.Title)
	if title == "" {
		return nil, apperr.Invalid("title is required")
	}
	l.CategoryID, l.CategoryName = c.ID, c.Name
	l.Title = title
	l.Description = validation.PlainText(in.Description)
	l.Price = in.Price.Round(2)
	l.Condition = in.Condition
	l.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateIf(ctx, l, StatusActive); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) Withdraw(ctx context.Context, who Actor, id string) (*Listing, error) {
	l, err := s.owned(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusActive && l.Status != StatusReserved {
		return nil, apperr.Conflict("a %s listing cannot be withdrawn", l.Status)
	}
	from := l.Status
	l.Status = StatusWithdrawn
	l.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateIf(ctx, l, from); err != nil {
		return nil, err
	}
	if s.onClosed != nil {
		s.onClosed.ListingClosed(ctx, l)
	}
	return l, nil
}

// MarkSold completes a reserved listing.
func (s *Service) MarkSold(ctx context.Context, who Actor, id string) (*Listing, error) {
	l, err := s.owned(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusReserved {
		return nil, apperr.Conflict("only reserved listings can be marked sold")
	}
	now := s.now().UTC()
	l.Status = StatusSold
	l.SoldAt = &now
	l.UpdatedAt = now
	if err := s.repo.UpdateIf(ctx, l, StatusReserved); err != nil {
		return nil, err
	}
	logger.Infof("listing %s sold to %s for %s", l.ID, l.BuyerID, l.AgreedPrice.StringFixed(2))
	return l, nil
}

// Reserve holds an active listing for buyerID at the agreed amount and
// records the club commission.
func (s *Service) Reserve(ctx context.Context, id, buyerID string, agreed decimal.Decimal) (*Listing, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusActive {
		return nil, apperr.Conflict("listing is %s", l.Status)
	}
	commission := decimal.Zero
	if c, err := s.categories.Get(ctx, l.CategoryID); err == nil {
		commission = c.Commission(agreed)
	} else {
		logger.Warnf("listing %s: category %s missing, no commission recorded", l.ID, l.CategoryID)
	}
	now := s.now().UTC()
	agreed = agreed.Round(2)
	l.Status = StatusReserved
	l.BuyerID = buyerID
	l.AgreedPrice = &agreed
	l.Commission = &commission
	l.ReservedAt = &now
	l.UpdatedAt = now
	if err := s.repo.UpdateIf(ctx, l, StatusActive); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, q Query) (models.List[Listing], error) {
	if q.Status != "" && !q.Status.Valid() {
		return models.List[Listing]{}, apperr.Invalid("unknown status %q", q.Status)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MaxPrice.LessThan(*q.MinPrice) {
		return models.List[Listing]{}, apperr.Invalid("maxPrice must not be below minPrice")
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[Listing]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

func (s *Service) CountActive(ctx context.Context) (int64, error) {
	return s.repo.CountByStatus(ctx, StatusActive)
}
