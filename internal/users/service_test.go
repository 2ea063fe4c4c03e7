package users

import (
	"context"
	"errors"
	"testing"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepository())
	svc.PasswordCost = bcrypt.MinCost
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: "  Ann@Example.com ", Password: "s3cretpass", Name: "Ann"})
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", u.Email)
	require.Equal(t, models.RoleMember, u.Role)
	require.NotEqual(t, "s3cretpass", u.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Email: "ann@example.com", Password: "otherpass", Name: "Ann 2"})
	require.True(t, errors.Is(err, apperr.ErrConflict))

	got, err := svc.Authenticate(ctx, "ANN@example.com", "s3cretpass")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ann@example.com", "wrong")
	require.True(t, errors.Is(err, apperr.ErrUnauthorized))
	_, err = svc.Authenticate(ctx, "nobody@example.com", "whatever")
	require.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.c", Password: "short", Name: "A"})
	require.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "longenough", Name: "A"})
	require.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestUpsertFromClaims(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	existing, err := svc.Register(ctx, RegisterInput{Email: "x@example.com", Password: "password1", Name: "X"})
	require.NoError(t, err)

	// links by email
	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "sub-123", "email": "X@example.com", "name": "X User"})
	require.NoError(t, err)
	require.Equal(t, existing.ID, u.ID)
	require.Equal(t, "sub-123", u.Sub)

	// second call resolves by subject
	again, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "sub-123"})
	require.NoError(t, err)
	require.Equal(t, existing.ID, again.ID)

	// unknown identity creates a member
	fresh, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "sub-999", "email": "new@example.com", "name": "New"})
	require.NoError(t, err)
	require.NotEqual(t, existing.ID, fresh.ID)
	require.Equal(t, models.RoleMember, fresh.Role)

	// missing sub => nil
	u2, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"email": "y@e.com"})
	require.NoError(t, err)
	require.Nil(t, u2)
}

func TestEnsureAdminAndSetRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "admin@club.test", "adminpass")
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, admin.IsAdmin())

	_, created, err = svc.EnsureAdmin(ctx, "admin@club.test", "adminpass")
	require.NoError(t, err)
	require.False(t, created)

	member, err := svc.Register(ctx, RegisterInput{Email: "m@club.test", Password: "memberpass", Name: "M"})
	require.NoError(t, err)

	promoted, err := svc.SetRole(ctx, admin.ID, member.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.True(t, promoted.IsAdmin())

	_, err = svc.SetRole(ctx, admin.ID, admin.ID, models.RoleMember)
	require.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.SetRole(ctx, admin.ID, member.ID, "owner")
	require.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.SetRole(ctx, admin.ID, "missing", models.RoleMember)
	require.True(t, errors.Is(err, apperr.ErrNotFound))

	list, err := svc.List(ctx, Query{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, int64(2), list.Total)
}
