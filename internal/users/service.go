package users

import (
	"context"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	// PasswordCost is the bcrypt cost for new hashes.
	PasswordCost int
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, PasswordCost: 12}
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Register creates a member account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleMember)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Invalid("a valid email is required")
	}
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperr.Invalid("password must be at least %d characters", MinPasswordLength)
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.PasswordCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks email and password. Unknown accounts and wrong
// passwords produce the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := apperr.Unauthorized("invalid email or password")
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, invalid
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, invalid
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, q Query) (models.List[models.User], error) {
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[models.User]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

// SetRole changes a user's role. An admin cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, actorID, id, role string) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, apperr.Invalid("role must be admin or member")
	}
	if actorID == id && role != models.RoleAdmin {
		return nil, apperr.Invalid("cannot remove your own admin role")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpsertFromClaims links an OIDC identity to a local account: by subject,
// then by email, otherwise a new member without a password is created.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	email = normalizeEmail(email)

	u, err := s.repo.GetBySub(ctx, sub)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	if email != "" {
		if u, err = s.repo.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
		if u != nil {
			u.Sub = sub
			if err := s.repo.Update(ctx, u); err != nil {
				return nil, err
			}
			return u, nil
		}
	}
	now := time.Now().UTC()
	u = &models.User{
		ID:        uuid.NewString(),
		Sub:       sub,
		Email:     email,
		Name:      name,
		Role:      models.RoleMember,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureAdmin makes sure an admin account exists for email. An existing
// account is promoted; its password is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*models.User, bool, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		if u.Role == models.RoleAdmin {
			return u, false, nil
		}
		u.Role = models.RoleAdmin
		return u, false, s.repo.Update(ctx, u)
	}
	u, err = s.create(ctx, RegisterInput{Email: email, Password: password, Name: "Administrator"}, models.RoleAdmin)
	return u, err == nil, err
}
