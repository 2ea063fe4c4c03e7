package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
)

// MemoryRepository is an in-memory UserRepository for development and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]models.User{}}
}

func (r *MemoryRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Email == u.Email {
			return apperr.Conflict("email already registered")
		}
	}
	r.items[u.ID] = *u
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.ID]; !ok {
		return apperr.NotFound("user")
	}
	u.UpdatedAt = time.Now().UTC()
	r.items[u.ID] = *u
	return nil
}

func (r *MemoryRepository) find(match func(models.User) bool) *models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.items {
		if match(u) {
			cp := u
			return &cp
		}
	}
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id }), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email }), nil
}

func (r *MemoryRepository) GetBySub(_ context.Context, sub string) (*models.User, error) {
	return r.find(func(u models.User) bool { return sub != "" && u.Sub == sub }), nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]models.User, int64, error) {
	r.mu.RLock()
	var out []models.User
	search := strings.ToLower(q.Search)
	for _, u := range r.items {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Email+" "+u.Name), search) {
			continue
		}
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}
