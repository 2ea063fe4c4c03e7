package applications

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Application
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Application{}}
}

func (r *MemoryRepository) Create(_ context.Context, a *Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("application")
	}
	return &a, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; !ok {
		return apperr.NotFound("application")
	}
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("application")
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Application, int64, error) {
	r.mu.RLock()
	search := strings.ToLower(q.Search)
	var out []Application
	for _, a := range r.items {
		if q.Type != "" && a.Type != q.Type {
			continue
		}
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.FirstName+" "+a.LastName+" "+a.Email), search) {
			continue
		}
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) FindPending(_ context.Context, email string, kind Kind) (*Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.Email == email && a.Type == kind && a.Status == StatusPending {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Stats(_ context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := newStats()
	for _, a := range r.items {
		st.Total++
		st.ByType[a.Type]++
		st.ByStatus[a.Status]++
	}
	return st, nil
}
