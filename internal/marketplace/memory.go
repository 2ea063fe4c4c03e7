package marketplace

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
)

type MemoryCategoryRepository struct {
	mu    sync.RWMutex
	items map[string]Category
}

func NewMemoryCategoryRepository() *MemoryCategoryRepository {
	return &MemoryCategoryRepository{items: map[string]Category{}}
}

func (r *MemoryCategoryRepository) slugTaken(slug, exceptID string) bool {
	for id, c := range r.items {
		if id != exceptID && c.Slug == slug {
			return true
		}
	}
	return false
}

func (r *MemoryCategoryRepository) Create(_ context.Context, c *Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(c.Slug, "") {
		return apperr.Conflict("category slug %q is taken", c.Slug)
	}
	r.items[c.ID] = *c
	return nil
}

func (r *MemoryCategoryRepository) Get(_ context.Context, id string) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("category")
	}
	return &c, nil
}

func (r *MemoryCategoryRepository) Update(_ context.Context, c *Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return apperr.NotFound("category")
	}
	if r.slugTaken(c.Slug, c.ID) {
		return apperr.Conflict("category slug %q is taken", c.Slug)
	}
	r.items[c.ID] = *c
	return nil
}

func (r *MemoryCategoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("category")
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryCategoryRepository) List(_ context.Context, includeInactive bool) ([]Category, error) {
	r.mu.RLock()
	var out []Category
	for _, c := range r.items {
		if includeInactive || c.Active {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Listing
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Listing{}}
}

func (r *MemoryRepository) Create(_ context.Context, l *Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[l.ID] = *l
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("listing")
	}
	return &l, nil
}

func (r *MemoryRepository) UpdateIf(_ context.Context, l *Listing, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[l.ID]
	if !ok {
		return apperr.NotFound("listing")
	}
	if stored.Status != expected {
		return errStatusChanged
	}
	r.items[l.ID] = *l
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Listing, int64, error) {
	r.mu.RLock()
	search := strings.ToLower(q.Search)
	var out []Listing
	for _, l := range r.items {
		if q.CategoryID != "" && l.CategoryID != q.CategoryID {
			continue
		}
		if q.Status != "" && l.Status != q.Status {
			continue
		}
		if q.SellerID != "" && l.SellerID != q.SellerID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Description), search) {
			continue
		}
		if q.MinPrice != nil && l.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && l.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		out = append(out, l)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) CountByCategory(_ context.Context, categoryID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, l := range r.items {
		if l.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountByStatus(_ context.Context, status Status) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, l := range r.items {
		if l.Status == status {
			n++
		}
	}
	return n, nil
}
