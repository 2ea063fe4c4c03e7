package memberships

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
)

type MemoryTierRepository struct {
	mu    sync.RWMutex
	items map[string]Tier
}

func NewMemoryTierRepository() *MemoryTierRepository {
	return &MemoryTierRepository{items: map[string]Tier{}}
}

func (r *MemoryTierRepository) slugTaken(slug, exceptID string) bool {
	for id, t := range r.items {
		if id != exceptID && t.Slug == slug {
			return true
		}
	}
	return false
}

func (r *MemoryTierRepository) Create(_ context.Context, t *Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(t.Slug, "") {
		return apperr.Conflict("tier slug %q is taken", t.Slug)
	}
	r.items[t.ID] = *t
	return nil
}

func (r *MemoryTierRepository) Get(_ context.Context, id string) (*Tier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("tier")
	}
	return &t, nil
}

func (r *MemoryTierRepository) Update(_ context.Context, t *Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return apperr.NotFound("tier")
	}
	if r.slugTaken(t.Slug, t.ID) {
		return apperr.Conflict("tier slug %q is taken", t.Slug)
	}
	r.items[t.ID] = *t
	return nil
}

func (r *MemoryTierRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("tier")
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryTierRepository) List(_ context.Context, includeInactive bool) ([]Tier, error) {
	r.mu.RLock()
	var out []Tier
	for _, t := range r.items {
		if includeInactive || t.Active {
			out = append(out, t)
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
	items map[string]Membership
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Membership{}}
}

func (r *MemoryRepository) Create(_ context.Context, m *Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = *m
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("membership")
	}
	return &m, nil
}

func (r *MemoryRepository) Update(_ context.Context, m *Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[m.ID]; !ok {
		return apperr.NotFound("membership")
	}
	r.items[m.ID] = *m
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Membership, int64, error) {
	r.mu.RLock()
	search := strings.ToLower(q.Search)
	var out []Membership
	for _, m := range r.items {
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if q.TierID != "" && m.TierID != q.TierID {
			continue
		}
		if q.UserID != "" && m.UserID != q.UserID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.MemberName+" "+m.MemberEmail), search) {
			continue
		}
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) FindOpen(_ context.Context, userID string) (*Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.items {
		if m.UserID == userID && m.Open() {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) CountByTier(_ context.Context, tierID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.items {
		if m.TierID == tierID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DueForExpiry(_ context.Context, now time.Time) ([]Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Membership
	for _, m := range r.items {
		if m.Status == StatusActive && m.EndDate != nil && m.EndDate.Before(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ActiveByTier(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]int64{}
	for _, m := range r.items {
		if m.Status == StatusActive {
			out[m.TierName]++
		}
	}
	return out, nil
}
