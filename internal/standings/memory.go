package standings

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Match
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Match{}}
}

func (r *MemoryRepository) Create(_ context.Context, m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = *m
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("match")
	}
	return &m, nil
}

func (r *MemoryRepository) Update(_ context.Context, m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[m.ID]; !ok {
		return apperr.NotFound("match")
	}
	r.items[m.ID] = *m
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("match")
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q MatchQuery) ([]Match, int64, error) {
	r.mu.RLock()
	team := strings.ToLower(q.Team)
	var out []Match
	for _, m := range r.items {
		if q.Season != "" && m.Season != q.Season {
			continue
		}
		if q.Division != "" && m.Division != q.Division {
			continue
		}
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if team != "" && !strings.Contains(strings.ToLower(m.HomeTeam+" "+m.AwayTeam), team) {
			continue
		}
		if !q.From.IsZero() && m.ScheduledAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !m.ScheduledAt.Before(q.To.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) Table(_ context.Context, season, division string) ([]Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Match
	for _, m := range r.items {
		if m.Season == season && m.Division == division && m.Status != MatchCancelled {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Seasons(_ context.Context) ([]SeasonDivision, error) {
	r.mu.RLock()
	seen := map[SeasonDivision]bool{}
	for _, m := range r.items {
		seen[SeasonDivision{Season: m.Season, Division: m.Division}] = true
	}
	r.mu.RUnlock()
	out := make([]SeasonDivision, 0, len(seen))
	for sd := range seen {
		out = append(out, sd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season > out[j].Season
		}
		return out[i].Division < out[j].Division
	})
	return out, nil
}
