package invoices

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Invoice
	seq   map[int]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Invoice{}, seq: map[int]int64{}}
}

func clone(inv Invoice) Invoice {
	inv.Items = append([]LineItem(nil), inv.Items...)
	return inv
}

func (r *MemoryRepository) NextSequence(_ context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[year]++
	return r.seq[year], nil
}

func (r *MemoryRepository) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Number == inv.Number {
			return apperr.Conflict("invoice number %s already exists", inv.Number)
		}
	}
	r.items[inv.ID] = clone(*inv)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}
	inv = clone(inv)
	return &inv, nil
}

func (r *MemoryRepository) Update(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[inv.ID]
	if !ok {
		return apperr.NotFound("invoice")
	}
	if stored.Version != inv.Version {
		return ErrStale
	}
	inv.Version++
	r.items[inv.ID] = clone(*inv)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("invoice")
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Invoice, int64, error) {
	r.mu.RLock()
	search := strings.ToLower(q.Search)
	var out []Invoice
	for _, inv := range r.items {
		if q.Status != "" && inv.Status != q.Status {
			continue
		}
		if q.MemberID != "" && inv.MemberID != q.MemberID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(inv.Number+" "+inv.BillTo.Name+" "+inv.BillTo.Email), search) {
			continue
		}
		out = append(out, clone(inv))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].IssueDate.After(out[j].IssueDate)
		}
		return out[i].Number > out[j].Number
	})
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, inv := range r.items {
		if inv.Status == StatusSent && inv.DueDate.Before(now) && inv.Balance.Sign() > 0 {
			inv.Status = StatusOverdue
			inv.UpdatedAt = now
			inv.Version++
			r.items[id] = inv
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Summary(_ context.Context) (map[Status]StatusSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[Status]StatusSummary{}
	for _, inv := range r.items {
		row := out[inv.Status]
		row.Count++
		row.Total = row.Total.Add(inv.Total)
		row.Paid = row.Paid.Add(inv.AmountPaid)
		row.Balance = row.Balance.Add(inv.Balance)
		out[inv.Status] = row
	}
	return out, nil
}
