package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/shopspring/decimal"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Payment
	// FailCreate makes Create return this error; used to exercise compensation.
	FailCreate error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Payment{}}
}

func (r *MemoryRepository) Create(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	r.items[p.ID] = *p
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("payment")
	}
	return &p, nil
}

func (r *MemoryRepository) Transition(_ context.Context, id string, from Status, c StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return apperr.NotFound("payment")
	}
	if p.Status != from {
		return errPaymentChanged
	}
	p.Status = c.Status
	p.RefundedAt = c.RefundedAt
	p.RefundReason = c.RefundReason
	p.UpdatedAt = c.At
	r.items[id] = p
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Payment, int64, error) {
	r.mu.RLock()
	var out []Payment
	for _, p := range r.items {
		if q.InvoiceID != "" && p.InvoiceID != q.InvoiceID {
			continue
		}
		if q.MemberID != "" && p.MemberID != q.MemberID {
			continue
		}
		if q.Method != "" && p.Method != q.Method {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if !q.From.IsZero() && p.PaidAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !p.PaidAt.Before(q.To.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) Revenue(_ context.Context, since time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, p := range r.items {
		if p.Status == StatusCompleted && !p.PaidAt.Before(since) {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}
