package messages

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Message{}}
}

func clone(m Message) Message {
	m.Attachments = append([]Attachment(nil), m.Attachments...)
	m.DeletedFor = append([]string(nil), m.DeletedFor...)
	if m.Offer != nil {
		o := *m.Offer
		m.Offer = &o
	}
	return m
}

func (r *MemoryRepository) Create(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = clone(*m)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("message")
	}
	m = clone(m)
	return &m, nil
}

func (r *MemoryRepository) Thread(_ context.Context, conversationID, userID string, q ThreadQuery) ([]Message, error) {
	r.mu.RLock()
	var out []Message
	for _, m := range r.items {
		if m.ConversationID != conversationID || m.DeletedBy(userID) {
			continue
		}
		if !q.Before.IsZero() && !m.CreatedAt.Before(q.Before) {
			continue
		}
		out = append(out, clone(m))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Conversations(_ context.Context, userID string) ([]Conversation, error) {
	r.mu.RLock()
	byID := map[string]*Conversation{}
	for _, m := range r.items {
		if !m.Involves(userID) || m.DeletedBy(userID) {
			continue
		}
		c, ok := byID[m.ConversationID]
		if !ok {
			c = &Conversation{ID: m.ConversationID, Last: clone(m)}
			byID[m.ConversationID] = c
		}
		c.Count++
		if m.RecipientID == userID && m.ReadAt == nil {
			c.Unread++
		}
		if m.CreatedAt.After(c.Last.CreatedAt) {
			c.Last = clone(m)
		}
	}
	r.mu.RUnlock()
	out := make([]Conversation, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Last.CreatedAt.After(out[j].Last.CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, conversationID, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.items {
		if m.ConversationID == conversationID && m.RecipientID == userID && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			r.items[id] = m
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) UnreadCount(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.items {
		if m.RecipientID == userID && m.ReadAt == nil && !m.DeletedBy(userID) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) SoftDelete(_ context.Context, id, userID string) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("message")
	}
	if !m.DeletedBy(userID) {
		m.DeletedFor = append(append([]string(nil), m.DeletedFor...), userID)
		r.items[id] = m
	}
	m = clone(m)
	return &m, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) TransitionOffer(_ context.Context, id string, from OfferStatus, u OfferUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Offer == nil {
		return apperr.NotFound("offer")
	}
	if m.Offer.Status != from {
		return errOfferChanged
	}
	o := *m.Offer
	o.Status = u.Status
	if u.RespondedAt != nil {
		t := *u.RespondedAt
		o.RespondedAt = &t
	}
	if u.Note != "" {
		o.ResponseNote = u.Note
	}
	m.Offer = &o
	m.UpdatedAt = u.At
	r.items[id] = m
	return nil
}

func (r *MemoryRepository) PendingOffers(_ context.Context, listingID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Message
	for _, m := range r.items {
		if m.Kind == KindOffer && m.ListingID == listingID && m.Offer.Status == OfferPending {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (r *MemoryRepository) Offers(_ context.Context, q OfferQuery) ([]Message, int64, error) {
	r.mu.RLock()
	var out []Message
	for _, m := range r.items {
		if m.Kind != KindOffer {
			continue
		}
		o := m.Offer
		switch q.Role {
		case "buyer":
			if o.BuyerID != q.UserID {
				continue
			}
		case "seller":
			if o.SellerID != q.UserID {
				continue
			}
		default:
			if o.BuyerID != q.UserID && o.SellerID != q.UserID {
				continue
			}
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.ListingID != "" && m.ListingID != q.ListingID {
			continue
		}
		out = append(out, clone(m))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := q.Page.Slice(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *MemoryRepository) ExpireOffers(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.items {
		if m.Offer != nil && m.Offer.Status == OfferPending && m.Offer.ExpiresAt.Before(now) {
			o := *m.Offer
			o.Status = OfferExpired
			m.Offer = &o
			m.UpdatedAt = now
			r.items[id] = m
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountOffers(_ context.Context, status OfferStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.items {
		if m.Offer != nil && m.Offer.Status == status {
			n++
		}
	}
	return n, nil
}
