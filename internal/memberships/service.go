package memberships

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType tags invoices issued for memberships.
const SourceType = "membership"

// Billing issues and sends membership invoices.
type Billing interface {
	Create(ctx context.Context, in invoices.CreateInput) (*invoices.Invoice, error)
	Send(ctx context.Context, id string) (*invoices.Invoice, error)
	Cancel(ctx context.Context, id string) (*invoices.Invoice, error)
}

type Notifier interface {
	MembershipActivated(ctx context.Context, m *Membership) error
}

type TierInput struct {
	Name        string          `json:"name" binding:"required,max=100"`
	Slug        string          `json:"slug" binding:"max=100"`
	Description string          `json:"description" binding:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
	Period      Period          `json:"period" binding:"required"`
	Benefits    []string        `json:"benefits"`
	Active      *bool           `json:"active"`
	SortOrder   int             `json:"sortOrder"`
}

// Member identifies the subscribing user.
type Member struct {
	ID    string
	Name  string
	Email string
}

type SubscribeInput struct {
	TierID    string `json:"tierId" binding:"required"`
	AutoRenew bool   `json:"autoRenew"`
}

type Service struct {
	tiers    TierRepository
	repo     Repository
	billing  Billing
	notify   Notifier
	currency string
	now      func() time.Time
}

func NewService(tiers TierRepository, repo Repository, billing Billing, n Notifier, currency string) *Service {
	if currency == "" {
		currency = "EUR"
	}
	return &Service{tiers: tiers, repo: repo, billing: billing, notify: n, currency: currency, now: time.Now}
}

func (s *Service) applyTier(t *Tier, in TierInput) error {
	t.Name = strings.TrimSpace(in.Name)
	if t.Name == "" {
		return apperr.Invalid("name is required")
	}
	slug := models.Slugify(in.Slug)
	if slug == "" {
		slug = models.Slugify(t.Name)
	}
	if slug == "" {
		return apperr.Invalid("slug must contain letters or digits")
	}
	if !in.Period.Valid() {
		return apperr.Invalid("period must be monthly, quarterly or annual")
	}
	if in.Price.IsNegative() {
		return apperr.Invalid("price cannot be negative")
	}
	t.Slug = slug
	t.Description = strings.TrimSpace(in.Description)
	t.Price = in.Price.Round(2)
	t.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if t.Currency == "" {
		t.Currency = s.currency
	}
	t.Period = in.Period
	t.Benefits = in.Benefits
	if in.Active != nil {
		t.Active = *in.Active
	}
	t.SortOrder = in.SortOrder
	return nil
}

func (s *Service) CreateTier(ctx context.Context, in TierInput) (*Tier, error) {
	now := s.now().UTC()
	t := &Tier{ID: uuid.NewString(), Active: true, CreatedAt: now, UpdatedAt: now}
	if err := s.applyTier(t, in); err != nil {
		return nil, err
	}
	if err := s.tiers.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) UpdateTier(ctx context.Context, id string, in TierInput) (*Tier, error) {
	t, err := s.tiers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyTier(t, in); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.tiers.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTier removes a tier nobody has ever held; otherwise deactivate it.
func (s *Service) DeleteTier(ctx context.Context, id string) error {
	if _, err := s.tiers.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountByTier(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("tier has %d memberships; deactivate it instead", n)
	}
	return s.tiers.Delete(ctx, id)
}

func (s *Service) ListTiers(ctx context.Context, includeInactive bool) ([]Tier, error) {
	out, err := s.tiers.List(ctx, includeInactive)
	if out == nil {
		out = []Tier{}
	}
	return out, err
}

func (s *Service) GetTier(ctx context.Context, id string) (*Tier, error) {
	return s.tiers.Get(ctx, id)
}

// Subscribe creates a pending membership and bills it. Free tiers activate immediately.
func (s *Service) Subscribe(ctx context.Context, who Member, in SubscribeInput) (*Membership, error) {
	tier, err := s.tiers.Get(ctx, in.TierID)
	if err != nil {
		return nil, err
	}
	if !tier.Active {
		return nil, apperr.Invalid("tier %q is not open for subscriptions", tier.Name)
	}
	open, err := s.repo.FindOpen(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperr.Conflict("you already have a %s membership", open.Status)
	}

	now := s.now().UTC()
	m := &Membership{
		ID:          uuid.NewString(),
		UserID:      who.ID,
		MemberName:  who.Name,
		MemberEmail: who.Email,
		TierID:      tier.ID,
		TierName:    tier.Name,
		Price:       tier.Price,
		Currency:    tier.Currency,
		Period:      tier.Period,
		Status:      StatusPending,
		AutoRenew:   in.AutoRenew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Price.IsZero() {
		s.activate(m, now)
		if err := s.repo.Create(ctx, m); err != nil {
			return nil, err
		}
		s.activated(ctx, m)
		return m, nil
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := s.bill(ctx, m, who.ID, "new"); err != nil {
		// an unbilled pending membership would block every later subscribe
		if derr := s.repo.Delete(ctx, m.ID); derr != nil {
			logger.Errorf("membership %s not billed (%v) and not removed: %v", m.ID, err, derr)
		}
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	logger.Infof("membership %s created for %s (%s)", m.ID, m.MemberEmail, m.TierName)
	return m, nil
}

// bill issues and sends an invoice for one period and records it on m.
func (s *Service) bill(ctx context.Context, m *Membership, createdBy, kind string) error {
	inv, err := s.billing.Create(ctx, invoices.CreateInput{
		MemberID: m.UserID,
		BillTo:   invoices.BillTo{Name: m.MemberName, Email: m.MemberEmail},
		Items: []invoices.LineItemInput{{
			Description: fmt.Sprintf("%s membership (%s, %s)", m.TierName, m.Period, kind),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   m.Price,
		}},
		Currency:   m.Currency,
		SourceType: SourceType,
		SourceID:   m.ID,
		CreatedBy:  createdBy,
	})
	if err != nil {
		return err
	}
	if _, err := s.billing.Send(ctx, inv.ID); err != nil {
		logger.Warnf("membership %s: invoice %s created but not sent: %v", m.ID, inv.Number, err)
	}
	m.InvoiceID = inv.ID
	m.UpdatedAt = s.now().UTC()
	return nil
}

// activate starts or extends the term from the later of the current end and now.
func (s *Service) activate(m *Membership, now time.Time) {
	from := now
	if m.EndDate != nil && m.EndDate.After(now) {
		from = *m.EndDate
	} else {
		start := now
		m.StartDate = &start
	}
	end := m.Period.Extend(from)
	m.EndDate = &end
	m.Status = StatusActive
	m.UpdatedAt = now
}

func (s *Service) activated(ctx context.Context, m *Membership) {
	logger.Infof("membership %s active until %s", m.ID, m.EndDate.Format("2006-01-02"))
	if s.notify != nil {
		if err := s.notify.MembershipActivated(ctx, m); err != nil {
			logger.Warnf("membership %s: activation email failed: %v", m.ID, err)
		}
	}
}

// InvoicePaid activates or extends the membership a paid invoice was issued for.
func (s *Service) InvoicePaid(ctx context.Context, inv *invoices.Invoice) error {
	if inv.SourceType != SourceType || inv.SourceID == "" {
		return nil
	}
	m, err := s.repo.Get(ctx, inv.SourceID)
	if err != nil {
		return err
	}
	if m.PaidInvoiceID == inv.ID {
		return nil
	}
	if m.Status == StatusCancelled {
		logger.Warnf("invoice %s paid for cancelled membership %s", inv.Number, m.ID)
		return nil
	}
	s.activate(m, s.now().UTC())
	m.PaidInvoiceID = inv.ID
	if err := s.repo.Update(ctx, m); err != nil {
		return err
	}
	s.activated(ctx, m)
	return nil
}

// Cancel is allowed to the owner and admins. An unpaid invoice is cancelled too.
func (s *Service) Cancel(ctx context.Context, actorID string, admin bool, id string) (*Membership, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && m.UserID != actorID {
		return nil, apperr.NotFound("membership")
	}
	if !m.Open() {
		return nil, apperr.Conflict("membership is already %s", m.Status)
	}
	if m.InvoiceID != "" && m.InvoiceID != m.PaidInvoiceID {
		if _, err := s.billing.Cancel(ctx, m.InvoiceID); err != nil {
			logger.Warnf("membership %s: could not cancel invoice %s: %v", m.ID, m.InvoiceID, err)
		}
	}
	now := s.now().UTC()
	m.Status = StatusCancelled
	m.AutoRenew = false
	m.CancelledAt = &now
	m.UpdatedAt = now
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Renew bills another period. Expired memberships go back to pending until paid.
func (s *Service) Renew(ctx context.Context, actorID, id string) (*Membership, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusActive && m.Status != StatusExpired {
		return nil, apperr.Conflict("a %s membership cannot be renewed", m.Status)
	}
	if m.InvoiceID != "" && m.InvoiceID != m.PaidInvoiceID {
		return nil, apperr.Conflict("a renewal invoice is already outstanding")
	}
	if m.Status == StatusExpired {
		open, err := s.repo.FindOpen(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return nil, apperr.Conflict("member already has a %s membership", open.Status)
		}
	}
	if err := s.renew(ctx, m, actorID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) renew(ctx context.Context, m *Membership, actorID string) error {
	if m.Price.IsZero() {
		s.activate(m, s.now().UTC())
		return s.repo.Update(ctx, m)
	}
	if err := s.bill(ctx, m, actorID, "renewal"); err != nil {
		return err
	}
	if m.Status == StatusExpired {
		m.Status = StatusPending
	}
	return s.repo.Update(ctx, m)
}

// ExpireDue ends lapsed memberships. Auto-renewing ones get a renewal invoice
// and wait in pending.
func (s *Service) ExpireDue(ctx context.Context) (expired, renewed int, err error) {
	now := s.now().UTC()
	due, err := s.repo.DueForExpiry(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	for i := range due {
		m := &due[i]
		switch {
		case m.AutoRenew && m.Price.IsZero():
			s.activate(m, now)
			renewed++
		case m.AutoRenew && m.InvoiceID == m.PaidInvoiceID:
			if err := s.bill(ctx, m, "", "renewal"); err != nil {
				logger.Errorf("membership %s: renewal invoice failed: %v", m.ID, err)
				m.Status = StatusExpired
				expired++
				break
			}
			m.Status = StatusPending
			renewed++
		default:
			m.Status = StatusExpired
			expired++
		}
		m.UpdatedAt = now
		if err := s.repo.Update(ctx, m); err != nil {
			return expired, renewed, err
		}
	}
	return expired, renewed, nil
}

// Get hides other members' memberships from non-admins.
func (s *Service) Get(ctx context.Context, actorID string, admin bool, id string) (*Membership, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && m.UserID != actorID {
		return nil, apperr.NotFound("membership")
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, q Query) (models.List[Membership], error) {
	if q.Status != "" && !q.Status.Valid() {
		return models.List[Membership]{}, apperr.Invalid("unknown status %q", q.Status)
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[Membership]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

func (s *Service) Mine(ctx context.Context, userID string) ([]Membership, error) {
	items, _, err := s.repo.List(ctx, Query{UserID: userID, Page: models.Page{All: true}})
	if items == nil {
		items = []Membership{}
	}
	return items, err
}

func (s *Service) All(ctx context.Context, q Query) ([]Membership, error) {
	q.All = true
	items, _, err := s.repo.List(ctx, q)
	return items, err
}

func (s *Service) ActiveByTier(ctx context.Context) (map[string]int64, error) {
	return s.repo.ActiveByTier(ctx)
}
