package payments

import (
	"context"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the part of the invoice service payments write through.
type Ledger interface {
	Get(ctx context.Context, id string) (*invoices.Invoice, error)
	ApplyPayment(ctx context.Context, id string, amount decimal.Decimal) (*invoices.Invoice, error)
	ReversePayment(ctx context.Context, id string, amount decimal.Decimal) (*invoices.Invoice, error)
}

type Notifier interface {
	PaymentReceipt(ctx context.Context, p *Payment, inv *invoices.Invoice) error
}

// PaidHook runs after a payment settles an invoice in full.
type PaidHook interface {
	InvoicePaid(ctx context.Context, inv *invoices.Invoice) error
}

type RecordInput struct {
	InvoiceID string          `json:"invoiceId" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    Method          `json:"method" binding:"required"`
	Reference string          `json:"reference" binding:"max=200"`
	Notes     string          `json:"notes" binding:"max=2000"`
	PaidAt    *time.Time      `json:"paidAt"`
}

type RefundInput struct {
	Reason string `json:"reason" binding:"max=500"`
}

type Service struct {
	repo   Repository
	ledger Ledger
	notify Notifier
	onPaid PaidHook
	now    func() time.Time
}

func NewService(repo Repository, ledger Ledger, n Notifier) *Service {
	return &Service{repo: repo, ledger: ledger, notify: n, now: time.Now}
}

// OnInvoicePaid registers the hook; set during wiring, before requests are served.
func (s *Service) OnInvoicePaid(h PaidHook) {
	s.onPaid = h
}

// Record applies the amount to the invoice and stores the payment. If the
// payment cannot be stored the invoice application is reversed.
func (s *Service) Record(ctx context.Context, recordedBy string, in RecordInput) (*Payment, error) {
	if !in.Method.Valid() {
		return nil, apperr.Invalid("method must be one of cash, card, bank_transfer, online")
	}
	amount := in.Amount.Round(2)
	if amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount must be positive")
	}
	now := s.now().UTC()
	paidAt := now
	if in.PaidAt != nil {
		if in.PaidAt.After(now) {
			return nil, apperr.Invalid("paidAt cannot be in the future")
		}
		paidAt = in.PaidAt.UTC()
	}

	inv, err := s.ledger.ApplyPayment(ctx, in.InvoiceID, amount)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		ID:            uuid.NewString(),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		MemberID:      inv.MemberID,
		PayerName:     inv.BillTo.Name,
		PayerEmail:    inv.BillTo.Email,
		Amount:        amount,
		Currency:      inv.Currency,
		Method:        in.Method,
		Reference:     strings.TrimSpace(in.Reference),
		Status:        StatusCompleted,
		Notes:         strings.TrimSpace(in.Notes),
		RecordedBy:    recordedBy,
		PaidAt:        paidAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if _, rerr := s.ledger.ReversePayment(ctx, inv.ID, amount); rerr != nil {
			logger.Errorf("payment for %s not stored (%v) and reversal failed: %v", inv.Number, err, rerr)
		} else {
			logger.Warnf("payment for %s not stored, invoice reverted: %v", inv.Number, err)
		}
		return nil, err
	}
	metrics.PaymentsRecorded.WithLabelValues(string(p.Method)).Inc()
	logger.Infof("payment %s recorded on %s (%s %s)", p.ID, inv.Number, amount.StringFixed(2), p.Currency)

	if s.notify != nil {
		if err := s.notify.PaymentReceipt(ctx, p, inv); err != nil {
			logger.Warnf("payment %s: receipt email failed: %v", p.ID, err)
		}
	}
	if inv.Status == invoices.StatusPaid && s.onPaid != nil {
		if err := s.onPaid.InvoicePaid(ctx, inv); err != nil {
			logger.Errorf("invoice %s paid but follow-up failed: %v", inv.Number, err)
		}
	}
	return p, nil
}

// Refund marks a completed payment refunded and takes the amount back off
// the invoice. The status flip is a compare-and-set, so only one of several
// concurrent refunds reaches the invoice.
func (s *Service) Refund(ctx context.Context, id string, in RefundInput) (*Payment, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusCompleted {
		return nil, apperr.Conflict("payment is already %s", p.Status)
	}
	now := s.now().UTC()
	change := StatusChange{Status: StatusRefunded, RefundedAt: &now, RefundReason: strings.TrimSpace(in.Reason), At: now}
	if err := s.repo.Transition(ctx, p.ID, StatusCompleted, change); err != nil {
		return nil, err
	}
	if _, err := s.ledger.ReversePayment(ctx, p.InvoiceID, p.Amount); err != nil {
		undo := StatusChange{Status: StatusCompleted, RefundedAt: p.RefundedAt, RefundReason: p.RefundReason, At: now}
		if uerr := s.repo.Transition(ctx, p.ID, StatusRefunded, undo); uerr != nil {
			logger.Errorf("refund of %s: invoice not reversed (%v) and payment not restored: %v", p.ID, err, uerr)
		}
		return nil, err
	}
	p.Status = change.Status
	p.RefundedAt = change.RefundedAt
	p.RefundReason = change.RefundReason
	p.UpdatedAt = now
	logger.Infof("payment %s refunded", p.ID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q Query) (models.List[Payment], error) {
	if q.Method != "" && !q.Method.Valid() {
		return models.List[Payment]{}, apperr.Invalid("unknown method %q", q.Method)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return models.List[Payment]{}, apperr.Invalid("to cannot be before from")
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[Payment]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

func (s *Service) ListForMember(ctx context.Context, memberID string, p models.Page) (models.List[Payment], error) {
	return s.List(ctx, Query{Page: p, MemberID: memberID})
}

func (s *Service) All(ctx context.Context, q Query) ([]Payment, error) {
	q.All = true
	items, _, err := s.repo.List(ctx, q)
	return items, err
}

// Revenue totals completed payments over the trailing window.
func (s *Service) Revenue(ctx context.Context, window time.Duration) (decimal.Decimal, error) {
	return s.repo.Revenue(ctx, s.now().UTC().Add(-window))
}
