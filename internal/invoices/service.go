package invoices

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Notifier interface {
	InvoiceSent(ctx context.Context, inv *Invoice) error
}

// Defaults applied when a create request leaves a field empty.
type Defaults struct {
	Currency string
	TaxRate  decimal.Decimal
	DueDays  int
}

type LineItemInput struct {
	Description string          `json:"description" binding:"required,max=300"`
	Quantity    decimal.Decimal `json:"quantity" binding:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice" binding:"gte=0"`
}

type CreateInput struct {
	MemberID  string           `json:"memberId"`
	BillTo    BillTo           `json:"billTo" binding:"required"`
	Items     []LineItemInput  `json:"items" binding:"required,min=1,dive"`
	Currency  string           `json:"currency" binding:"omitempty,len=3"`
	Discount  decimal.Decimal  `json:"discount" binding:"gte=0"`
	TaxRate   *decimal.Decimal `json:"taxRate"`
	IssueDate string           `json:"issueDate"` // YYYY-MM-DD, default today
	DueDate   string           `json:"dueDate"`   // YYYY-MM-DD, default issue + due days
	Notes     string           `json:"notes" binding:"max=2000"`
	// set by other services, never bound from requests
	SourceType string `json:"-"`
	SourceID   string `json:"-"`
	CreatedBy  string `json:"-"`
}

type UpdateInput struct {
	BillTo   *BillTo          `json:"billTo"`
	Items    []LineItemInput  `json:"items" binding:"omitempty,min=1,dive"`
	Discount *decimal.Decimal `json:"discount"`
	TaxRate  *decimal.Decimal `json:"taxRate"`
	DueDate  *string          `json:"dueDate"`
	Notes    *string          `json:"notes"`
}

type Service struct {
	repo     Repository
	notify   Notifier
	defaults Defaults
	now      func() time.Time
}

func NewService(repo Repository, n Notifier, d Defaults) *Service {
	if d.Currency == "" {
		d.Currency = "EUR"
	}
	if d.DueDays <= 0 {
		d.DueDays = 14
	}
	return &Service{repo: repo, notify: n, defaults: d, now: time.Now}
}

func parseDay(field, s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.Invalid("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func buildItems(in []LineItemInput) ([]LineItem, error) {
	if len(in) == 0 {
		return nil, apperr.Invalid("at least one line item is required")
	}
	items := make([]LineItem, 0, len(in))
	for i, it := range in {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			return nil, apperr.Invalid("item %d: description is required", i+1)
		}
		if it.Quantity.Sign() <= 0 {
			return nil, apperr.Invalid("item %d: quantity must be positive", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return nil, apperr.Invalid("item %d: unit price cannot be negative", i+1)
		}
		items = append(items, LineItem{Description: desc, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return items, nil
}

func checkRates(discount, taxRate decimal.Decimal) error {
	if discount.IsNegative() {
		return apperr.Invalid("discount cannot be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return apperr.Invalid("taxRate must be between 0 and 100")
	}
	return nil
}

// Create stores a draft invoice with the next number for its issue year.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
	items, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.BillTo.Name) == "" || !strings.Contains(in.BillTo.Email, "@") {
		return nil, apperr.Invalid("billTo name and email are required")
	}
	taxRate := s.defaults.TaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	if err := checkRates(in.Discount, taxRate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	issue := startOfDay(now)
	if in.IssueDate != "" {
		if issue, err = parseDay("issueDate", in.IssueDate); err != nil {
			return nil, err
		}
	}
	due := endOfDay(issue.AddDate(0, 0, s.defaults.DueDays))
	if in.DueDate != "" {
		d, err := parseDay("dueDate", in.DueDate)
		if err != nil {
			return nil, err
		}
		due = endOfDay(d)
	}
	if due.Before(issue) {
		return nil, apperr.Invalid("dueDate cannot be before issueDate")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.defaults.Currency
	}

	seq, err := s.repo.NextSequence(ctx, issue.Year())
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		ID:       uuid.NewString(),
		Number:   FormatNumber(issue.Year(), seq),
		MemberID: in.MemberID,
		BillTo: BillTo{
			Name:    strings.TrimSpace(in.BillTo.Name),
			Email:   strings.ToLower(strings.TrimSpace(in.BillTo.Email)),
			Address: strings.TrimSpace(in.BillTo.Address),
		},
		Items:      items,
		Currency:   currency,
		Discount:   in.Discount,
		TaxRate:    taxRate,
		Status:     StatusDraft,
		IssueDate:  issue,
		DueDate:    due,
		Notes:      strings.TrimSpace(in.Notes),
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		CreatedBy:  in.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inv.Recalculate(now)
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	logger.Infof("invoice %s created (%s %s)", inv.Number, inv.Total.StringFixed(2), inv.Currency)
	return inv, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// status shown to readers reflects the due date even before the sweep runs
	inv.Recalculate(s.now())
	return inv, nil
}

func (s *Service) List(ctx context.Context, q Query) (models.List[Invoice], error) {
	if q.Status != "" && !q.Status.Valid() {
		return models.List[Invoice]{}, apperr.Invalid("unknown status %q", q.Status)
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[Invoice]{}, err
	}
	s.refresh(items)
	return models.NewList(items, total, q.Page), nil
}

func (s *Service) ListForMember(ctx context.Context, memberID string, p models.Page) (models.List[Invoice], error) {
	return s.List(ctx, Query{Page: p, MemberID: memberID})
}

func (s *Service) All(ctx context.Context, q Query) ([]Invoice, error) {
	q.All = true
	items, _, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	s.refresh(items)
	return items, nil
}

// refresh applies the same due-date view as Get to a page of invoices.
func (s *Service) refresh(items []Invoice) {
	now := s.now()
	for i := range items {
		items[i].Recalculate(now)
	}
}

// mutate loads, applies fn, recalculates and saves, retrying on version conflicts.
func (s *Service) mutate(ctx context.Context, id string, fn func(inv *Invoice, now time.Time) error) (*Invoice, error) {
	const attempts = 3
	for i := 0; ; i++ {
		inv, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		if err := fn(inv, now); err != nil {
			return nil, err
		}
		inv.UpdatedAt = now
		inv.Recalculate(now)
		err = s.repo.Update(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, ErrStale) || i == attempts-1 {
			return nil, err
		}
	}
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Invoice, error) {
	return s.mutate(ctx, id, func(inv *Invoice, _ time.Time) error {
		if !inv.Open() {
			return apperr.Conflict("a %s invoice cannot be edited", inv.Status)
		}
		if in.BillTo != nil {
			inv.BillTo = *in.BillTo
		}
		if in.Items != nil {
			items, err := buildItems(in.Items)
			if err != nil {
				return err
			}
			inv.Items = items
		}
		if in.Discount != nil {
			inv.Discount = *in.Discount
		}
		if in.TaxRate != nil {
			inv.TaxRate = *in.TaxRate
		}
		if err := checkRates(inv.Discount, inv.TaxRate); err != nil {
			return err
		}
		if in.DueDate != nil {
			d, err := parseDay("dueDate", *in.DueDate)
			if err != nil {
				return err
			}
			if d.Before(inv.IssueDate) {
				return apperr.Invalid("dueDate cannot be before issueDate")
			}
			inv.DueDate = endOfDay(d)
		}
		if in.Notes != nil {
			inv.Notes = strings.TrimSpace(*in.Notes)
		}
		probe := *inv
		probe.Recalculate(s.now())
		if probe.Total.LessThan(inv.AmountPaid) {
			return apperr.Invalid("total cannot drop below the amount already paid (%s)", inv.AmountPaid.StringFixed(2))
		}
		return nil
	})
}

// Send marks the invoice sent and emails it. Overdue invoices can be re-sent as reminders.
func (s *Service) Send(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.mutate(ctx, id, func(inv *Invoice, now time.Time) error {
		if !inv.Open() {
			return apperr.Conflict("a %s invoice cannot be sent", inv.Status)
		}
		if inv.Total.Sign() <= 0 {
			return apperr.Invalid("cannot send an invoice with a zero total")
		}
		inv.Status = StatusSent
		inv.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		if err := s.notify.InvoiceSent(ctx, inv); err != nil {
			logger.Warnf("invoice %s: email failed: %v", inv.Number, err)
		}
	}
	return inv, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*Invoice, error) {
	return s.mutate(ctx, id, func(inv *Invoice, now time.Time) error {
		if !inv.Open() {
			return apperr.Conflict("a %s invoice cannot be cancelled", inv.Status)
		}
		if inv.AmountPaid.Sign() > 0 {
			return apperr.Conflict("refund recorded payments before cancelling")
		}
		inv.Status = StatusCancelled
		inv.CancelledAt = &now
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != StatusDraft {
		return apperr.Conflict("only draft invoices can be deleted")
	}
	return s.repo.Delete(ctx, id)
}

// ApplyPayment adds amount to the paid total. A draft receiving a payment is treated as sent.
func (s *Service) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal) (*Invoice, error) {
	if amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount must be positive")
	}
	return s.mutate(ctx, id, func(inv *Invoice, now time.Time) error {
		if !inv.Open() {
			return apperr.Conflict("cannot record a payment on a %s invoice", inv.Status)
		}
		if amount.GreaterThan(inv.Balance) {
			return apperr.Invalid("amount %s exceeds the balance of %s", amount.StringFixed(2), inv.Balance.StringFixed(2))
		}
		if inv.Status == StatusDraft {
			inv.Status = StatusSent
			inv.SentAt = &now
		}
		inv.AmountPaid = inv.AmountPaid.Add(amount)
		return nil
	})
}

// ReversePayment undoes ApplyPayment (refunds, failed payment writes).
func (s *Service) ReversePayment(ctx context.Context, id string, amount decimal.Decimal) (*Invoice, error) {
	if amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount must be positive")
	}
	return s.mutate(ctx, id, func(inv *Invoice, _ time.Time) error {
		if inv.Status == StatusCancelled {
			return apperr.Conflict("invoice is cancelled")
		}
		if amount.GreaterThan(inv.AmountPaid) {
			return apperr.Invalid("cannot reverse more than was paid (%s)", inv.AmountPaid.StringFixed(2))
		}
		inv.AmountPaid = inv.AmountPaid.Sub(amount)
		return nil
	})
}

// MarkOverdue flags sent invoices past their due date.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	return s.repo.MarkOverdue(ctx, s.now().UTC())
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.repo.Summary(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summarize(rows), nil
}
