package invoices

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

type LineItem struct {
	Description string          `bson:"description" json:"description"`
	Quantity    decimal.Decimal `bson:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `bson:"unitPrice" json:"unitPrice"`
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
}

type BillTo struct {
	Name    string `bson:"name" json:"name" binding:"required"`
	Email   string `bson:"email" json:"email" binding:"required,email"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
}

// Invoice amounts other than Discount, TaxRate and AmountPaid are derived;
// call Recalculate before saving.
type Invoice struct {
	ID          string          `bson:"_id" json:"id"`
	Number      string          `bson:"number" json:"number"`
	MemberID    string          `bson:"memberId,omitempty" json:"memberId,omitempty"`
	BillTo      BillTo          `bson:"billTo" json:"billTo"`
	Items       []LineItem      `bson:"items" json:"items"`
	Currency    string          `bson:"currency" json:"currency"`
	Subtotal    decimal.Decimal `bson:"subtotal" json:"subtotal"`
	Discount    decimal.Decimal `bson:"discount" json:"discount"`
	TaxRate     decimal.Decimal `bson:"taxRate" json:"taxRate"` // percent
	TaxAmount   decimal.Decimal `bson:"taxAmount" json:"taxAmount"`
	Total       decimal.Decimal `bson:"total" json:"total"`
	AmountPaid  decimal.Decimal `bson:"amountPaid" json:"amountPaid"`
	Balance     decimal.Decimal `bson:"balance" json:"balance"`
	Status      Status          `bson:"status" json:"status"`
	IssueDate   time.Time       `bson:"issueDate" json:"issueDate"`
	DueDate     time.Time       `bson:"dueDate" json:"dueDate"`
	SentAt      *time.Time      `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	PaidAt      *time.Time      `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CancelledAt *time.Time      `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	Notes       string          `bson:"notes,omitempty" json:"notes,omitempty"`
	SourceType  string          `bson:"sourceType,omitempty" json:"sourceType,omitempty"`
	SourceID    string          `bson:"sourceId,omitempty" json:"sourceId,omitempty"`
	CreatedBy   string          `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	Version     int64           `bson:"version" json:"version"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// FormatNumber renders an invoice number, e.g. INV-2026-000042.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, seq)
}

func (inv *Invoice) PastDue(now time.Time) bool {
	return !inv.DueDate.IsZero() && now.After(inv.DueDate)
}

// Open reports whether the invoice still accepts payments.
func (inv *Invoice) Open() bool {
	return inv.Status == StatusDraft || inv.Status == StatusSent || inv.Status == StatusOverdue
}

// Recalculate derives line amounts, totals, balance and the payment-driven
// status transitions.
func (inv *Invoice) Recalculate(now time.Time) {
	subtotal := decimal.Zero
	for i := range inv.Items {
		it := &inv.Items[i]
		it.Amount = it.Quantity.Mul(it.UnitPrice).Round(2)
		subtotal = subtotal.Add(it.Amount)
	}
	inv.Subtotal = subtotal

	taxable := subtotal.Sub(inv.Discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	inv.TaxAmount = taxable.Mul(inv.TaxRate).Div(hundred).Round(2)
	inv.Total = taxable.Add(inv.TaxAmount)
	inv.Balance = inv.Total.Sub(inv.AmountPaid)

	switch inv.Status {
	case StatusDraft, StatusCancelled:
		return
	}

	if inv.Balance.Sign() <= 0 && inv.Total.Sign() > 0 {
		inv.Status = StatusPaid
		if inv.PaidAt == nil {
			t := now.UTC()
			inv.PaidAt = &t
		}
		return
	}
	inv.PaidAt = nil
	if inv.PastDue(now) {
		inv.Status = StatusOverdue
	} else {
		inv.Status = StatusSent
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type StatusSummary struct {
	Count   int64           `json:"count" bson:"count"`
	Total   decimal.Decimal `json:"total" bson:"total"`
	Paid    decimal.Decimal `json:"paid" bson:"paid"`
	Balance decimal.Decimal `json:"balance" bson:"balance"`
}

type Summary struct {
	ByStatus    map[Status]StatusSummary `json:"byStatus"`
	Invoiced    decimal.Decimal          `json:"invoiced"`
	Collected   decimal.Decimal          `json:"collected"`
	Outstanding decimal.Decimal          `json:"outstanding"`
	Overdue     decimal.Decimal          `json:"overdue"`
}

// summarize folds per-status aggregates; cancelled invoices are excluded from money totals.
func summarize(rows map[Status]StatusSummary) Summary {
	s := Summary{ByStatus: rows}
	for st, row := range rows {
		if st == StatusCancelled || st == StatusDraft {
			continue
		}
		s.Invoiced = s.Invoiced.Add(row.Total)
		s.Collected = s.Collected.Add(row.Paid)
		if st == StatusSent || st == StatusOverdue {
			s.Outstanding = s.Outstanding.Add(row.Balance)
		}
		if st == StatusOverdue {
			s.Overdue = s.Overdue.Add(row.Balance)
		}
	}
	return s
}

var CSVHeader = []string{"number", "member", "bill_to", "email", "currency", "subtotal", "discount", "tax", "total", "paid", "balance", "status", "issue_date", "due_date"}

func (inv *Invoice) CSVRow() []string {
	return []string{
		inv.Number, inv.MemberID, inv.BillTo.Name, inv.BillTo.Email, inv.Currency,
		inv.Subtotal.StringFixed(2), inv.Discount.StringFixed(2), inv.TaxAmount.StringFixed(2),
		inv.Total.StringFixed(2), inv.AmountPaid.StringFixed(2), inv.Balance.StringFixed(2),
		string(inv.Status), inv.IssueDate.UTC().Format("2006-01-02"), inv.DueDate.UTC().Format("2006-01-02"),
	}
}
