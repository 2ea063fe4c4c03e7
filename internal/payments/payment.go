package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodOnline:
		return true
	}
	return false
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

type Payment struct {
	ID            string          `bson:"_id" json:"id"`
	InvoiceID     string          `bson:"invoiceId" json:"invoiceId"`
	InvoiceNumber string          `bson:"invoiceNumber" json:"invoiceNumber"`
	MemberID      string          `bson:"memberId,omitempty" json:"memberId,omitempty"`
	PayerName     string          `bson:"payerName" json:"payerName"`
	PayerEmail    string          `bson:"payerEmail" json:"payerEmail"`
	Amount        decimal.Decimal `bson:"amount" json:"amount"`
	Currency      string          `bson:"currency" json:"currency"`
	Method        Method          `bson:"method" json:"method"`
	Reference     string          `bson:"reference,omitempty" json:"reference,omitempty"`
	Status        Status          `bson:"status" json:"status"`
	Notes         string          `bson:"notes,omitempty" json:"notes,omitempty"`
	RefundReason  string          `bson:"refundReason,omitempty" json:"refundReason,omitempty"`
	RecordedBy    string          `bson:"recordedBy,omitempty" json:"recordedBy,omitempty"`
	PaidAt        time.Time       `bson:"paidAt" json:"paidAt"`
	RefundedAt    *time.Time      `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// CSVHeader and CSVRow describe the export layout.
var CSVHeader = []string{"id", "invoice", "payer", "email", "amount", "currency", "method", "reference", "status", "paid_at", "refunded_at"}

func (p *Payment) CSVRow() []string {
	refunded := ""
	if p.RefundedAt != nil {
		refunded = p.RefundedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		p.ID, p.InvoiceNumber, p.PayerName, p.PayerEmail,
		p.Amount.StringFixed(2), p.Currency, string(p.Method), p.Reference,
		string(p.Status), p.PaidAt.UTC().Format(time.RFC3339), refunded,
	}
}
