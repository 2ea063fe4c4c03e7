package memberships

import (
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodAnnual    Period = "annual"
)

func (p Period) Valid() bool {
	return p == PeriodMonthly || p == PeriodQuarterly || p == PeriodAnnual
}

// Extend returns t moved forward by one period.
func (p Period) Extend(t time.Time) time.Time {
	switch p {
	case PeriodQuarterly:
		return t.AddDate(0, 3, 0)
	case PeriodAnnual:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

type Tier struct {
	ID          string          `bson:"_id" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Slug        string          `bson:"slug" json:"slug"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	Price       decimal.Decimal `bson:"price" json:"price"`
	Currency    string          `bson:"currency" json:"currency"`
	Period      Period          `bson:"period" json:"period"`
	Benefits    []string        `bson:"benefits,omitempty" json:"benefits"`
	Active      bool            `bson:"active" json:"active"`
	SortOrder   int             `bson:"sortOrder" json:"sortOrder"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt" json:"updatedAt"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type Membership struct {
	ID          string          `bson:"_id" json:"id"`
	UserID      string          `bson:"userId" json:"userId"`
	MemberName  string          `bson:"memberName" json:"memberName"`
	MemberEmail string          `bson:"memberEmail" json:"memberEmail"`
	TierID      string          `bson:"tierId" json:"tierId"`
	TierName    string          `bson:"tierName" json:"tierName"`
	Price       decimal.Decimal `bson:"price" json:"price"`
	Currency    string          `bson:"currency" json:"currency"`
	Period      Period          `bson:"period" json:"period"`
	Status      Status          `bson:"status" json:"status"`
	StartDate   *time.Time      `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate     *time.Time      `bson:"endDate,omitempty" json:"endDate,omitempty"`
	AutoRenew   bool            `bson:"autoRenew" json:"autoRenew"`
	// InvoiceID is the latest invoice issued for this membership.
	InvoiceID string `bson:"invoiceId,omitempty" json:"invoiceId,omitempty"`
	// PaidInvoiceID is the last invoice that extended the term.
	PaidInvoiceID string     `bson:"paidInvoiceId,omitempty" json:"-"`
	CancelledAt   *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Open reports whether the membership blocks a new subscription.
func (m *Membership) Open() bool {
	return m.Status == StatusPending || m.Status == StatusActive
}

var CSVHeader = []string{"id", "member", "email", "tier", "price", "currency", "period", "status", "start", "end", "auto_renew"}

func (m *Membership) CSVRow() []string {
	day := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("2006-01-02")
	}
	renew := "no"
	if m.AutoRenew {
		renew = "yes"
	}
	return []string{
		m.ID, m.MemberName, m.MemberEmail, m.TierName, m.Price.StringFixed(2), m.Currency,
		string(m.Period), string(m.Status), day(m.StartDate), day(m.EndDate), renew,
	}
}
