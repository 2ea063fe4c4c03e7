package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups listings and carries the pricing rules for them.
type Category struct {
	ID          string          `bson:"_id" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Slug        string          `bson:"slug" json:"slug"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	MinPrice    decimal.Decimal `bson:"minPrice" json:"minPrice"`
	// MaxPrice of zero means no upper bound.
	MaxPrice       decimal.Decimal `bson:"maxPrice" json:"maxPrice"`
	CommissionRate decimal.Decimal `bson:"commissionRate" json:"commissionRate"`
	Active         bool            `bson:"active" json:"active"`
	SortOrder      int             `bson:"sortOrder" json:"sortOrder"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// PriceAllowed reports whether p falls inside the category bounds.
func (c *Category) PriceAllowed(p decimal.Decimal) bool {
	if p.LessThan(c.MinPrice) {
		return false
	}
	return c.MaxPrice.IsZero() || !p.GreaterThan(c.MaxPrice)
}

// Commission is the club's cut of a sale at price p.
func (c *Category) Commission(p decimal.Decimal) decimal.Decimal {
	return p.Mul(c.CommissionRate).Div(decimal.NewFromInt(100)).Round(2)
}

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "active"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusReserved, StatusSold, StatusWithdrawn:
		return true
	}
	return false
}

type Listing struct {
	ID           string           `bson:"_id" json:"id"`
	SellerID     string           `bson:"sellerId" json:"sellerId"`
	SellerName   string           `bson:"sellerName" json:"sellerName"`
	CategoryID   string           `bson:"categoryId" json:"categoryId"`
	CategoryName string           `bson:"categoryName" json:"categoryName"`
	Title        string           `bson:"title" json:"title"`
	Description  string           `bson:"description" json:"description"`
	Price        decimal.Decimal  `bson:"price" json:"price"`
	Currency     string           `bson:"currency" json:"currency"`
	Condition    Condition        `bson:"condition" json:"condition"`
	Status       Status           `bson:"status" json:"status"`
	BuyerID      string           `bson:"buyerId,omitempty" json:"buyerId,omitempty"`
	AgreedPrice  *decimal.Decimal `bson:"agreedPrice,omitempty" json:"agreedPrice,omitempty"`
	Commission   *decimal.Decimal `bson:"commission,omitempty" json:"commission,omitempty"`
	ReservedAt   *time.Time       `bson:"reservedAt,omitempty" json:"reservedAt,omitempty"`
	SoldAt       *time.Time       `bson:"soldAt,omitempty" json:"soldAt,omitempty"`
	CreatedAt    time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time        `bson:"updatedAt" json:"updatedAt"`
}
