package messages

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindText  Kind = "text"
	KindOffer Kind = "offer"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferCountered OfferStatus = "countered"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferExpired   OfferStatus = "expired"
	OfferCancelled OfferStatus = "cancelled"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferCountered, OfferAccepted, OfferRejected, OfferExpired, OfferCancelled:
		return true
	}
	return false
}

// Offer is a price proposal carried by a message. Only pending offers change state.
type Offer struct {
	Amount       decimal.Decimal `bson:"amount" json:"amount"`
	Currency     string          `bson:"currency" json:"currency"`
	Status       OfferStatus     `bson:"status" json:"status"`
	BuyerID      string          `bson:"buyerId" json:"buyerId"`
	SellerID     string          `bson:"sellerId" json:"sellerId"`
	ExpiresAt    time.Time       `bson:"expiresAt" json:"expiresAt"`
	ParentID     string          `bson:"parentId,omitempty" json:"parentId,omitempty"`
	RespondedAt  *time.Time      `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
	ResponseNote string          `bson:"responseNote,omitempty" json:"responseNote,omitempty"`
}

type Attachment struct {
	ID          string `bson:"id" json:"id"`
	Filename    string `bson:"filename" json:"filename"`
	ContentType string `bson:"contentType" json:"contentType"`
	Size        int64  `bson:"size" json:"size"`
	Key         string `bson:"key" json:"-"`
}

type Message struct {
	ID             string       `bson:"_id" json:"id"`
	ConversationID string       `bson:"conversationId" json:"conversationId"`
	SenderID       string       `bson:"senderId" json:"senderId"`
	SenderName     string       `bson:"senderName" json:"senderName"`
	RecipientID    string       `bson:"recipientId" json:"recipientId"`
	Body           string       `bson:"body" json:"body"`
	Kind           Kind         `bson:"kind" json:"kind"`
	ListingID      string       `bson:"listingId,omitempty" json:"listingId,omitempty"`
	Offer          *Offer       `bson:"offer,omitempty" json:"offer,omitempty"`
	Attachments    []Attachment `bson:"attachments" json:"attachments"`
	// ReadAt is stored as null until the recipient reads the message.
	ReadAt     *time.Time `bson:"readAt" json:"readAt"`
	DeletedFor []string   `bson:"deletedFor" json:"-"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Involves reports whether userID sent or received the message.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

func (m *Message) DeletedBy(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID.
func (m *Message) Other(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

const convSep = "|"

// ConversationID is the sorted participant pair, plus the listing when the
// conversation is about one.
func ConversationID(a, b, listingID string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	id := pair[0] + convSep + pair[1]
	if listingID != "" {
		id += convSep + listingID
	}
	return id
}

// Participants splits a conversation id back into its two user ids.
func Participants(conversationID string) (string, string, bool) {
	parts := strings.Split(conversationID, convSep)
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Conversation is one row of the inbox.
type Conversation struct {
	ID          string  `bson:"_id" json:"id"`
	OtherUserID string  `bson:"-" json:"otherUserId"`
	ListingID   string  `bson:"-" json:"listingId,omitempty"`
	Last        Message `bson:"last" json:"lastMessage"`
	Unread      int64   `bson:"unread" json:"unread"`
	Count       int64   `bson:"count" json:"messageCount"`
}
