package messages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/internal/storage"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/clubhub/clubhub/backend/go-services/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Live event names pushed to connected clients.
const (
	EventMessageNew       = "message.new"
	EventOfferUpdated     = "offer.updated"
	EventConversationRead = "conversation.read"
)

// Directory resolves user ids.
type Directory interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Listings is the marketplace surface negotiations use.
type Listings interface {
	Get(ctx context.Context, id string) (*marketplace.Listing, error)
	Reserve(ctx context.Context, id, buyerID string, agreed decimal.Decimal) (*marketplace.Listing, error)
}

// Publisher delivers live events to a user's open connections.
type Publisher interface {
	Publish(userID, event string, payload any)
}

// Participant is the acting user.
type Participant struct {
	ID   string
	Name string
}

type SendInput struct {
	RecipientID string `json:"recipientId" form:"recipientId" binding:"required"`
	Body        string `json:"body" form:"body" binding:"max=5000"`
	ListingID   string `json:"listingId" form:"listingId"`
}

// Upload is one attachment in a send request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Options struct {
	MaxAttachmentBytes int64
	MaxAttachments     int
	OfferTTL           time.Duration
	ThreadPageSize     int
}

type Service struct {
	repo     Repository
	users    Directory
	listings Listings
	blobs    storage.BlobStore
	live     Publisher
	opts     Options
	now      func() time.Time
}

func NewService(repo Repository, users Directory, listings Listings, blobs storage.BlobStore, live Publisher, opts Options) *Service {
	if opts.MaxAttachmentBytes <= 0 {
		opts.MaxAttachmentBytes = 10 << 20
	}
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = 5
	}
	if opts.OfferTTL <= 0 {
		opts.OfferTTL = 72 * time.Hour
	}
	if opts.ThreadPageSize <= 0 {
		opts.ThreadPageSize = 50
	}
	return &Service{repo: repo, users: users, listings: listings, blobs: blobs, live: live, opts: opts, now: time.Now}
}

func (s *Service) publish(event string, m *Message, userIDs ...string) {
	if s.live == nil {
		return
	}
	for _, id := range userIDs {
		s.live.Publish(id, event, m)
	}
}

func (s *Service) checkRecipient(ctx context.Context, from, to string) error {
	if to == from {
		return apperr.Invalid("you cannot message yourself")
	}
	if _, err := s.users.Get(ctx, to); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("recipient does not exist")
		}
		return err
	}
	return nil
}

// Send stores a text message with optional attachments.
func (s *Service) Send(ctx context.Context, from Participant, in SendInput, files []Upload) (*Message, error) {
	body := validation.PlainText(in.Body)
	if body == "" && len(files) == 0 {
		return nil, apperr.Invalid("message body or an attachment is required")
	}
	if len(files) > s.opts.MaxAttachments {
		return nil, apperr.Invalid("at most %d attachments per message", s.opts.MaxAttachments)
	}
	for _, f := range files {
		if f.Size > s.opts.MaxAttachmentBytes {
			return nil, apperr.Invalid("%s exceeds the %d byte attachment limit", f.Filename, s.opts.MaxAttachmentBytes)
		}
	}
	if err := s.checkRecipient(ctx, from.ID, in.RecipientID); err != nil {
		return nil, err
	}
	if in.ListingID != "" {
		l, err := s.listings.Get(ctx, in.ListingID)
		if err != nil {
			return nil, err
		}
		if l.SellerID != from.ID && l.SellerID != in.RecipientID {
			return nil, apperr.Invalid("listing conversations must include the seller")
		}
	}

	now := s.now().UTC()
	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: ConversationID(from.ID, in.RecipientID, in.ListingID),
		SenderID:       from.ID,
		SenderName:     from.Name,
		RecipientID:    in.RecipientID,
		Body:           body,
		Kind:           KindText,
		ListingID:      in.ListingID,
		Attachments:    []Attachment{},
		DeletedFor:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, f := range files {
		a, err := s.store(ctx, m.ID, f)
		if err != nil {
			s.removeAttachments(ctx, m.Attachments)
			return nil, err
		}
		m.Attachments = append(m.Attachments, a)
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.removeAttachments(ctx, m.Attachments)
		return nil, err
	}
	metrics.MessagesSent.Inc()
	s.publish(EventMessageNew, m, m.RecipientID, m.SenderID)
	return m, nil
}

func (s *Service) store(ctx context.Context, messageID string, f Upload) (Attachment, error) {
	name := path.Base(strings.ReplaceAll(f.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	ct := f.ContentType
	if ct == "" {
		if ct = mime.TypeByExtension(path.Ext(name)); ct == "" {
			ct = "application/octet-stream"
		}
	}
	a := Attachment{ID: uuid.NewString(), Filename: name, ContentType: ct, Size: f.Size}
	a.Key = fmt.Sprintf("messages/%s/%s", messageID, a.ID)
	if err := s.blobs.Put(ctx, a.Key, f.Body, f.Size, ct); err != nil {
		return Attachment{}, fmt.Errorf("store attachment %s: %w", name, err)
	}
	return a, nil
}

func (s *Service) removeAttachments(ctx context.Context, atts []Attachment) {
	for _, a := range atts {
		if err := s.blobs.Delete(ctx, a.Key); err != nil {
			logger.Warnf("attachment %s not removed: %v", a.Key, err)
		}
	}
}

func (s *Service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	out, err := s.repo.Conversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].OtherUserID = out[i].Last.Other(userID)
		out[i].ListingID = out[i].Last.ListingID
	}
	if out == nil {
		out = []Conversation{}
	}
	return out, nil
}

func participantOf(conversationID, userID string) error {
	a, b, ok := Participants(conversationID)
	if !ok || (a != userID && b != userID) {
		return apperr.NotFound("conversation")
	}
	return nil
}

// Thread returns a page of the conversation, oldest first.
func (s *Service) Thread(ctx context.Context, userID, conversationID string, q ThreadQuery) ([]Message, error) {
	if err := participantOf(conversationID, userID); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = s.opts.ThreadPageSize
	}
	out, err := s.repo.Thread(ctx, conversationID, userID, q)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	if err := participantOf(conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, conversationID, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 && s.live != nil {
		a, b, _ := Participants(conversationID)
		other := a
		if a == userID {
			other = b
		}
		s.live.Publish(other, EventConversationRead, map[string]string{"conversationId": conversationID, "readerId": userID})
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// visible loads a message the user takes part in and has not deleted.
func (s *Service) visible(ctx context.Context, userID, id string) (*Message, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) || m.DeletedBy(userID) {
		return nil, apperr.NotFound("message")
	}
	return m, nil
}

// Delete hides the message for userID; once both sides deleted it the
// message and its attachments are removed.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.visible(ctx, userID, id); err != nil {
		return err
	}
	m, err := s.repo.SoftDelete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !m.DeletedBy(m.SenderID) || !m.DeletedBy(m.RecipientID) {
		return nil
	}
	if m.Offer != nil && m.Offer.Status == OfferPending {
		// keep pending offers so the state machine stays answerable
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeAttachments(ctx, m.Attachments)
	return nil
}

func (s *Service) findAttachment(ctx context.Context, userID, messageID, attachmentID string) (*Attachment, error) {
	m, err := s.visible(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	for i := range m.Attachments {
		if m.Attachments[i].ID == attachmentID {
			return &m.Attachments[i], nil
		}
	}
	return nil, apperr.NotFound("attachment")
}

// AttachmentURL returns a short-lived direct download URL, or "" when the
// blob store cannot presign and the file has to be streamed.
func (s *Service) AttachmentURL(ctx context.Context, userID, messageID, attachmentID string, ttl time.Duration) (string, error) {
	a, err := s.findAttachment(ctx, userID, messageID, attachmentID)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignedURL(ctx, a.Key, a.Filename, ttl)
}

// Attachment opens an attachment for a participant. The caller closes the reader.
func (s *Service) Attachment(ctx context.Context, userID, messageID, attachmentID string) (*Attachment, io.ReadCloser, error) {
	a, err := s.findAttachment(ctx, userID, messageID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, a.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperr.NotFound("attachment")
	}
	if err != nil {
		return nil, nil, err
	}
	return a, rc, nil
}
