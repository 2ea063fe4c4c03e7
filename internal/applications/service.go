package applications

import (
	"context"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/google/uuid"
)

// Notifier sends the intake emails. Errors are logged, never returned to the caller.
type Notifier interface {
	ApplicationReceived(ctx context.Context, a *Application) error
	ApplicationReviewed(ctx context.Context, a *Application) error
}

type SubmitInput struct {
	Type            Kind      `json:"type" binding:"required"`
	FirstName       string    `json:"firstName" binding:"required,max=100"`
	LastName        string    `json:"lastName" binding:"required,max=100"`
	Email           string    `json:"email" binding:"required,email"`
	Phone           string    `json:"phone" binding:"max=40"`
	DateOfBirth     string    `json:"dateOfBirth"` // YYYY-MM-DD
	Position        string    `json:"position" binding:"max=100"`
	ExperienceYears int       `json:"experienceYears" binding:"min=0,max=80"`
	Certifications  []string  `json:"certifications"`
	Availability    []string  `json:"availability"`
	Message         string    `json:"message" binding:"max=5000"`
	Guardian        *Guardian `json:"guardian"`
}

// UpdateInput carries admin edits; nil fields are left alone.
type UpdateInput struct {
	FirstName      *string   `json:"firstName"`
	LastName       *string   `json:"lastName"`
	Email          *string   `json:"email" binding:"omitempty,email"`
	Phone          *string   `json:"phone"`
	Position       *string   `json:"position"`
	Availability   []string  `json:"availability"`
	Certifications []string  `json:"certifications"`
	Guardian       *Guardian `json:"guardian"`
}

type ReviewInput struct {
	Status Status `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"max=2000"`
}

type Service struct {
	repo   Repository
	notify Notifier
	now    func() time.Time
}

func NewService(repo Repository, n Notifier) *Service {
	return &Service{repo: repo, notify: n, now: time.Now}
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, apperr.Invalid("dateOfBirth must be YYYY-MM-DD")
		}
	}
	t = t.UTC()
	return &t, nil
}

func (s *Service) validate(a *Application) error {
	if !a.Type.Valid() {
		return apperr.Invalid("type must be one of player, coach, referee, volunteer")
	}
	if a.FirstName == "" || a.LastName == "" {
		return apperr.Invalid("first and last name are required")
	}
	if a.Email == "" || !strings.Contains(a.Email, "@") {
		return apperr.Invalid("a valid email is required")
	}
	now := s.now().UTC()
	if a.DateOfBirth != nil && a.DateOfBirth.After(now) {
		return apperr.Invalid("dateOfBirth cannot be in the future")
	}
	if a.Type == KindPlayer {
		if a.DateOfBirth == nil {
			return apperr.Invalid("dateOfBirth is required for players")
		}
		if a.AgeAt(now) < AdultAge && (a.Guardian == nil || a.Guardian.Name == "" || a.Guardian.Email == "") {
			return apperr.Invalid("guardian name and email are required for players under %d", AdultAge)
		}
	}
	return nil
}

func trimAll(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Submit stores a new pending application. A second pending application
// for the same email and type is refused.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Application, error) {
	dob, err := parseDate(in.DateOfBirth)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &Application{
		ID:              uuid.NewString(),
		Type:            Kind(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:           strings.TrimSpace(in.Phone),
		DateOfBirth:     dob,
		Position:        strings.TrimSpace(in.Position),
		ExperienceYears: in.ExperienceYears,
		Certifications:  trimAll(in.Certifications),
		Availability:    trimAll(in.Availability),
		Message:         strings.TrimSpace(in.Message),
		Guardian:        in.Guardian,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.validate(a); err != nil {
		return nil, err
	}
	dup, err := s.repo.FindPending(ctx, a.Email, a.Type)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, apperr.Conflict("a %s application for %s is already pending", a.Type, a.Email)
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	metrics.ApplicationsSubmitted.WithLabelValues(string(a.Type)).Inc()
	logger.Infof("application %s submitted (%s)", a.ID, a.Type)

	if s.notify != nil {
		if err := s.notify.ApplicationReceived(ctx, a); err != nil {
			logger.Warnf("application %s: intake emails failed: %v", a.ID, err)
		}
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Application, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q Query) (models.List[Application], error) {
	if q.Type != "" && !q.Type.Valid() {
		return models.List[Application]{}, apperr.Invalid("unknown application type %q", q.Type)
	}
	if q.Status != "" && !q.Status.Valid() {
		return models.List[Application]{}, apperr.Invalid("unknown status %q", q.Status)
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return models.List[Application]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

// All returns every application matching q, for exports.
func (s *Service) All(ctx context.Context, q Query) ([]Application, error) {
	q.All = true
	items, _, err := s.repo.List(ctx, q)
	return items, err
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Application, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	setIf(&a.FirstName, in.FirstName)
	setIf(&a.LastName, in.LastName)
	setIf(&a.Phone, in.Phone)
	setIf(&a.Position, in.Position)
	if in.Email != nil {
		a.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Availability != nil {
		a.Availability = trimAll(in.Availability)
	}
	if in.Certifications != nil {
		a.Certifications = trimAll(in.Certifications)
	}
	if in.Guardian != nil {
		a.Guardian = in.Guardian
	}
	if err := s.validate(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Review records an admin decision and emails it to the applicant.
func (s *Service) Review(ctx context.Context, id, reviewerID string, in ReviewInput) (*Application, error) {
	if !in.Status.Valid() {
		return nil, apperr.Invalid("status must be pending, approved or denied")
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == in.Status {
		return nil, apperr.Conflict("application is already %s", a.Status)
	}
	now := s.now().UTC()
	a.Status = in.Status
	a.ReviewNotes = strings.TrimSpace(in.Notes)
	a.UpdatedAt = now
	if in.Status == StatusPending {
		a.ReviewedBy = ""
		a.ReviewedAt = nil
	} else {
		a.ReviewedBy = reviewerID
		a.ReviewedAt = &now
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	metrics.ApplicationsReviewed.WithLabelValues(string(a.Status)).Inc()

	if s.notify != nil && a.Status != StatusPending {
		if err := s.notify.ApplicationReviewed(ctx, a); err != nil {
			logger.Warnf("application %s: decision email failed: %v", a.ID, err)
		}
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
