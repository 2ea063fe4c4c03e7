package applications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	received []string
	reviewed []string
	err      error
}

func (n *recordingNotifier) ApplicationReceived(_ context.Context, a *Application) error {
	n.received = append(n.received, a.ID)
	return n.err
}

func (n *recordingNotifier) ApplicationReviewed(_ context.Context, a *Application) error {
	n.reviewed = append(n.reviewed, a.ID)
	return n.err
}

func newTestService(n Notifier) *Service {
	svc := NewService(NewMemoryRepository(), n)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func coach() SubmitInput {
	return SubmitInput{Type: KindCoach, FirstName: "Dana", LastName: "Reyes", Email: "Dana@Example.com", ExperienceYears: 6}
}

func TestSubmit(t *testing.T) {
	n := &recordingNotifier{}
	svc := newTestService(n)
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.ApplicationsSubmitted.WithLabelValues("coach"))

	a, err := svc.Submit(ctx, coach())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, "dana@example.com", a.Email)
	assert.Equal(t, []string{a.ID}, n.received)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ApplicationsSubmitted.WithLabelValues("coach")))

	_, err = svc.Submit(ctx, coach())
	assert.True(t, errors.Is(err, apperr.ErrConflict), "duplicate pending should conflict: %v", err)

	// a different role for the same person is fine
	ref := coach()
	ref.Type = KindReferee
	_, err = svc.Submit(ctx, ref)
	require.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	bad := coach()
	bad.Type = "mascot"
	_, err := svc.Submit(ctx, bad)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	minor := SubmitInput{Type: KindPlayer, FirstName: "Sam", LastName: "Lee", Email: "sam@example.com", DateOfBirth: "2012-09-14"}
	_, err = svc.Submit(ctx, minor)
	assert.True(t, errors.Is(err, apperr.ErrInvalid), "minor without guardian: %v", err)

	minor.Guardian = &Guardian{Name: "Pat Lee", Email: "pat@example.com"}
	a, err := svc.Submit(ctx, minor)
	require.NoError(t, err)
	assert.Equal(t, 13, a.AgeAt(svc.now()))

	noDOB := SubmitInput{Type: KindPlayer, FirstName: "Al", LastName: "B", Email: "al@example.com"}
	_, err = svc.Submit(ctx, noDOB)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	badDate := coach()
	badDate.DateOfBirth = "14/09/2012"
	_, err = svc.Submit(ctx, badDate)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	future := coach()
	future.Email = "future@example.com"
	future.DateOfBirth = "2030-01-01"
	_, err = svc.Submit(ctx, future)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestEmailFailureDoesNotFailSubmit(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down")}
	svc := newTestService(n)
	a, err := svc.Submit(context.Background(), coach())
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)

	_, err = svc.Review(context.Background(), a.ID, "admin-1", ReviewInput{Status: StatusApproved})
	require.NoError(t, err)
	assert.Len(t, n.reviewed, 1)
}

func TestReview(t *testing.T) {
	n := &recordingNotifier{}
	svc := newTestService(n)
	ctx := context.Background()
	a, err := svc.Submit(ctx, coach())
	require.NoError(t, err)

	got, err := svc.Review(ctx, a.ID, "admin-1", ReviewInput{Status: StatusApproved, Notes: " welcome "})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "welcome", got.ReviewNotes)
	assert.Equal(t, "admin-1", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	_, err = svc.Review(ctx, a.ID, "admin-1", ReviewInput{Status: StatusApproved})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = svc.Review(ctx, a.ID, "admin-1", ReviewInput{Status: "maybe"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	back, err := svc.Review(ctx, a.ID, "admin-1", ReviewInput{Status: StatusPending})
	require.NoError(t, err)
	assert.Nil(t, back.ReviewedAt)
	// reopening does not email the applicant
	assert.Len(t, n.reviewed, 1)

	_, err = svc.Review(ctx, "missing", "admin-1", ReviewInput{Status: StatusDenied})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListStatsUpdateDelete(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	a, err := svc.Submit(ctx, coach())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{Type: KindVolunteer, FirstName: "Vic", LastName: "Tor", Email: "vic@example.com"})
	require.NoError(t, err)
	_, err = svc.Review(ctx, a.ID, "admin", ReviewInput{Status: StatusDenied})
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, int64(1), st.ByStatus[StatusDenied])
	assert.Equal(t, int64(1), st.ByType[KindVolunteer])

	page, err := svc.List(ctx, Query{Search: "vic"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "vic@example.com", page.Items[0].Email)

	_, err = svc.List(ctx, Query{Status: "weird"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	phone := "+1 555 0100"
	upd, err := svc.Update(ctx, a.ID, UpdateInput{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, upd.Phone)

	all, err := svc.All(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, a.ID), apperr.ErrNotFound))
}
