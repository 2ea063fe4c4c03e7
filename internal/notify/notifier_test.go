package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/internal/payments"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRenderInvoice(t *testing.T) {
	inv := &invoices.Invoice{
		Number:   "INV-2026-000001",
		BillTo:   invoices.BillTo{Name: "Jo Doe", Email: "jo@example.com"},
		Currency: "EUR",
		Items: []invoices.LineItem{
			{Description: "Season fee", Amount: decimal.RequireFromString("120")},
		},
		Balance: decimal.RequireFromString("120"),
		DueDate: time.Date(2026, 4, 15, 23, 59, 59, 0, time.UTC),
	}
	msg, err := Render(TemplateInvoiceSent, map[string]any{"Invoice": inv, "Club": "Rovers FC"})
	require.NoError(t, err)
	assert.Equal(t, "Invoice INV-2026-000001 from Rovers FC", msg.Subject)
	assert.Contains(t, msg.HTML, "<table>")
	assert.Contains(t, msg.HTML, "<td>Season fee</td>")
	assert.Contains(t, msg.HTML, "<strong>120.00 EUR</strong> by 15 Apr 2026")
}

func TestRenderDropsRawHTML(t *testing.T) {
	a := &applications.Application{
		Type:      applications.KindPlayer,
		FirstName: "<script>alert(1)</script>",
		LastName:  "X",
		Email:     "x@example.com",
	}
	msg, err := Render(TemplateApplicationReceived, map[string]any{"Application": a, "Club": "Rovers FC"})
	require.NoError(t, err)
	assert.Equal(t, "We received your player application", msg.Subject)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestApplicationReceivedNotifiesApplicantAndAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	n := New(sender, Options{From: "club@example.com", AdminAddress: "admin@example.com", Club: "Rovers FC"})

	a := &applications.Application{
		Type:      applications.KindPlayer,
		FirstName: "Sam",
		LastName:  "Young",
		Email:     "sam@example.com",
		Guardian:  &applications.Guardian{Name: "Pat Young", Email: "pat@example.com"},
	}

	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r SendRequest) (SendResult, error) {
				assert.Equal(t, []string{"sam@example.com", "pat@example.com"}, r.To)
				assert.Equal(t, "club@example.com", r.From)
				return SendResult{MessageID: "m1"}, nil
			}),
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r SendRequest) (SendResult, error) {
				assert.Equal(t, []string{"admin@example.com"}, r.To)
				assert.Equal(t, "New player application from Sam Young", r.Subject)
				return SendResult{MessageID: "m2"}, nil
			}),
	)

	require.NoError(t, n.ApplicationReceived(context.Background(), a))
}

func TestSendFailureIsReturnedAndCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	n := New(sender, Options{})

	failed := metrics.EmailDeliveries.WithLabelValues(TemplateMembershipActivated, "failed")
	before := testutil.ToFloat64(failed)

	boom := errors.New("provider down")
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(SendResult{}, boom)

	end := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	err := n.MembershipActivated(context.Background(), &memberships.Membership{
		MemberName:  "Sam",
		MemberEmail: "sam@example.com",
		TierName:    "Gold",
		EndDate:     &end,
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}

func TestMissingRecipientIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	n := New(sender, Options{})

	// no admin address configured: only the applicant is mailed
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(SendResult{}, nil).Times(1)
	require.NoError(t, n.ApplicationReceived(context.Background(), &applications.Application{
		Type: applications.KindVolunteer, FirstName: "Al", Email: "al@example.com",
	}))
}

func TestPaymentReceiptFallsBackToInvoiceEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	n := New(sender, Options{})

	inv := &invoices.Invoice{Number: "INV-2026-000002", BillTo: invoices.BillTo{Email: "billing@example.com"}, Currency: "EUR"}
	p := &payments.Payment{PayerName: "Jo", Amount: decimal.RequireFromString("10"), Currency: "EUR", PaidAt: time.Now()}

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r SendRequest) (SendResult, error) {
			assert.Equal(t, []string{"billing@example.com"}, r.To)
			assert.Equal(t, "Payment received for INV-2026-000002", r.Subject)
			return SendResult{}, nil
		})
	require.NoError(t, n.PaymentReceipt(context.Background(), p, inv))
}
