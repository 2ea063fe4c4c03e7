package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/internal/payments"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
)

type Options struct {
	From         string
	ReplyTo      string
	AdminAddress string
	Club         string
}

// Notifier turns domain events into emails. It satisfies the notifier
// interfaces of applications, invoices, payments and memberships.
type Notifier struct {
	sender Sender
	opts   Options
}

func New(sender Sender, opts Options) *Notifier {
	if sender == nil {
		sender = NoopSender{}
	}
	if opts.Club == "" {
		opts.Club = "ClubHub"
	}
	return &Notifier{sender: sender, opts: opts}
}

func (n *Notifier) send(ctx context.Context, tmpl string, to []string, data map[string]any) error {
	var rcpt []string
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			rcpt = append(rcpt, addr)
		}
	}
	if len(rcpt) == 0 {
		return nil
	}
	data["Club"] = n.opts.Club
	msg, err := Render(tmpl, data)
	if err == nil {
		_, err = n.sender.Send(ctx, SendRequest{
			To:      rcpt,
			From:    n.opts.From,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			ReplyTo: n.opts.ReplyTo,
		})
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	metrics.EmailDeliveries.WithLabelValues(tmpl, result).Inc()
	return err
}

func (n *Notifier) ApplicationReceived(ctx context.Context, a *applications.Application) error {
	to := []string{a.Email}
	if a.Guardian != nil {
		to = append(to, a.Guardian.Email)
	}
	err := n.send(ctx, TemplateApplicationReceived, to, map[string]any{"Application": a})
	adminErr := n.send(ctx, TemplateAdminNewApplication, []string{n.opts.AdminAddress}, map[string]any{"Application": a})
	return errors.Join(err, adminErr)
}

func (n *Notifier) ApplicationReviewed(ctx context.Context, a *applications.Application) error {
	to := []string{a.Email}
	if a.Guardian != nil {
		to = append(to, a.Guardian.Email)
	}
	return n.send(ctx, TemplateApplicationReviewed, to, map[string]any{"Application": a})
}

func (n *Notifier) InvoiceSent(ctx context.Context, inv *invoices.Invoice) error {
	return n.send(ctx, TemplateInvoiceSent, []string{inv.BillTo.Email}, map[string]any{"Invoice": inv})
}

func (n *Notifier) PaymentReceipt(ctx context.Context, p *payments.Payment, inv *invoices.Invoice) error {
	to := p.PayerEmail
	if to == "" {
		to = inv.BillTo.Email
	}
	return n.send(ctx, TemplatePaymentReceipt, []string{to}, map[string]any{"Payment": p, "Invoice": inv})
}

func (n *Notifier) MembershipActivated(ctx context.Context, m *memberships.Membership) error {
	return n.send(ctx, TemplateMembershipActivated, []string{m.MemberEmail}, map[string]any{"Membership": m})
}

var (
	_ applications.Notifier = (*Notifier)(nil)
	_ invoices.Notifier     = (*Notifier)(nil)
	_ payments.Notifier     = (*Notifier)(nil)
	_ memberships.Notifier  = (*Notifier)(nil)
)
