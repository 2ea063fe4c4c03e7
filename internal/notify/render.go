package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.md
var templateFS embed.FS

const (
	TemplateApplicationReceived = "application_received"
	TemplateApplicationReviewed = "application_reviewed"
	TemplateAdminNewApplication = "admin_new_application"
	TemplateInvoiceSent         = "invoice_sent"
	TemplatePaymentReceipt      = "payment_receipt"
	TemplateMembershipActivated = "membership_activated"
)

// Raw HTML in templates or data is dropped by the renderer.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  formatDate,
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2 Jan 2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format("2 Jan 2006")
	}
	return fmt.Sprint(v)
}

var templates = template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.md"))

// Rendered is a subject plus HTML body.
type Rendered struct {
	Subject string
	HTML    string
}

// Render executes a markdown template whose first line is "Subject: ...".
func Render(name string, data any) (Rendered, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".md", data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	head, body, _ := strings.Cut(buf.String(), "\n")
	subject, ok := strings.CutPrefix(strings.TrimSpace(head), "Subject:")
	if !ok {
		return Rendered{}, fmt.Errorf("render %s: missing subject line", name)
	}
	var html bytes.Buffer
	if err := md.Convert([]byte(strings.TrimSpace(body)), &html); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Rendered{Subject: strings.TrimSpace(subject), HTML: html.String()}, nil
}
