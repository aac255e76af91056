// Package mailer builds and dispatches quotation e-mails.
//
// The dispatcher validates the quotation, renders plain-text and HTML bodies,
// applies the sandbox recipient override when configured, and hands the payload
// to an injected Transport. It reports success as a boolean pair and never
// panics or propagates transport errors to the conversation.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/util"
)

// Transport is the injected capability that actually delivers an e-mail.
type Transport interface {
	Send(ctx context.Context, msg *models.EmailMessage) error
}

// DefaultTransportTimeout bounds a single transport call.
const DefaultTransportTimeout = 15 * time.Second

// Opts holds configuration options for the dispatcher.
type Opts struct {
	FromAddress  string
	OwnerEmail   string
	SandboxMode  bool
	SupportPhone string
	Timeout      time.Duration
}

// Option defines a configuration option for the dispatcher.
type Option func(*Opts)

// WithFromAddress sets the sender identity.
func WithFromAddress(from string) Option {
	return func(o *Opts) { o.FromAddress = from }
}

// WithOwnerEmail sets the sandbox override recipient.
func WithOwnerEmail(email string) Option {
	return func(o *Opts) { o.OwnerEmail = email }
}

// WithSandboxMode enables recipient rewriting to the owner address.
func WithSandboxMode(enabled bool) Option {
	return func(o *Opts) { o.SandboxMode = enabled }
}

// WithSupportPhone sets the phone number quoted in e-mail bodies.
func WithSupportPhone(phone string) Option {
	return func(o *Opts) { o.SupportPhone = phone }
}

// WithTimeout bounds the transport call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Dispatcher sends quotation e-mails through a Transport.
type Dispatcher struct {
	transport    Transport
	fromAddress  string
	ownerEmail   string
	sandboxMode  bool
	supportPhone string
	timeout      time.Duration
}

// NewDispatcher creates a dispatcher around the given transport, falling back
// to environment variables for unset options.
func NewDispatcher(transport Transport, opts ...Option) *Dispatcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = os.Getenv("MAIL_FROM")
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = "Barbara - Autofondo Alese <no-reply@autofondoalese.com>"
	}
	if cfg.OwnerEmail == "" {
		cfg.OwnerEmail = os.Getenv("OWNER_EMAIL")
	}
	if !cfg.SandboxMode {
		cfg.SandboxMode = util.ParseBoolEnv("SANDBOX_MODE", false)
	}
	if cfg.SupportPhone == "" {
		cfg.SupportPhone = os.Getenv("SUPPORT_PHONE")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTransportTimeout
	}
	slog.Debug("Mailer dispatcher created",
		"owner_email_set", cfg.OwnerEmail != "",
		"sandbox_mode", cfg.SandboxMode,
		"timeout", cfg.Timeout)
	return &Dispatcher{
		transport:    transport,
		fromAddress:  cfg.FromAddress,
		ownerEmail:   cfg.OwnerEmail,
		sandboxMode:  cfg.SandboxMode,
		supportPhone: cfg.SupportPhone,
		timeout:      cfg.Timeout,
	}
}

// SendQuotation validates and dispatches the quotation to the given address.
// It returns whether the message was delivered and whether the recipient was
// rewritten to the sandbox owner address. It never returns an error: transport
// failures are logged and surface as sent=false.
func (d *Dispatcher) SendQuotation(ctx context.Context, email, clientName string, q *models.QuoteData) (sent bool, redirected bool) {
	if d == nil || d.transport == nil {
		slog.Error("Mailer SendQuotation without transport")
		return false, false
	}
	if err := validateQuotation(email, q); err != nil {
		slog.Error("Mailer SendQuotation validation failed", "error", err, "quote_id_set", q != nil && q.QuoteID != "")
		return false, false
	}

	recipient := email
	if d.sandboxMode && d.ownerEmail != "" && !strings.EqualFold(email, d.ownerEmail) {
		recipient = d.ownerEmail
		redirected = true
		slog.Info("Mailer sandbox redirect applied", "quote_id", q.QuoteID)
	}

	msg := &models.EmailMessage{
		From:    d.fromAddress,
		To:      recipient,
		Subject: fmt.Sprintf("Tu Cotización SOAT - %s", q.QuoteID),
		Text:    d.textBody(clientName, q),
		HTML:    d.htmlBody(clientName, q),
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.transport.Send(sendCtx, msg); err != nil {
		slog.Error("Mailer transport send failed", "error", err, "quote_id", q.QuoteID, "redirected", redirected)
		return false, false
	}

	slog.Info("Mailer quotation dispatched", "quote_id", q.QuoteID, "redirected", redirected)
	return true, redirected
}

// validateQuotation rejects payloads with blank required fields before any
// transport work happens.
func validateQuotation(email string, q *models.QuoteData) error {
	if strings.TrimSpace(email) == "" {
		return models.ErrInvalidEmail
	}
	if q == nil {
		return models.ErrMissingQuote
	}
	if strings.TrimSpace(q.QuoteID) == "" ||
		strings.TrimSpace(q.VehicleLabel()) == "" ||
		q.PriceSoles <= 0 {
		return models.ErrIncompleteQuote
	}
	return nil
}

// Fixed SOAT coverage copy shared by both bodies.
var coverageBullets = []string{
	"Muerte c/u: 4 UIT",
	"Invalidez permanente c/u: hasta 4 UIT",
	"Incapacidad temporal c/u: hasta 1 UIT",
	"Gastos médicos c/u: hasta 5 UIT",
	"Gastos de sepelio c/u: hasta 1 UIT",
}

func (d *Dispatcher) textBody(clientName string, q *models.QuoteData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", displayName(clientName))
	b.WriteString("Aquí tienes tu cotización SOAT de Autofondo Alese:\n\n")
	fmt.Fprintf(&b, "Vehículo: %s\n", q.VehicleLabel())
	fmt.Fprintf(&b, "Precio: %s\n", q.PriceLabel())
	fmt.Fprintf(&b, "N° de cotización: %s\n", q.QuoteID)
	fmt.Fprintf(&b, "Fecha de emisión: %s\n\n", q.GeneratedAt.Format("02/01/2006"))
	b.WriteString("Cobertura SOAT:\n")
	for _, bullet := range coverageBullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	fmt.Fprintf(&b, "\nConsultas: %s\n", d.supportPhone)
	b.WriteString("Gracias por cotizar con Autofondo Alese.\n")
	return b.String()
}

func (d *Dispatcher) htmlBody(clientName string, q *models.QuoteData) string {
	var bullets strings.Builder
	for _, bullet := range coverageBullets {
		fmt.Fprintf(&bullets, "<li>%s</li>", bullet)
	}
	return fmt.Sprintf(`<html><body style="font-family:Arial,sans-serif;color:#222">
<h2 style="color:#c62828">Tu Cotización SOAT</h2>
<p>Hola <strong>%s</strong>,</p>
<p>Aquí tienes tu cotización SOAT de Autofondo Alese:</p>
<table cellpadding="6" style="border-collapse:collapse">
<tr><td><strong>Vehículo</strong></td><td>%s</td></tr>
<tr><td><strong>Precio</strong></td><td>%s</td></tr>
<tr><td><strong>N° de cotización</strong></td><td>%s</td></tr>
<tr><td><strong>Fecha de emisión</strong></td><td>%s</td></tr>
</table>
<h3>Cobertura SOAT</h3>
<ul>%s</ul>
<p>Consultas: <strong>%s</strong></p>
<p>Gracias por cotizar con Autofondo Alese.</p>
</body></html>`,
		displayName(clientName),
		q.VehicleLabel(),
		q.PriceLabel(),
		q.QuoteID,
		q.GeneratedAt.Format("02/01/2006"),
		bullets.String(),
		d.supportPhone)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Cliente"
	}
	return name
}
