// Package mailer builds and dispatches quotation e-mails.
//
// This file implements the SMTP transport on top of gomail.
package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/gomail.v2"

	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/util"
)

// DefaultSMTPPort is used when no port is configured.
const DefaultSMTPPort = 587

// SMTPOpts holds configuration options for the SMTP transport.
type SMTPOpts struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPOption defines a configuration option for the SMTP transport.
type SMTPOption func(*SMTPOpts)

// WithSMTPHost sets the SMTP server host.
func WithSMTPHost(host string) SMTPOption {
	return func(o *SMTPOpts) { o.Host = host }
}

// WithSMTPPort sets the SMTP server port.
func WithSMTPPort(port int) SMTPOption {
	return func(o *SMTPOpts) { o.Port = port }
}

// WithSMTPCredentials sets the SMTP username and password.
func WithSMTPCredentials(username, password string) SMTPOption {
	return func(o *SMTPOpts) {
		o.Username = username
		o.Password = password
	}
}

// SMTPTransport delivers e-mail through an SMTP server.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

// NewSMTPTransport creates an SMTP transport, falling back to the SMTP_HOST,
// SMTP_PORT, SMTP_USERNAME and SMTP_PASSWORD environment variables for unset
// options.
func NewSMTPTransport(opts ...SMTPOption) (*SMTPTransport, error) {
	var cfg SMTPOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		cfg.Host = os.Getenv("SMTP_HOST")
	}
	if cfg.Port == 0 {
		cfg.Port = util.ParseIntEnv("SMTP_PORT", DefaultSMTPPort)
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("SMTP_USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("SMTP_PASSWORD")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host must be provided")
	}
	slog.Debug("SMTP transport created", "host", cfg.Host, "port", cfg.Port, "username_set", cfg.Username != "")
	return &SMTPTransport{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send delivers the message, honouring context cancellation. A cancelled or
// timed-out context surfaces as an error so the dispatcher treats it as a
// transport failure.
func (t *SMTPTransport) Send(ctx context.Context, msg *models.EmailMessage) error {
	if msg == nil {
		return fmt.Errorf("email message cannot be nil")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	for _, att := range msg.Attachments {
		data := att.Data
		m.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s failed: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s aborted: %w", msg.To, ctx.Err())
	}
}
