// Package api provides the HTTP surface of Barbara.
//
// It exposes the chat endpoint used by web clients, a health probe, the
// quotation archive listing, and mounts the Twilio inbound webhook when that
// channel is configured.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/autofondo/barbara/internal/messaging"
	"github.com/autofondo/barbara/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Timeouts applied to the HTTP server.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Processor handles one conversational turn; implemented by the bot orchestrator.
type Processor interface {
	Process(ctx context.Context, userID, inbound string) string
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP endpoints to the orchestrator and the archive.
type Server struct {
	bot     Processor
	archive store.Store
	twilio  *messaging.TwilioService
	addr    string
	httpSrv *http.Server
}

// NewServer creates an API server. The archive and the Twilio service are
// optional; their endpoints report accordingly when absent.
func NewServer(bot Processor, archive store.Store, twilio *messaging.TwilioService, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		bot:     bot,
		archive: archive,
		twilio:  twilio,
		addr:    cfg.Addr,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/quotes", s.quotesHandler)
	if s.twilio != nil {
		mux.HandleFunc("/webhook/twilio", s.twilio.WebhookHandler)
	}
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
