// Package store provides the quotation archive backends for Barbara.
//
// Every generated quotation is archived as a QuoteRecord; when the quotation
// is e-mailed the record is stamped with the recipient. The archive is an
// audit trail only: the conversation never depends on it, and callers ignore
// archive errors beyond logging them.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/autofondo/barbara/internal/models"
)

// Store is the quotation archive interface implemented by all backends.
type Store interface {
	// AddQuote archives a generated quotation.
	AddQuote(rec models.QuoteRecord) error
	// MarkEmailed stamps the archived quotation with the delivery address.
	MarkEmailed(quoteID, email string) error
	// GetQuotes returns all archived quotations.
	GetQuotes() ([]models.QuoteRecord, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports the database driver implied by a DSN: "postgres" for
// URL-style or key=value Postgres DSNs, "sqlite3" for everything else (a bare
// file path is treated as an SQLite database file).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore is a simple in-memory quotation archive, used when no database
// is configured and in tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	quotes []models.QuoteRecord
}

// NewInMemoryStore creates an empty in-memory archive.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// AddQuote archives a quotation in memory.
func (s *InMemoryStore) AddQuote(rec models.QuoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, rec)
	slog.Debug("InMemoryStore AddQuote succeeded", "quote_id", rec.QuoteID)
	return nil
}

// MarkEmailed stamps the archived quotation with the delivery address.
func (s *InMemoryStore) MarkEmailed(quoteID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.quotes {
		if s.quotes[i].QuoteID == quoteID {
			s.quotes[i].EmailedTo = email
			slog.Debug("InMemoryStore MarkEmailed succeeded", "quote_id", quoteID)
			return nil
		}
	}
	slog.Debug("InMemoryStore MarkEmailed: quote not found", "quote_id", quoteID)
	return nil
}

// GetQuotes returns a copy of all archived quotations.
func (s *InMemoryStore) GetQuotes() ([]models.QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.QuoteRecord, len(s.quotes))
	copy(out, s.quotes)
	return out, nil
}

// Close is a no-op for the in-memory archive.
func (s *InMemoryStore) Close() error {
	return nil
}
