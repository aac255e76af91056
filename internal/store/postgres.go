// Package store provides the quotation archive backends for Barbara.
//
// This file implements the PostgreSQL-backed archive.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/autofondo/barbara/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres archive based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AddQuote archives a generated quotation.
func (s *PostgresStore) AddQuote(rec models.QuoteRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO quotes
		 (quote_id, user_id, client_name, vehicle_type, vehicle_year, vehicle_usage, city, price_soles, emailed_to, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (quote_id) DO NOTHING`,
		rec.QuoteID, rec.UserID, rec.ClientName, rec.VehicleType, rec.VehicleYear,
		rec.VehicleUsage, rec.City, rec.PriceSoles, rec.EmailedTo, rec.GeneratedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddQuote failed", "error", err, "quote_id", rec.QuoteID)
		return fmt.Errorf("failed to insert quote %s: %w", rec.QuoteID, err)
	}
	slog.Debug("PostgresStore AddQuote succeeded", "quote_id", rec.QuoteID)
	return nil
}

// MarkEmailed stamps the archived quotation with the delivery address.
func (s *PostgresStore) MarkEmailed(quoteID, email string) error {
	_, err := s.db.Exec(`UPDATE quotes SET emailed_to = $1 WHERE quote_id = $2`, email, quoteID)
	if err != nil {
		slog.Error("PostgresStore MarkEmailed failed", "error", err, "quote_id", quoteID)
		return fmt.Errorf("failed to mark quote %s emailed: %w", quoteID, err)
	}
	slog.Debug("PostgresStore MarkEmailed succeeded", "quote_id", quoteID)
	return nil
}

// GetQuotes returns all archived quotations.
func (s *PostgresStore) GetQuotes() ([]models.QuoteRecord, error) {
	rows, err := s.db.Query(
		`SELECT quote_id, user_id, client_name, vehicle_type, vehicle_year, vehicle_usage, city, price_soles, emailed_to, generated_at
		 FROM quotes ORDER BY generated_at`)
	if err != nil {
		slog.Error("PostgresStore GetQuotes query failed", "error", err)
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.QuoteRecord
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			slog.Error("PostgresStore GetQuotes scan failed", "error", err)
			return nil, err
		}
		quotes = append(quotes, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetQuotes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate quote rows: %w", err)
	}
	slog.Debug("PostgresStore GetQuotes succeeded", "count", len(quotes))
	return quotes, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
