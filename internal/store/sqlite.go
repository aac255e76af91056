// Package store provides the quotation archive backends for Barbara.
//
// This file implements the SQLite-backed archive.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/autofondo/barbara/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite archive with the given DSN. The DSN is a
// file path to the database file; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddQuote archives a generated quotation.
func (s *SQLiteStore) AddQuote(rec models.QuoteRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO quotes
		 (quote_id, user_id, client_name, vehicle_type, vehicle_year, vehicle_usage, city, price_soles, emailed_to, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.QuoteID, rec.UserID, rec.ClientName, rec.VehicleType, rec.VehicleYear,
		rec.VehicleUsage, rec.City, rec.PriceSoles, rec.EmailedTo, rec.GeneratedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddQuote failed", "error", err, "quote_id", rec.QuoteID)
		return fmt.Errorf("failed to insert quote %s: %w", rec.QuoteID, err)
	}
	slog.Debug("SQLiteStore AddQuote succeeded", "quote_id", rec.QuoteID)
	return nil
}

// MarkEmailed stamps the archived quotation with the delivery address.
func (s *SQLiteStore) MarkEmailed(quoteID, email string) error {
	_, err := s.db.Exec(`UPDATE quotes SET emailed_to = ? WHERE quote_id = ?`, email, quoteID)
	if err != nil {
		slog.Error("SQLiteStore MarkEmailed failed", "error", err, "quote_id", quoteID)
		return fmt.Errorf("failed to mark quote %s emailed: %w", quoteID, err)
	}
	slog.Debug("SQLiteStore MarkEmailed succeeded", "quote_id", quoteID)
	return nil
}

// GetQuotes returns all archived quotations.
func (s *SQLiteStore) GetQuotes() ([]models.QuoteRecord, error) {
	rows, err := s.db.Query(
		`SELECT quote_id, user_id, client_name, vehicle_type, vehicle_year, vehicle_usage, city, price_soles, emailed_to, generated_at
		 FROM quotes ORDER BY generated_at`)
	if err != nil {
		slog.Error("SQLiteStore GetQuotes query failed", "error", err)
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.QuoteRecord
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			slog.Error("SQLiteStore GetQuotes scan failed", "error", err)
			return nil, err
		}
		quotes = append(quotes, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetQuotes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate quote rows: %w", err)
	}
	slog.Debug("SQLiteStore GetQuotes succeeded", "count", len(quotes))
	return quotes, nil
}

// ClearQuotes deletes all records in the quotes table (for tests).
func (s *SQLiteStore) ClearQuotes() error {
	_, err := s.db.Exec("DELETE FROM quotes")
	if err != nil {
		slog.Error("SQLiteStore ClearQuotes failed", "error", err)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
