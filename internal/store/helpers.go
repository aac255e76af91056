package store

import (
	"database/sql"
	"fmt"

	"github.com/autofondo/barbara/internal/models"
)

// scanQuote scans a QuoteRecord from sql.Rows.
func scanQuote(rows *sql.Rows) (models.QuoteRecord, error) {
	var rec models.QuoteRecord
	err := rows.Scan(
		&rec.QuoteID, &rec.UserID, &rec.ClientName, &rec.VehicleType, &rec.VehicleYear,
		&rec.VehicleUsage, &rec.City, &rec.PriceSoles, &rec.EmailedTo, &rec.GeneratedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan quote failed: %w", err)
	}
	return rec, nil
}
