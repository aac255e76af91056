// Package quote generates quotation ids, snapshots, and the canonical
// user-facing rendering of a SOAT quotation.
package quote

import (
	"fmt"
	"strings"
	"time"

	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/pricing"
	"github.com/autofondo/barbara/internal/util"
)

// IDPrefix is the fixed prefix of every quotation id.
const IDPrefix = "AF"

// idHexLength is the length of the random suffix in a quotation id.
const idHexLength = 8

// NewID generates a quotation id of the form AF<YYYYMMDD><8-hex-upper>.
func NewID(now time.Time) string {
	return IDPrefix + now.Format("20060102") + strings.ToUpper(util.GenerateRandomHex(idHexLength))
}

// Generate builds the immutable quotation snapshot for the collected vehicle
// attributes, computing the price from the rule table.
func Generate(now time.Time, vehicleType models.VehicleType, vehicleYear int, usage models.VehicleUsage, city string) *models.QuoteData {
	return &models.QuoteData{
		QuoteID:      NewID(now),
		PriceSoles:   pricing.Price(vehicleType, vehicleYear),
		VehicleType:  vehicleType,
		VehicleYear:  vehicleYear,
		VehicleUsage: usage,
		City:         city,
		GeneratedAt:  now,
	}
}

// upperFirst capitalises the first ASCII letter of s; usage values are ASCII.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// Format renders the canonical multi-line quotation text. The output is
// deterministic for the same inputs: no clocks are consulted here.
func Format(q *models.QuoteData, userName, supportPhone string, validityDays int) string {
	if q == nil {
		return ""
	}
	name := userName
	if name == "" {
		name = "Cliente"
	}

	var b strings.Builder
	b.WriteString("🚗 COTIZACIÓN SOAT - AUTOFONDO ALESE\n\n")
	fmt.Fprintf(&b, "Cliente: %s\n", name)
	fmt.Fprintf(&b, "Vehículo: %s\n", q.VehicleLabel())
	fmt.Fprintf(&b, "Uso: %s\n", upperFirst(string(q.VehicleUsage)))
	fmt.Fprintf(&b, "Ciudad: %s\n\n", q.City)
	fmt.Fprintf(&b, "Precio: %s\n", q.PriceLabel())
	b.WriteString("Vigencia: 1 año de cobertura\n")
	fmt.Fprintf(&b, "Oferta válida por %d días\n\n", validityDays)
	fmt.Fprintf(&b, "N° de cotización: %s\n", q.QuoteID)
	fmt.Fprintf(&b, "📞 Consultas: %s", supportPhone)
	return b.String()
}
