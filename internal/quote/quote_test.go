package quote

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/autofondo/barbara/internal/models"
)

var idPattern = regexp.MustCompile(`^AF\d{8}[0-9A-F]{8}$`)

func TestNewID_Pattern(t *testing.T) {
	now := time.Date(2020, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		id := NewID(now)
		if !idPattern.MatchString(id) {
			t.Fatalf("id %q does not match AF<YYYYMMDD><8-hex-upper>", id)
		}
		if !strings.HasPrefix(id, "AF20200820") {
			t.Fatalf("id %q does not carry the date prefix", id)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID(now)
		if seen[id] {
			t.Fatalf("duplicate quote id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerate_Snapshot(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	q := Generate(now, models.VehicleMoto, 2015, models.UsageTrabajo, "Arequipa")
	if q.PriceSoles != 90 {
		t.Errorf("expected price 90, got %d", q.PriceSoles)
	}
	if q.VehicleLabel() != "Moto 2015" {
		t.Errorf("expected label 'Moto 2015', got %q", q.VehicleLabel())
	}
	if q.PriceLabel() != "S/ 90" {
		t.Errorf("expected price label 'S/ 90', got %q", q.PriceLabel())
	}
	if !q.GeneratedAt.Equal(now) {
		t.Errorf("expected generated_at %v, got %v", now, q.GeneratedAt)
	}
}

func TestFormat_Deterministic(t *testing.T) {
	q := &models.QuoteData{
		QuoteID:      "AF20200820ABCDEF12",
		PriceSoles:   160,
		VehicleType:  models.VehicleAuto,
		VehicleYear:  2020,
		VehicleUsage: models.UsageParticular,
		City:         "Lima",
		GeneratedAt:  time.Date(2020, 8, 20, 0, 0, 0, 0, time.UTC),
	}
	first := Format(q, "Jair", "+51 999 999 999", 15)
	second := Format(q, "Jair", "+51 999 999 999", 15)
	if first != second {
		t.Fatal("formatting is not stable for identical inputs")
	}
	for _, want := range []string{
		"Cliente: Jair",
		"Vehículo: Auto 2020",
		"Uso: Particular",
		"Ciudad: Lima",
		"Precio: S/ 160",
		"Oferta válida por 15 días",
		"AF20200820ABCDEF12",
		"+51 999 999 999",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("formatted quote missing %q:\n%s", want, first)
		}
	}
}

func TestFormat_NilQuote(t *testing.T) {
	if out := Format(nil, "Ana", "123", 15); out != "" {
		t.Errorf("expected empty output for nil quote, got %q", out)
	}
}
