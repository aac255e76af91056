// Package extract provides the pure text extractors used by the conversation flow.
//
// Every extractor is side-effect free: input text is trimmed and case-folded for
// matching, and the matched value is returned in canonical form together with an
// ok flag. Extraction never errors; a miss is simply ok=false.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/autofondo/barbara/internal/models"
)

// Name length bounds accepted by the name extractor (in runes).
const (
	MinNameLength = 2
	MaxNameLength = 50
)

// letters matched inside a name token: Latin letters plus Spanish accents and ñ.
const letterClass = `[a-záéíóúüñ]`

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\s)soy\s+(` + letterClass + `+(?:\s+` + letterClass + `+)?)`),
		regexp.MustCompile(`me llamo\s+(` + letterClass + `+(?:\s+` + letterClass + `+)?)`),
		regexp.MustCompile(`mi nombre es\s+(` + letterClass + `+(?:\s+` + letterClass + `+)?)`),
		regexp.MustCompile(`(?:^|\s)llamo\s+(` + letterClass + `+(?:\s+` + letterClass + `+)?)`),
	}
	singleTokenPattern = regexp.MustCompile(`^` + letterClass + `{2,20}$`)
	nonLetterPattern   = regexp.MustCompile(`[^a-záéíóúüñ]+`)
	yearPattern        = regexp.MustCompile(`\b\d{4}\b`)
	emailPattern       = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

	titleCaser = cases.Title(language.LatinAmericanSpanish)
)

// nameStopList rejects greetings, product words and fillers that the name
// patterns otherwise pick up ("hola", "quiero cotizar", ...).
var nameStopList = map[string]bool{
	"hola": true, "barbara": true, "auto": true, "moto": true, "soat": true,
	"cotizar": true, "cotizacion": true, "cotización": true, "quiero": true,
	"precio": true, "gracias": true, "si": true, "sí": true, "no": true,
	"ok": true, "taxi": true, "seguro": true, "lima": true,
	"informacion": true, "información": true, "buenas": true, "buenos": true,
	"dias": true, "días": true, "tardes": true, "noches": true,
	"carro": true, "camioneta": true, "comercial": true, "ayuda": true,
	"necesito": true, "deseo": true, "vehiculo": true, "vehículo": true,
}

// fold trims and lower-cases text for matching. Originals are never returned;
// extractors canonicalise what they matched instead.
func fold(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Name extracts the user's name from free text.
//
// It tries the introduction patterns in order ("soy X", "me llamo X",
// "mi nombre es X", "llamo X") and finally accepts a bare 2-20 letter token as
// the whole input. Stop-listed words and out-of-range lengths are rejected.
// The returned name is title-cased.
func Name(text string) (string, bool) {
	folded := fold(text)
	if folded == "" {
		return "", false
	}

	var candidate string
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(folded); m != nil {
			candidate = strings.Join(strings.Fields(m[1]), " ")
			break
		}
	}
	if candidate == "" && singleTokenPattern.MatchString(folded) {
		candidate = folded
	}
	if candidate == "" {
		return "", false
	}
	if nameStopList[candidate] {
		return "", false
	}
	for _, tok := range strings.Fields(candidate) {
		if nameStopList[tok] {
			return "", false
		}
	}
	if n := len([]rune(candidate)); n < MinNameLength || n > MaxNameLength {
		return "", false
	}
	return titleCaser.String(candidate), true
}

// NameFlexible is the loop-guard fallback: it salvages the first plausible
// alphabetic token from text when the strict patterns keep missing.
func NameFlexible(text string) (string, bool) {
	folded := fold(text)
	if folded == "" {
		return "", false
	}

	for _, tok := range strings.Fields(folded) {
		letters := nonLetterPattern.ReplaceAllString(tok, "")
		if len([]rune(letters)) >= 3 && !nameStopList[letters] {
			return titleCaser.String(letters), true
		}
	}
	return "", false
}

// vehicleKeywords maps keywords to vehicle types in match order. Longer or more
// specific keywords come first ("camioneta" must win over "camion").
var vehicleKeywords = []struct {
	keyword string
	vtype   models.VehicleType
}{
	{"camioneta", models.VehicleCamioneta},
	{"pick up", models.VehicleCamioneta},
	{"pickup", models.VehicleCamioneta},
	{"suv", models.VehicleCamioneta},
	{"van", models.VehicleCamioneta},
	{"camión", models.VehicleComercial},
	{"camion", models.VehicleComercial},
	{"carga", models.VehicleComercial},
	{"bus", models.VehicleComercial},
	{"comercial", models.VehicleComercial},
	{"motocicleta", models.VehicleMoto},
	{"moto", models.VehicleMoto},
	{"scooter", models.VehicleMoto},
	{"lineal", models.VehicleMoto},
	{"taxi", models.VehicleTaxi},
	{"colectivo", models.VehicleTaxi},
	{"automóvil", models.VehicleAuto},
	{"automovil", models.VehicleAuto},
	{"carro", models.VehicleAuto},
	{"auto", models.VehicleAuto},
	{"sedan", models.VehicleAuto},
	{"particular", models.VehicleAuto},
}

// VehicleType extracts the vehicle category. First keyword found wins.
func VehicleType(text string) (models.VehicleType, bool) {
	folded := fold(text)
	for _, kw := range vehicleKeywords {
		if strings.Contains(folded, kw.keyword) {
			return kw.vtype, true
		}
	}
	return "", false
}

// Year extracts the first four-digit year within the accepted range
// [1990, 2029]. Years outside the range are treated as no extraction.
func Year(text string) (int, bool) {
	for _, m := range yearPattern.FindAllString(fold(text), -1) {
		year := 0
		for _, d := range m {
			year = year*10 + int(d-'0')
		}
		if year >= models.MinVehicleYear && year <= models.MaxVehicleYear {
			return year, true
		}
	}
	return 0, false
}

// usageKeywords maps keywords to vehicle usages in match order.
var usageKeywords = []struct {
	keyword string
	usage   models.VehicleUsage
}{
	{"particular", models.UsageParticular},
	{"personal", models.UsageParticular},
	{"propio", models.UsageParticular},
	{"familiar", models.UsageParticular},
	{"trabajo", models.UsageTrabajo},
	{"laboral", models.UsageTrabajo},
	{"empresa", models.UsageTrabajo},
	{"comercial", models.UsageComercial},
	{"negocio", models.UsageComercial},
	{"reparto", models.UsageComercial},
	{"taxi", models.UsageTaxi},
	{"uber", models.UsageTaxi},
	{"colectivo", models.UsageTaxi},
}

// Usage extracts the declared vehicle usage. First keyword found wins.
func Usage(text string) (models.VehicleUsage, bool) {
	folded := fold(text)
	for _, kw := range usageKeywords {
		if strings.Contains(folded, kw.keyword) {
			return kw.usage, true
		}
	}
	return "", false
}

// knownCities is the list of cities Barbara recognises directly.
var knownCities = []string{
	"lima", "arequipa", "trujillo", "chiclayo", "piura",
	"iquitos", "cusco", "huancayo", "tacna", "ica",
}

// City extracts the city: a known city wins, otherwise the first token longer
// than two characters is accepted as-is. The result is title-cased.
func City(text string) (string, bool) {
	folded := fold(text)
	for _, city := range knownCities {
		if strings.Contains(folded, city) {
			return titleCaser.String(city), true
		}
	}
	for _, tok := range strings.Fields(folded) {
		letters := nonLetterPattern.ReplaceAllString(tok, "")
		if len([]rune(letters)) > 2 {
			return titleCaser.String(letters), true
		}
	}
	return "", false
}

// Email extracts a syntactically valid e-mail address, lower-cased.
func Email(text string) (string, bool) {
	m := emailPattern.FindString(fold(text))
	if m == "" {
		return "", false
	}
	return m, true
}
