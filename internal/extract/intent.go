package extract

import (
	"regexp"
	"strings"
)

// Affirmative vocabulary: Spanish and Peruvian colloquial yeses, plus the
// e-mail-adjacent words users send when they mean "yes, mail it".
var affirmativeWords = map[string]bool{
	"si": true, "sí": true, "yes": true, "claro": true, "perfecto": true,
	"dale": true, "quiero": true, "necesito": true, "ya": true, "asu": true,
	"bacán": true, "bacan": true, "chevere": true, "chévere": true,
	"buenazo": true, "genial": true, "obvio": true, "bueno": true,
	"ok": true, "vale": true, "simon": true, "simón": true, "listo": true,
	"mandalo": true, "mándalo": true, "envialo": true, "envíalo": true,
	"manda": true, "envia": true, "envía": true, "correo": true,
	"email": true, "gmail": true, "hotmail": true, "outlook": true,
}

var affirmativePhrases = []string{"por favor", "por supuesto", "de una"}

var negativeWords = map[string]bool{
	"no": true, "nah": true, "nop": true, "nel": true, "nones": true, "paso": true,
}

var negativePhrases = []string{"mejor no", "que va", "qué va"}

var wordSplitPattern = regexp.MustCompile(`[^a-záéíóúüñ0-9]+`)

func words(text string) []string {
	return wordSplitPattern.Split(fold(text), -1)
}

// IsAffirmative reports whether the text reads as a yes.
func IsAffirmative(text string) bool {
	folded := fold(text)
	for _, phrase := range affirmativePhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	for _, w := range words(folded) {
		if affirmativeWords[w] {
			return true
		}
	}
	return false
}

// IsNegative reports whether the text reads as a no.
func IsNegative(text string) bool {
	folded := fold(text)
	for _, phrase := range negativePhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	for _, w := range words(folded) {
		if negativeWords[w] {
			return true
		}
	}
	return false
}

// Quotation trigger vocabulary for the NAME_RECEIVED offer.
var quoteWords = map[string]bool{
	"cotizar": true, "cotización": true, "cotizacion": true, "cotiza": true,
	"cotizame": true, "cotízame": true, "soat": true, "precio": true,
	"seguro": true,
}

// WantsQuote reports whether the text asks for a SOAT quotation.
func WantsQuote(text string) bool {
	for _, w := range words(text) {
		if quoteWords[w] {
			return true
		}
	}
	return false
}
