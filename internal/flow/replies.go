package flow

import "fmt"

// FallbackReply is the fixed utterance used whenever the core cannot produce a
// scripted response. The orchestrator also emits it on unexpected failures.
const FallbackReply = "¡Hola! Soy Barbara de Autofondo Alese. ¿Cómo puedo ayudarte con tu SOAT?"

// Canned conversational copy. All user-facing wording lives here so the state
// machine stays readable.

const (
	replyGreeting       = "¡Hola! 😊 Soy Barbara, tu asesora digital de Autofondo Alese. ¿Cuál es tu nombre?"
	replyAskNameAgain   = "¿Me dices tu nombre, por favor?"
	replyNameLastChance = "Para continuar solo necesito tu nombre. Escríbelo en una sola palabra, por favor."
	replyAskVehicleType = "Perfecto 🚗 ¿Qué tipo de vehículo tienes? (auto, moto, taxi, camioneta o comercial)"
	replyAskUsage       = "¿Qué uso le das a tu vehículo? (particular, trabajo, comercial o taxi)"
	replyAskCity        = "¿En qué ciudad circula tu vehículo?"
	replyAskEmailYesNo  = "¿Te envío la cotización por correo? Responde sí o no 😊"
	replyAskAddress     = "¡Genial! 📧 ¿A qué correo electrónico te envío la cotización?"
	replyBadAddress     = "Mmm, ese correo no parece válido. ¿Me lo escribes de nuevo? (ejemplo: nombre@gmail.com)"
	replyStrictAddress  = "Solo necesito tu correo electrónico para enviarte la cotización, por ejemplo: nombre@gmail.com"
)

func replyAcknowledgeName(name string) string {
	return fmt.Sprintf("¡Mucho gusto, %s! 🚗 ¿Te gustaría cotizar tu SOAT?", name)
}

func replyOfferQuote(name string) string {
	return fmt.Sprintf("%s, ¿quieres que cotice tu SOAT? Responde sí o no.", name)
}

func replyAskYear(vehicle string) string {
	return fmt.Sprintf("¡Excelente elección! ¿De qué año es tu %s?", vehicle)
}

func replyAskEmail(renderedQuote string) string {
	return renderedQuote + "\n\n¿Quieres que te envíe la cotización por correo? 📧"
}

func replyEmailConfirmed(name, quoteID, email string) string {
	return fmt.Sprintf("¡Listo, %s! ✅ Te envié la cotización %s a %s. Revisa tu bandeja de entrada.", name, quoteID, email)
}

func replyEmailRedirected(name, quoteID string) string {
	return fmt.Sprintf("¡Listo, %s! ✅ Tu cotización %s fue registrada y procesada. Un asesor te la hará llegar muy pronto.", name, quoteID)
}

func replyEmailFailed(supportPhone string) string {
	return fmt.Sprintf("Lo siento 😔 No pude enviar el correo en este momento. ¿Lo intentamos de nuevo? También puedes llamarnos al %s.", supportPhone)
}

func replyFarewell(name, supportPhone string) string {
	return fmt.Sprintf("¡Perfecto, %s! Cualquier consulta llámanos al %s. ¡Gracias por cotizar con Autofondo Alese! 🚗", name, supportPhone)
}

func replyAnythingElse(name string) string {
	return fmt.Sprintf("¡Gracias, %s! ¿Hay algo más en lo que te pueda ayudar? 😊", name)
}

// displayName keeps copy readable when the name was never captured.
func displayName(name string) string {
	if name == "" {
		return "amigo"
	}
	return name
}
