package tts

// SynthesisRequest carries one utterance to render.
type SynthesisRequest struct {
	// Text is the plain text to speak. Providers are responsible for any
	// escaping their wire format needs (e.g., SSML entity escaping).
	Text string

	// Voice is the provider-specific voice identifier, e.g. the Azure neural
	// voice name "es-MX-JorgeNeural" or an ElevenLabs voice id.
	Voice string
}

// Voice describes a single entry in a provider's voice catalogue.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is the BCP-47 tag the voice speaks, when the provider
	// reports one (e.g. "es-MX").
	Language string

	// Metadata holds provider-specific voice attributes (gender, age,
	// accent, etc.).
	Metadata map[string]string
}
