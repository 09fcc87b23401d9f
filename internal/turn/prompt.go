package turn

import (
	"encoding/json"
	"fmt"
	"strings"
)

// languageStyle picks the conversational register instruction for the
// learning language's 2-letter prefix.
func languageStyle(langCode string) string {
	switch prefix(langCode) {
	case "es":
		return "Prefer Latin American Spanish (lean Mexican). Use colloquial, conversational phrasing."
	case "id":
		return "Use casual, conversational Indonesian (everyday register), not formal."
	default:
		return "Use natural, conversational American English."
	}
}

// prefix returns the first two letters of a language code, lowercased.
func prefix(code string) string {
	code = strings.ToLower(code)
	if len(code) > 2 {
		return code[:2]
	}
	return code
}

// defaultLocale maps a learning-language code to the locale tag used for
// default audio chunks and voice selection.
func defaultLocale(langCode string) string {
	switch prefix(langCode) {
	case "es":
		return "es-MX"
	case "id":
		return "id-ID"
	default:
		return "en-US"
	}
}

// buildTurnPrompt renders the full instruction for one turn: a system
// section naming the persona, register, and output contract, then a user
// section embedding the transcript, language metadata, and active cards.
// Pure; any serialization failure degrades to an empty JSON value rather
// than an error.
func buildTurnPrompt(in TurnInput) string {
	style := languageStyle(in.Learning.Code)

	activeJSON := mustJSON(in.ActiveCards, "[]")
	var b strings.Builder

	fmt.Fprintf(&b, "You are Coco, a concise language coach. %s\n", style)
	b.WriteString("Given a possibly-misheard ASR transcript, return a corrected single-sentence utterance in the LEARNING language and a natural translation into the NATIVE language.\n")
	b.WriteString("Detect which active cards (by id) were used. Return ONLY valid JSON exactly matching the schema described below.\n")
	b.WriteString("\n")

	b.WriteString("INPUT:\n")
	fmt.Fprintf(&b, "- transcript: %s\n", mustJSON(in.Transcript, `""`))
	fmt.Fprintf(&b, "- fluent_language: %s\n", mustJSON(in.Fluent, "{}"))
	fmt.Fprintf(&b, "- learning_language: %s\n", mustJSON(in.Learning, "{}"))
	fmt.Fprintf(&b, "- active_cards: %s\n\n", activeJSON)

	b.WriteString("OUTPUT SCHEMA (return exactly one JSON object):\n")
	b.WriteString("{\n")
	b.WriteString("  \"corrected_sentence\": \"...\",\n")
	b.WriteString("  \"native_translation\": \"...\",\n")
	b.WriteString("  \"used_card_ids\": [\"id1\",\"id2\"],\n")
	b.WriteString("  \"asr_fixes\": [{\"original\":\"...\", \"guess\":\"...\", \"confidence\":0.42}],\n")
	b.WriteString("  \"brief_explanation_native\": \"...\",\n")
	b.WriteString("  \"notes\": \"\",\n")
	b.WriteString("  \"audio_chunks\": [\n")
	b.WriteString("    {\"text\":\"...\",\"lang\":\"es-MX\",\"purpose\":\"corrected_sentence\"},\n")
	b.WriteString("    {\"text\":\"...\",\"lang\":\"en-US\",\"purpose\":\"native_translation\"}\n")
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- corrected_sentence must be ONE natural sentence in the learning language (use colloquial Latin-American Spanish for es, casual Indonesian for id).\n")
	b.WriteString("- native_translation must be a natural translation into the fluent/native language.\n")
	b.WriteString("- audio_chunks must include the corrected_sentence chunk first, then the native_translation chunk, each with a proper lang tag (es-MX, id-ID, en-US).\n")
	b.WriteString("- Return only JSON (no commentary, no markdown).\n")

	return b.String()
}

// buildCheckPrompt renders the answer-equivalence instruction: lenient on
// grammar, strict on meaning, JSON-only output.
func buildCheckPrompt(in CheckInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are Coco, a concise language coach for %s learners.\n", in.Learning.Name)
	b.WriteString("Decide whether the user's answer means the same as the expected answer. Be lenient about grammar, word order, and small vocabulary slips; be strict about meaning.\n")
	b.WriteString("\n")
	b.WriteString("INPUT:\n")
	fmt.Fprintf(&b, "- user_answer: %s\n", mustJSON(in.UserAnswer, `""`))
	fmt.Fprintf(&b, "- correct_answer: %s\n", mustJSON(in.CorrectAnswer, `""`))
	if in.PromptContext != "" {
		fmt.Fprintf(&b, "- context: %s\n", mustJSON(in.PromptContext, `""`))
	}
	b.WriteString("\n")
	b.WriteString("Return exactly one JSON object:\n")
	b.WriteString("{\"is_correct\": true, \"feedback\": \"...\", \"corrected_answer\": \"...\"}\n")
	fmt.Fprintf(&b, "feedback must be written in %s. Return only JSON (no commentary, no markdown).\n", in.Fluent.Name)

	return b.String()
}

// mustJSON serializes v, falling back to the given literal when marshalling
// fails (only possible for exotic values, never for our own types).
func mustJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}
