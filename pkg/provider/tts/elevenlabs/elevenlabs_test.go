package elevenlabs

import (
	"encoding/json"
	"strings"
	"testing"
)

// ---- WebSocket message construction ----

func TestBuildWSMessage_WithVoiceSettings(t *testing.T) {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	data, err := buildWSMessage("Hello there", vs)
	if err != nil {
		t.Fatalf("buildWSMessage: %v", err)
	}

	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Text != "Hello there" {
		t.Errorf("expected text 'Hello there', got %q", msg.Text)
	}
	if msg.VoiceSettings == nil {
		t.Fatal("expected non-nil voice settings")
	}
	if msg.VoiceSettings.Stability != 0.5 {
		t.Errorf("expected stability 0.5, got %f", msg.VoiceSettings.Stability)
	}
	if msg.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("expected similarity_boost 0.75, got %f", msg.VoiceSettings.SimilarityBoost)
	}
}

func TestBuildWSMessage_WithoutVoiceSettings(t *testing.T) {
	data, err := buildWSMessage("Flush", nil)
	if err != nil {
		t.Fatalf("buildWSMessage: %v", err)
	}

	if strings.Contains(string(data), "voice_settings") {
		t.Errorf("expected voice_settings omitted, got %s", data)
	}
}

// ---- URL construction ----

func TestBuildURLForVoice(t *testing.T) {
	url := buildURLForVoice("voice123", "eleven_flash_v2_5")
	want := "wss://api.elevenlabs.io/v1/text-to-speech/voice123/stream-input?model_id=eleven_flash_v2_5"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

// ---- Voices response parsing ----

func TestParseVoicesResponse(t *testing.T) {
	raw := []byte(`{
		"voices": [
			{"voice_id": "v1", "name": "Alice", "category": "premade", "labels": {"language": "en", "gender": "female"}},
			{"voice_id": "v2", "name": "Jorge", "labels": {"language": "es"}}
		]
	}`)

	voices, err := parseVoicesResponse(raw)
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}

	v := voices[0]
	if v.ID != "v1" || v.Name != "Alice" || v.Provider != "elevenlabs" {
		t.Errorf("unexpected voice: %+v", v)
	}
	if v.Language != "en" {
		t.Errorf("language = %q, want en", v.Language)
	}
	if v.Metadata["category"] != "premade" || v.Metadata["gender"] != "female" {
		t.Errorf("unexpected metadata: %v", v.Metadata)
	}

	if voices[1].Language != "es" {
		t.Errorf("second voice language = %q, want es", voices[1].Language)
	}
}

func TestParseVoicesResponse_Invalid(t *testing.T) {
	if _, err := parseVoicesResponse([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// ---- Constructor validation ----

func TestNew_Validation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}
	p, err := New("key", WithModel("eleven_multilingual_v2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "eleven_multilingual_v2" {
		t.Errorf("model = %q, want eleven_multilingual_v2", p.model)
	}
}
