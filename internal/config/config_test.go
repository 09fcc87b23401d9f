package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tesoro-app/tesoro/internal/config"
	"github.com/tesoro-app/tesoro/pkg/provider/llm"
	"github.com/tesoro-app/tesoro/pkg/provider/tts"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info
  cors_origins:
    - http://localhost:3000

providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: azure
    api_key: az-test
    region: eastus

storage:
  audio_dir: /var/lib/tesoro/audio
  conversations_dir: /var/lib/tesoro/conversations
  audio_cache_size: 32

game:
  fuzzy_threshold: 80
  cards_per_hand: 7
  voices:
    es-MX: es-MX-DaliaNeural
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Providers.LLM.Name != "openai" {
		t.Errorf("providers.llm.name: got %q, want %q", cfg.Providers.LLM.Name, "openai")
	}
	if cfg.Providers.TTS.Region != "eastus" {
		t.Errorf("providers.tts.region: got %q, want %q", cfg.Providers.TTS.Region, "eastus")
	}
	if cfg.Storage.AudioCacheSize != 32 {
		t.Errorf("storage.audio_cache_size: got %d, want 32", cfg.Storage.AudioCacheSize)
	}
	if cfg.Game.FuzzyThreshold != 80 {
		t.Errorf("game.fuzzy_threshold: got %d, want 80", cfg.Game.FuzzyThreshold)
	}
	if cfg.Game.Voices["es-MX"] != "es-MX-DaliaNeural" {
		t.Errorf("game.voices[es-MX]: got %q", cfg.Game.Voices["es-MX"])
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	// An empty config should succeed (no required top-level fields).
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	yaml := `
server:
  listen_address: ":8080"
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingLLMKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MOCK_MODE", "")
	yaml := `
providers:
  llm:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing api key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_MockModeSkipsCredentialChecks(t *testing.T) {
	yaml := `
mock:
  enabled: true
providers:
  llm:
    name: openai
  tts:
    name: azure
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error in mock mode: %v", err)
	}
}

func TestValidate_AzureRequiresRegion(t *testing.T) {
	t.Setenv("AZURE_REGION", "")
	t.Setenv("MOCK_MODE", "")
	yaml := `
providers:
  tts:
    name: azure
    api_key: az-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing azure region, got nil")
	}
	if !strings.Contains(err.Error(), "region") {
		t.Errorf("error should mention region, got: %v", err)
	}
}

func TestValidate_FuzzyThresholdRange(t *testing.T) {
	yaml := `
game:
  fuzzy_threshold: 150
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for out-of-range fuzzy_threshold, got nil")
	}
}

// ── Environment overrides ─────────────────────────────────────────────────────

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("MOCK_MODE", "true")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("AZURE_SPEECH_KEY", "az-env")
	t.Setenv("AZURE_REGION", "westeurope")
	t.Setenv("AZURE_VOICE_ES", "es-MX-CecilioNeural")

	cfg := &config.Config{}
	config.ApplyEnv(cfg)

	if !cfg.Mock.Enabled {
		t.Error("MOCK_MODE=true should enable mock mode")
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.APIKey != "sk-env" {
		t.Errorf("llm entry = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("llm model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Providers.TTS.Name != "azure" || cfg.Providers.TTS.Region != "westeurope" {
		t.Errorf("tts entry = %+v", cfg.Providers.TTS)
	}
	if cfg.Game.Voices["es-MX"] != "es-MX-CecilioNeural" {
		t.Errorf("voices[es-MX] = %q", cfg.Game.Voices["es-MX"])
	}
}

func TestApplyEnv_FileValuesKeptWithoutEnv(t *testing.T) {
	t.Setenv("MOCK_MODE", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &config.Config{}
	cfg.Providers.LLM = config.ProviderEntry{Name: "ollama", Model: "llama3"}
	config.ApplyEnv(cfg)

	if cfg.Providers.LLM.Name != "ollama" || cfg.Providers.LLM.Model != "llama3" {
		t.Errorf("llm entry = %+v, want file values untouched", cfg.Providers.LLM)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownLLM(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown LLM provider")
	}
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownTTS(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateTTS(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_RegisteredLLM(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubLLM{}
	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateLLM(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredTTS(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubTTS{}
	reg.RegisterTTS("stub", func(e config.ProviderEntry) (tts.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateTTS(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(e config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

// ── Stub implementations (satisfy interfaces for the compiler) ────────────────

// stubLLM implements llm.Provider with no-op methods.
type stubLLM struct{}

func (s *stubLLM) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}

// stubTTS implements tts.Provider.
type stubTTS struct{}

func (s *stubTTS) Synthesize(_ context.Context, _ tts.SynthesisRequest) ([]byte, error) {
	return nil, nil
}
func (s *stubTTS) ListVoices(_ context.Context) ([]tts.Voice, error) { return nil, nil }
