package config_test

import (
	"strings"
	"testing"

	"github.com/tesoro-app/tesoro/internal/config"
)

func TestValidate_MultipleErrors(t *testing.T) {
	yaml := `
server:
  log_level: bananas
game:
  fuzzy_threshold: -5
  cards_per_hand: -1
mock:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "fuzzy_threshold", "cards_per_hand"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_NegativeCacheSize(t *testing.T) {
	yaml := `
storage:
  audio_cache_size: -1
mock:
  enabled: true
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for negative cache size, got nil")
	}
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	t.Setenv("MOCK_MODE", "")
	yaml := `
providers:
  llm:
    name: ollama
    base_url: http://localhost:11434
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error for keyless ollama: %v", err)
	}
}

func TestLoad_MockByDefaultWithoutProviders(t *testing.T) {
	t.Setenv("MOCK_MODE", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_SPEECH_KEY", "")

	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !cfg.Mock.Enabled {
		t.Error("mock mode should default on when nothing is configured")
	}

	// An explicit MOCK_MODE=false keeps mock off even without providers.
	t.Setenv("MOCK_MODE", "false")
	cfg, err = config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Mock.Enabled {
		t.Error("MOCK_MODE=false should win over the default")
	}
}

func TestValidProviderNames(t *testing.T) {
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	llmNames := config.ValidProviderNames["llm"]
	if len(llmNames) == 0 {
		t.Fatal("ValidProviderNames[\"llm\"] should not be empty")
	}
	// Check that "openai" is in the LLM list.
	found := false
	for _, n := range llmNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"llm\"] should contain \"openai\"")
	}
}
