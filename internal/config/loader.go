package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"tts": {"azure", "elevenlabs"},
}

// Load reads the YAML configuration file at path, applies environment
// variable overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment variable
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)

	// Mock mode is the default when MOCK_MODE is unset and no provider is
	// configured from either the file or the environment.
	if os.Getenv("MOCK_MODE") == "" && cfg.Providers.LLM.Name == "" && cfg.Providers.TTS.Name == "" {
		cfg.Mock.Enabled = true
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Environment values win
// over file values so deployments can keep credentials out of the YAML.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("MOCK_MODE"); v != "" {
		cfg.Mock.Enabled = v == "1" || v == "true" || v == "TRUE" || v == "True"
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Providers.LLM.Name == "" {
			cfg.Providers.LLM.Name = "openai"
		}
		cfg.Providers.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Providers.LLM.Model = v
	}
	if v := os.Getenv("AZURE_SPEECH_KEY"); v != "" {
		if cfg.Providers.TTS.Name == "" {
			cfg.Providers.TTS.Name = "azure"
		}
		cfg.Providers.TTS.APIKey = v
	}
	if v := os.Getenv("AZURE_REGION"); v != "" {
		cfg.Providers.TTS.Region = v
	}

	voiceVars := map[string]string{
		"AZURE_VOICE_ES": "es-MX",
		"AZURE_VOICE_EN": "en-US",
		"AZURE_VOICE_ID": "id-ID",
	}
	for envVar, locale := range voiceVars {
		if v := os.Getenv(envVar); v != "" {
			if cfg.Game.Voices == nil {
				cfg.Game.Voices = make(map[string]string)
			}
			cfg.Game.Voices[locale] = v
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Missing credentials fail startup unless mock mode is on.
	if !cfg.Mock.Enabled {
		if cfg.Providers.LLM.Name != "" && cfg.Providers.LLM.APIKey == "" && cfg.Providers.LLM.Name != "ollama" {
			errs = append(errs, fmt.Errorf("providers.llm.api_key is required for provider %q (or enable mock mode)", cfg.Providers.LLM.Name))
		}
		if cfg.Providers.TTS.Name != "" && cfg.Providers.TTS.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.tts.api_key is required for provider %q (or enable mock mode)", cfg.Providers.TTS.Name))
		}
		if cfg.Providers.TTS.Name == "azure" && cfg.Providers.TTS.Region == "" {
			errs = append(errs, fmt.Errorf("providers.tts.region is required for the azure provider"))
		}
		if cfg.Providers.LLM.Name == "" {
			slog.Warn("no LLM provider configured; turns will return canned responses")
		}
		if cfg.Providers.TTS.Name == "" {
			slog.Warn("no TTS provider configured; audio will be generated silence")
		}
	}

	// Game
	if cfg.Game.FuzzyThreshold < 0 || cfg.Game.FuzzyThreshold > 100 {
		errs = append(errs, fmt.Errorf("game.fuzzy_threshold %d is out of range [0, 100]", cfg.Game.FuzzyThreshold))
	}
	if cfg.Game.CardsPerHand < 0 {
		errs = append(errs, fmt.Errorf("game.cards_per_hand must not be negative"))
	}

	// Storage
	if cfg.Storage.AudioCacheSize < 0 {
		errs = append(errs, fmt.Errorf("storage.audio_cache_size must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
