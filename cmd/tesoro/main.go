// Command tesoro is the entry point for the tesoro story-cards game backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/tesoro-app/tesoro/internal/audiostore"
	"github.com/tesoro-app/tesoro/internal/cards"
	"github.com/tesoro-app/tesoro/internal/config"
	"github.com/tesoro-app/tesoro/internal/conversation"
	convpg "github.com/tesoro-app/tesoro/internal/conversation/postgres"
	"github.com/tesoro-app/tesoro/internal/health"
	"github.com/tesoro-app/tesoro/internal/observe"
	"github.com/tesoro-app/tesoro/internal/resilience"
	"github.com/tesoro-app/tesoro/internal/server"
	"github.com/tesoro-app/tesoro/internal/speech"
	"github.com/tesoro-app/tesoro/internal/turn"
	"github.com/tesoro-app/tesoro/pkg/provider/llm"
	"github.com/tesoro-app/tesoro/pkg/provider/llm/anyllm"
	"github.com/tesoro-app/tesoro/pkg/provider/llm/openai"
	"github.com/tesoro-app/tesoro/pkg/provider/tts"
	"github.com/tesoro-app/tesoro/pkg/provider/tts/azure"
	"github.com/tesoro-app/tesoro/pkg/provider/tts/elevenlabs"
)

const (
	defaultListenAddr = ":8000"
	defaultAudioDir   = "audio_files"
	defaultConvDir    = "conversations"
	defaultCacheSize  = 128
	shutdownTimeout   = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		// Env-only operation needs no config file at all.
		cfg, err = config.LoadFromReader(strings.NewReader(""))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tesoro: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("tesoro starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
		"mock_mode", cfg.Mock.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "tesoro"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, ttsProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// Remote calls go through a circuit breaker so a dead backend fails fast
	// into the pipeline's local fallbacks. The guards double as readiness
	// probes.
	probes := health.New(cfg.Mock.Enabled)
	if llmProvider != nil {
		guard := resilience.GuardLLM(cfg.Providers.LLM.Name, llmProvider, metrics, resilience.CircuitBreakerConfig{})
		llmProvider = guard
		probes.Add("llm", guard.Ready)
	}
	if ttsProvider != nil {
		guard := resilience.GuardTTS(cfg.Providers.TTS.Name, ttsProvider, metrics, resilience.CircuitBreakerConfig{})
		ttsProvider = guard
		probes.Add("tts", guard.Ready)
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	audioDir := cfg.Storage.AudioDir
	if audioDir == "" {
		audioDir = defaultAudioDir
	}
	store, err := audiostore.NewStore(audioDir)
	if err != nil {
		slog.Error("failed to create audio store", "err", err)
		return 1
	}

	cacheSize := cfg.Storage.AudioCacheSize
	if cacheSize < 1 {
		cacheSize = defaultCacheSize
	}
	cache := audiostore.NewCache(cacheSize)

	convStore, closeConv, err := buildConversationStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to create conversation store", "err", err)
		return 1
	}
	defer closeConv()
	if p, ok := convStore.(conversation.Pinger); ok {
		probes.Add("conversations", p.Ping)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	var detectorOpts []cards.Option
	if cfg.Game.FuzzyThreshold > 0 {
		detectorOpts = append(detectorOpts, cards.WithThreshold(cfg.Game.FuzzyThreshold))
	}

	orch := turn.New(turn.Config{
		Provider: llmProvider,
		Detector: cards.NewDetector(detectorOpts...),
	})

	synth, err := speech.NewSynthesizer(speech.Config{
		Provider:   ttsProvider,
		Store:      store,
		Cache:      cache,
		Voices:     cfg.Game.Voices,
		SamplePath: cfg.Mock.SampleAudioPath,
	})
	if err != nil {
		slog.Error("failed to create synthesizer", "err", err)
		return 1
	}

	srv, err := server.New(server.Config{
		Orchestrator:  orch,
		Synthesizer:   synth,
		Conversations: convStore,
		AudioStore:    store,
		AudioCache:    cache,
		Sessions:      server.NewSessions(cfg.Game.CardsPerHand, metrics),
		Metrics:       metrics,
		Health:        probes,
		MockMode:      cfg.Mock.Enabled,
		CORSOrigins:   cfg.Server.CORSOrigins,
	})
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	printStartupSummary(cfg, listenAddr, orch.MockMode())

	httpSrv := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, applyConfigChange)
	if err != nil {
		slog.Debug("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		slog.Error("http server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// defaultOpenAIModel is used when no model is configured for the openai
// provider.
const defaultOpenAIModel = "gpt-4o-mini"

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai goes through the official SDK rather than any-llm; it is the
	// primary backend and the SDK carries its retry and error semantics.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		model := entry.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, model, opts...)
	})

	// The remaining hosted LLM backends share the same pattern: optional
	// APIKey + optional BaseURL, routed through any-llm.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterTTS("azure", func(entry config.ProviderEntry) (tts.Provider, error) {
		return azure.New(entry.APIKey, entry.Region)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the configured LLM and TTS providers. In mock
// mode both stay nil so nothing in the pipeline can reach the network.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, tts.Provider, error) {
	if cfg.Mock.Enabled {
		slog.Info("mock mode enabled — no provider will be created")
		return nil, nil, nil
	}

	var llmProvider llm.Provider
	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown llm provider — running without one", "name", name)
		} else if err != nil {
			return nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		} else {
			llmProvider = p
			slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
		}
	}

	var ttsProvider tts.Provider
	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown tts provider — running without one", "name", name)
		} else if err != nil {
			return nil, nil, fmt.Errorf("create tts provider %q: %w", name, err)
		} else {
			ttsProvider = p
			slog.Info("provider created", "kind", "tts", "name", name)
		}
	}

	return llmProvider, ttsProvider, nil
}

// buildConversationStore picks PostgreSQL when a DSN is configured and the
// local filesystem otherwise. The returned closer releases the pool.
func buildConversationStore(ctx context.Context, cfg *config.Config) (conversation.Store, func(), error) {
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		st := convpg.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate conversations schema: %w", err)
		}
		slog.Info("conversation store ready", "backend", "postgres")
		return st, pool.Close, nil
	}

	dir := cfg.Storage.ConversationsDir
	if dir == "" {
		dir = defaultConvDir
	}
	st, err := conversation.NewFileStore(dir)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("conversation store ready", "backend", "file", "dir", dir)
	return st, func() {}, nil
}

// applyConfigChange reacts to a hot-reloaded config file. Only the log level
// is applied live; other diffs are logged so an operator knows a restart is
// needed.
func applyConfigChange(_, _ *config.Config, diff config.ConfigDiff) {
	if diff.LogLevelChanged {
		slog.SetDefault(newLogger(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.FuzzyThresholdChanged {
		slog.Info("fuzzy threshold changed in config — restart to apply",
			"threshold", diff.NewFuzzyThreshold)
	}
	for _, vc := range diff.VoiceChanges {
		if vc.Removed {
			slog.Info("voice removed from config — restart to apply", "locale", vc.Locale)
		} else {
			slog.Info("voice changed in config — restart to apply",
				"locale", vc.Locale, "voice", vc.NewVoice)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, listenAddr string, mock bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          tesoro — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	mode := "real"
	if mock {
		mode = "mock (no network)"
	}
	fmt.Printf("║  Mode            : %-19s║\n", mode)
	storage := "file"
	if cfg.Storage.PostgresDSN != "" {
		storage = "postgres"
	}
	fmt.Printf("║  Conversations   : %-19s║\n", storage)
	fmt.Printf("║  Listen addr     : %-19s║\n", listenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
