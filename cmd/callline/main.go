// Command callline is the main entry point for the Callline voice call server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/attendly/callline/internal/app"
	"github.com/attendly/callline/internal/config"
	"github.com/attendly/callline/internal/observe"
	"github.com/attendly/callline/internal/telephony"
	telmock "github.com/attendly/callline/internal/telephony/mock"
	"github.com/attendly/callline/pkg/provider/llm"
	"github.com/attendly/callline/pkg/provider/llm/anyllm"
	"github.com/attendly/callline/pkg/provider/llm/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch-config", false, "reload log level and call tuning when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "callline: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "callline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("callline starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "callline",
		ServiceVersion: version,
		Environment:    cfg.Server.Environment,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	provider, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	gateway, err := reg.CreateTelephony(cfg.Providers.Telephony)
	if err != nil {
		slog.Error("failed to create telephony gateway", "name", cfg.Providers.Telephony.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "telephony", "name", cfg.Providers.Telephony.Name)

	// ── Application ───────────────────────────────────────────────────────────
	var opts []app.Option
	if *watch {
		opts = append(opts, app.WithConfigWatch(*configPath))
	}

	application, err := app.New(ctx, cfg, provider, gateway, logLevel, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai uses the native SDK client for full tool-calling support.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, mistral and groq share the same pattern:
	// optional APIKey + optional BaseURL through the any-llm bridge.
	for _, providerName := range []string{"anthropic", "gemini", "mistral", "groq"} {
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

	// ── Telephony ─────────────────────────────────────────────────────────────
	// rest talks to the call-control API configured under the telephony block.
	reg.RegisterTelephony("rest", func(_ config.ProviderEntry) (telephony.Gateway, error) {
		tc := cfg.Telephony
		var opts []telephony.ClientOption
		if tc.RequestTimeout.Std() > 0 {
			opts = append(opts, telephony.WithTimeout(tc.RequestTimeout.Std()))
		}
		return telephony.NewClient(tc.BaseURL, tc.AccountID, tc.AuthToken, opts...)
	})

	// mock confirms every hangup without calling out. Local development only.
	reg.RegisterTelephony("mock", func(_ config.ProviderEntry) (telephony.Gateway, error) {
		slog.Warn("using mock telephony gateway — hangups will not reach a real call")
		return &telmock.Gateway{}, nil
	})
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets config
// hot-reload adjust verbosity without recreating handlers.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	switch level {
	case config.LogDebug:
		lvl.Set(slog.LevelDebug)
	case config.LogWarn:
		lvl.Set(slog.LevelWarn)
	case config.LogError:
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}
