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
	"llm":       {"openai", "anthropic", "gemini", "ollama", "mistral", "groq"},
	"telephony": {"rest", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("telephony", cfg.Providers.Telephony.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}

	// Telephony — the REST gateway needs a full credential set.
	if cfg.Providers.Telephony.Name == "rest" {
		if cfg.Telephony.BaseURL == "" {
			errs = append(errs, errors.New("telephony.base_url is required when providers.telephony is rest"))
		}
		if cfg.Telephony.AccountID == "" || cfg.Telephony.AuthToken == "" {
			errs = append(errs, errors.New("telephony.account_id and telephony.auth_token are required when providers.telephony is rest"))
		}
	}

	// Directory availability
	if cfg.Directory.PostgresDSN == "" {
		slog.Warn("directory.postgres_dsn is empty; callee records will not survive restarts")
	}

	// Call tuning
	if cfg.Call.InactivityTimeout < 0 {
		errs = append(errs, fmt.Errorf("call.inactivity_timeout %s must not be negative", cfg.Call.InactivityTimeout.Std()))
	}
	if cfg.Call.GreetingDelay < 0 {
		errs = append(errs, fmt.Errorf("call.greeting_delay %s must not be negative", cfg.Call.GreetingDelay.Std()))
	}
	if cfg.Call.MaxConsecutiveToolCalls < 1 {
		errs = append(errs, fmt.Errorf("call.max_consecutive_tool_calls %d must be at least 1", cfg.Call.MaxConsecutiveToolCalls))
	}
	if cfg.Call.DuplicateCallLimit < 1 {
		errs = append(errs, fmt.Errorf("call.duplicate_call_limit %d must be at least 1", cfg.Call.DuplicateCallLimit))
	}
	if cfg.Call.MinConversationTurns < 0 {
		errs = append(errs, fmt.Errorf("call.min_conversation_turns %d must not be negative", cfg.Call.MinConversationTurns))
	}
	if cfg.Call.SpeakingWPM < 1 {
		errs = append(errs, fmt.Errorf("call.speaking_wpm %d must be at least 1", cfg.Call.SpeakingWPM))
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
