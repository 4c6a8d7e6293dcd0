package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/attendly/callline/internal/config"
)

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader returned error: %v", err)
	}
	if got := cfg.Call.InactivityTimeout.Std(); got != 5*time.Minute {
		t.Errorf("InactivityTimeout = %s, want 5m", got)
	}
	if got := cfg.Call.GreetingDelay.Std(); got != 3*time.Second {
		t.Errorf("GreetingDelay = %s, want 3s", got)
	}
	if cfg.Call.MaxConsecutiveToolCalls != 1 {
		t.Errorf("MaxConsecutiveToolCalls = %d, want 1", cfg.Call.MaxConsecutiveToolCalls)
	}
	if cfg.Call.MinConversationTurns != 3 {
		t.Errorf("MinConversationTurns = %d, want 3", cfg.Call.MinConversationTurns)
	}
	if cfg.Call.SpeakingWPM != 150 {
		t.Errorf("SpeakingWPM = %d, want 150", cfg.Call.SpeakingWPM)
	}
	if got := cfg.Telephony.RequestTimeout.Std(); got != 10*time.Second {
		t.Errorf("Telephony.RequestTimeout = %s, want 10s", got)
	}
}

func TestLoadFromReader_ParsesDurations(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
call:
  inactivity_timeout: 90s
  greeting_delay: 1500ms
  duplicate_call_window: 1m
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader returned error: %v", err)
	}
	if got := cfg.Call.InactivityTimeout.Std(); got != 90*time.Second {
		t.Errorf("InactivityTimeout = %s, want 90s", got)
	}
	if got := cfg.Call.GreetingDelay.Std(); got != 1500*time.Millisecond {
		t.Errorf("GreetingDelay = %s, want 1.5s", got)
	}
	if got := cfg.Call.DuplicateCallWindow.Std(); got != time.Minute {
		t.Errorf("DuplicateCallWindow = %s, want 1m", got)
	}
}

func TestLoadFromReader_RejectsInvalidDuration(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
call:
  inactivity_timeout: soon
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
bogus_section:
  key: value
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_RequiresLLMProvider(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing LLM provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm.name") {
		t.Errorf("error should mention providers.llm.name, got: %v", err)
	}
}

func TestValidate_RestTelephonyRequiresCredentials(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
  telephony:
    name: rest
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for rest telephony without credentials, got nil")
	}
	if !strings.Contains(err.Error(), "telephony.base_url") {
		t.Errorf("error should mention telephony.base_url, got: %v", err)
	}
	if !strings.Contains(err.Error(), "telephony.account_id") {
		t.Errorf("error should mention telephony.account_id, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
providers:
  llm:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_NegativeTuningRejected(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
call:
  inactivity_timeout: -1m
  min_conversation_turns: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative tuning values, got nil")
	}
	if !strings.Contains(err.Error(), "inactivity_timeout") {
		t.Errorf("error should mention inactivity_timeout, got: %v", err)
	}
	if !strings.Contains(err.Error(), "min_conversation_turns") {
		t.Errorf("error should mention min_conversation_turns, got: %v", err)
	}
}

func TestLoadFromReader_ParsesEnvironment(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  environment: staging
providers:
  llm:
    name: openai
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader returned error: %v", err)
	}
	if cfg.Server.Environment != "staging" {
		t.Errorf("Environment = %q, want %q", cfg.Server.Environment, "staging")
	}
}
