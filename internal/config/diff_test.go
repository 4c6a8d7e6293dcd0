package config_test

import (
	"testing"
	"time"

	"github.com/attendly/callline/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Server.LogLevel = config.LogInfo
	new_ := &config.Config{}
	new_.Server.LogLevel = config.LogInfo

	d := config.Diff(old, new_)
	if d.LogLevelChanged || d.CallTuningChanged {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Server.LogLevel = config.LogInfo
	new_ := &config.Config{}
	new_.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new_)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_CallTuningChange(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Call.InactivityTimeout = config.Duration(5 * time.Minute)
	new_ := &config.Config{}
	new_.Call.InactivityTimeout = config.Duration(2 * time.Minute)

	d := config.Diff(old, new_)
	if !d.CallTuningChanged {
		t.Fatal("expected CallTuningChanged")
	}
	if d.NewCallTuning.InactivityTimeout.Std() != 2*time.Minute {
		t.Errorf("NewCallTuning.InactivityTimeout = %s, want 2m", d.NewCallTuning.InactivityTimeout.Std())
	}
}
