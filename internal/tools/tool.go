// Package tools implements the fixed tool catalog exposed to the completion
// service during a call, and the dispatcher that guards every invocation with
// loop prevention, conversation-depth, and argument-quality checks.
package tools

import (
	"context"
	"log/slog"

	"github.com/attendly/callline/internal/directory"
	"github.com/attendly/callline/internal/session"
	"github.com/attendly/callline/internal/telephony"
	"github.com/attendly/callline/pkg/provider/llm"
)

// EndCallName is the terminal tool. It bypasses loop prevention: ending the
// call is always allowed.
const EndCallName = "end_call"

// Result is the outcome of one tool execution.
type Result struct {
	// Success reports whether the tool's side effect took place.
	Success bool

	// ResponseText is the spoken confirmation or information for the callee.
	ResponseText string

	// DetailedInfo carries structured data fed back to the completion service
	// as a system turn so the follow-up response can use it.
	DetailedInfo map[string]any

	// EndCall is set by the terminal tool: the router should run the closing
	// flow after this result.
	EndCall bool

	// EndReason is the terminal tool's stated reason, when EndCall is set.
	EndReason string
}

// CallContext carries the session and collaborator handles into a tool
// execution. It never crosses the dispatcher boundary outward.
type CallContext struct {
	// Session is the live session. The dispatcher is always invoked from
	// within the session's serialized handler, so tools may read and write it
	// directly.
	Session *session.Session

	// Directory is the callee directory collaborator.
	Directory directory.Store

	// Telephony is the call-control collaborator.
	Telephony telephony.Gateway

	// Logger is the per-call logger.
	Logger *slog.Logger
}

// Tool is one entry in the catalog.
type Tool interface {
	// Name is the function name offered to the completion service.
	Name() string

	// Definition is the schema advertised to the completion service.
	Definition() llm.ToolDefinition

	// PrimaryArg extracts the argument that identifies what the call acts on,
	// used for duplicate detection. May return "" when the tool has no
	// meaningful primary argument.
	PrimaryArg(args map[string]any) string

	// Validate checks args before execution. A non-nil error refuses the call
	// with the returned clarifying message instead of executing.
	Validate(args map[string]any, cc *CallContext) error

	// Execute runs the tool. Failures degrade to FallbackText, never to
	// protocol errors.
	Execute(ctx context.Context, args map[string]any, cc *CallContext) (*Result, error)

	// FallbackText is the canned apology spoken when Execute fails.
	FallbackText() string
}

// stringArg reads a string argument, tolerating absent or mistyped values.
func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
