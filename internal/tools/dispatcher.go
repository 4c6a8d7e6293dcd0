package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/attendly/callline/internal/session"
	"github.com/attendly/callline/pkg/provider/llm"
)

// Tuning holds the dispatcher's guard thresholds. Zero values are replaced by
// the defaults below.
type Tuning struct {
	// MaxConsecutiveToolCalls is how many back-to-back non-terminal tool
	// calls are allowed before the session is routed to a close.
	MaxConsecutiveToolCalls int

	// DuplicateCallWindow is the look-back period for repeated calls of the
	// same tool with the same primary argument.
	DuplicateCallWindow time.Duration

	// DuplicateCallLimit is how many matching calls within the window trigger
	// loop handling.
	DuplicateCallLimit int

	// MinConversationTurns is the conversation depth required before
	// non-terminal tools may run.
	MinConversationTurns int
}

func (t Tuning) withDefaults() Tuning {
	if t.MaxConsecutiveToolCalls == 0 {
		t.MaxConsecutiveToolCalls = 1
	}
	if t.DuplicateCallWindow == 0 {
		t.DuplicateCallWindow = 2 * time.Minute
	}
	if t.DuplicateCallLimit == 0 {
		t.DuplicateCallLimit = 2
	}
	if t.MinConversationTurns == 0 {
		t.MinConversationTurns = 3
	}
	return t
}

// clarifyBeforeTools is spoken when a non-terminal tool is requested before
// the callee has said enough to justify side effects.
const clarifyBeforeTools = "Before I update anything, could you tell me a little more about your situation with the class?"

// Outcome is the dispatcher's verdict on one requested invocation.
type Outcome struct {
	// Result is set when the tool executed (possibly degraded to its
	// fallback text on failure).
	Result *Result

	// Refused is set when a guard or argument validation rejected the call.
	// RefusalText is the clarifying message to speak; the call is not
	// recorded in the tool history.
	Refused     bool
	RefusalText string

	// LoopDetected means executing would create a loop; the router must take
	// the session to the AI-initiated end-call flow instead.
	LoopDetected bool
}

// Dispatcher owns the tool catalog and enforces the invocation guards.
// Safe for concurrent use across sessions; per-session state is protected by
// the session's own serialization, which callers must already hold.
type Dispatcher struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	tuning Tuning
}

// NewDispatcher builds a dispatcher over the given catalog.
func NewDispatcher(tuning Tuning, catalog ...Tool) *Dispatcher {
	d := &Dispatcher{
		tools:  make(map[string]Tool, len(catalog)),
		tuning: tuning.withDefaults(),
	}
	for _, t := range catalog {
		if _, dup := d.tools[t.Name()]; !dup {
			d.order = append(d.order, t.Name())
		}
		d.tools[t.Name()] = t
	}
	return d
}

// SetTuning replaces the guard thresholds. Used by config hot-reload.
func (d *Dispatcher) SetTuning(t Tuning) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tuning = t.withDefaults()
}

func (d *Dispatcher) currentTuning() Tuning {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tuning
}

// Catalog returns the tool definitions offered to the completion service, in
// registration order.
func (d *Dispatcher) Catalog() []llm.ToolDefinition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].Definition())
	}
	return defs
}

// Dispatch runs the guards and, if they pass, executes the named tool.
// Callers must hold the session's serialization (the router always does).
//
// Guard order: unknown tool, conversation depth, loop prevention, argument
// validation, then execution. Execution failures degrade to the tool's
// fallback text and never surface as protocol errors.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any, cc *CallContext) (Outcome, error) {
	d.mu.RLock()
	tool, ok := d.tools[name]
	d.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("tools: unknown tool %q", name)
	}

	log := cc.Logger
	if log == nil {
		log = slog.Default()
	}
	tuning := d.currentTuning()
	sess := cc.Session
	primary := tool.PrimaryArg(args)

	if name != EndCallName {
		if sess.TurnCount() < tuning.MinConversationTurns {
			log.Info("tool refused: conversation too short",
				"tool", name,
				"turns", sess.TurnCount(),
				"required", tuning.MinConversationTurns,
			)
			return Outcome{Refused: true, RefusalText: clarifyBeforeTools}, nil
		}

		if d.wouldCreateLoop(sess, name, primary, tuning) {
			log.Warn("tool loop detected, routing to call end",
				"tool", name,
				"primary_arg", primary,
				"consecutive", sess.ConsecutiveToolCalls,
			)
			return Outcome{LoopDetected: true}, nil
		}
	}

	if err := tool.Validate(args, cc); err != nil {
		log.Info("tool refused by validation", "tool", name, "reason", err)
		return Outcome{Refused: true, RefusalText: err.Error()}, nil
	}

	sess.RecordToolCall(name, primary, time.Now())

	result, err := tool.Execute(ctx, args, cc)
	if err != nil || result == nil || !result.Success {
		log.Error("tool execution failed, degrading to fallback",
			"tool", name,
			"err", err,
		)
		return Outcome{Result: &Result{
			Success:      false,
			ResponseText: tool.FallbackText(),
		}}, nil
	}
	return Outcome{Result: result}, nil
}

// wouldCreateLoop implements the loop prevention policy: too many back-to-back
// tool calls, or the same tool+primary-argument pair already recorded at least
// DuplicateCallLimit times inside the window.
func (d *Dispatcher) wouldCreateLoop(sess *session.Session, name, primary string, tuning Tuning) bool {
	if sess.ConsecutiveToolCalls >= tuning.MaxConsecutiveToolCalls {
		return true
	}
	return sess.CountRecentToolCalls(name, primary, tuning.DuplicateCallWindow, time.Now()) >= tuning.DuplicateCallLimit
}
