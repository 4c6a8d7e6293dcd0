// Package session holds the per-call conversation state: the turn log, the
// call lifecycle state machine, the owned timers, and the tool call history
// that drives loop prevention. Sessions are owned exclusively by the [Store];
// everything else holds references.
package session

import (
	"fmt"
	"sync"
	"time"
)

// State is the call lifecycle state. Transitions are monotonic except that
// hangup and timeout paths may short-circuit from any non-terminal state to
// [StateTerminated].
type State string

const (
	StateInit            State = "INIT"
	StateGreetingPending State = "GREETING_PENDING"
	StateActive          State = "ACTIVE"
	StateEnding          State = "ENDING"
	StateTerminated      State = "TERMINATED"
)

// rank orders states for monotonicity checks.
var rank = map[State]int{
	StateInit:            0,
	StateGreetingPending: 1,
	StateActive:          2,
	StateEnding:          3,
	StateTerminated:      4,
}

// IsTerminal reports whether s admits no further transitions.
func (s State) IsTerminal() bool { return s == StateTerminated }

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the conversation log. The log's insertion order is
// semantically meaningful: it is the literal prompt sent to the completion
// service.
type Turn struct {
	Role    Role
	Content string
}

// ToolCallRecord is one accepted tool invocation, kept for loop detection.
type ToolCallRecord struct {
	Name       string
	PrimaryArg string
	At         time.Time
}

// ErrorRecord is one protocol-level error report, kept for post-call
// diagnostics.
type ErrorRecord struct {
	ErrorType string
	Message   string
	Code      int
	Critical  bool
	At        time.Time
}

// EndRecord captures how a call concluded, for post-call diagnostics.
type EndRecord struct {
	Reason          string
	Summary         string
	StudentResponse string
	Duration        time.Duration
	At              time.Time
}

// StudentContext is a read-mostly snapshot of the callee's directory record,
// fetched once at setup and never refreshed mid-call.
type StudentContext struct {
	ID          string
	Name        string
	PhoneNumber string
	ClassName   string
	Schedule    string
	Status      string
}

// maxToolCallHistory bounds the per-session tool call ring.
const maxToolCallHistory = 10

// Session is the state of a single live call. All mutation must happen inside
// [Session.Do], which serializes handlers, timer callbacks, and interrupts for
// the same call.
type Session struct {
	// CallID is the opaque external call identifier. Immutable.
	CallID string

	// CalleeNumber is the dialed number from setup, if any. Immutable.
	CalleeNumber string

	CreatedAt      time.Time
	LastActivityAt time.Time

	State State

	// Conversation is append-only except for interrupt truncation. It always
	// contains at least the initial system turn.
	Conversation []Turn

	// Student is the optional directory snapshot resolved at setup.
	Student *StudentContext

	// ConsecutiveToolCalls counts back-to-back accepted tool invocations.
	// Reset to zero by any plain assistant text response and by each prompt.
	ConsecutiveToolCalls int

	// ToolCallHistory is a bounded ring of recent accepted invocations.
	ToolCallHistory []ToolCallRecord

	// Errors is the append-only log of reported protocol errors.
	Errors []ErrorRecord

	// End is set once, when the call concludes.
	End *EndRecord

	mu              sync.Mutex
	inactivityTimer *Timer
	greetingTimer   *Timer
}

// New creates a session in [StateInit] whose conversation starts with the
// given system instruction.
func New(callID, systemInstruction string) *Session {
	now := time.Now()
	return &Session{
		CallID:         callID,
		CreatedAt:      now,
		LastActivityAt: now,
		State:          StateInit,
		Conversation:   []Turn{{Role: RoleSystem, Content: systemInstruction}},
	}
}

// Do runs fn while holding the session's serialization lock. All reads and
// writes of session state outside the immutable fields must go through Do.
func (s *Session) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Transition moves the session to next, enforcing monotonicity. Ending and
// Terminated are reachable from any non-terminal state. Callers must hold the
// session via Do.
func (s *Session) Transition(next State) error {
	if s.State.IsTerminal() {
		return fmt.Errorf("session %s: cannot leave terminal state %s", s.CallID, s.State)
	}
	if next == StateEnding || next == StateTerminated {
		s.State = next
		return nil
	}
	if rank[next] < rank[s.State] {
		return fmt.Errorf("session %s: cannot move backward from %s to %s", s.CallID, s.State, next)
	}
	s.State = next
	return nil
}

// Append adds a turn to the conversation log. Callers must hold the session
// via Do.
func (s *Session) Append(role Role, content string) {
	s.Conversation = append(s.Conversation, Turn{Role: role, Content: content})
}

// Touch updates LastActivityAt to now. Callers must hold the session via Do.
func (s *Session) Touch() {
	s.LastActivityAt = time.Now()
}

// TurnCount returns the number of non-system conversation turns. Callers must
// hold the session via Do.
func (s *Session) TurnCount() int {
	n := 0
	for _, t := range s.Conversation {
		if t.Role != RoleSystem {
			n++
		}
	}
	return n
}

// RecordToolCall appends an accepted invocation to the history ring and bumps
// the consecutive counter. Callers must hold the session via Do.
func (s *Session) RecordToolCall(name, primaryArg string, at time.Time) {
	s.ToolCallHistory = append(s.ToolCallHistory, ToolCallRecord{Name: name, PrimaryArg: primaryArg, At: at})
	if len(s.ToolCallHistory) > maxToolCallHistory {
		s.ToolCallHistory = s.ToolCallHistory[len(s.ToolCallHistory)-maxToolCallHistory:]
	}
	s.ConsecutiveToolCalls++
}

// ResetToolCounter clears the consecutive tool call counter. Callers must hold
// the session via Do.
func (s *Session) ResetToolCounter() {
	s.ConsecutiveToolCalls = 0
}

// CountRecentToolCalls returns how many history entries match name and
// primaryArg with At within window of now. Callers must hold the session via Do.
func (s *Session) CountRecentToolCalls(name, primaryArg string, window time.Duration, now time.Time) int {
	n := 0
	for _, rec := range s.ToolCallHistory {
		if rec.Name != name || rec.PrimaryArg != primaryArg {
			continue
		}
		if now.Sub(rec.At) <= window {
			n++
		}
	}
	return n
}

// RecordError appends a protocol error report. Callers must hold the session
// via Do.
func (s *Session) RecordError(errorType, message string, code int, critical bool) {
	s.Errors = append(s.Errors, ErrorRecord{
		ErrorType: errorType,
		Message:   message,
		Code:      code,
		Critical:  critical,
		At:        time.Now(),
	})
}

// RecordEnd sets the end record if none exists yet. Callers must hold the
// session via Do.
func (s *Session) RecordEnd(reason, summary, studentResponse string) {
	if s.End != nil {
		return
	}
	now := time.Now()
	s.End = &EndRecord{
		Reason:          reason,
		Summary:         summary,
		StudentResponse: studentResponse,
		Duration:        now.Sub(s.CreatedAt),
		At:              now,
	}
}

// ArmInactivityTimer replaces the inactivity timer with a fresh one firing
// after d. Any previous inactivity timer is cancelled first. Callers must hold
// the session via Do.
func (s *Session) ArmInactivityTimer(d time.Duration, fn func()) {
	s.inactivityTimer.Cancel()
	s.inactivityTimer = After(d, fn)
}

// ArmGreetingTimer replaces the greeting timer with a fresh one firing after
// d. Any previous greeting timer is cancelled first. Callers must hold the
// session via Do.
func (s *Session) ArmGreetingTimer(d time.Duration, fn func()) {
	s.greetingTimer.Cancel()
	s.greetingTimer = After(d, fn)
}

// CancelGreetingTimer stops the greeting timer if armed. Callers must hold the
// session via Do.
func (s *Session) CancelGreetingTimer() {
	s.greetingTimer.Cancel()
}

// CancelTimers stops both owned timers. Must be called before the session is
// removed from the store so no timer can fire against a deleted session.
// Callers must hold the session via Do.
func (s *Session) CancelTimers() {
	s.inactivityTimer.Cancel()
	s.greetingTimer.Cancel()
}
