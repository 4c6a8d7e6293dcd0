package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/attendly/callline/internal/directory"
	"github.com/attendly/callline/internal/observe"
	"github.com/attendly/callline/internal/protocol"
	"github.com/attendly/callline/internal/session"
	"github.com/attendly/callline/internal/telephony"
	"github.com/attendly/callline/internal/tools"
	"github.com/attendly/callline/pkg/provider/llm"
)

// Sender delivers outbound protocol frames to the media client. Implemented
// by the transport layer; implementations must be safe for concurrent use
// because timer callbacks send from their own goroutines.
type Sender interface {
	Send(ctx context.Context, msg any) error
}

// Settings holds the per-call timing knobs. Zero values are replaced by the
// defaults below.
type Settings struct {
	// InactivityTimeout ends a call with no inbound activity. Default 5m.
	InactivityTimeout time.Duration

	// GreetingDelay is how long after setup the agent waits for the callee
	// to speak before opening the conversation itself. Default 3s.
	GreetingDelay time.Duration

	// HangupGrace is how long spoken farewell audio is given to play out
	// when no better estimate exists. Default 3s.
	HangupGrace time.Duration

	// SpeakingWPM estimates playback duration from word count. Default 150.
	SpeakingWPM int

	// MinSpeakingDelay is the floor for estimated playback duration.
	// Default 3s.
	MinSpeakingDelay time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.InactivityTimeout == 0 {
		s.InactivityTimeout = 5 * time.Minute
	}
	if s.GreetingDelay == 0 {
		s.GreetingDelay = 3 * time.Second
	}
	if s.HangupGrace == 0 {
		s.HangupGrace = 3 * time.Second
	}
	if s.SpeakingWPM == 0 {
		s.SpeakingWPM = 150
	}
	if s.MinSpeakingDelay == 0 {
		s.MinSpeakingDelay = 3 * time.Second
	}
	return s
}

// Deps bundles the collaborators a Router needs.
type Deps struct {
	Sessions   *session.Store
	Directory  directory.Store
	Telephony  telephony.Gateway
	Provider   llm.Provider
	Dispatcher *tools.Dispatcher

	// Metrics is optional; [observe.DefaultMetrics] is used when nil.
	Metrics *observe.Metrics

	// Logger is optional; [slog.Default] is used when nil.
	Logger *slog.Logger
}

// Router drives the conversation for every live call: it decodes inbound
// frames, mutates session state, asks the completion provider for turns, and
// runs the teardown flows. One Router serves all connections; per-connection
// state lives in [Conn].
type Router struct {
	sessions   *session.Store
	dir        directory.Store
	gateway    telephony.Gateway
	provider   llm.Provider
	dispatcher *tools.Dispatcher
	metrics    *observe.Metrics
	log        *slog.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewRouter builds a Router from deps and settings.
func NewRouter(deps Deps, settings Settings) *Router {
	m := deps.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		sessions:   deps.Sessions,
		dir:        deps.Directory,
		gateway:    deps.Telephony,
		provider:   deps.Provider,
		dispatcher: deps.Dispatcher,
		metrics:    m,
		log:        log,
		settings:   settings.withDefaults(),
	}
}

// SetSettings replaces the timing knobs. Used by config hot-reload; live
// calls pick up the new values on their next timer arm.
func (r *Router) SetSettings(s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s.withDefaults()
}

func (r *Router) currentSettings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// Conn is the per-connection view of the Router. The transport feeds it raw
// frames in read order and calls Close when the socket goes away.
type Conn struct {
	r    *Router
	send Sender

	mu     sync.Mutex
	callID string

	log *slog.Logger
}

// NewConn wraps a transport sender for one connection.
func (r *Router) NewConn(send Sender) *Conn {
	return &Conn{r: r, send: send, log: r.log}
}

func (c *Conn) setCallID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callID = id
	c.log = c.r.log.With("call_id", id)
}

// CallID returns the call this connection is bound to, or "" before setup.
func (c *Conn) CallID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callID
}

// HandleRaw decodes one inbound frame and dispatches it. Malformed or unknown
// frames answer with a protocol error and leave the session untouched.
func (c *Conn) HandleRaw(ctx context.Context, data []byte) {
	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		c.log.Warn("dropping inbound frame", "err", err)
		if errors.Is(err, protocol.ErrUnknownType) {
			c.sendFrame(ctx, protocol.NewProtocolError("unknown message type"))
		} else {
			c.sendFrame(ctx, protocol.NewProtocolError("malformed message"))
		}
		return
	}

	switch m := msg.(type) {
	case *protocol.Setup:
		c.handleSetup(ctx, m)
	case *protocol.Prompt:
		c.handlePrompt(ctx, m)
	case *protocol.Interrupt:
		c.handleInterrupt(ctx, m)
	case *protocol.Hangup:
		c.handleHangup(ctx, m)
	case *protocol.ErrorReport:
		c.handleError(ctx, m)
	}
}

// Close tears down the connection's session, if any. Called by the transport
// when the socket closes for any reason.
func (c *Conn) Close(ctx context.Context) {
	id := c.CallID()
	if id == "" {
		return
	}
	if sess, ok := c.r.sessions.Get(id); ok {
		c.finalize(ctx, sess, "connection_closed")
	}
	c.r.sessions.Delete(id)
}

func (c *Conn) handleSetup(ctx context.Context, m *protocol.Setup) {
	if m.CallID == "" {
		c.sendFrame(ctx, protocol.NewProtocolError("setup requires callId"))
		return
	}
	c.setCallID(m.CallID)

	r := c.r
	sess, created := r.sessions.Create(m.CallID, SystemPrompt)
	if !created {
		c.log.Warn("setup for existing session, reusing")
		return
	}
	r.metrics.CallsStarted.Add(ctx, 1)
	r.metrics.ActiveCalls.Add(ctx, 1)

	var stu *directory.Student
	if m.CalleeNumber != "" {
		found, err := r.dir.FindByPhoneNumber(ctx, m.CalleeNumber)
		switch {
		case err == nil:
			stu = found
		case errors.Is(err, directory.ErrNotFound):
			c.log.Info("no directory record for callee", "number", m.CalleeNumber)
		default:
			c.log.Error("directory lookup failed", "err", err)
		}
	}

	set := r.currentSettings()

	// Timer callbacks outlive the setup frame's context.
	bg := context.WithoutCancel(ctx)

	sess.Do(func() {
		sess.CalleeNumber = m.CalleeNumber
		if stu != nil {
			sess.Student = &session.StudentContext{
				ID:          stu.ID,
				Name:        stu.Name,
				PhoneNumber: stu.PhoneNumber,
				ClassName:   stu.ClassName,
				Schedule:    stu.Schedule,
				Status:      stu.Status,
			}
			sess.Append(session.RoleSystem, StudentContextTurn(sess.Student))
		}
		if err := sess.Transition(session.StateGreetingPending); err != nil {
			c.log.Error("setup transition failed", "err", err)
			return
		}
		sess.ArmGreetingTimer(set.GreetingDelay, func() {
			c.onGreetingDue(bg, sess)
		})
		sess.ArmInactivityTimer(set.InactivityTimeout, func() {
			c.onInactivityTimeout(bg, sess)
		})
	})
	c.log.Info("session established", "callee", m.CalleeNumber, "student_found", stu != nil)
}

func (c *Conn) handlePrompt(ctx context.Context, m *protocol.Prompt) {
	sess, ok := c.currentSession(ctx)
	if !ok {
		return
	}
	set := c.r.currentSettings()
	bg := context.WithoutCancel(ctx)

	sess.Do(func() {
		if sess.State.IsTerminal() || sess.State == session.StateEnding {
			c.log.Info("prompt after call end, ignoring")
			return
		}
		sess.Touch()
		sess.CancelGreetingTimer()
		sess.ArmInactivityTimer(set.InactivityTimeout, func() {
			c.onInactivityTimeout(bg, sess)
		})
		sess.ResetToolCounter()
		sess.Append(session.RoleUser, m.VoiceText)
		if err := sess.Transition(session.StateActive); err != nil {
			c.log.Error("prompt transition failed", "err", err)
		}

		if UserWantsToEnd(m.VoiceText) {
			c.log.Info("callee asked to end the call")
			c.finishConversation(ctx, sess, "conversation_complete")
			return
		}
		c.generateLocked(ctx, sess)
	})
}

func (c *Conn) handleInterrupt(ctx context.Context, m *protocol.Interrupt) {
	sess, ok := c.currentSession(ctx)
	if !ok {
		return
	}
	sess.Do(func() {
		sess.Touch()
		if sess.ApplyInterrupt(m.HeardPrefix) {
			c.r.metrics.Interrupts.Add(ctx, 1)
			c.log.Info("conversation truncated after barge-in")
		}
	})
}

func (c *Conn) handleHangup(ctx context.Context, m *protocol.Hangup) {
	id := c.CallID()
	sess, ok := c.r.sessions.Get(id)
	if !ok {
		c.log.Info("hangup for unknown session")
		return
	}
	reason := m.Reason
	if reason == "" {
		reason = "client_initiated"
	}
	set := c.r.currentSettings()
	bg := context.WithoutCancel(ctx)

	var alreadyDone bool
	sess.Do(func() {
		if sess.State.IsTerminal() {
			alreadyDone = true
			return
		}
		sess.CancelTimers()
		if err := sess.Transition(session.StateEnding); err != nil {
			c.log.Error("hangup transition failed", "err", err)
		}
		if m.FinalMessage != "" {
			c.sendText(ctx, m.FinalMessage, true)
			sess.Append(session.RoleAssistant, m.FinalMessage)
		}
	})
	if alreadyDone {
		return
	}

	var wait time.Duration
	if m.FinalMessage != "" {
		wait = SpeakingDuration(m.FinalMessage, set.SpeakingWPM, set.HangupGrace)
	}
	go c.teardownAfter(bg, sess, wait, reason, false)
}

func (c *Conn) handleError(ctx context.Context, m *protocol.ErrorReport) {
	if sess, ok := c.r.sessions.Get(c.CallID()); ok {
		sess.Do(func() {
			sess.RecordError(m.ErrorType, m.Message, m.Code, m.Critical)
		})
	}
	c.log.Warn("client reported error",
		"error_type", m.ErrorType,
		"message", m.Message,
		"code", m.Code,
		"critical", m.Critical,
	)
	c.sendFrame(ctx, protocol.NewErrorAcknowledged(m.ErrorType))

	if m.Critical || m.ErrorType == "fatal" {
		c.log.Warn("critical error, ending call")
		c.handleHangup(ctx, &protocol.Hangup{
			Reason:       "critical_error",
			FinalMessage: CriticalErrorMessage,
		})
	}
}

// onGreetingDue fires when the callee stayed silent past the greeting delay:
// the agent opens the conversation itself.
func (c *Conn) onGreetingDue(ctx context.Context, sess *session.Session) {
	sess.Do(func() {
		if sess.State != session.StateGreetingPending {
			return
		}
		prompt := GenericGreetingPrompt
		if sess.Student != nil {
			prompt = InitialGreetingPrompt(sess.Student)
		}
		sess.Append(session.RoleUser, prompt)
		c.generateLocked(ctx, sess)
	})
}

// onInactivityTimeout fires when the callee has been silent for the whole
// inactivity window: speak the timeout farewell, give it time to play, then
// tear the call down. The hangup is confirmed even when the telephony leg
// cannot be reached, because the session is over either way.
func (c *Conn) onInactivityTimeout(ctx context.Context, sess *session.Session) {
	var skip bool
	sess.Do(func() {
		if sess.State.IsTerminal() || sess.State == session.StateEnding {
			skip = true
			return
		}
		c.log.Warn("call timed out due to inactivity")
		sess.CancelGreetingTimer()
		if err := sess.Transition(session.StateEnding); err != nil {
			c.log.Error("timeout transition failed", "err", err)
		}
		c.sendText(ctx, TimeoutMessage, true)
		sess.Append(session.RoleAssistant, TimeoutMessage)
	})
	if skip {
		return
	}
	set := c.r.currentSettings()
	go c.teardownAfter(ctx, sess, set.HangupGrace, "timeout", true)
}

// finishConversation runs the closing flow: ask the model for a short
// farewell, speak it, and schedule teardown once it has had time to play.
// Callers must hold the session via Do.
func (c *Conn) finishConversation(ctx context.Context, sess *session.Session, reason string) {
	if sess.State.IsTerminal() {
		return
	}
	sess.CancelTimers()
	if sess.State != session.StateEnding {
		if err := sess.Transition(session.StateEnding); err != nil {
			c.log.Error("ending transition failed", "err", err)
		}
	}

	sess.Append(session.RoleSystem, ClosingPrompt)

	closing := FallbackGoodbye
	resp, err := c.r.provider.Complete(ctx, llm.CompletionRequest{
		Messages: toMessages(sess.Conversation),
	})
	if err != nil {
		c.log.Error("closing response generation failed", "err", err)
	} else if resp != nil && resp.Content != "" {
		closing = resp.Content
	}

	c.sendText(ctx, closing, true)
	sess.Append(session.RoleAssistant, closing)

	set := c.r.currentSettings()
	wait := SpeakingDuration(closing, set.SpeakingWPM, set.MinSpeakingDelay)
	go c.teardownAfter(context.WithoutCancel(ctx), sess, wait, reason, false)
}

// teardownAfter waits for farewell audio to finish, terminates the telephony
// leg, reports the result to the client, and finalizes the session. When
// confirmOnFailure is set a failed termination still answers with
// hangup_confirmed; otherwise the client gets hangup_error. The session is
// closed in both cases.
func (c *Conn) teardownAfter(ctx context.Context, sess *session.Session, wait time.Duration, reason string, confirmOnFailure bool) {
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			c.finalize(ctx, sess, reason)
			return
		}
	}

	err := c.r.gateway.TerminateCall(ctx, sess.CallID)
	switch {
	case err == nil:
		c.log.Info("call terminated", "reason", reason)
		c.sendFrame(ctx, protocol.NewHangupConfirmed(sess.CallID, reason))
	case confirmOnFailure:
		c.log.Error("call termination failed, confirming hangup anyway", "reason", reason, "err", err)
		c.sendFrame(ctx, protocol.NewHangupConfirmed(sess.CallID, reason))
	default:
		c.log.Error("call termination failed", "reason", reason, "err", err)
		c.sendFrame(ctx, protocol.NewHangupError(sess.CallID, err.Error(), reason))
	}

	c.finalize(ctx, sess, reason)
}

// finalize moves the session to its terminal state exactly once, records the
// end-of-call metrics, and removes the session from the store. Frames
// arriving for the call ID afterwards are answered with a not-found error by
// [Conn.currentSession].
func (c *Conn) finalize(ctx context.Context, sess *session.Session, reason string) {
	var ended bool
	var dur time.Duration
	sess.Do(func() {
		if !sess.State.IsTerminal() {
			if err := sess.Transition(session.StateTerminated); err == nil {
				ended = true
				dur = time.Since(sess.CreatedAt)
				sess.RecordEnd(reason, "", "")
			}
		}
		sess.CancelTimers()
	})
	if ended {
		c.r.metrics.RecordCallEnded(ctx, reason, dur.Seconds())
		c.r.metrics.ActiveCalls.Add(ctx, -1)
	}
	c.r.sessions.Delete(sess.CallID)
}

// currentSession resolves the connection's session, answering with a protocol
// error when no setup has happened yet.
func (c *Conn) currentSession(ctx context.Context) (*session.Session, bool) {
	sess, ok := c.r.sessions.Get(c.CallID())
	if !ok {
		c.log.Warn("message before setup, dropping")
		c.sendFrame(ctx, protocol.NewProtocolError("no active session"))
		return nil, false
	}
	return sess, true
}

func (c *Conn) sendText(ctx context.Context, token string, last bool) {
	c.sendFrame(ctx, protocol.NewText(token, last))
}

func (c *Conn) sendFrame(ctx context.Context, msg any) {
	if err := c.send.Send(ctx, msg); err != nil {
		c.log.Warn("outbound send failed", "err", err)
	}
}
