package call

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/attendly/callline/internal/observe"
	"github.com/attendly/callline/internal/session"
	"github.com/attendly/callline/internal/tools"
	"github.com/attendly/callline/pkg/provider/llm"
)

// toolFollowUpMarker identifies the system turn that feeds a tool result back
// into the conversation; its presence as the last turn means the current
// generation is a follow-up, not a fresh response.
const toolFollowUpMarker = "executed successfully"

// toolUnavailableMessage is spoken when a requested tool does not exist in
// the catalog.
const toolUnavailableMessage = "I'm sorry, I wasn't able to do that just now. Is there anything else I can help you with about your class?"

// toMessages converts the conversation log into the provider request shape.
func toMessages(conv []session.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(conv))
	for _, t := range conv {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

// generateLocked asks the provider for the next assistant turn and routes the
// outcome: plain text is spoken, tool calls go through the dispatcher, and
// provider failures fall back to a streaming completion without tools.
// Callers must hold the session via Do.
func (c *Conn) generateLocked(ctx context.Context, sess *session.Session) {
	r := c.r

	// A holding phrase covers provider latency, but not for tool follow-ups
	// where the callee already heard one.
	last := sess.Conversation[len(sess.Conversation)-1]
	isFollowUp := last.Role == session.RoleSystem && strings.Contains(last.Content, toolFollowUpMarker)
	if !isFollowUp {
		c.sendText(ctx, waitingMessage(), true)
	}

	ctx, span := observe.CallSpan(ctx, "provider.complete", sess.CallID)
	start := time.Now()
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages: toMessages(sess.Conversation),
		Tools:    r.dispatcher.Catalog(),
	})
	r.metrics.CompletionDuration.Record(ctx, time.Since(start).Seconds())
	span.End()
	if err == nil && resp == nil {
		err = fmt.Errorf("call: provider returned no response")
	}
	if err != nil {
		r.metrics.ProviderErrors.Add(ctx, 1)
		c.log.Error("completion failed, falling back to streaming", "err", err)
		c.streamFallbackLocked(ctx, sess)
		return
	}

	if len(resp.ToolCalls) > 0 {
		// At most one tool call per turn is honored.
		c.handleToolCallLocked(ctx, sess, resp.Content, resp.ToolCalls[0])
		return
	}

	if resp.Content == "" {
		c.log.Warn("provider returned empty response")
		return
	}
	c.sendText(ctx, resp.Content, true)
	sess.Append(session.RoleAssistant, resp.Content)
	sess.ResetToolCounter()

	if AIWantsToEnd(resp.Content) {
		c.log.Info("assistant signalled call completion")
		c.finishConversation(ctx, sess, "conversation_complete")
	}
}

// handleToolCallLocked runs one requested tool through the dispatcher and
// routes its outcome. Callers must hold the session via Do.
func (c *Conn) handleToolCallLocked(ctx context.Context, sess *session.Session, content string, tc llm.ToolCall) {
	r := c.r

	args := map[string]any{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			c.log.Warn("tool arguments not valid JSON", "tool", tc.Name, "err", err)
		}
	}

	ctx, span := observe.CallSpan(ctx, "tool."+tc.Name, sess.CallID)
	defer span.End()

	start := time.Now()
	outcome, err := r.dispatcher.Dispatch(ctx, tc.Name, args, &tools.CallContext{
		Session:   sess,
		Directory: r.dir,
		Telephony: r.gateway,
		Logger:    c.log,
	})
	r.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordToolCall(ctx, tc.Name, "unknown")
		c.log.Error("tool dispatch failed", "tool", tc.Name, "err", err)
		c.sendText(ctx, toolUnavailableMessage, true)
		sess.Append(session.RoleAssistant, toolUnavailableMessage)
		return
	}

	switch {
	case outcome.Refused:
		r.metrics.RecordToolCall(ctx, tc.Name, "refused")
		c.sendText(ctx, outcome.RefusalText, true)
		sess.Append(session.RoleAssistant, outcome.RefusalText)
		return

	case outcome.LoopDetected:
		r.metrics.LoopDetections.Add(ctx, 1)
		c.finishConversation(ctx, sess, "conversation_complete")
		return
	}

	res := outcome.Result
	if res.EndCall {
		r.metrics.RecordToolCall(ctx, tc.Name, "ok")
		sess.RecordEnd(res.EndReason, detailString(res.DetailedInfo, "summary"), detailString(res.DetailedInfo, "studentResponse"))
		c.endCallFromTool(ctx, sess, content, res.EndReason)
		return
	}

	if !res.Success {
		r.metrics.RecordToolCall(ctx, tc.Name, "error")
		c.sendText(ctx, res.ResponseText, true)
		sess.Append(session.RoleAssistant, res.ResponseText)
		return
	}
	r.metrics.RecordToolCall(ctx, tc.Name, "ok")

	// Feed the result back as a system turn and generate the natural-language
	// follow-up.
	detail, err := json.MarshalIndent(res.DetailedInfo, "", "  ")
	if err != nil {
		detail = []byte("{}")
	}
	sess.Append(session.RoleSystem, fmt.Sprintf("Tool %q %s with the following information:\n%s", tc.Name, toolFollowUpMarker, detail))
	c.generateLocked(ctx, sess)
}

// endCallFromTool runs the terminal-tool flow: speak any accompanying text,
// wait out its playback, then tear the leg down. Callers must hold the
// session via Do.
func (c *Conn) endCallFromTool(ctx context.Context, sess *session.Session, content, endReason string) {
	if sess.State.IsTerminal() {
		return
	}
	sess.CancelTimers()
	if err := sess.Transition(session.StateEnding); err != nil {
		c.log.Error("end-call transition failed", "err", err)
	}
	c.log.Info("assistant ended call via tool", "end_reason", endReason)

	set := c.r.currentSettings()

	// Without a farewell to play there is only a beat of padding before the
	// leg drops.
	wait := time.Second
	if content != "" {
		c.sendText(ctx, content, true)
		sess.Append(session.RoleAssistant, content)
		wait = SpeakingDuration(content, set.SpeakingWPM, set.MinSpeakingDelay)
	}
	go c.teardownAfter(context.WithoutCancel(ctx), sess, wait, "ai_tool_call", false)
}

// detailString reads a string value out of a tool result's detail map.
func detailString(detail map[string]any, key string) string {
	if detail == nil {
		return ""
	}
	s, _ := detail[key].(string)
	return s
}

// streamFallbackLocked retries the turn as a plain streaming completion with
// no tools, relaying tokens as they arrive. If that fails too the callee gets
// the canned farewell rather than silence. Callers must hold the session via
// Do.
func (c *Conn) streamFallbackLocked(ctx context.Context, sess *session.Session) {
	r := c.r

	ch, err := r.provider.StreamCompletion(ctx, llm.CompletionRequest{
		Messages: toMessages(sess.Conversation),
	})
	if err != nil {
		r.metrics.ProviderErrors.Add(ctx, 1)
		c.log.Error("streaming fallback failed", "err", err)
		c.sendText(ctx, FallbackGoodbye, true)
		sess.Append(session.RoleAssistant, FallbackGoodbye)
		return
	}

	var b strings.Builder
	failed := false
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			// Error chunks carry the provider's message in Text. That is
			// diagnostic detail, never speakable audio.
			failed = true
			c.log.Error("stream error mid-response", "err", chunk.Text)
			continue
		}
		if chunk.Text != "" {
			c.sendText(ctx, chunk.Text, false)
			b.WriteString(chunk.Text)
		}
	}
	c.sendText(ctx, "", true)

	full := b.String()
	if failed || full == "" {
		r.metrics.ProviderErrors.Add(ctx, 1)
		c.log.Error("stream produced no usable response")
		c.sendText(ctx, FallbackGoodbye, true)
		sess.Append(session.RoleAssistant, FallbackGoodbye)
		return
	}

	sess.Append(session.RoleAssistant, full)
	sess.ResetToolCounter()

	if AIWantsToEnd(full) {
		c.log.Info("assistant signalled call completion")
		c.finishConversation(ctx, sess, "conversation_complete")
	}
}
