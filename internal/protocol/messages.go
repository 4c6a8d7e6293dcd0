// Package protocol defines the JSON message types exchanged with the telephony
// media client over the duplex session connection, and the envelope decoding
// that routes raw frames to their typed representations.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type discriminates protocol messages. Every frame carries a "type" field.
type Type string

const (
	// Inbound (client → orchestrator).
	TypeSetup     Type = "setup"
	TypePrompt    Type = "prompt"
	TypeInterrupt Type = "interrupt"
	TypeHangup    Type = "hangup"
	TypeError     Type = "error"

	// Outbound (orchestrator → client).
	TypeText              Type = "text"
	TypeHangupConfirmed   Type = "hangup_confirmed"
	TypeHangupError       Type = "hangup_error"
	TypeErrorAcknowledged Type = "error_acknowledged"
)

// ErrUnknownType is wrapped by [DecodeInbound] when a frame carries a type
// that is not a recognised inbound message.
var ErrUnknownType = errors.New("protocol: unknown message type")

// Setup starts a session for a live call leg.
type Setup struct {
	Type Type `json:"type"`

	// CallID is the opaque external call identifier. Required.
	CallID string `json:"callId"`

	// CalleeNumber is the dialed phone number, used to look up the callee in
	// the directory. Optional; when absent the call proceeds without context.
	CalleeNumber string `json:"calleeNumber,omitempty"`
}

// Prompt carries one recognized utterance from the callee.
type Prompt struct {
	Type Type `json:"type"`

	// VoiceText is the transcribed utterance.
	VoiceText string `json:"voiceText"`
}

// Interrupt reports a barge-in: the callee started speaking while assistant
// audio was playing. HeardPrefix is the part of the assistant turn that was
// actually played before playback stopped.
type Interrupt struct {
	Type        Type   `json:"type"`
	HeardPrefix string `json:"heardPrefix"`
}

// Hangup is a client-requested termination.
type Hangup struct {
	Type Type `json:"type"`

	// Reason describes why the client is ending the call. Optional.
	Reason string `json:"reason,omitempty"`

	// FinalMessage, when set, is spoken to the callee before teardown.
	FinalMessage string `json:"finalMessage,omitempty"`
}

// ErrorReport is a transport-reported fault from the client side.
type ErrorReport struct {
	Type      Type   `json:"type"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Code      int    `json:"code,omitempty"`
	Critical  bool   `json:"critical,omitempty"`
}

// Text is an outbound assistant speech frame. A turn may be chunked across
// several Text frames; Last marks turn completion.
type Text struct {
	Type  Type   `json:"type"`
	Token string `json:"token"`
	Last  bool   `json:"last"`
}

// HangupConfirmed reports successful call teardown.
type HangupConfirmed struct {
	Type      Type      `json:"type"`
	CallID    string    `json:"callId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// HangupError reports that teardown was requested but the telephony leg could
// not be terminated. The conversational session is closed regardless.
type HangupError struct {
	Type   Type   `json:"type"`
	CallID string `json:"callId"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// ErrorAcknowledged confirms receipt of a non-critical inbound error report.
type ErrorAcknowledged struct {
	Type      Type   `json:"type"`
	ErrorType string `json:"errorType,omitempty"`
}

// ProtocolError is an outbound error frame, sent for malformed or unknown
// inbound messages and for internal failures surfaced to the client.
type ProtocolError struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// NewText builds an outbound Text frame.
func NewText(token string, last bool) Text {
	return Text{Type: TypeText, Token: token, Last: last}
}

// NewHangupConfirmed builds an outbound HangupConfirmed frame stamped with the
// current time.
func NewHangupConfirmed(callID, reason string) HangupConfirmed {
	return HangupConfirmed{Type: TypeHangupConfirmed, CallID: callID, Reason: reason, Timestamp: time.Now().UTC()}
}

// NewHangupError builds an outbound HangupError frame.
func NewHangupError(callID, errMsg, reason string) HangupError {
	return HangupError{Type: TypeHangupError, CallID: callID, Error: errMsg, Reason: reason}
}

// NewErrorAcknowledged builds an outbound ErrorAcknowledged frame.
func NewErrorAcknowledged(errorType string) ErrorAcknowledged {
	return ErrorAcknowledged{Type: TypeErrorAcknowledged, ErrorType: errorType}
}

// NewProtocolError builds an outbound error frame.
func NewProtocolError(message string) ProtocolError {
	return ProtocolError{Type: TypeError, Message: message}
}

// envelope is the minimal frame shape needed to pick a concrete type.
type envelope struct {
	Type Type `json:"type"`
}

// DecodeInbound parses a raw frame and returns one of *Setup, *Prompt,
// *Interrupt, *Hangup, or *ErrorReport. Frames with an unrecognised type
// return an error wrapping [ErrUnknownType]; the caller decides whether to
// answer with a protocol error or drop the connection.
func DecodeInbound(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	var msg any
	switch env.Type {
	case TypeSetup:
		msg = &Setup{}
	case TypePrompt:
		msg = &Prompt{}
	case TypeInterrupt:
		msg = &Interrupt{}
	case TypeHangup:
		msg = &Hangup{}
	case TypeError:
		msg = &ErrorReport{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", env.Type, err)
	}
	return msg, nil
}
