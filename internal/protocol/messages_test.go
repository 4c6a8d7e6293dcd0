package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/attendly/callline/internal/protocol"
)

func TestDecodeInbound_Setup(t *testing.T) {
	t.Parallel()
	raw := `{"type":"setup","callId":"CA123","calleeNumber":"+15550100"}`
	msg, err := protocol.DecodeInbound([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	setup, ok := msg.(*protocol.Setup)
	if !ok {
		t.Fatalf("DecodeInbound returned %T, want *protocol.Setup", msg)
	}
	if setup.CallID != "CA123" {
		t.Errorf("CallID = %q, want CA123", setup.CallID)
	}
	if setup.CalleeNumber != "+15550100" {
		t.Errorf("CalleeNumber = %q, want +15550100", setup.CalleeNumber)
	}
}

func TestDecodeInbound_SetupWithoutCallee(t *testing.T) {
	t.Parallel()
	msg, err := protocol.DecodeInbound([]byte(`{"type":"setup","callId":"CA9"}`))
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	setup := msg.(*protocol.Setup)
	if setup.CalleeNumber != "" {
		t.Errorf("CalleeNumber = %q, want empty", setup.CalleeNumber)
	}
}

func TestDecodeInbound_Prompt(t *testing.T) {
	t.Parallel()
	msg, err := protocol.DecodeInbound([]byte(`{"type":"prompt","voiceText":"hello there"}`))
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	prompt, ok := msg.(*protocol.Prompt)
	if !ok {
		t.Fatalf("DecodeInbound returned %T, want *protocol.Prompt", msg)
	}
	if prompt.VoiceText != "hello there" {
		t.Errorf("VoiceText = %q, want %q", prompt.VoiceText, "hello there")
	}
}

func TestDecodeInbound_Interrupt(t *testing.T) {
	t.Parallel()
	msg, err := protocol.DecodeInbound([]byte(`{"type":"interrupt","heardPrefix":"Great, your"}`))
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	in, ok := msg.(*protocol.Interrupt)
	if !ok {
		t.Fatalf("DecodeInbound returned %T, want *protocol.Interrupt", msg)
	}
	if in.HeardPrefix != "Great, your" {
		t.Errorf("HeardPrefix = %q, want %q", in.HeardPrefix, "Great, your")
	}
}

func TestDecodeInbound_ErrorReport(t *testing.T) {
	t.Parallel()
	raw := `{"type":"error","errorType":"media","message":"stream stalled","code":502,"critical":true}`
	msg, err := protocol.DecodeInbound([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	rep, ok := msg.(*protocol.ErrorReport)
	if !ok {
		t.Fatalf("DecodeInbound returned %T, want *protocol.ErrorReport", msg)
	}
	if rep.ErrorType != "media" || rep.Code != 502 || !rep.Critical {
		t.Errorf("unexpected error report: %+v", rep)
	}
}

func TestDecodeInbound_UnknownType(t *testing.T) {
	t.Parallel()
	_, err := protocol.DecodeInbound([]byte(`{"type":"dance"}`))
	if err == nil {
		t.Fatal("expected error for unknown type, got nil")
	}
	if !errors.Is(err, protocol.ErrUnknownType) {
		t.Errorf("error should wrap ErrUnknownType, got: %v", err)
	}
}

func TestDecodeInbound_MalformedJSON(t *testing.T) {
	t.Parallel()
	_, err := protocol.DecodeInbound([]byte(`{"type":`))
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestText_WireFormat(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(protocol.NewText("Hello", true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "text" || decoded["token"] != "Hello" || decoded["last"] != true {
		t.Errorf("unexpected wire form: %s", data)
	}
}

func TestHangupConfirmed_CarriesCallIDAndTimestamp(t *testing.T) {
	t.Parallel()
	frame := protocol.NewHangupConfirmed("CA77", "user_requested")
	if frame.CallID != "CA77" || frame.Reason != "user_requested" {
		t.Errorf("unexpected frame: %+v", frame)
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}
