package transport_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/attendly/callline/internal/call"
	"github.com/attendly/callline/internal/directory"
	"github.com/attendly/callline/internal/session"
	telmock "github.com/attendly/callline/internal/telephony/mock"
	"github.com/attendly/callline/internal/tools"
	"github.com/attendly/callline/internal/transport"
	"github.com/attendly/callline/pkg/provider/llm"
	llmmock "github.com/attendly/callline/pkg/provider/llm/mock"
)

func newTestServer(t *testing.T, provider *llmmock.Provider) (*httptest.Server, *session.Store) {
	t.Helper()

	sessions := session.NewStore()
	router := call.NewRouter(call.Deps{
		Sessions:   sessions,
		Directory:  directory.NewMemStore(),
		Telephony:  &telmock.Gateway{},
		Provider:   provider,
		Dispatcher: tools.NewDispatcher(tools.Tuning{}, tools.DefaultCatalog()...),
	}, call.Settings{
		InactivityTimeout: time.Minute,
		GreetingDelay:     time.Minute,
		HangupGrace:       time.Millisecond,
		SpeakingWPM:       150,
		MinSpeakingDelay:  time.Millisecond,
	})

	srv := httptest.NewServer(transport.NewServer(router))
	t.Cleanup(srv.Close)
	return srv, sessions
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "test done") })
	return ws
}

// readFrame reads one JSON frame and returns its decoded generic form.
func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return frame
}

func writeFrame(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestServer_PromptRoundTrip(t *testing.T) {
	t.Parallel()
	answer := "Your class starts Monday at ten."
	srv, sessions := newTestServer(t, &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: answer},
	})
	ws := dial(t, srv)

	writeFrame(t, ws, `{"type":"setup","callId":"CA300"}`)
	writeFrame(t, ws, `{"type":"prompt","voiceText":"when does my class start?"}`)

	// First text frame is the holding phrase, second is the answer.
	var got []string
	for range 2 {
		frame := readFrame(t, ws)
		if frame["type"] != "text" {
			t.Fatalf("frame type = %v, want text", frame["type"])
		}
		got = append(got, frame["token"].(string))
	}
	if got[1] != answer {
		t.Errorf("answer frame = %q, want %q", got[1], answer)
	}

	if _, ok := sessions.Get("CA300"); !ok {
		t.Error("session not created by setup frame")
	}
}

func TestServer_HangupConfirmation(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &llmmock.Provider{})
	ws := dial(t, srv)

	writeFrame(t, ws, `{"type":"setup","callId":"CA301"}`)
	writeFrame(t, ws, `{"type":"hangup","reason":"caller_busy"}`)

	frame := readFrame(t, ws)
	if frame["type"] != "hangup_confirmed" {
		t.Fatalf("frame type = %v, want hangup_confirmed", frame["type"])
	}
	if frame["callId"] != "CA301" || frame["reason"] != "caller_busy" {
		t.Errorf("confirmation fields = %v", frame)
	}
}

func TestServer_MalformedFrameAnswersError(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &llmmock.Provider{})
	ws := dial(t, srv)

	writeFrame(t, ws, `{not json`)

	frame := readFrame(t, ws)
	if frame["type"] != "error" {
		t.Errorf("frame type = %v, want error", frame["type"])
	}
}

func TestServer_DisconnectRemovesSession(t *testing.T) {
	t.Parallel()
	srv, sessions := newTestServer(t, &llmmock.Provider{})
	ws := dial(t, srv)

	writeFrame(t, ws, `{"type":"setup","callId":"CA302"}`)
	deadline := time.Now().Add(2 * time.Second)
	for sessions.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sessions.Len() != 1 {
		t.Fatal("session not created")
	}

	ws.Close(websocket.StatusNormalClosure, "done")

	deadline = time.Now().Add(2 * time.Second)
	for sessions.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sessions.Len() != 0 {
		t.Error("session not removed after disconnect")
	}
}
