// Package transport exposes the call orchestration protocol over a WebSocket
// endpoint. The media client opens one connection per call, sends a setup
// frame, and exchanges JSON frames until the call ends or the socket closes.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/attendly/callline/internal/call"
)

// Server upgrades HTTP requests to WebSocket connections and pumps frames
// into the call router. One Server handles any number of concurrent calls.
type Server struct {
	router *call.Router
	log    *slog.Logger

	acceptOptions *websocket.AcceptOptions
}

// Option configures a Server.
type Option func(*Server)

// WithOriginPatterns sets the allowed WebSocket origins. Without it only
// same-host origins are accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.acceptOptions = &websocket.AcceptOptions{OriginPatterns: patterns}
	}
}

// WithLogger sets the server logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer builds a WebSocket server over the given router.
func NewServer(router *call.Router, opts ...Option) *Server {
	s := &Server{router: router, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs the read loop until the client
// disconnects or the request context ends. Each connection gets its own
// router binding; the session it sets up is torn down when the loop exits.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, s.acceptOptions)
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.log.Info("media client connected", "remote", r.RemoteAddr)

	conn := s.router.NewConn(&wsSender{ws: ws})
	ctx := r.Context()
	defer conn.Close(context.WithoutCancel(ctx))

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				s.log.Info("media client disconnected", "call_id", conn.CallID())
			case errors.Is(err, context.Canceled):
				s.log.Info("connection context cancelled", "call_id", conn.CallID())
			default:
				s.log.Warn("websocket read failed", "call_id", conn.CallID(), "err", err)
			}
			ws.Close(websocket.StatusNormalClosure, "session closed")
			return
		}
		if typ != websocket.MessageText {
			s.log.Warn("dropping non-text frame", "call_id", conn.CallID())
			continue
		}
		conn.HandleRaw(ctx, data)
	}
}

// wsSender adapts a websocket connection to the router's Sender. Writes are
// serialized because timer callbacks send concurrently with the handler path.
type wsSender struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (s *wsSender) Send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal frame: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("transport: write frame: %w", err)
	}
	return nil
}
