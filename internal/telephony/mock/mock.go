// Package mock provides a test double for the telephony.Gateway interface.
package mock

import (
	"context"
	"sync"

	"github.com/attendly/callline/internal/telephony"
)

// TerminateCall records a single invocation of Gateway.TerminateCall.
type TerminateCall struct {
	// Ctx is the context passed to TerminateCall.
	Ctx context.Context
	// CallID is the call leg identifier passed to TerminateCall.
	CallID string
}

// Gateway is a mock implementation of telephony.Gateway.
// The zero value succeeds on every call. Set Err to inject failures.
type Gateway struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every TerminateCall.
	Err error

	// PingErr, if non-nil, is returned from every Ping.
	PingErr error

	// Calls records every invocation of TerminateCall in order.
	Calls []TerminateCall
}

// TerminateCall records the call and returns Err.
func (g *Gateway) TerminateCall(ctx context.Context, callID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, TerminateCall{Ctx: ctx, CallID: callID})
	return g.Err
}

// Ping returns PingErr.
func (g *Gateway) Ping(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.PingErr
}

// CallCount returns how many times TerminateCall has been invoked. Thread-safe.
func (g *Gateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = nil
}

// Ensure Gateway implements telephony.Gateway at compile time.
var _ telephony.Gateway = (*Gateway)(nil)
