// Package telephony talks to the telephony provider's control API. The
// orchestrator only needs one capability from it: tearing down the live call
// leg once a session ends.
package telephony

import "context"

// Gateway terminates live call legs.
//
// TerminateCall asks the provider to end the call identified by callID. It is
// idempotent from the caller's perspective: terminating an already-ended call
// returns nil.
type Gateway interface {
	TerminateCall(ctx context.Context, callID string) error
}
