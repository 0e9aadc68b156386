package localchan

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is, mirroring b2bua/errors.go's split
// between stable sentinels and structured types.
var (
	// ErrInvalidDestination indicates a destination string missing @context
	// where one is required (devicestate).
	ErrInvalidDestination = errors.New("invalid destination: missing @context")

	// ErrExtensionNotFound indicates the parsed extension does not exist in
	// the dialplan.
	ErrExtensionNotFound = errors.New("extension does not exist")

	// ErrNotLocalChannel indicates a channel name resolved to something
	// outside the registry (wrong driver, or already destroyed).
	ErrNotLocalChannel = errors.New("not a local channel")

	// ErrUnknownChannel indicates a channel name did not resolve to any
	// live pair.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrMissingChannelHeader indicates the management action was invoked
	// without its required Channel field.
	ErrMissingChannelHeader = errors.New("missing required Channel field")

	// ErrAnsweredOnA indicates Answer was called on the A side, which is
	// illegal: only B answers toward the dialplan.
	ErrAnsweredOnA = errors.New("answer is not valid on the A side")

	// ErrQueryOptionUnsupported indicates a query_option request for
	// anything other than T38_STATE.
	ErrQueryOptionUnsupported = errors.New("query option not supported")

	// ErrPairDestroyed indicates an operation was attempted against a pair
	// that has already been torn down.
	ErrPairDestroyed = errors.New("pair already destroyed")

	// ErrFixupNoMatch indicates fixup was called with an old handle that
	// matches neither endpoint slot.
	ErrFixupNoMatch = errors.New("fixup: old handle not found in pair")

	// ErrCallOnB indicates Call was invoked on the B side, which is illegal:
	// only A originates toward B.
	ErrCallOnB = errors.New("call is not valid on the B side")
)

// AllocationError wraps a failure during Request's endpoint allocation,
// after which the caller must unwind registry insertion and pair teardown.
type AllocationError struct {
	Stage string // "a_endpoint", "b_endpoint", "registry_insert"
	Cause error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("local channel allocation failed at %s: %v", e.Stage, e.Cause)
}

func (e *AllocationError) Unwrap() error {
	return e.Cause
}

// OptionParseWarning records a non-fatal problem in the destination-string
// option grammar (spec.md §7: "log error, ignore j, proceed" — the call
// still succeeds, so this is logged, never returned as an error).
type OptionParseWarning struct {
	Destination string
	Reason      string
}

func (w *OptionParseWarning) String() string {
	return fmt.Sprintf("destination %q: %s", w.Destination, w.Reason)
}
