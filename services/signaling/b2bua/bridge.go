package b2bua

import (
	"context"
	"time"

	"github.com/sebas/swproxy/services/signaling/transport"
)

// Bridge connects two call legs for bidirectional media exchange.
//
// A Bridge is created after both legs reach Answered state. It coordinates
// RTP forwarding between the two media sessions and terminates if either
// leg hangs up.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge interface {
	// ID returns the unique identifier for this bridge.
	ID() string

	// LegA returns the inbound (A) leg.
	LegA() Leg

	// LegB returns the outbound (B) leg.
	LegB() Leg

	// GetState returns the current state of the bridge.
	GetState() BridgeState

	// Info returns detailed information about the bridge.
	Info() *BridgeInfo

	// Start activates media bridging between the two legs.
	Start(ctx context.Context) error

	// Stop terminates the bridge and, if hangupLegs is true, hangs up both legs.
	Stop(hangupLegs bool) error

	// WaitForTermination blocks until the bridge terminates.
	WaitForTermination(ctx context.Context) (TerminationCause, error)

	// OnTerminated registers a callback for bridge termination.
	OnTerminated(fn func(cause TerminationCause))
}

// BridgeInfo contains detailed information about a bridge.
type BridgeInfo struct {
	ID string `json:"id"`

	LegAID string `json:"leg_a_id"`
	LegBID string `json:"leg_b_id"`

	State            BridgeState      `json:"state"`
	TerminationCause TerminationCause `json:"termination_cause,omitempty"`
	TerminatedBy     string           `json:"terminated_by,omitempty"`

	Codec              string `json:"codec,omitempty"`
	TranscodingEnabled bool   `json:"transcoding_enabled,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	TerminatedAt time.Time `json:"terminated_at,omitempty"`

	PacketsA2B int64 `json:"packets_a_to_b,omitempty"`
	PacketsB2A int64 `json:"packets_b_to_a,omitempty"`
	BytesA2B   int64 `json:"bytes_a_to_b,omitempty"`
	BytesB2A   int64 `json:"bytes_b_to_a,omitempty"`
}

// Duration returns the total bridge duration (start to termination).
func (i *BridgeInfo) Duration() time.Duration {
	if i.StartedAt.IsZero() || i.TerminatedAt.IsZero() {
		return 0
	}
	return i.TerminatedAt.Sub(i.StartedAt)
}

// BridgeOption configures bridge creation.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	id           string
	autoHangup   bool
	transport    transport.Transport
	onTerminated func(TerminationCause)
}

// WithBridgeID sets a custom bridge ID instead of generating one.
func WithBridgeID(id string) BridgeOption {
	return func(o *bridgeOptions) { o.id = id }
}

// WithAutoHangup configures whether legs should be hung up on termination.
// Default is true.
func WithAutoHangup(enable bool) BridgeOption {
	return func(o *bridgeOptions) { o.autoHangup = enable }
}

// WithTransport sets the RTP Manager transport for media bridging.
func WithTransport(t transport.Transport) BridgeOption {
	return func(o *bridgeOptions) { o.transport = t }
}

// WithOnTerminated registers a termination callback at creation time, so it
// cannot race with a leg terminating before OnTerminated is called explicitly.
func WithOnTerminated(fn func(cause TerminationCause)) BridgeOption {
	return func(o *bridgeOptions) { o.onTerminated = fn }
}
