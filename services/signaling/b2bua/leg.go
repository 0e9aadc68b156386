package b2bua

import (
	"context"
	"time"

	"github.com/sebas/swproxy/services/signaling/dialog"
)

// Leg represents one side of a call in a B2BUA scenario.
//
// A Leg encapsulates SIP dialog state (via Dialog), a media session (via
// SessionID), and lifecycle management (state transitions, hangup).
//
// Legs are created in two ways:
//   - Inbound (A-leg): Adopted from an existing dialog via NewInboundLeg.
//   - Outbound (B-leg): Created via NewOutboundLeg or the Originator.
//
// Thread Safety: All methods are safe for concurrent use.
type Leg interface {
	// ID returns the unique identifier for this leg.
	ID() string

	// CallID returns the SIP Call-ID for this leg.
	CallID() string

	// Direction returns whether this is an inbound or outbound leg.
	Direction() LegDirection

	// GetState returns the current state of the leg.
	GetState() LegState

	// GetTerminationCause returns why the leg was terminated.
	// Returns TerminationCauseNone if not yet terminated.
	GetTerminationCause() TerminationCause

	// WaitForState blocks until the leg reaches the target state or context is canceled.
	WaitForState(ctx context.Context, target LegState) error

	// Dialog returns the underlying SIP dialog.
	Dialog() *dialog.Dialog

	// SessionID returns the RTP Manager session ID for this leg.
	SessionID() string

	// Context returns the leg's context, canceled when the leg is destroyed.
	Context() context.Context

	// Info returns detailed information about this leg.
	Info() *LegInfo

	// Answer marks an inbound leg answered; on an outbound leg it returns a
	// *StateTransitionError. No SIP response is sent.
	Answer(ctx context.Context) error

	// Hangup moves the leg to Destroyed, cancels its context and runs the
	// termination callbacks. It sends no BYE or CANCEL.
	Hangup(ctx context.Context, cause TerminationCause) error

	// Destroy releases all resources without SIP signaling.
	Destroy()

	// OnStateChange registers a callback for state transitions.
	OnStateChange(fn func(old, new LegState)) func()

	// OnTerminated registers a callback for termination.
	OnTerminated(fn func(cause TerminationCause))
}

// LegInfo contains detailed information about a leg.
type LegInfo struct {
	ID        string       `json:"id"`
	CallID    string       `json:"call_id"`
	Direction LegDirection `json:"direction"`

	LocalURI  string `json:"local_uri"`
	RemoteURI string `json:"remote_uri"`
	FromURI   string `json:"from_uri"`
	ToURI     string `json:"to_uri"`

	SessionID       string `json:"session_id,omitempty"`
	LocalRTPAddr    string `json:"local_rtp_addr,omitempty"`
	LocalRTPPort    int    `json:"local_rtp_port,omitempty"`
	RemoteRTPAddr   string `json:"remote_rtp_addr,omitempty"`
	RemoteRTPPort   int    `json:"remote_rtp_port,omitempty"`
	NegotiatedCodec string `json:"negotiated_codec,omitempty"`

	State            LegState         `json:"state"`
	TerminationCause TerminationCause `json:"termination_cause,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	RingingAt    time.Time `json:"ringing_at,omitempty"`
	AnsweredAt   time.Time `json:"answered_at,omitempty"`
	TerminatedAt time.Time `json:"terminated_at,omitempty"`

	SIPCode   int    `json:"sip_code,omitempty"`
	SIPReason string `json:"sip_reason,omitempty"`
}

// Duration returns the total duration from creation to termination.
func (i *LegInfo) Duration() time.Duration {
	if i.TerminatedAt.IsZero() {
		return 0
	}
	return i.TerminatedAt.Sub(i.CreatedAt)
}

// RingDuration returns how long the leg was in Ringing state.
func (i *LegInfo) RingDuration() time.Duration {
	if i.RingingAt.IsZero() {
		return 0
	}
	end := i.AnsweredAt
	if end.IsZero() {
		end = i.TerminatedAt
	}
	if end.IsZero() {
		return 0
	}
	return end.Sub(i.RingingAt)
}

// TalkDuration returns how long the leg was in Answered state.
func (i *LegInfo) TalkDuration() time.Duration {
	if i.AnsweredAt.IsZero() {
		return 0
	}
	end := i.TerminatedAt
	if end.IsZero() {
		return 0
	}
	return end.Sub(i.AnsweredAt)
}

// LegOption configures leg creation.
type LegOption func(*legOptions)

type legOptions struct {
	id         string
	earlyMedia bool
	onTeardown func(Leg)
}

// WithLegID sets a custom leg ID instead of generating one.
func WithLegID(id string) LegOption {
	return func(o *legOptions) { o.id = id }
}

// WithEarlyMedia stores an early-media (183 Session Progress) flag in the leg
// options; legImpl does not read it.
func WithEarlyMedia(enable bool) LegOption {
	return func(o *legOptions) { o.earlyMedia = enable }
}

// WithTeardownHandler stores a teardown callback in the leg options; legImpl
// does not invoke it on Hangup or Destroy.
func WithTeardownHandler(fn func(Leg)) LegOption {
	return func(o *legOptions) { o.onTeardown = fn }
}
