package localchan

import (
	"time"

	"github.com/sebas/swproxy/services/signaling/events"
)

// PairEventType identifies a Local Proxy Channel lifecycle transition.
type PairEventType string

const (
	// PairAllocated fires when Request completes successfully.
	PairAllocated PairEventType = "local.allocated"
	// PairOptimizedAway fires when the Optimize-Away Engine splices the
	// pair out of the call graph.
	PairOptimizedAway PairEventType = "local.optimized_away"
	// PairDestroyed fires when the pair's final hangup completes teardown.
	PairDestroyed PairEventType = "local.destroyed"
)

// PairEvent implements events.Event for pair lifecycle notifications. It is
// a standalone type rather than an edit to the events package: the Local
// driver is a producer of this interface, not an owner of its schema.
type PairEvent struct {
	EventTime     time.Time
	EventType     PairEventType
	PairID        string
	Destination   string
	AName, BName  string
}

func (e *PairEvent) Type() events.EventType { return events.EventType(e.EventType) }
func (e *PairEvent) Timestamp() time.Time   { return e.EventTime }
func (e *PairEvent) CallID() string         { return e.PairID }

// Subject returns the publish subject for this event, following the same
// "<namespace>.<id>.<suffix>" shape as events.BaseEvent.Subject, but under
// the local channel's own namespace since PairID is not a SIP call UUID.
func (e *PairEvent) Subject() string {
	return "switchboard.local." + e.PairID + "." + string(e.EventType)
}

// NewPairEvent builds a PairEvent snapshot from a pair's current state.
// Caller must hold p.mu, or accept a racy snapshot of the name fields.
func NewPairEvent(p *Pair, eventType PairEventType) *PairEvent {
	ev := &PairEvent{
		EventTime:   time.Now(),
		EventType:   eventType,
		PairID:      p.ID(),
		Destination: p.stringLocked(),
	}
	if a := p.A(); a != nil {
		ev.AName = a.Name()
	}
	if b := p.B(); b != nil {
		ev.BName = b.Name()
	}
	return ev
}
