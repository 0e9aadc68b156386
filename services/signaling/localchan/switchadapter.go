package localchan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/sebas/swproxy/services/signaling/b2bua"
	"github.com/sebas/swproxy/services/signaling/dialplan"
)

// SwitchAdapter is the concrete Switch the services/signaling stack hands
// to the Local driver, wiring the existing dialplan.Executor for B's
// dialplan run and b2bua for the far-bridge-peer side of Optimize-Away.
// This is the "surrounding switch" spec.md §1 calls out as an external
// collaborator treated as an interface.
type SwitchAdapter struct {
	executor *dialplan.Executor
	plan     *dialplan.Dialplan
	reg      *Registry
	logger   *slog.Logger

	refCount atomic.Int64
}

// NewSwitchAdapter wires a dialplan Executor (and its underlying Dialplan,
// used directly for ExtensionExists) into a Switch implementation. reg is
// the same Registry the pair was allocated into; StartPBX looks the owning
// pair up in it so the call session it hands to the Executor can forward
// B-side media back through the pair instead of dropping it into a queue
// nothing drains.
func NewSwitchAdapter(executor *dialplan.Executor, reg *Registry, logger *slog.Logger) *SwitchAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwitchAdapter{
		executor: executor,
		plan:     executor.Dialplan(),
		reg:      reg,
		logger:   logger,
	}
}

func (s *SwitchAdapter) NewChannel(name string, state ChannelState) (ChannelRef, error) {
	return NewLocalChannel(name, state), nil
}

// ExtensionExists checks the wired Dialplan for a route matching
// extension@context, the same combined key localCallSession.Destination
// reports to the executor.
func (s *SwitchAdapter) ExtensionExists(context, extension string, priority int) bool {
	_, ok := s.plan.Match(extension + "@" + context)
	return ok
}

// StartPBX runs the matched route against ch on a new goroutine, the way
// the dialplan execution engine "runs an extension script on B as if B
// were a real inbound call" per spec.md §1.
func (s *SwitchAdapter) StartPBX(ch ChannelRef, ctx, extension string, priority int) error {
	route, ok := s.plan.Match(extension + "@" + ctx)
	if !ok {
		return ErrExtensionNotFound
	}

	p, ok := s.reg.FindByName(ch.Name())
	if !ok {
		return ErrPairDestroyed
	}

	session := newLocalCallSession(ch, extension, ctx, p, s)

	go func() {
		if err := s.executor.ExecuteRoute(session.Context(), session, route); err != nil {
			s.logger.Warn("[Local] dialplan route failed on B", "channel", ch.Name(), "error", err)
			_ = ch.QueueHangup(0)
		}
	}()

	return nil
}

// BestCodec returns the first requested codec verbatim: spec.md §1's
// Non-goals explicitly exclude codec negotiation policy, so this is a
// pass-through, not a real SDP offer/answer negotiation.
func (s *SwitchAdapter) BestCodec(requested []string) string {
	if len(requested) == 0 {
		return ""
	}
	return requested[0]
}

// Masquerade implements the atomic identity splice: into takes over from's
// position in the bridge, connecting directly to it and orphaning whatever
// from was previously bridged to (the Local B endpoint being spliced out).
// When from is a LegChannelAdapter wrapping a real b2bua.Leg, the leg is
// answered as part of taking on its live bridge role, exercising the real
// B2BUA path rather than just swapping an in-process pointer.
func (s *SwitchAdapter) Masquerade(into, from ChannelRef) error {
	if lca, ok := from.(*LegChannelAdapter); ok {
		if err := lca.leg.Answer(context.Background()); err != nil && err != b2bua.ErrInvalidState {
			s.logger.Warn("[Local] masquerade: far leg answer failed", "leg_id", lca.leg.ID(), "error", err)
		}
	}

	if oldPartner := from.BridgePartner(); oldPartner != nil {
		oldPartner.BridgeTo(nil)
	}
	into.BridgeTo(from)
	from.BridgeTo(into)

	return nil
}

// AcquireModuleRef returns an opaque token; ReleaseModuleRef is a no-op
// bookkeeping counter since this switch adapter has no loadable-module
// concept to pin.
func (s *SwitchAdapter) AcquireModuleRef() any {
	s.refCount.Add(1)
	return new(struct{})
}

func (s *SwitchAdapter) ReleaseModuleRef(ref any) {
	if ref == nil {
		return
	}
	s.refCount.Add(-1)
}

// DeadlockAvoidance releases self's lock, yields the scheduler, and
// reacquires it — the "(a)" flavor of back-off primitive spec.md §9
// requires for the forwarder's self_locked path.
func (s *SwitchAdapter) DeadlockAvoidance(self ChannelRef) {
	self.Unlock()
	runtime.Gosched()
	self.Lock()
}

// LegChannelAdapter adapts a b2bua.Leg to ChannelRef so a Local endpoint
// can be bridged to, and optimized away onto, a real SIP-backed leg. Only
// the subset of ChannelRef that Optimize-Away and the Frame Forwarder
// actually touch is backed by the leg; the rest is local bookkeeping, same
// shape as LocalChannel.
type LegChannelAdapter struct {
	*LocalChannel
	leg b2bua.Leg
}

// NewLegChannelAdapter wraps an existing b2bua.Leg for bridge-peer interop.
func NewLegChannelAdapter(leg b2bua.Leg) *LegChannelAdapter {
	name := fmt.Sprintf("SIP/%s", leg.ID())
	return &LegChannelAdapter{
		LocalChannel: NewLocalChannel(name, StateUp),
		leg:          leg,
	}
}

func (l *LegChannelAdapter) IsHungUp() bool {
	return l.leg.GetState().IsTerminal()
}
