package localchan

import (
	"log/slog"
	"time"
)

// queueFrame implements spec.md §4.3's queue_frame: deliver frame, written
// on the endpoint in direction, to its partner's inbound queue.
//
// Precondition: the caller holds pair.mu. selfHandle is the endpoint that
// initiated the forward (nil for some control paths); selfLocked records
// whether the caller also holds selfHandle's lock, which selects the
// back-off primitive per spec.md §5/§9: "release my lock, yield, reacquire"
// when selfLocked, or "release pair mutex and sleep" otherwise.
//
// Returns ErrPairDestroyed when the pair was destroyed out from under the
// caller (glare), otherwise the partner's QueueFrame error, if any; on any
// other failure path this function does not return
// early without re-locking what it unlocked, so the caller's own unlock
// discipline (deferred Unlock on pair.mu) stays correct.
func queueFrame(p *Pair, direction Direction, frame Frame, sw Switch, selfHandle ChannelRef, selfLocked bool) error {
	other := p.PartnerOf(direction)
	if other == nil {
		return nil
	}

	if a, b := p.A(), p.B(); selfHandle != nil && a != nil && b != nil && a.HasGenerator() && b.HasGenerator() {
		return nil
	}

	p.SetFlag(FlagGlareDetect)

	for {
		if other.TryLock() {
			break
		}

		p.Unlock()
		if selfLocked && selfHandle != nil {
			sw.DeadlockAvoidance(selfHandle)
		} else {
			time.Sleep(time.Millisecond)
		}
		p.Lock()

		other = p.PartnerOf(direction)
		if other == nil {
			p.ClearFlag(FlagGlareDetect)
			return nil
		}
	}

	if p.HasFlag(FlagCancelQueue) {
		// spec.md §4.3 step 5: release pair.mutex, destroy the pair, unlock
		// other, report failure — in that order.
		p.ClearFlag(FlagGlareDetect)
		p.Unlock()
		p.Destroy(sw)
		other.Unlock()
		slog.Warn("[Local] frame forward lost the glare race, pair destroyed", "pair_id", p.ID())
		return ErrPairDestroyed
	}

	switch {
	case frame.Type == FrameControl && frame.Subclass == ControlRinging:
		other.SetState(StateRinging)
	case frame.Type == FrameControl && frame.Subclass == ControlHangup:
		other.SetHangupCause(frame.Cause)
	}

	err := other.QueueFrame(frame)
	other.Unlock()
	p.ClearFlag(FlagGlareDetect)
	return err
}
