package localchan

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sebas/swproxy/services/signaling/events"
)

// Request implements spec.md §4.5's request: allocate the pair, parse
// options, insert into the registry, create both endpoints via the switch,
// bind them to the pair, and configure A's jitter buffer. Returns A.
//
// Failure paths unwind registry insertion and pair allocation atomically,
// per spec.md §7's "Endpoint allocation failure" row.
func Request(dest string, reqFormat []string, requestor Requestor, sw Switch, reg *Registry, pub events.Publisher) (ChannelRef, error) {
	p, warn := NewPair(dest, reqFormat, pub)
	if warn != nil {
		slog.Error("[Local] option-set misuse at allocation", "pair_id", p.ID(), "warning", warn.String())
	}

	tag := fmt.Sprintf("%04x", rand.Intn(1<<16))
	base := fmt.Sprintf("Local/%s@%s-%s", p.Extension(), p.Context(), tag)

	a, err := sw.NewChannel(base+";1", StateDown)
	if err != nil {
		return nil, &AllocationError{Stage: "a_endpoint", Cause: err}
	}

	b, err := sw.NewChannel(base+";2", StateRing)
	if err != nil {
		// Unwind the already-created A endpoint; the pair was never
		// registered, so there is nothing else to undo.
		_ = a.QueueHangup(0)
		return nil, &AllocationError{Stage: "b_endpoint", Cause: err}
	}

	p.Lock()
	p.SetA(a)
	p.SetB(b)
	refA := sw.AcquireModuleRef()
	refB := sw.AcquireModuleRef()
	p.SetModuleRefs(refA, refB)
	p.Unlock()

	a.ConfigureJitterBuffer(p.JitterBufferConfig())

	reg.Add(p)
	p.publish(PairAllocated)

	slog.Info("[Local] pair requested", "pair_id", p.ID(), "destination", dest, "requestor", requestor.Name,
		"a_name", a.Name(), "b_name", b.Name())

	return a, nil
}

// Call implements spec.md §4.5's call: only legal on A. Under triple-lock
// (B, A, pair — acquired with back-off), propagate A's call-setup state to
// B and start the dialplan.
func Call(p *Pair, ast ChannelRef, timeout time.Duration, sw Switch) error {
	p.Lock()

	if p.DirectionOf(ast) != DirectionA {
		p.Unlock()
		return ErrCallOnB
	}

	var a, b ChannelRef
	for {
		a, b = p.A(), p.B()
		if a == nil || b == nil {
			p.Unlock()
			return ErrPairDestroyed
		}
		if !b.TryLock() {
			p.Unlock()
			time.Sleep(time.Millisecond)
			p.Lock()
			continue
		}
		if !a.TryLock() {
			b.Unlock()
			p.Unlock()
			time.Sleep(time.Millisecond)
			p.Lock()
			continue
		}
		break
	}
	defer a.Unlock()
	defer b.Unlock()
	defer p.Unlock()

	if !sw.ExtensionExists(p.Context(), p.Extension(), 1) {
		return ErrExtensionNotFound
	}

	b.SetRedirectingParty(a.RedirectingParty())
	b.SetDialedParty(a.DialedParty())
	b.SetCallerParty(a.CallerParty())
	b.SetConnectedParty(a.ConnectedParty())
	b.SetLanguage(a.Language())
	b.SetAccountCode(a.AccountCode())
	b.SetMusicClass(a.MusicClass())
	b.SetLinkedID(a.LinkedID())

	for _, v := range a.Variables() {
		b.SetVariable(v.Name, v.Value)
	}
	b.InheritDatastores(a.Datastores())

	// CC-interfaces string: the destination with its option tail stripped.
	b.SetVariable("LOCAL_PEER", p.Extension()+"@"+p.Context())

	if a.AnsweredElsewhere() {
		b.SetAnsweredElsewhere(true)
	}

	if err := sw.StartPBX(b, p.Context(), p.Extension(), 1); err != nil {
		return err
	}
	p.SetFlag(FlagLaunchedPBX)

	return nil
}

// Hangup implements spec.md §4.5's direction-aware hangup teardown.
func Hangup(p *Pair, ast ChannelRef, sw Switch, reg *Registry) error {
	p.Lock()

	dir := p.DirectionOf(ast)
	switch dir {
	case DirectionNone:
		// Already detached: double-hangup is a no-op (spec.md §8 property 8).
		p.Unlock()
		return nil

	case DirectionB:
		if a := p.A(); a != nil {
			if status, ok := ast.GetVariable("DIALSTATUS"); ok {
				a.SetVariable("CHANLOCALSTATUS", status)
			}
		}
		refA, refB := p.ModuleRefs()
		if refB != nil {
			sw.ReleaseModuleRef(refB)
		}
		p.SetModuleRefs(refA, nil)
		p.SetB(nil)
		p.ClearFlag(FlagLaunchedPBX)

	case DirectionA:
		refA, refB := p.ModuleRefs()
		if refA != nil {
			sw.ReleaseModuleRef(refA)
		}
		p.SetModuleRefs(nil, refB)
		p.SetA(nil)
	}

	a, b := p.A(), p.B()
	if a == nil && b == nil {
		if p.HasFlag(FlagGlareDetect) {
			// chan_local.c's local_hangup calls AST_LIST_REMOVE unconditionally
			// before branching on glaredetect — only the free is deferred, not
			// the list removal. reg.Remove must happen here too, or the
			// forwarder's later p.Destroy leaves a destroyed pair reachable
			// through the registry (FindByName, ListChannels) until process
			// exit.
			p.SetFlag(FlagCancelQueue)
			p.Unlock()
			reg.Remove(p)
			return nil
		}
		p.Unlock()
		reg.Remove(p)
		p.Lock()
		p.Destroy(sw)
		p.Unlock()
		return nil
	}

	if dir == DirectionA && a == nil && b != nil {
		if !p.HasFlag(FlagLaunchedPBX) {
			// No dialplan owns B; the pair is the only owner, hang it up
			// directly since there is nowhere left to forward the hangup.
			cause := ast.HangupCause()
			p.Unlock()
			return b.QueueHangup(cause)
		}

		cause := ast.HangupCause()
		err := queueFrame(p, DirectionA, Frame{Type: FrameControl, Subclass: ControlHangup, Cause: cause}, sw, nil, false)
		if err != ErrPairDestroyed {
			p.Unlock()
		}
		if err != nil && err != ErrPairDestroyed {
			slog.Warn("[Local] hangup-frame forward failed", "pair_id", p.ID(), "error", err)
		}
		return nil
	}

	if dir == DirectionB && b == nil && a != nil {
		// The dialplan leg hung up; A is still live and must learn of it,
		// same as chan_local.c's local_hangup forwarding a HANGUP frame to
		// p->owner.
		cause := ast.HangupCause()
		err := queueFrame(p, DirectionB, Frame{Type: FrameControl, Subclass: ControlHangup, Cause: cause}, sw, nil, false)
		if err != ErrPairDestroyed {
			p.Unlock()
		}
		if err != nil && err != ErrPairDestroyed {
			slog.Warn("[Local] hangup-frame forward failed", "pair_id", p.ID(), "error", err)
		}
		return nil
	}

	p.Unlock()
	return nil
}
