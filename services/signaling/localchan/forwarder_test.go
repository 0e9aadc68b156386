package localchan

import "testing"

func TestQueueFrameDeliversToPartner(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateDown)
	b := NewLocalChannel("b", StateRing)
	p.SetA(a)
	p.SetB(b)
	sw := newFakeSwitch()

	p.Lock()
	err := queueFrame(p, DirectionA, Frame{Type: FrameVoice, Payload: []byte("hi")}, sw, a, true)
	p.Unlock()
	if err != nil {
		t.Fatalf("queueFrame returned error: %v", err)
	}

	if got := b.PendingFrames(); got != 1 {
		t.Fatalf("b.PendingFrames() = %d, want 1", got)
	}
	f, ok := b.DequeueFrame()
	if !ok || string(f.Payload) != "hi" {
		t.Errorf("dequeued frame = %+v, ok=%v, want payload %q", f, ok, "hi")
	}
}

func TestQueueFrameNoPartnerIsNoop(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateDown)
	p.SetA(a)
	sw := newFakeSwitch()

	p.Lock()
	err := queueFrame(p, DirectionA, Frame{Type: FrameVoice}, sw, a, true)
	p.Unlock()
	if err != nil {
		t.Fatalf("queueFrame with no partner returned error: %v", err)
	}
}

func TestQueueFrameDropsWhenBothHaveGenerators(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateDown)
	b := NewLocalChannel("b", StateRing)
	a.SetGenerator(true)
	b.SetGenerator(true)
	p.SetA(a)
	p.SetB(b)
	sw := newFakeSwitch()

	p.Lock()
	err := queueFrame(p, DirectionA, Frame{Type: FrameVoice}, sw, a, true)
	p.Unlock()
	if err != nil {
		t.Fatalf("queueFrame returned error: %v", err)
	}
	if got := b.PendingFrames(); got != 0 {
		t.Errorf("b.PendingFrames() = %d, want 0 (frame should have been dropped)", got)
	}
}

func TestQueueFrameForwardsHangupEvenWithBothGenerators(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateDown)
	b := NewLocalChannel("b", StateRing)
	a.SetGenerator(true)
	b.SetGenerator(true)
	p.SetA(a)
	p.SetB(b)
	sw := newFakeSwitch()

	// selfHandle is nil on the hangup-forward paths in lifecycle.go; the
	// both-generators drop must not apply there, or a hangup control frame
	// silently vanishes even though both endpoints have generators attached
	// for an unrelated reason.
	p.Lock()
	err := queueFrame(p, DirectionA, Frame{Type: FrameControl, Subclass: ControlHangup}, sw, nil, false)
	p.Unlock()
	if err != nil {
		t.Fatalf("queueFrame returned error: %v", err)
	}
	if got := b.PendingFrames(); got != 1 {
		t.Fatalf("b.PendingFrames() = %d, want 1: hangup frame must not be dropped when selfHandle is nil", got)
	}
}

func TestQueueFrameRingingSetsPartnerState(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateDown)
	b := NewLocalChannel("b", StateRing)
	p.SetA(a)
	p.SetB(b)
	sw := newFakeSwitch()

	p.Lock()
	err := queueFrame(p, DirectionB, Frame{Type: FrameControl, Subclass: ControlRinging}, sw, b, true)
	p.Unlock()
	if err != nil {
		t.Fatalf("queueFrame returned error: %v", err)
	}
	if got := a.State(); got != StateRinging {
		t.Errorf("a.State() = %v, want StateRinging", got)
	}
}

func TestQueueFrameCancelQueueDestroysPairAndUnlocksPartner(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateDown)
	b := NewLocalChannel("b", StateRing)
	p.SetA(a)
	p.SetB(b)
	p.SetFlag(FlagCancelQueue)
	sw := newFakeSwitch()
	sw.refsAcquired = 0

	p.Lock()
	err := queueFrame(p, DirectionA, Frame{Type: FrameVoice}, sw, a, true)
	if err != ErrPairDestroyed {
		t.Fatalf("queueFrame error = %v, want ErrPairDestroyed", err)
	}
	if !p.Destroyed() {
		t.Error("pair should be destroyed after losing the glare race")
	}

	// queueFrame already released both pair.mu and b's lock on this path;
	// the partner lock must be free for any other goroutine to proceed.
	if !b.TryLock() {
		t.Error("b should not still be locked after the CancelQueue path")
	} else {
		b.Unlock()
	}
}
