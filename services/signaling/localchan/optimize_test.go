package localchan

import "testing"

func setupSplicePair(t *testing.T) (p *Pair, a, b, bBridge *LocalChannel, sw *fakeSwitch) {
	t.Helper()
	p, _ = NewPair("100@inbound", nil, nil)
	a = NewLocalChannel("a", StateUp)
	b = NewLocalChannel("b", StateUp)
	bBridge = NewLocalChannel("bBridge", StateUp)

	b.BridgeTo(bBridge)
	bBridge.BridgeTo(b)

	p.SetA(a)
	p.SetB(b)
	sw = newFakeSwitch()
	return
}

func TestTryOptimizeAwaySplicesWhenEligible(t *testing.T) {
	p, a, b, bBridge, sw := setupSplicePair(t)

	a.SetMonitor("rec")
	a.SetCallerParty(PartyInfo{Number: "555", NumberValid: true})

	p.Lock()
	tryOptimizeAway(p, sw)
	p.Unlock()

	if !p.HasFlag(FlagAlreadyMasqed) {
		t.Fatal("FlagAlreadyMasqed not set after a successful splice")
	}
	if a.BridgePartner() != bBridge || bBridge.BridgePartner() != a {
		t.Errorf("a and bBridge should be bridged directly to each other after the splice, got a->%v bBridge->%v",
			a.BridgePartner(), bBridge.BridgePartner())
	}
	if b.BridgePartner() != nil {
		t.Errorf("b should be orphaned once A takes its place in the bridge, got %v", b.BridgePartner())
	}
	if bBridge.Monitor() != "rec" {
		t.Errorf("bBridge.Monitor() = %v, want the monitor swapped from a", bBridge.Monitor())
	}
	if bBridge.CallerParty().Number != "555" {
		t.Errorf("bBridge.CallerParty().Number = %q, want 555", bBridge.CallerParty().Number)
	}
}

func TestTryOptimizeAwaySkipsWhenAlreadyMasqed(t *testing.T) {
	p, a, _, bBridge, sw := setupSplicePair(t)
	p.SetFlag(FlagAlreadyMasqed)

	p.Lock()
	tryOptimizeAway(p, sw)
	p.Unlock()

	if a.BridgePartner() == bBridge {
		t.Error("splice should not run once AlreadyMasqed is set")
	}
}

func TestTryOptimizeAwaySkipsWhenNoOptimizationFlagSet(t *testing.T) {
	p, a, _, bBridge, sw := setupSplicePair(t)
	p.SetFlag(FlagNoOptimization)

	p.Lock()
	tryOptimizeAway(p, sw)
	p.Unlock()

	if p.HasFlag(FlagAlreadyMasqed) {
		t.Error("NO_OPTIMIZATION must prevent the splice entirely")
	}
	_ = a
	_ = bBridge
}

func TestTryOptimizeAwaySkipsWhenAHasPendingFrames(t *testing.T) {
	p, a, _, _, sw := setupSplicePair(t)
	a.QueueFrame(Frame{Type: FrameVoice})

	p.Lock()
	tryOptimizeAway(p, sw)
	p.Unlock()

	if p.HasFlag(FlagAlreadyMasqed) {
		t.Error("splice should not run while A has frames still pending delivery")
	}
}

func TestTryOptimizeAwaySkipsWhenBHasNoBridgePartner(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("a", StateUp)
	b := NewLocalChannel("b", StateUp)
	p.SetA(a)
	p.SetB(b)
	sw := newFakeSwitch()

	p.Lock()
	tryOptimizeAway(p, sw)
	p.Unlock()

	if p.HasFlag(FlagAlreadyMasqed) {
		t.Error("splice requires B to have a concrete bridge partner")
	}
}

func TestTryOptimizeAwaySkipsWhenBridgedToUnresolvedNestedProxy(t *testing.T) {
	// p1's B is bridged to a2, which is itself p2's A endpoint — an
	// intermediate Local proxy, not a real far peer. p2's own B side has
	// nothing bridged yet, so the chain cannot be resolved at all.
	p1, a1, b1, _, sw := setupSplicePair(t)
	b1.BridgeTo(nil) // undo setupSplicePair's default b<->bBridge wiring

	p2, _ := NewPair("200@inbound", nil, nil)
	a2 := NewLocalChannel("a2", StateUp)
	b2 := NewLocalChannel("b2", StateUp)
	p2.SetA(a2)
	p2.SetB(b2)

	b1.BridgeTo(a2)
	a2.BridgeTo(b1)

	p1.Lock()
	tryOptimizeAway(p1, sw)
	p1.Unlock()

	if p1.HasFlag(FlagAlreadyMasqed) {
		t.Error("p1 must not optimize away while bridged to p2's still-unresolved A endpoint")
	}
	if a1.BridgePartner() != nil {
		t.Error("a1 should remain unbridged; the splice must not have run")
	}
}

func TestTryOptimizeAwayResolvesPastAlreadyMasquedNestedPairConservatively(t *testing.T) {
	// Same nested shape, but p2 has already spliced itself away. Per
	// resolveFarPeer's documented contract this is still treated as
	// unresolved (conservative), not as a green light to splice p1 onto a2.
	p1, a1, b1, _, sw := setupSplicePair(t)
	b1.BridgeTo(nil)

	p2, _ := NewPair("200@inbound", nil, nil)
	a2 := NewLocalChannel("a2", StateUp)
	b2 := NewLocalChannel("b2", StateUp)
	p2.SetA(a2)
	p2.SetB(b2)
	p2.SetFlag(FlagAlreadyMasqed)

	b1.BridgeTo(a2)
	a2.BridgeTo(b1)

	p1.Lock()
	tryOptimizeAway(p1, sw)
	p1.Unlock()

	if p1.HasFlag(FlagAlreadyMasqed) {
		t.Error("p1 must not optimize away onto an already-masqueraded nested pair's endpoint")
	}
	if a1.BridgePartner() != nil {
		t.Error("a1 should remain unbridged; the splice must not have run")
	}
}

func TestTryOptimizeAwaySkipsWhenMasqueradeFails(t *testing.T) {
	p, _, _, _, sw := setupSplicePair(t)
	sw.masquerade = func(into, from ChannelRef) error {
		return ErrPairDestroyed
	}

	p.Lock()
	tryOptimizeAway(p, sw)
	p.Unlock()

	if p.HasFlag(FlagAlreadyMasqed) {
		t.Error("FlagAlreadyMasqed must not be set when Masquerade fails")
	}
}
