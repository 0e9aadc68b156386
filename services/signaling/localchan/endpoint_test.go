package localchan

import "testing"

func newBoundPair(t *testing.T) (p *Pair, a, b *LocalChannel, sw *fakeSwitch) {
	t.Helper()
	p, _ = NewPair("100@inbound", nil, nil)
	a = NewLocalChannel("a", StateDown)
	b = NewLocalChannel("b", StateRing)
	p.SetA(a)
	p.SetB(b)
	sw = newFakeSwitch()
	return
}

func TestAdapterAnswerOnAFails(t *testing.T) {
	p, a, _, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)

	if err := ad.Answer(a); err != ErrAnsweredOnA {
		t.Errorf("Answer(A) error = %v, want ErrAnsweredOnA", err)
	}
}

func TestAdapterAnswerOnBForwardsToA(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)

	if err := ad.Answer(b); err != nil {
		t.Fatalf("Answer(B) returned error: %v", err)
	}
	if a.PendingFrames() != 1 {
		t.Fatalf("a.PendingFrames() = %d, want 1", a.PendingFrames())
	}
	f, _ := a.DequeueFrame()
	if f.Type != FrameControl || f.Subclass != ControlAnswer {
		t.Errorf("forwarded frame = %+v, want a control-answer frame", f)
	}
}

func TestAdapterWriteForwardsToPartner(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)

	if err := ad.Write(a, Frame{Type: FrameVoice, Payload: []byte("x")}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if b.PendingFrames() != 1 {
		t.Errorf("b.PendingFrames() = %d, want 1", b.PendingFrames())
	}
}

func TestAdapterWriteDroppedAfterMasquerade(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	p.SetFlag(FlagAlreadyMasqed)
	ad := NewAdapter(p, sw)

	if err := ad.Write(a, Frame{Type: FrameVoice}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if b.PendingFrames() != 0 {
		t.Errorf("b.PendingFrames() = %d, want 0 once already masqueraded", b.PendingFrames())
	}
}

func TestAdapterIndicateHoldWithoutMOHPassthruIsSwallowed(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)

	if err := ad.Indicate(a, ConditionHold, nil); err != nil {
		t.Fatalf("Indicate(Hold) returned error: %v", err)
	}
	if b.PendingFrames() != 0 {
		t.Errorf("b.PendingFrames() = %d, want 0 (hold stays local without MOH_PASSTHRU)", b.PendingFrames())
	}
}

func TestAdapterIndicateHoldWithMOHPassthruForwards(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	p.SetFlag(FlagMOHPassthru)
	ad := NewAdapter(p, sw)

	if err := ad.Indicate(a, ConditionHold, nil); err != nil {
		t.Fatalf("Indicate(Hold) returned error: %v", err)
	}
	if b.PendingFrames() != 1 {
		t.Fatalf("b.PendingFrames() = %d, want 1", b.PendingFrames())
	}
	f, _ := b.DequeueFrame()
	if f.Subclass != ControlHold {
		t.Errorf("forwarded frame subclass = %v, want ControlHold", f.Subclass)
	}
}

func TestAdapterIndicateConnectedLineCopiesToPartner(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	b.SetConnectedParty(PartyInfo{Number: "777", NumberValid: true})
	ad := NewAdapter(p, sw)

	if err := ad.Indicate(b, ConditionConnectedLine, nil); err != nil {
		t.Fatalf("Indicate(ConnectedLine) returned error: %v", err)
	}
	if a.CallerParty().Number != "777" {
		t.Errorf("a.CallerParty().Number = %q, want 777", a.CallerParty().Number)
	}
	if a.PendingFrames() != 1 {
		t.Errorf("a.PendingFrames() = %d, want 1", a.PendingFrames())
	}
}

func TestAdapterFixupReplacesMatchingSlot(t *testing.T) {
	p, a, _, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)
	replacement := NewLocalChannel("a2", StateUp)

	if err := ad.Fixup(a, replacement); err != nil {
		t.Fatalf("Fixup returned error: %v", err)
	}
	p.Lock()
	got := p.A()
	p.Unlock()
	if got != replacement {
		t.Errorf("pair.A() = %v, want replacement", got)
	}
}

func TestAdapterFixupNoMatch(t *testing.T) {
	p, _, _, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)
	stranger := NewLocalChannel("stranger", StateUp)

	if err := ad.Fixup(stranger, NewLocalChannel("x", StateUp)); err != ErrFixupNoMatch {
		t.Errorf("Fixup(stranger) error = %v, want ErrFixupNoMatch", err)
	}
}

func TestAdapterBridgedChannelWithoutBridgeReportReturnsBridgeAsIs(t *testing.T) {
	p, a, _, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)
	bridge := NewLocalChannel("bridge", StateUp)

	if got := ad.BridgedChannel(a, bridge); got != bridge {
		t.Errorf("BridgedChannel() = %v, want bridge unchanged", got)
	}
}

func TestAdapterBridgedChannelWithBridgeReportReturnsFarPeer(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	p.SetFlag(FlagBridgeReport)
	ad := NewAdapter(p, sw)

	farPeer := NewLocalChannel("far", StateUp)
	b.BridgeTo(farPeer)
	bridge := NewLocalChannel("bridge", StateUp)

	if got := ad.BridgedChannel(a, bridge); got != farPeer {
		t.Errorf("BridgedChannel() = %v, want farPeer", got)
	}
}

func TestAdapterQueryOptionUnsupported(t *testing.T) {
	p, a, _, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)

	if _, err := ad.QueryOption(a, QueryOptionUnsupported); err != ErrQueryOptionUnsupported {
		t.Errorf("QueryOption(unsupported) error = %v, want ErrQueryOptionUnsupported", err)
	}
}

func TestAdapterQueryOptionT38SeesThroughBridge(t *testing.T) {
	p, a, b, sw := newBoundPair(t)
	ad := NewAdapter(p, sw)

	farPeer := NewLocalChannel("far", StateUp)
	b.BridgeTo(farPeer)

	if _, err := ad.QueryOption(a, QueryOptionT38State); err != ErrQueryOptionUnsupported {
		t.Errorf("QueryOption(T38) error = %v, want ErrQueryOptionUnsupported (LocalChannel never supports it)", err)
	}
}

func TestDeviceStateFunctionViaAdapterPackage(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	state, err := DeviceState("100@inbound", reg, sw)
	if err != nil {
		t.Fatalf("DeviceState returned error: %v", err)
	}
	if state != "NOT_IN_USE" {
		t.Errorf("DeviceState = %q, want NOT_IN_USE", state)
	}
}
