package localchan

import (
	"testing"
	"time"

	"github.com/sebas/swproxy/services/signaling/events"
)

func TestRequestAllocatesBothEndpointsAndRegisters(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()

	a, err := Request("100@inbound", []string{"ulaw"}, Requestor{Name: "test"}, sw, reg, events.NewNoopPublisher())
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if a == nil {
		t.Fatal("Request returned a nil channel")
	}
	if reg.Len() != 1 {
		t.Fatalf("reg.Len() = %d, want 1", reg.Len())
	}
	if sw.refsAcquired != 2 {
		t.Errorf("refsAcquired = %d, want 2", sw.refsAcquired)
	}

	p, ok := reg.FindByName(a.Name())
	if !ok {
		t.Fatal("FindByName could not find the allocated A endpoint")
	}
	p.Lock()
	if p.A() != a {
		t.Error("pair.A() does not match the returned channel")
	}
	if p.B() == nil {
		t.Error("pair.B() is nil after Request")
	}
	p.Unlock()
}

func TestCallOnBFails(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, _ := reg.FindByName(a.Name())
	p.Lock()
	b := p.B()
	p.Unlock()

	if err := Call(p, b, time.Second, sw); err != ErrCallOnB {
		t.Errorf("Call(B) error = %v, want ErrCallOnB", err)
	}
}

func TestCallStartsDialplanAndCopiesPartyInfo(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	a.SetCallerParty(PartyInfo{Number: "555", NumberValid: true})
	a.SetVariable("X_TEST", "1")

	var startedCtx, startedExt string
	sw.startPBX = func(ch ChannelRef, context, extension string, priority int) error {
		startedCtx, startedExt = context, extension
		return nil
	}

	p, _ := reg.FindByName(a.Name())
	if err := Call(p, a, time.Second, sw); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}

	if startedCtx != "inbound" || startedExt != "100" {
		t.Errorf("StartPBX called with context=%q extension=%q, want inbound/100", startedCtx, startedExt)
	}

	p.Lock()
	b := p.B()
	launched := p.HasFlag(FlagLaunchedPBX)
	p.Unlock()

	if !launched {
		t.Error("FlagLaunchedPBX not set after a successful Call")
	}
	if b.CallerParty().Number != "555" {
		t.Errorf("b.CallerParty().Number = %q, want 555", b.CallerParty().Number)
	}
	if v, ok := b.GetVariable("X_TEST"); !ok || v != "1" {
		t.Errorf("b variable X_TEST = %q, ok=%v, want 1/true", v, ok)
	}
}

func TestCallFailsWhenExtensionMissing(t *testing.T) {
	sw := newFakeSwitch()
	sw.extensions["100@inbound"] = false
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, _ := reg.FindByName(a.Name())

	if err := Call(p, a, time.Second, sw); err != ErrExtensionNotFound {
		t.Errorf("Call error = %v, want ErrExtensionNotFound", err)
	}
}

func TestHangupOnDoubleDetachIsNoop(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	stranger := NewLocalChannel("stranger", StateDown)
	p, _ := reg.FindByName(a.Name())
	if err := Hangup(p, stranger, sw, reg); err != nil {
		t.Errorf("Hangup(stranger) error = %v, want nil (already detached is a no-op)", err)
	}
}

func TestHangupBSideReleasesModuleRefAndClearsLaunchedPBX(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, _ := reg.FindByName(a.Name())
	if err := Call(p, a, time.Second, sw); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}

	p.Lock()
	b := p.B()
	p.Unlock()
	b.SetVariable("DIALSTATUS", "ANSWER")

	if err := Hangup(p, b, sw, reg); err != nil {
		t.Fatalf("Hangup(B) returned error: %v", err)
	}

	p.Lock()
	gone := p.B() == nil
	launched := p.HasFlag(FlagLaunchedPBX)
	p.Unlock()
	if !gone {
		t.Error("pair.B() should be nil after hanging up B")
	}
	if launched {
		t.Error("FlagLaunchedPBX should be cleared after hanging up B")
	}
	if got, ok := a.GetVariable("CHANLOCALSTATUS"); !ok || got != "ANSWER" {
		t.Errorf("a CHANLOCALSTATUS = %q, ok=%v, want ANSWER", got, ok)
	}
	if sw.refsReleased != 1 {
		t.Errorf("refsReleased = %d, want 1 after one side hangs up", sw.refsReleased)
	}
	if got := a.PendingFrames(); got != 1 {
		t.Fatalf("a.PendingFrames() = %d, want 1 (A must learn B hung up)", got)
	}
	f, _ := a.(*LocalChannel).DequeueFrame()
	if f.Type != FrameControl || f.Subclass != ControlHangup {
		t.Errorf("forwarded frame = %+v, want a control-hangup frame", f)
	}
}

func TestHangupBothSidesDestroysAndRemovesFromRegistry(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, _ := reg.FindByName(a.Name())
	p.Lock()
	b := p.B()
	p.Unlock()

	if err := Hangup(p, a, sw, reg); err != nil {
		t.Fatalf("Hangup(A) returned error: %v", err)
	}
	if err := Hangup(p, b, sw, reg); err != nil {
		t.Fatalf("Hangup(B) returned error: %v", err)
	}

	if !p.Destroyed() {
		t.Error("pair should be destroyed once both sides have hung up")
	}
	if _, ok := reg.Lookup(p.ID()); ok {
		t.Error("pair should be removed from the registry once destroyed")
	}
	if sw.refsReleased != 2 {
		t.Errorf("refsReleased = %d, want 2", sw.refsReleased)
	}
}

func TestHangupADirectlyRetiresBWhenNoDialplanLaunched(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, _ := reg.FindByName(a.Name())
	p.Lock()
	b := p.B()
	p.Unlock()

	if err := Hangup(p, a, sw, reg); err != nil {
		t.Fatalf("Hangup(A) returned error: %v", err)
	}

	if !b.IsHungUp() {
		t.Error("B should be hung up directly when A detaches and no dialplan was launched")
	}
}
