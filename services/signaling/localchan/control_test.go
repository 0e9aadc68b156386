package localchan

import "testing"

func TestListChannelsFormatsEachPair(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	if _, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if _, err := Request("200@outbound", nil, Requestor{}, sw, reg, nil); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	summaries := ListChannels(reg)
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}

	seen := map[string]bool{}
	for _, s := range summaries {
		want := s.AName + " -- " + s.Extension + "@" + s.Context
		if s.Text != want {
			t.Errorf("Text = %q, want %q", s.Text, want)
		}
		seen[s.Extension+"@"+s.Context] = true
	}
	if !seen["100@inbound"] || !seen["200@outbound"] {
		t.Errorf("summaries missing expected destinations: %v", seen)
	}
}

func TestOptimizeAwayRequiresChannel(t *testing.T) {
	reg := NewRegistry()
	if err := OptimizeAway("", reg); err != ErrMissingChannelHeader {
		t.Errorf("OptimizeAway(\"\") error = %v, want ErrMissingChannelHeader", err)
	}
}

func TestOptimizeAwayUnknownChannel(t *testing.T) {
	reg := NewRegistry()
	if err := OptimizeAway("Local/does-not-exist;1", reg); err != ErrUnknownChannel {
		t.Errorf("OptimizeAway(unknown) error = %v, want ErrUnknownChannel", err)
	}
}

func TestOptimizeAwayClearsNoOptimizationFlag(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()
	a, err := Request("100@inbound/n", nil, Requestor{}, sw, reg, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, _ := reg.FindByName(a.Name())
	p.Lock()
	hadFlag := p.HasFlag(FlagNoOptimization)
	p.Unlock()
	if !hadFlag {
		t.Fatal("expected NO_OPTIMIZATION to be set from the n option")
	}

	if err := OptimizeAway(a.Name(), reg); err != nil {
		t.Fatalf("OptimizeAway returned error: %v", err)
	}

	p.Lock()
	stillSet := p.HasFlag(FlagNoOptimization)
	p.Unlock()
	if stillSet {
		t.Error("OptimizeAway should clear NO_OPTIMIZATION")
	}
}

func TestDeviceStateReflectsInUse(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()

	state, err := DeviceState("100@inbound", reg, sw)
	if err != nil {
		t.Fatalf("DeviceState returned error: %v", err)
	}
	if state != "NOT_IN_USE" {
		t.Errorf("DeviceState before allocation = %q, want NOT_IN_USE", state)
	}

	if _, err := Request("100@inbound", nil, Requestor{}, sw, reg, nil); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	state, err = DeviceState("100@inbound", reg, sw)
	if err != nil {
		t.Fatalf("DeviceState returned error: %v", err)
	}
	if state != "IN_USE" {
		t.Errorf("DeviceState after allocation = %q, want IN_USE", state)
	}
}

func TestDeviceStateInvalidWhenExtensionMissing(t *testing.T) {
	sw := newFakeSwitch()
	sw.extensions["100@inbound"] = false
	reg := NewRegistry()

	state, err := DeviceState("100@inbound", reg, sw)
	if err != nil {
		t.Fatalf("DeviceState returned error: %v", err)
	}
	if state != "INVALID" {
		t.Errorf("DeviceState = %q, want INVALID", state)
	}
}

func TestDeviceStateInvalidWhenContextMissing(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()

	state, err := DeviceState("100", reg, sw)
	if err != ErrInvalidDestination {
		t.Fatalf("DeviceState error = %v, want ErrInvalidDestination", err)
	}
	if state != "INVALID" {
		t.Errorf("DeviceState = %q, want INVALID", state)
	}
}
