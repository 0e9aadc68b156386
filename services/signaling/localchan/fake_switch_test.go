package localchan

import "sync"

// fakeSwitch is a minimal, deterministic Switch used across this package's
// tests: no dialplan, no real masquerade semantics beyond bridge-pointer
// swapping, no goroutines. Tests that need StartPBX to actually run an
// action set startPBX themselves.
type fakeSwitch struct {
	mu sync.Mutex

	extensions map[string]bool
	startPBX   func(ch ChannelRef, context, extension string, priority int) error
	masquerade func(into, from ChannelRef) error

	refsAcquired int
	refsReleased int
}

func newFakeSwitch() *fakeSwitch {
	return &fakeSwitch{extensions: make(map[string]bool)}
}

func (s *fakeSwitch) NewChannel(name string, state ChannelState) (ChannelRef, error) {
	return NewLocalChannel(name, state), nil
}

func (s *fakeSwitch) ExtensionExists(context, extension string, priority int) bool {
	if s.extensions == nil {
		return true
	}
	v, ok := s.extensions[extension+"@"+context]
	if !ok {
		return true
	}
	return v
}

func (s *fakeSwitch) StartPBX(ch ChannelRef, context, extension string, priority int) error {
	if s.startPBX != nil {
		return s.startPBX(ch, context, extension, priority)
	}
	return nil
}

func (s *fakeSwitch) BestCodec(requested []string) string {
	if len(requested) == 0 {
		return ""
	}
	return requested[0]
}

func (s *fakeSwitch) Masquerade(into, from ChannelRef) error {
	if s.masquerade != nil {
		return s.masquerade(into, from)
	}
	if oldPartner := from.BridgePartner(); oldPartner != nil {
		oldPartner.BridgeTo(nil)
	}
	into.BridgeTo(from)
	from.BridgeTo(into)
	return nil
}

func (s *fakeSwitch) AcquireModuleRef() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refsAcquired++
	return new(struct{})
}

func (s *fakeSwitch) ReleaseModuleRef(ref any) {
	if ref == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refsReleased++
}

func (s *fakeSwitch) DeadlockAvoidance(self ChannelRef) {
	self.Unlock()
	self.Lock()
}
