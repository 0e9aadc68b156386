package localchan

import (
	"strings"
	"testing"

	"github.com/sebas/swproxy/services/signaling/events"
)

func TestParseDestination(t *testing.T) {
	cases := []struct {
		name            string
		dest            string
		wantExten       string
		wantContext     string
		wantFlags       Flags
		wantJB          bool
		wantWarn        bool
		wantHadContext  bool
	}{
		{
			name:           "bare extension defaults to default context",
			dest:           "100",
			wantExten:      "100",
			wantContext:    "default",
			wantHadContext: false,
		},
		{
			name:           "extension at context",
			dest:           "100@inbound",
			wantExten:      "100",
			wantContext:    "inbound",
			wantHadContext: true,
		},
		{
			name:           "options without context",
			dest:           "100/n",
			wantExten:      "100",
			wantContext:    "default",
			wantFlags:      FlagNoOptimization,
			wantHadContext: false,
		},
		{
			name:           "context before options",
			dest:           "100@inbound/n",
			wantExten:      "100",
			wantContext:    "inbound",
			wantFlags:      FlagNoOptimization,
			wantHadContext: true,
		},
		{
			name:           "at-sign after slash is part of the option tail, not a context separator",
			dest:           "100/n@inbound",
			wantExten:      "100",
			wantContext:    "default",
			wantFlags:      FlagNoOptimization,
			wantHadContext: false,
		},
		{
			name:           "j without n is ignored with a warning",
			dest:           "100@inbound/j",
			wantExten:      "100",
			wantContext:    "inbound",
			wantJB:         false,
			wantWarn:       true,
			wantHadContext: true,
		},
		{
			name:           "j with n enables the jitter buffer",
			dest:           "100@inbound/nj",
			wantExten:      "100",
			wantContext:    "inbound",
			wantFlags:      FlagNoOptimization,
			wantJB:         true,
			wantHadContext: true,
		},
		{
			name:           "b and m set bridge-report and moh-passthru",
			dest:           "100@inbound/bm",
			wantExten:      "100",
			wantContext:    "inbound",
			wantFlags:      FlagBridgeReport | FlagMOHPassthru,
			wantHadContext: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exten, context, flags, jb, hadContext, warn := parseDestination(tc.dest)
			if exten != tc.wantExten {
				t.Errorf("exten = %q, want %q", exten, tc.wantExten)
			}
			if context != tc.wantContext {
				t.Errorf("context = %q, want %q", context, tc.wantContext)
			}
			if flags != tc.wantFlags {
				t.Errorf("flags = %v, want %v", flags, tc.wantFlags)
			}
			if jb != tc.wantJB {
				t.Errorf("jbEnabled = %v, want %v", jb, tc.wantJB)
			}
			if hadContext != tc.wantHadContext {
				t.Errorf("hadContext = %v, want %v", hadContext, tc.wantHadContext)
			}
			if (warn != nil) != tc.wantWarn {
				t.Errorf("warn = %v, want non-nil = %v", warn, tc.wantWarn)
			}
		})
	}
}

func TestPairStringRoundTrips(t *testing.T) {
	dests := []string{
		"100@inbound",
		"100@inbound/n",
		"100@inbound/nj",
		"100@inbound/bm",
		"100@inbound/njbm",
	}

	for _, dest := range dests {
		t.Run(dest, func(t *testing.T) {
			p, _ := NewPair(dest, nil, nil)
			s := p.String()

			p2, warn := NewPair(s, nil, nil)
			if warn != nil {
				t.Fatalf("re-parsing emitted string %q produced a warning: %s", s, warn.String())
			}

			if p.Extension() != p2.Extension() || p.Context() != p2.Context() || p.Flags() != p2.Flags() ||
				p.JitterBufferConfig().Enabled != p2.JitterBufferConfig().Enabled {
				t.Errorf("round trip mismatch: %q -> %q -> (exten=%q ctx=%q flags=%v jb=%v)",
					dest, s, p2.Extension(), p2.Context(), p2.Flags(), p2.JitterBufferConfig().Enabled)
			}
		})
	}
}

func TestPairStringOmitsEmptyOptionTail(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	if s := p.String(); strings.Contains(s, "/") {
		t.Errorf("String() = %q, want no option tail for a destination with no options", s)
	}
}

func TestPairDirectionOfAndPartnerOf(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	a := NewLocalChannel("Local/100@inbound-0001;1", StateDown)
	b := NewLocalChannel("Local/100@inbound-0001;2", StateRing)
	p.SetA(a)
	p.SetB(b)

	if dir := p.DirectionOf(a); dir != DirectionA {
		t.Errorf("DirectionOf(a) = %v, want DirectionA", dir)
	}
	if dir := p.DirectionOf(b); dir != DirectionB {
		t.Errorf("DirectionOf(b) = %v, want DirectionB", dir)
	}
	if dir := p.DirectionOf(NewLocalChannel("stranger", StateDown)); dir != DirectionNone {
		t.Errorf("DirectionOf(stranger) = %v, want DirectionNone", dir)
	}

	if partner := p.PartnerOf(DirectionA); partner != b {
		t.Errorf("PartnerOf(A) = %v, want b", partner)
	}
	if partner := p.PartnerOf(DirectionB); partner != a {
		t.Errorf("PartnerOf(B) = %v, want a", partner)
	}
}

func TestPairDestroyIsIdempotent(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, events.NewNoopPublisher())
	sw := newFakeSwitch()
	p.SetModuleRefs(sw.AcquireModuleRef(), sw.AcquireModuleRef())

	p.Destroy(sw)
	p.Destroy(sw)

	if !p.Destroyed() {
		t.Fatal("Destroyed() = false after Destroy")
	}
	if sw.refsReleased != 2 {
		t.Errorf("refsReleased = %d, want 2 (a second Destroy must not double-release)", sw.refsReleased)
	}
}

func TestFlagsHasSetClear(t *testing.T) {
	p, _ := NewPair("100@inbound", nil, nil)
	if p.HasFlag(FlagGlareDetect) {
		t.Fatal("fresh pair should not have GlareDetect set")
	}
	p.SetFlag(FlagGlareDetect)
	if !p.HasFlag(FlagGlareDetect) {
		t.Fatal("SetFlag did not set GlareDetect")
	}
	p.ClearFlag(FlagGlareDetect)
	if p.HasFlag(FlagGlareDetect) {
		t.Fatal("ClearFlag did not clear GlareDetect")
	}
}
