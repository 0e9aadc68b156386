package localchan

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sebas/swproxy/services/signaling/events"
)

// Flags is the bit set drawn from spec.md §3's flag vocabulary.
type Flags uint8

const (
	FlagGlareDetect Flags = 1 << iota
	FlagCancelQueue
	FlagAlreadyMasqed
	FlagLaunchedPBX
	FlagNoOptimization
	FlagBridgeReport
	FlagMOHPassthru
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Direction identifies which slot of a pair an endpoint occupies.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionA
	DirectionB
)

func (d Direction) String() string {
	switch d {
	case DirectionA:
		return "A"
	case DirectionB:
		return "B"
	default:
		return "None"
	}
}

// Pair is the shared private record for one Local Proxy Channel, spec.md
// §3's "Pair private state (owned by the core)". Its mutex is a plain,
// non-reentrant sync.Mutex: every field below is only ever written, never
// read through a fast RLock path, so an RWMutex would buy nothing.
type Pair struct {
	mu sync.Mutex

	id string

	a ChannelRef
	b ChannelRef

	flags Flags

	context   string
	extension string

	reqFormat []string
	jitterBuf JitterBufferConfig

	moduleRefA any
	moduleRefB any

	destroyed bool

	pub events.Publisher
}

// NewPair parses dest and constructs an unregistered Pair. Allocation of
// the two ChannelRefs and registry insertion happen in Request; NewPair
// only builds the private record spec.md §4.1 calls "new".
func NewPair(dest string, reqFormat []string, pub events.Publisher) (*Pair, *OptionParseWarning) {
	extenStr, contextStr, flags, jbEnabled, _, warn := parseDestination(dest)

	if pub == nil {
		pub = events.NewNoopPublisher()
	}

	return &Pair{
		id:        "local-" + uuid.NewString(),
		flags:     flags,
		context:   contextStr,
		extension: extenStr,
		reqFormat: reqFormat,
		jitterBuf: JitterBufferConfig{Enabled: jbEnabled},
		pub:       pub,
	}, warn
}

// publish emits a lifecycle event for this pair, swallowing transport
// errors: event delivery is best-effort observability, never a precondition
// for the call to proceed (see SPEC_FULL.md's ambient-stack note on
// events.Publisher).
func (p *Pair) publish(eventType PairEventType) {
	p.pub.PublishAsync(NewPairEvent(p, eventType))
}

// parseDestination implements spec.md §4.1's grammar exactly as
// chan_local.c's local_alloc does: the '/' separator is located and the
// options tail stripped from the working string *before* '@' is sought, so
// context is only recoverable when '@' precedes '/' in the original string
// (see DESIGN.md's Open Question resolution and spec.md §9).
func parseDestination(dest string) (exten, context string, flags Flags, jbEnabled, hadContext bool, warn *OptionParseWarning) {
	exten = dest

	if idx := strings.IndexByte(exten, '/'); idx >= 0 {
		opts := exten[idx+1:]
		exten = exten[:idx]

		if strings.ContainsRune(opts, 'n') {
			flags |= FlagNoOptimization
		}
		if strings.ContainsRune(opts, 'j') {
			if flags.has(FlagNoOptimization) {
				jbEnabled = true
			} else {
				warn = &OptionParseWarning{
					Destination: dest,
					Reason:      "'j' option requires 'n' to enable chan_local's jitter buffer; ignoring",
				}
			}
		}
		if strings.ContainsRune(opts, 'b') {
			flags |= FlagBridgeReport
		}
		if strings.ContainsRune(opts, 'm') {
			flags |= FlagMOHPassthru
		}
	}

	if idx := strings.IndexByte(exten, '@'); idx >= 0 {
		context = exten[idx+1:]
		exten = exten[:idx]
		hadContext = true
	}
	if context == "" {
		context = "default"
	}

	return exten, context, flags, jbEnabled, hadContext, warn
}

// String re-emits the destination in EXT@CTX[/OPTS] order, the ordering
// that actually round-trips through parseDestination (see spec.md §8
// property 7 and DESIGN.md).
func (p *Pair) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stringLocked()
}

func (p *Pair) stringLocked() string {
	var opts strings.Builder
	if p.flags.has(FlagNoOptimization) {
		opts.WriteByte('n')
	}
	if p.jitterBuf.Enabled {
		opts.WriteByte('j')
	}
	if p.flags.has(FlagBridgeReport) {
		opts.WriteByte('b')
	}
	if p.flags.has(FlagMOHPassthru) {
		opts.WriteByte('m')
	}

	s := fmt.Sprintf("%s@%s", p.extension, p.context)
	if opts.Len() > 0 {
		s += "/" + opts.String()
	}
	return s
}

// ID returns the registry key / event-subject identity for this pair.
func (p *Pair) ID() string { return p.id }

func (p *Pair) Lock()   { p.mu.Lock() }
func (p *Pair) Unlock() { p.mu.Unlock() }

// TryLock attempts to acquire the pair mutex without blocking.
func (p *Pair) TryLock() bool { return p.mu.TryLock() }

// Flags returns the current flag bitmask. Caller must hold the pair mutex.
func (p *Pair) Flags() Flags { return p.flags }

func (p *Pair) SetFlag(f Flags)   { p.flags |= f }
func (p *Pair) ClearFlag(f Flags) { p.flags &^= f }
func (p *Pair) HasFlag(f Flags) bool { return p.flags.has(f) }

// A and B return the current endpoint handles. Caller must hold the pair
// mutex, or accept that the result may be stale the instant it returns.
func (p *Pair) A() ChannelRef { return p.a }
func (p *Pair) B() ChannelRef { return p.b }

// SetA and SetB bind an endpoint slot. Caller must hold the pair mutex.
// Tags a concrete *LocalChannel with this pair as its weak back-pointer
// (spec.md §9), so Optimize-Away can later recognize it as a pair endpoint
// rather than a real far peer.
func (p *Pair) SetA(ch ChannelRef) {
	p.a = ch
	if lc, ok := ch.(*LocalChannel); ok {
		lc.setOwningPair(p)
	}
}

func (p *Pair) SetB(ch ChannelRef) {
	p.b = ch
	if lc, ok := ch.(*LocalChannel); ok {
		lc.setOwningPair(p)
	}
}

// Context and Extension return the dialplan target parsed at allocation.
func (p *Pair) Context() string   { return p.context }
func (p *Pair) Extension() string { return p.extension }

// ReqFormat returns the requested media format set from allocation.
func (p *Pair) ReqFormat() []string { return p.reqFormat }

// JitterBufferConfig returns the jitter-buffer configuration from allocation.
func (p *Pair) JitterBufferConfig() JitterBufferConfig { return p.jitterBuf }

// DirectionOf reports whether handle occupies the A or B slot, or
// DirectionNone if it occupies neither. Caller must hold the pair mutex.
func (p *Pair) DirectionOf(handle ChannelRef) Direction {
	switch {
	case handle != nil && p.a == handle:
		return DirectionA
	case handle != nil && p.b == handle:
		return DirectionB
	default:
		return DirectionNone
	}
}

// PartnerOf returns the endpoint opposite direction, or nil if that slot is
// empty. Caller must hold the pair mutex.
func (p *Pair) PartnerOf(direction Direction) ChannelRef {
	switch direction {
	case DirectionA:
		return p.b
	case DirectionB:
		return p.a
	default:
		return nil
	}
}

// ModuleRefs returns the two module-reference tokens acquired at allocation
// (spec.md §3 invariant 6: released exactly as many times as acquired).
func (p *Pair) ModuleRefs() (a, b any) { return p.moduleRefA, p.moduleRefB }
func (p *Pair) SetModuleRefs(a, b any) { p.moduleRefA, p.moduleRefB = a, b }

// Destroyed reports whether Destroy has already run.
func (p *Pair) Destroyed() bool { return p.destroyed }

// Destroy tears the pair down. Caller must hold the pair mutex and must not
// use the pair afterward. Safe to call more than once — subsequent calls
// are no-ops, enforcing spec.md §3 invariant 5 ("destroyed exactly once").
func (p *Pair) Destroy(sw Switch) {
	if p.destroyed {
		return
	}
	p.destroyed = true

	if p.moduleRefA != nil {
		sw.ReleaseModuleRef(p.moduleRefA)
		p.moduleRefA = nil
	}
	if p.moduleRefB != nil {
		sw.ReleaseModuleRef(p.moduleRefB)
		p.moduleRefB = nil
	}

	p.publish(PairDestroyed)
	slog.Debug("[Local] pair destroyed", "pair_id", p.id, "destination", p.stringLocked())
}
