package localchan

import "log/slog"

// Condition mirrors the small set of indicate() conditions the core treats
// specially; anything else falls through to the generic control-frame path.
type Condition int

const (
	ConditionHold Condition = iota
	ConditionUnhold
	ConditionConnectedLine
	ConditionRedirecting
	ConditionOther
)

// QueryOption enumerates the query_option requests the core understands.
type QueryOption int

const (
	QueryOptionT38State QueryOption = iota
	QueryOptionUnsupported
)

// Adapter implements the switch-facing channel-driver contract for both
// endpoints of a pair, dispatching on direction_of(ast) per spec.md §4.2.
type Adapter struct {
	pair *Pair
	sw   Switch
}

// NewAdapter binds an Adapter to the pair it serves.
func NewAdapter(p *Pair, sw Switch) *Adapter {
	return &Adapter{pair: p, sw: sw}
}

// Answer is only legal on B; it emits a control-answer frame toward A.
func (ad *Adapter) Answer(ast ChannelRef) error {
	ad.pair.Lock()

	dir := ad.pair.DirectionOf(ast)
	if dir != DirectionB {
		slog.Warn("[Local] Answer is not valid on the A side", "pair_id", ad.pair.ID())
		ad.pair.Unlock()
		return ErrAnsweredOnA
	}

	err := queueFrame(ad.pair, DirectionB, Frame{Type: FrameControl, Subclass: ControlAnswer}, ad.sw, ast, true)
	if err != ErrPairDestroyed {
		ad.pair.Unlock()
	}
	return err
}

// Read always returns the null frame: the driver never produces frames
// directly, only relays them from the partner's Write.
func (ad *Adapter) Read(ast ChannelRef) (*Frame, error) {
	return nil, nil
}

// Exception behaves identically to Read, per spec.md §6's operation set.
func (ad *Adapter) Exception(ast ChannelRef) (*Frame, error) {
	return ad.Read(ast)
}

// Write forwards frame via the Frame Forwarder. On B, an audio/video frame
// first runs Optimize-Away; if it succeeds the write is silently dropped,
// since identity has already moved off the pair.
func (ad *Adapter) Write(ast ChannelRef, frame Frame) error {
	ad.pair.Lock()

	dir := ad.pair.DirectionOf(ast)

	if dir == DirectionB && (frame.Type == FrameVoice || frame.Type == FrameVideo) {
		tryOptimizeAway(ad.pair, ad.sw)
	}

	if ad.pair.HasFlag(FlagAlreadyMasqed) {
		ad.pair.Unlock()
		return nil
	}

	err := queueFrame(ad.pair, dir, frame, ad.sw, ast, true)
	if err != ErrPairDestroyed {
		ad.pair.Unlock()
	}
	return err
}

// WriteVideo is identical to Write per spec.md §6.
func (ad *Adapter) WriteVideo(ast ChannelRef, frame Frame) error {
	return ad.Write(ast, frame)
}

// Indicate implements spec.md §4.2's indicate dispatch.
func (ad *Adapter) Indicate(ast ChannelRef, cond Condition, data []byte) error {
	ad.pair.Lock()

	dir := ad.pair.DirectionOf(ast)
	other := ad.pair.PartnerOf(dir)

	switch cond {
	case ConditionHold, ConditionUnhold:
		if !ad.pair.HasFlag(FlagMOHPassthru) {
			// Local MOH is started/stopped by the switch directly on ast;
			// the core only decides not to forward it as a frame.
			ad.pair.Unlock()
			return nil
		}
		sub := ControlHold
		if cond == ConditionUnhold {
			sub = ControlUnhold
		}
		err := queueFrame(ad.pair, dir, Frame{Type: FrameControl, Subclass: sub, Payload: data}, ad.sw, ast, true)
		if err != ErrPairDestroyed {
			ad.pair.Unlock()
		}
		return err

	case ConditionConnectedLine:
		if dir == DirectionB && other != nil {
			other.SetCallerParty(ast.ConnectedParty())
		}
		party := ast.ConnectedParty()
		err := queueFrame(ad.pair, dir, Frame{Type: FrameControl, Subclass: ControlConnectedLine, Payload: encodeParty(party)}, ad.sw, ast, true)
		if err != ErrPairDestroyed {
			ad.pair.Unlock()
		}
		return err

	case ConditionRedirecting:
		party := ast.RedirectingParty()
		err := queueFrame(ad.pair, dir, Frame{Type: FrameControl, Subclass: ControlRedirecting, Payload: encodeParty(party)}, ad.sw, ast, true)
		if err != ErrPairDestroyed {
			ad.pair.Unlock()
		}
		return err

	default:
		err := queueFrame(ad.pair, dir, Frame{Type: FrameControl, Subclass: ControlOther, Payload: data}, ad.sw, ast, true)
		if err != ErrPairDestroyed {
			ad.pair.Unlock()
		}
		return err
	}
}

// encodeParty is a minimal, opaque wire representation good enough to
// round-trip through a Frame's Payload; the core never interprets it.
func encodeParty(p PartyInfo) []byte {
	return []byte(p.Number + "\x00" + p.Name)
}

// SendDigitBegin forwards a DTMF-begin frame.
func (ad *Adapter) SendDigitBegin(ast ChannelRef, digit rune) error {
	ad.pair.Lock()
	dir := ad.pair.DirectionOf(ast)
	err := queueFrame(ad.pair, dir, Frame{Type: FrameDTMFBegin, Digit: digit}, ad.sw, ast, true)
	if err != ErrPairDestroyed {
		ad.pair.Unlock()
	}
	return err
}

// SendDigitEnd forwards a DTMF-end frame.
func (ad *Adapter) SendDigitEnd(ast ChannelRef, digit rune, duration int) error {
	ad.pair.Lock()
	dir := ad.pair.DirectionOf(ast)
	err := queueFrame(ad.pair, dir, Frame{Type: FrameDTMFEnd, Digit: digit, Duration: duration}, ad.sw, ast, true)
	if err != ErrPairDestroyed {
		ad.pair.Unlock()
	}
	return err
}

// SendText forwards a text frame.
func (ad *Adapter) SendText(ast ChannelRef, text string) error {
	ad.pair.Lock()
	dir := ad.pair.DirectionOf(ast)
	err := queueFrame(ad.pair, dir, Frame{Type: FrameText, Payload: []byte(text)}, ad.sw, ast, true)
	if err != ErrPairDestroyed {
		ad.pair.Unlock()
	}
	return err
}

// SendHTML forwards an html frame.
func (ad *Adapter) SendHTML(ast ChannelRef, subclass ControlSubclass, data []byte) error {
	ad.pair.Lock()
	dir := ad.pair.DirectionOf(ast)
	err := queueFrame(ad.pair, dir, Frame{Type: FrameHTML, Subclass: subclass, Payload: data}, ad.sw, ast, true)
	if err != ErrPairDestroyed {
		ad.pair.Unlock()
	}
	return err
}

// Fixup replaces whichever slot of the pair matched old with replacement.
func (ad *Adapter) Fixup(old, replacement ChannelRef) error {
	ad.pair.Lock()
	defer ad.pair.Unlock()

	switch ad.pair.DirectionOf(old) {
	case DirectionA:
		ad.pair.SetA(replacement)
		return nil
	case DirectionB:
		ad.pair.SetB(replacement)
		return nil
	default:
		slog.Error("[Local] fixup: old handle not found in pair", "pair_id", ad.pair.ID())
		return ErrFixupNoMatch
	}
}

// QueryOption implements spec.md §4.2's see-through resolution: the answer
// comes from the remote-end's bridge partner's answer to the same query.
// Only T38_STATE is honored.
func (ad *Adapter) QueryOption(ast ChannelRef, opt QueryOption) ([]byte, error) {
	if opt != QueryOptionT38State {
		return nil, ErrQueryOptionUnsupported
	}

	ad.pair.Lock()
	dir := ad.pair.DirectionOf(ast)
	far := ad.pair.PartnerOf(dir)
	if far == nil {
		ad.pair.Unlock()
		return nil, ErrQueryOptionUnsupported
	}

	if !far.TryLock() {
		ad.pair.Unlock()
		return nil, ErrQueryOptionUnsupported
	}
	farBridge := far.BridgePartner()
	var locked bool
	if farBridge != nil {
		locked = farBridge.TryLock()
	}
	far.Unlock()
	ad.pair.Unlock()

	if farBridge == nil || !locked {
		if locked {
			farBridge.Unlock()
		}
		return nil, ErrQueryOptionUnsupported
	}
	defer farBridge.Unlock()

	return farBridge.QueryT38State()
}

// BridgedChannel implements spec.md §4.2: with BRIDGE_REPORT set, the far
// endpoint's bridge partner is returned instead of the pair itself.
func (ad *Adapter) BridgedChannel(ast, bridge ChannelRef) ChannelRef {
	ad.pair.Lock()
	defer ad.pair.Unlock()

	if !ad.pair.HasFlag(FlagBridgeReport) {
		return bridge
	}

	dir := ad.pair.DirectionOf(ast)
	far := ad.pair.PartnerOf(dir)
	if far == nil {
		return bridge
	}
	if peer := far.BridgePartner(); peer != nil {
		return peer
	}
	return bridge
}

// DeviceState implements spec.md §4.2's devicestate: parse as in new(), then
// report IN_USE iff a live pair matches (extension, context) with a
// non-null A. Unlike new()'s allocation path, a destination with no
// @context is invalid here rather than defaulted — chan_local.c's
// local_devicestate returns AST_DEVICE_INVALID when strchr(exten, '@') is
// null, and never substitutes a default context.
func DeviceState(dest string, reg *Registry, sw Switch) (string, error) {
	exten, context, _, _, hadContext, _ := parseDestination(dest)
	if !hadContext {
		slog.Warn("[Local] devicestate: destination missing @context", "destination", dest)
		return "INVALID", ErrInvalidDestination
	}
	if !sw.ExtensionExists(context, exten, 1) {
		return "INVALID", nil
	}

	if reg.InUse(exten, context) {
		return "IN_USE", nil
	}
	return "NOT_IN_USE", nil
}
