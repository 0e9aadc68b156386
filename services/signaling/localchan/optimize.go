package localchan

import "log/slog"

// tryOptimizeAway implements spec.md §4.4 / chan_local.c's check_bridge: the
// atomic identity splice that retires a pair once B has been bridged to a
// concrete far peer.
//
// Precondition: caller holds pair.mu. Any failure to acquire the extra
// locks aborts silently — eligibility is reassessed on the next media
// write, per spec.md: "Any contention aborts silently."
func tryOptimizeAway(p *Pair, sw Switch) {
	if p.HasFlag(FlagAlreadyMasqed) || p.HasFlag(FlagNoOptimization) {
		return
	}

	a, b := p.A(), p.B()
	if a == nil || b == nil {
		return
	}

	bBridge := b.BridgePartner()
	if bBridge == nil {
		return
	}
	// b's one-step partner must itself resolve transitively to bBridge, i.e.
	// there is a real peer one hop away, not another pair's endpoint still
	// acting as an intermediate proxy. resolveFarPeer walks past any such
	// nested, not-yet-optimized-away Local pair; resolved != bBridge means
	// the one-step pointer was not yet the true far peer.
	if resolved := resolveFarPeer(bBridge, p, make(map[*Pair]bool)); resolved != bBridge {
		return
	}

	if a.PendingFrames() != 0 {
		// Frames would be lost or misordered during the splice.
		return
	}

	if !bBridge.TryLock() {
		return
	}
	if !a.TryLock() {
		bBridge.Unlock()
		return
	}
	defer a.Unlock()
	defer bBridge.Unlock()

	if a.IsHungUp() || b.IsHungUp() || bBridge.IsHungUp() {
		return
	}

	// 1. Swap monitor slot if A has one and the peer doesn't.
	if mon := a.Monitor(); mon != nil && bBridge.Monitor() == nil {
		bBridge.SetMonitor(mon)
		a.SetMonitor(nil)
	}

	// 2. Swap audio hook lists between B and A, moving tap points to the
	// side that survives.
	aHooks, bHooks := a.AudioHooks(), b.AudioHooks()
	a.SetAudioHooks(bHooks)
	b.SetAudioHooks(aHooks)

	// 3. Swap party information where A has any valid field.
	if a.CallerParty().Valid() {
		aCaller, bBridgeCaller := a.CallerParty(), bBridge.CallerParty()
		a.SetCallerParty(bBridgeCaller)
		bBridge.SetCallerParty(aCaller)
	}
	if a.RedirectingParty().Valid() {
		aRedir, bBridgeRedir := a.RedirectingParty(), bBridge.RedirectingParty()
		a.SetRedirectingParty(bBridgeRedir)
		bBridge.SetRedirectingParty(aRedir)
	}
	if a.DialedParty().Valid() {
		aDialed, bBridgeDialed := a.DialedParty(), bBridge.DialedParty()
		a.SetDialedParty(bBridgeDialed)
		bBridge.SetDialedParty(aDialed)
	}

	// 4. Copy group memberships from B to A. Group membership has no
	// first-class accessor on ChannelRef; it rides along inside
	// InheritDatastores per SPEC_FULL.md's note on group_update, since
	// every example of group membership in the switch is itself datastore
	// backed.
	a.InheritDatastores(b.Datastores())

	// 5. The atomic splice: A becomes bBridge's peer.
	if err := sw.Masquerade(a, bBridge); err != nil {
		slog.Warn("[Local] masquerade failed, optimize-away aborted", "pair_id", p.ID(), "error", err)
		return
	}

	// 6. Identity has moved off the pair.
	p.SetFlag(FlagAlreadyMasqed)
	p.publish(PairOptimizedAway)
	slog.Info("[Local] pair optimized away", "pair_id", p.ID(), "destination", p.stringLocked())
}

// resolveFarPeer walks past any chain of nested, not-yet-optimized-away
// Local pairs to find the real far peer, mirroring ast_bridged_channel()'s
// walk in chan_local.c's check_bridge: hopping across a Local pair means
// crossing from one of its endpoints to the other (a pair-internal hop,
// not a bridge hop), then continuing from that side's own bridge partner.
//
// Returns ch unchanged once it is a real channel: not a pair endpoint at
// all, or belongs to ownerPair itself (a cycle back to our own pair).
//
// Returns nil — "not yet resolvable," treated by the caller the same as
// "not equal," aborting optimize-away for this write — when: a nested
// pair is mid-teardown or not yet bridged further; contention or a cycle
// among still-active proxies prevents the walk; or the nested pair has
// already spliced itself away. That last case is deliberately not treated
// as resolved: correctly representing what ch now stands for would
// require walking through the masquerade's identity rewrite, which this
// driver's simplified BridgeTo-pointer bridge model does not track (see
// DESIGN.md). Declining to optimize here is the safe tradeoff — it never
// risks splicing A onto the wrong peer.
func resolveFarPeer(ch ChannelRef, ownerPair *Pair, visited map[*Pair]bool) ChannelRef {
	lc, ok := ch.(*LocalChannel)
	if !ok {
		return ch
	}

	nestedPair := lc.OwningPair()
	if nestedPair == nil || nestedPair == ownerPair {
		return ch
	}
	if visited[nestedPair] {
		return nil
	}
	visited[nestedPair] = true

	if !nestedPair.TryLock() {
		return nil
	}
	if nestedPair.HasFlag(FlagAlreadyMasqed) {
		nestedPair.Unlock()
		return nil
	}
	other := nestedPair.PartnerOf(nestedPair.DirectionOf(ch))
	nestedPair.Unlock()
	if other == nil {
		return nil
	}

	next := other.BridgePartner()
	if next == nil {
		return nil
	}
	return resolveFarPeer(next, ownerPair, visited)
}
