package localchan

import (
	"context"
	"sync"
	"time"
)

// localCallSession implements dialplan.CallSession over a ChannelRef,
// letting the existing dialplan.Executor run actions against B exactly as
// it would against a SIP-backed session. PlayAudio/Dial are necessarily
// thin here: media processing and dialplan semantics are both explicit
// Non-goals of the Local driver itself (spec.md §1) — this session only
// has to be a faithful enough CallSession for the Executor's control flow,
// not a media engine.
type localCallSession struct {
	mu sync.Mutex

	ch         ChannelRef
	adapter    *Adapter
	extension  string
	context    string
	ctx        context.Context
	cancel     context.CancelFunc
	terminated bool
}

func newLocalCallSession(ch ChannelRef, extension, ctx string, pair *Pair, sw Switch) *localCallSession {
	c, cancel := context.WithCancel(context.Background())
	return &localCallSession{
		ch:        ch,
		adapter:   NewAdapter(pair, sw),
		extension: extension,
		context:   ctx,
		ctx:       c,
		cancel:    cancel,
	}
}

func (s *localCallSession) CallID() string      { return s.ch.Name() }
func (s *localCallSession) Destination() string { return s.extension + "@" + s.context }
func (s *localCallSession) CallerID() string {
	return s.ch.CallerParty().Number
}

func (s *localCallSession) Context() context.Context { return s.ctx }

// PlayAudio writes a voice frame carrying the file path as an opaque
// payload through the Frame Forwarder toward A, exactly as any other
// B-side media write would go out — including running Optimize-Away first,
// since Adapter.Write is the only path that triggers it. The Local driver
// does not decode or stream audio itself; whatever sits on the other end
// of the pair is responsible for turning this into real media.
func (s *localCallSession) PlayAudio(ctx context.Context, file string) error {
	return s.adapter.Write(s.ch, Frame{Type: FrameVoice, Payload: []byte(file)})
}

func (s *localCallSession) StopAudio() error {
	return nil
}

// Dial is a narrow stand-in: the Local core's own Non-goals exclude
// dialplan semantics, so this session does not originate real SIP legs. It
// records the target on the dialed-party field so a caller driving a real
// B2BUA dial action (constructed independently and bridged onto ch via
// BridgeTo) is reflected in the channel's party info.
func (s *localCallSession) Dial(ctx context.Context, target string, timeout time.Duration) error {
	s.ch.SetDialedParty(PartyInfo{Number: target, NumberValid: true})
	return nil
}

func (s *localCallSession) Hangup(reason string) error {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
	s.cancel()
	return s.ch.QueueHangup(0)
}

func (s *localCallSession) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated || s.ch.IsHungUp()
}
