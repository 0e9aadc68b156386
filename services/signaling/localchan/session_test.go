package localchan

import (
	"context"
	"testing"

	"github.com/sebas/swproxy/services/signaling/events"
)

// TestLocalCallSessionPlayAudioReachesPartner verifies PlayAudio forwards a
// voice frame to A through the Frame Forwarder rather than enqueuing it onto
// B's own inbound queue, which nothing in production ever drains.
func TestLocalCallSessionPlayAudioReachesPartner(t *testing.T) {
	sw := newFakeSwitch()
	reg := NewRegistry()

	a, err := Request("100@inbound", []string{"ulaw"}, Requestor{Name: "test"}, sw, reg, events.NewNoopPublisher())
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	p, ok := reg.FindByName(a.Name())
	if !ok {
		t.Fatal("FindByName could not find the allocated pair")
	}
	p.Lock()
	b := p.B()
	p.Unlock()

	session := newLocalCallSession(b, p.Extension(), p.Context(), p, sw)

	if err := session.PlayAudio(context.Background(), "demo-congrats.wav"); err != nil {
		t.Fatalf("PlayAudio returned error: %v", err)
	}

	if n := b.(*LocalChannel).PendingFrames(); n != 0 {
		t.Errorf("B's own queue has %d pending frames, want 0: PlayAudio must not self-enqueue", n)
	}

	lc := a.(*LocalChannel)
	if n := lc.PendingFrames(); n != 1 {
		t.Fatalf("A's queue has %d pending frames, want 1", n)
	}
	frame, ok := lc.DequeueFrame()
	if !ok {
		t.Fatal("DequeueFrame reported no frame present")
	}
	if frame.Type != FrameVoice {
		t.Errorf("forwarded frame type = %v, want FrameVoice", frame.Type)
	}
	if string(frame.Payload) != "demo-congrats.wav" {
		t.Errorf("forwarded frame payload = %q, want %q", frame.Payload, "demo-congrats.wav")
	}
}
