package localchan

import (
	"fmt"
	"log/slog"
)

// ChannelSummary is one row of the CLI/management listing, preserving the
// literal CLI text format from spec.md §6 alongside structured fields for
// the HTTP control surface (see SPEC_FULL.md's realization of "CLI listing"
// as GET /api/v1/local-channels).
type ChannelSummary struct {
	AName     string
	Extension string
	Context   string
	Text      string
}

// ListChannels implements spec.md §4.6's CLI listing: enumerate the
// registry, printing "name -- extension@context" per pair under pair lock,
// taken after the registry lock, never the reverse.
func ListChannels(reg *Registry) []ChannelSummary {
	pairs := reg.Snapshot()

	out := make([]ChannelSummary, 0, len(pairs))
	for _, p := range pairs {
		p.Lock()
		name := "<unowned>"
		if a := p.A(); a != nil {
			name = a.Name()
		}
		summary := ChannelSummary{
			AName:     name,
			Extension: p.Extension(),
			Context:   p.Context(),
			Text:      fmt.Sprintf("%s -- %s@%s", name, p.Extension(), p.Context()),
		}
		p.Unlock()
		out = append(out, summary)
	}
	return out
}

// OptimizeAway implements spec.md §4.6's LocalOptimizeAway management
// action: resolve channel to its pair, verify registry membership, and
// clear NO_OPTIMIZATION under pair lock. The self-splice occurs on the
// next eligible media write.
func OptimizeAway(channel string, reg *Registry) error {
	if channel == "" {
		return ErrMissingChannelHeader
	}

	p, ok := reg.FindByName(channel)
	if !ok {
		return ErrUnknownChannel
	}

	p.Lock()
	p.ClearFlag(FlagNoOptimization)
	p.Unlock()

	slog.Info("[Local] channel queued to be optimized away", "channel", channel, "pair_id", p.ID())
	return nil
}
