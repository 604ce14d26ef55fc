package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/xflow/internal/domain/track"
	"github.com/osa030/xflow/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig creates a chain holding every enabled filter in cfg,
// in registry name order. Unknown filter names are an error.
func NewChainFromConfig(cfg map[string]config.FilterConfig) (*Chain, error) {
	chain := NewChain()
	for name := range cfg {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}

	for _, name := range Names() {
		fcfg, ok := cfg[name]
		if !ok || !fcfg.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(fcfg.Settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("registered track filter: name=%s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, h *History) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, h)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply screens tracks in order and returns the accepted ones together with
// a count of rejections per code. Accepted tracks are visible to later
// checks in the same call, so a batch cannot contain duplicates of itself.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track, h *History) ([]track.Track, map[string]int) {
	rejected := make(map[string]int)
	kept := make([]track.Track, 0, len(tracks))
	if len(c.filters) == 0 {
		return append(kept, tracks...), rejected
	}

	scratch := NewHistory()
	if h != nil {
		scratch.Add(h.Tracks()...)
	}
	for _, t := range tracks {
		result := c.Execute(ctx, t, scratch)
		if !result.Accepted {
			rejected[result.Code]++
			continue
		}
		kept = append(kept, t)
		scratch.Add(t)
	}
	return kept, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
