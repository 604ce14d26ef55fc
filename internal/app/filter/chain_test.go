package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/xflow/internal/domain/track"
	"github.com/osa030/xflow/internal/infra/config"
)

func sampleTracks() []track.Track {
	return []track.Track{
		{ID: "t1", Name: "Lose Yourself", Artists: []string{"Eminem"}, Duration: 5 * time.Minute, Explicit: true},
		{ID: "t2", Name: "Titanium", Artists: []string{"David Guetta"}, Duration: 4 * time.Minute},
		{ID: "t2", Name: "Titanium", Artists: []string{"David Guetta"}, Duration: 4 * time.Minute},
		{ID: "t3", Name: "Intro", Artists: []string{"The xx"}, Duration: 30 * time.Second},
	}
}

func TestChain_ApplyWithoutFilters(t *testing.T) {
	kept, rejected := NewChain().Apply(context.Background(), sampleTracks(), nil)
	assert.Len(t, kept, 4)
	assert.Empty(t, rejected)
}

func TestChain_ApplyEmptyInput(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())

	kept, rejected := chain.Apply(context.Background(), nil, NewHistory())
	assert.NotNil(t, kept)
	assert.Empty(t, kept)
	assert.Empty(t, rejected)
}

func TestChain_ApplyCountsRejections(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())
	chain.Add(&ExplicitFilter{})
	duration := NewDurationLimitFilter()
	require.NoError(t, duration.ValidateConfig(map[string]any{"min_minutes": 1}))
	chain.Add(duration)

	h := NewHistory()
	kept, rejected := chain.Apply(context.Background(), sampleTracks(), h)

	require.Len(t, kept, 1)
	assert.Equal(t, "t2", kept[0].ID)
	assert.Equal(t, map[string]int{
		"explicit_content":        1,
		"duplicate_track":         1,
		"duration_limit_exceeded": 1,
	}, rejected)
	assert.Equal(t, 0, h.Len(), "apply does not record into the caller's history")
}

func TestChain_ApplyAgainstHistory(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())

	h := historyOf(track.Track{ID: "t2", Name: "Titanium", Artists: []string{"David Guetta"}})
	kept, rejected := chain.Apply(context.Background(), sampleTracks(), h)

	assert.Equal(t, []string{"t1", "t3"}, track.IDs(kept))
	assert.Equal(t, 2, rejected["duplicate_track"])
}

func TestChain_Execute(t *testing.T) {
	chain := NewChain()
	chain.Add(&ExplicitFilter{})

	assert.Equal(t, Reject("explicit_content"), chain.Execute(context.Background(), track.Track{Explicit: true}, nil))
	assert.Equal(t, Accept(), chain.Execute(context.Background(), track.Track{}, nil))
}

func TestNewChainFromConfig(t *testing.T) {
	t.Run("only enabled filters", func(t *testing.T) {
		chain, err := NewChainFromConfig(map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: true},
			"explicit_filter":        {Enabled: false},
			"duration_limit_filter":  {Enabled: true, Settings: map[string]any{"max_minutes": 8}},
		})
		require.NoError(t, err)

		names := make([]string, 0)
		for _, f := range chain.Filters() {
			names = append(names, f.Name())
		}
		assert.Equal(t, []string{"duplicate_track_filter", "duration_limit_filter"}, names)
	})

	t.Run("nil config yields empty chain", func(t *testing.T) {
		chain, err := NewChainFromConfig(nil)
		require.NoError(t, err)
		assert.Empty(t, chain.Filters())
	})

	t.Run("unknown filter", func(t *testing.T) {
		_, err := NewChainFromConfig(map[string]config.FilterConfig{"market_filter": {Enabled: true}})
		assert.ErrorContains(t, err, "unknown filter")
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := NewChainFromConfig(map[string]config.FilterConfig{
			"duration_limit_filter": {Enabled: true, Settings: map[string]any{"min_minutes": -3}},
		})
		assert.ErrorContains(t, err, "duration_limit_filter")
	})
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"duplicate_track_filter", "duration_limit_filter", "explicit_filter"}, Names())
	for name, factory := range GetRegistered() {
		f := factory()
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Description())
		assert.NotEmpty(t, f.ReturnCodes())
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	h.Add(track.Track{ID: "a"}, track.Track{ID: "b"})

	assert.True(t, h.Contains("a"))
	assert.False(t, h.Contains("c"))
	assert.Equal(t, 2, h.Len())

	tracks := h.Tracks()
	tracks[0].ID = "changed"
	assert.Equal(t, "a", h.Tracks()[0].ID)
}
