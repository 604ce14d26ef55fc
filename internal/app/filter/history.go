package filter

import (
	"sync"

	"github.com/osa030/xflow/internal/domain/track"
)

// History holds the tracks already appended during one playlist build.
type History struct {
	mu     sync.RWMutex
	tracks []track.Track
	ids    map[string]struct{}
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{ids: make(map[string]struct{})}
}

// Add records appended tracks.
func (h *History) Add(tracks ...track.Track) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range tracks {
		h.tracks = append(h.tracks, t)
		h.ids[t.ID] = struct{}{}
	}
}

// Contains reports whether a track with the given ID was recorded.
func (h *History) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.ids[id]
	return ok
}

// Tracks returns a copy of the recorded tracks.
func (h *History) Tracks() []track.Track {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]track.Track, len(h.tracks))
	copy(out, h.tracks)
	return out
}

// Len returns the number of recorded tracks.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tracks)
}
