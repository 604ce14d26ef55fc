// Package track provides the Track domain entity.
package track

import "time"

// Track represents a track returned by the music service.
type Track struct {
	ID       string        // Spotify Track ID
	URI      string        // Spotify URI (spotify:track:...)
	Name     string        // Track name
	Artists  []string      // Artist names
	Duration time.Duration // Track duration
	URL      string        // Spotify URL
	Explicit bool          // Explicit content flag
}

// MainArtist returns the first listed artist, or "" when unknown.
func (t *Track) MainArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// IDs returns the IDs of the given tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the summed duration of the given tracks.
func TotalDuration(tracks []Track) time.Duration {
	var total time.Duration
	for _, t := range tracks {
		total += t.Duration
	}
	return total
}
