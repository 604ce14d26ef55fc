// Package playlist provides the playlist handle and the build report.
package playlist

import "github.com/osa030/xflow/internal/domain/workout"

// Handle is a reference to a playlist owned by the music service.
// It is obtained once at creation time and never mutated.
type Handle struct {
	ID  string // Spotify Playlist ID
	URL string // Public Spotify URL
}

// SegmentOutcome records what happened while populating one segment.
type SegmentOutcome struct {
	Zone            int
	TargetBPM       int
	Tempo           workout.Band
	TracksRequested int
	TracksFound     int  // tracks returned by the recommendation query
	TracksAppended  int  // tracks sent to the playlist after filtering
	Appended        bool // append call succeeded
	Error           string
}

// Failed reports whether the segment could not be populated.
func (o SegmentOutcome) Failed() bool {
	return !o.Appended
}

// Report is the result of a playlist build.
type Report struct {
	Playlist   Handle
	Name       string
	Zones      workout.Zones
	TrackLimit int
	Segments   []SegmentOutcome // ordered by zone
}

// Complete reports whether every segment was appended.
func (r *Report) Complete() bool {
	for _, s := range r.Segments {
		if s.Failed() {
			return false
		}
	}
	return true
}

// AppendedFlags returns the Appended flag of each segment in order.
func (r *Report) AppendedFlags() []bool {
	flags := make([]bool, len(r.Segments))
	for i, s := range r.Segments {
		flags[i] = s.Appended
	}
	return flags
}

// TotalAppended returns the number of tracks appended across all segments.
func (r *Report) TotalAppended() int {
	var total int
	for _, s := range r.Segments {
		if s.Appended {
			total += s.TracksAppended
		}
	}
	return total
}
