// Package workout provides the workout request and the heart-rate/tempo math
// used to plan a zone-segmented running playlist.
package workout

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

const (
	// NumSegments is the number of workout segments, one per heart-rate zone.
	NumSegments = 3

	// DefaultAverageTrackMinutes is the assumed average track length.
	DefaultAverageTrackMinutes = 4
	// DefaultTempoTolerance is the symmetric tempo band around a target BPM.
	DefaultTempoTolerance = 0.1
	// DefaultMaxArtists is the max_artists hint sent with recommendation queries.
	DefaultMaxArtists = 10
	// DefaultMaxGenres is the service-defined maximum of genre seeds.
	DefaultMaxGenres = 5
)

// zonePercents are the fractions of max heart rate for each zone, in percent.
var zonePercents = [NumSegments]int{50, 70, 80}

// Request is the user's workout input, captured once from the form and
// handed to the callback step unchanged.
type Request struct {
	Age          int      `json:"age" validate:"gte=1,lt=150"`
	TotalMinutes int      `json:"total_minutes" validate:"gte=0"`
	Genres       []string `json:"genres" validate:"min=1,dive,required"`
	Distance     int      `json:"distance"` // informational only
}

// Validate checks the request against its field constraints.
// maxGenres <= 0 disables the genre count limit.
func (r Request) Validate(maxGenres int) error {
	if err := validator.New().Struct(r); err != nil {
		return errors.Wrap(err, "invalid workout request")
	}
	if maxGenres > 0 && len(r.Genres) > maxGenres {
		return errors.Newf("invalid workout request: at most %d genres allowed, got %d", maxGenres, len(r.Genres))
	}
	return nil
}

// Zones holds the target BPM of each zone in ascending order.
type Zones [NumSegments]int

// ComputeZones derives the zone targets from age using max HR = 220 - age.
// Each target is truncated toward zero. Ages >= 220 are not special-cased and
// yield non-positive targets.
func ComputeZones(age int) Zones {
	maxHR := 220 - age
	var z Zones
	for i, pct := range zonePercents {
		z[i] = maxHR * pct / 100
	}
	return z
}

// ComputeTrackLimit returns the number of tracks requested per segment.
// Each segment gets totalMinutes/NumSegments minutes and tracks are assumed to
// last avgTrackMinutes; the +1 guarantees at least one track. This is an
// approximation of the run length, not an exact fit.
func ComputeTrackLimit(totalMinutes, avgTrackMinutes int) int {
	if avgTrackMinutes <= 0 {
		avgTrackMinutes = DefaultAverageTrackMinutes
	}
	segmentMinutes := totalMinutes / NumSegments
	return segmentMinutes/avgTrackMinutes + 1
}

// Band is a tempo range in BPM.
type Band struct {
	Min float64
	Max float64
}

// TempoBand returns target ± tolerance*target, unrounded.
func TempoBand(target int, tolerance float64) Band {
	t := float64(target)
	// The explicit conversion rounds the product and keeps it from being fused
	// into t±tolerance*t on FMA platforms.
	delta := float64(tolerance * t)
	return Band{
		Min: t - delta,
		Max: t + delta,
	}
}

// Segment is the plan for one zone of the workout.
type Segment struct {
	Zone       int
	TargetBPM  int
	Tempo      Band
	TrackLimit int
}

// PlanOptions tunes segment planning.
type PlanOptions struct {
	TempoTolerance      float64
	AverageTrackMinutes int
}

// Plan builds the segment plans for a workout. The track limit is computed
// once and shared by every segment.
func Plan(zones Zones, totalMinutes int, opts PlanOptions) []Segment {
	tolerance := opts.TempoTolerance
	if tolerance <= 0 {
		tolerance = DefaultTempoTolerance
	}
	limit := ComputeTrackLimit(totalMinutes, opts.AverageTrackMinutes)

	segments := make([]Segment, 0, NumSegments)
	for i, bpm := range zones {
		segments = append(segments, Segment{
			Zone:       i,
			TargetBPM:  bpm,
			Tempo:      TempoBand(bpm, tolerance),
			TrackLimit: limit,
		})
	}
	return segments
}

// HoursMinutes converts a pace given as hours and minutes to total minutes.
func HoursMinutes(hours, minutes int) int {
	return hours*60 + minutes
}
