package workout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeZones(t *testing.T) {
	tests := []struct {
		name     string
		age      int
		expected Zones
	}{
		{name: "age 40", age: 40, expected: Zones{90, 126, 144}},
		{name: "age 50", age: 50, expected: Zones{85, 119, 136}},
		{name: "age 18", age: 18, expected: Zones{101, 141, 161}},
		{name: "age 33 truncates", age: 33, expected: Zones{93, 130, 149}},
		{name: "age 220 yields zero", age: 220, expected: Zones{0, 0, 0}},
		{name: "age above 220 is not corrected", age: 230, expected: Zones{-5, -7, -8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeZones(tt.age))
		})
	}
}

func TestComputeZones_AscendingAndBounded(t *testing.T) {
	for age := 1; age < 150; age++ {
		z := ComputeZones(age)
		maxHR := 220 - age
		assert.LessOrEqual(t, z[0], z[1], "age %d", age)
		assert.LessOrEqual(t, z[1], z[2], "age %d", age)
		assert.LessOrEqual(t, z[2], maxHR, "age %d", age)
	}
}

func TestComputeTrackLimit(t *testing.T) {
	tests := []struct {
		name     string
		minutes  int
		avg      int
		expected int
	}{
		{name: "zero minutes", minutes: 0, avg: 4, expected: 1},
		{name: "one hour", minutes: 60, avg: 4, expected: 6},
		{name: "segment shorter than a track", minutes: 9, avg: 4, expected: 1},
		{name: "twelve minutes", minutes: 12, avg: 4, expected: 2},
		{name: "non-positive average uses default", minutes: 60, avg: 0, expected: 6},
		{name: "custom average", minutes: 90, avg: 3, expected: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeTrackLimit(tt.minutes, tt.avg))
		})
	}
}

func TestTempoBand_RoundsProductBeforeSubtracting(t *testing.T) {
	tests := []struct {
		target    int
		tolerance float64
		expected  Band
	}{
		{target: 37, tolerance: 0.2, expected: Band{Min: 29.6, Max: 44.4}},
		{target: 19, tolerance: 0.07, expected: Band{Min: 17.67, Max: 20.33}},
		{target: 69, tolerance: 0.2, expected: Band{Min: 55.2, Max: 82.8}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d at %.2f", tt.target, tt.tolerance), func(t *testing.T) {
			assert.Equal(t, tt.expected, TempoBand(tt.target, tt.tolerance))
		})
	}
}

func TestTempoBand(t *testing.T) {
	band := TempoBand(144, 0.1)
	assert.Equal(t, 129.6, band.Min)
	assert.Equal(t, 158.4, band.Max)

	band = TempoBand(90, 0.1)
	assert.InDelta(t, 81.0, band.Min, 1e-9)
	assert.InDelta(t, 99.0, band.Max, 1e-9)
}

func TestPlan_SharesTrackLimit(t *testing.T) {
	for _, minutes := range []int{0, 9, 45, 60, 200} {
		segments := Plan(ComputeZones(40), minutes, PlanOptions{})
		require.Len(t, segments, NumSegments)

		want := ComputeTrackLimit(minutes, DefaultAverageTrackMinutes)
		for i, s := range segments {
			assert.Equal(t, i, s.Zone)
			assert.Equal(t, want, s.TrackLimit, "minutes=%d segment=%d", minutes, i)
		}
	}
}

func TestPlan_UsesZoneTargets(t *testing.T) {
	segments := Plan(Zones{90, 126, 144}, 60, PlanOptions{TempoTolerance: 0.1})

	assert.Equal(t, 90, segments[0].TargetBPM)
	assert.Equal(t, 126, segments[1].TargetBPM)
	assert.Equal(t, 144, segments[2].TargetBPM)
	assert.Equal(t, Band{Min: 129.6, Max: 158.4}, segments[2].Tempo)
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		max     int
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid request",
			req:  Request{Age: 30, TotalMinutes: 45, Genres: []string{"rock"}, Distance: 5},
			max:  5,
		},
		{
			name:    "no genres",
			req:     Request{Age: 30, TotalMinutes: 45},
			max:     5,
			wantErr: true,
			errMsg:  "Genres",
		},
		{
			name:    "empty genre",
			req:     Request{Age: 30, TotalMinutes: 45, Genres: []string{""}},
			max:     5,
			wantErr: true,
			errMsg:  "Genres[0]",
		},
		{
			name:    "age zero",
			req:     Request{Age: 0, TotalMinutes: 45, Genres: []string{"rock"}},
			max:     5,
			wantErr: true,
			errMsg:  "Age",
		},
		{
			name:    "age too high",
			req:     Request{Age: 150, TotalMinutes: 45, Genres: []string{"rock"}},
			max:     5,
			wantErr: true,
			errMsg:  "Age",
		},
		{
			name:    "negative minutes",
			req:     Request{Age: 30, TotalMinutes: -1, Genres: []string{"rock"}},
			max:     5,
			wantErr: true,
			errMsg:  "TotalMinutes",
		},
		{
			name:    "too many genres",
			req:     Request{Age: 30, Genres: []string{"a", "b", "c"}},
			max:     2,
			wantErr: true,
			errMsg:  "at most 2 genres",
		},
		{
			name: "limit disabled",
			req:  Request{Age: 30, Genres: []string{"a", "b", "c"}},
			max:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.max)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHoursMinutes(t *testing.T) {
	assert.Equal(t, 0, HoursMinutes(0, 0))
	assert.Equal(t, 75, HoursMinutes(1, 15))
	assert.Equal(t, 239, HoursMinutes(3, 59))
}
