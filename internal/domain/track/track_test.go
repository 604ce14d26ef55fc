package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrack_MainArtist(t *testing.T) {
	tests := []struct {
		name     string
		artists  []string
		expected string
	}{
		{name: "single artist", artists: []string{"Queen"}, expected: "Queen"},
		{name: "featured artists", artists: []string{"Daft Punk", "Pharrell Williams"}, expected: "Daft Punk"},
		{name: "no artists", artists: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk := &Track{ID: "test-id", Artists: tt.artists}
			assert.Equal(t, tt.expected, trk.MainArtist())
		})
	}
}

func TestIDs(t *testing.T) {
	assert.Equal(t, []string{}, IDs(nil))
	assert.Equal(t, []string{"a", "b"}, IDs([]Track{{ID: "a"}, {ID: "b"}}))
}

func TestTotalDuration(t *testing.T) {
	tracks := []Track{
		{ID: "track-1", Duration: 2 * time.Minute},
		{ID: "track-2", Duration: 3*time.Minute + 30*time.Second},
		{ID: "track-3", Duration: 4 * time.Minute},
	}
	assert.Equal(t, 9*time.Minute+30*time.Second, TotalDuration(tracks))
	assert.Equal(t, time.Duration(0), TotalDuration(nil))
}
