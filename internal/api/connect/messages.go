package connect

// ListGenresRequest is the ListGenres input.
type ListGenresRequest struct{}

// ListGenresResponse is the ListGenres output.
type ListGenresResponse struct {
	Genres   []string `json:"genres"`
	Fallback bool     `json:"fallback"`
}

// PlanWorkoutRequest is the PlanWorkout input.
type PlanWorkoutRequest struct {
	Age          int `json:"age"`
	TotalMinutes int `json:"total_minutes"`
}

// SegmentPlan describes one planned segment.
type SegmentPlan struct {
	Zone       int     `json:"zone"`
	TargetBPM  int     `json:"target_bpm"`
	MinTempo   float64 `json:"min_tempo"`
	MaxTempo   float64 `json:"max_tempo"`
	TrackLimit int     `json:"track_limit"`
}

// PlanWorkoutResponse is the PlanWorkout output.
type PlanWorkoutResponse struct {
	Zones      []int         `json:"zones"`
	TrackLimit int           `json:"track_limit"`
	Segments   []SegmentPlan `json:"segments"`
}

// BuildPlaylistRequest is the BuildPlaylist input. The user access token is
// passed in the X-Spotify-Token header.
type BuildPlaylistRequest struct {
	Age          int      `json:"age"`
	TotalMinutes int      `json:"total_minutes"`
	Distance     int      `json:"distance"`
	Genres       []string `json:"genres"`
}

// SegmentOutcome reports what happened to one segment.
type SegmentOutcome struct {
	Zone            int     `json:"zone"`
	TargetBPM       int     `json:"target_bpm"`
	MinTempo        float64 `json:"min_tempo"`
	MaxTempo        float64 `json:"max_tempo"`
	TracksRequested int     `json:"tracks_requested"`
	TracksFound     int     `json:"tracks_found"`
	TracksAppended  int     `json:"tracks_appended"`
	Appended        bool    `json:"appended"`
	Error           string  `json:"error,omitempty"`
}

// BuildPlaylistResponse is the BuildPlaylist output.
type BuildPlaylistResponse struct {
	PlaylistID  string           `json:"playlist_id"`
	PlaylistURL string           `json:"playlist_url"`
	Name        string           `json:"name"`
	Zones       []int            `json:"zones"`
	TrackLimit  int              `json:"track_limit"`
	Complete    bool             `json:"complete"`
	Segments    []SegmentOutcome `json:"segments"`
}
