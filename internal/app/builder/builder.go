// Package builder builds zone-segmented workout playlists.
//
// A build resolves the current user, creates an empty playlist and then fills
// one segment per heart-rate zone in ascending order. Only user resolution and
// playlist creation are fatal; a failing segment is recorded in the report and
// the remaining segments are still attempted.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/xflow/internal/app/filter"
	"github.com/osa030/xflow/internal/domain/playlist"
	"github.com/osa030/xflow/internal/domain/track"
	"github.com/osa030/xflow/internal/domain/workout"
	"github.com/osa030/xflow/internal/infra/spotify"
)

var (
	ErrInvalidRequest   = errors.New("invalid workout request")
	ErrUserResolution   = errors.New("user resolution failed")
	ErrPlaylistCreation = errors.New("playlist creation failed")
)

// MusicService is the subset of the Spotify client a build depends on.
type MusicService interface {
	CurrentUser(ctx context.Context) (string, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (playlist.Handle, error)
	Recommendations(ctx context.Context, q spotify.RecommendationQuery) ([]track.Track, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
}

// Config tunes playlist builds.
type Config struct {
	TempoTolerance      float64
	MaxArtists          int
	AverageTrackMinutes int
	MaxGenres           int
	PlaylistPrefix      string
	Public              bool
}

// Builder runs playlist builds. It holds no per-build state and is safe for
// concurrent use.
type Builder struct {
	cfg     Config
	filters *filter.Chain
	now     func() time.Time
}

// New creates a new Builder. A nil chain disables filtering.
func New(cfg Config, filters *filter.Chain) *Builder {
	if cfg.TempoTolerance <= 0 {
		cfg.TempoTolerance = workout.DefaultTempoTolerance
	}
	if cfg.MaxArtists <= 0 {
		cfg.MaxArtists = workout.DefaultMaxArtists
	}
	if cfg.AverageTrackMinutes <= 0 {
		cfg.AverageTrackMinutes = workout.DefaultAverageTrackMinutes
	}
	if cfg.PlaylistPrefix == "" {
		cfg.PlaylistPrefix = "xflow"
	}
	if filters == nil {
		filters = filter.NewChain()
	}
	return &Builder{
		cfg:     cfg,
		filters: filters,
		now:     time.Now,
	}
}

// Plan returns the zones and segment plans for a request without calling the
// music service.
func (b *Builder) Plan(req workout.Request) (workout.Zones, []workout.Segment) {
	zones := workout.ComputeZones(req.Age)
	return zones, workout.Plan(zones, req.TotalMinutes, workout.PlanOptions{
		TempoTolerance:      b.cfg.TempoTolerance,
		AverageTrackMinutes: b.cfg.AverageTrackMinutes,
	})
}

// Build creates and fills a playlist for req using svc.
// The returned report always holds one outcome per segment.
func (b *Builder) Build(ctx context.Context, svc MusicService, req workout.Request) (*playlist.Report, error) {
	if err := req.Validate(b.cfg.MaxGenres); err != nil {
		return nil, errors.Mark(err, ErrInvalidRequest)
	}

	userID, err := svc.CurrentUser(ctx)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to resolve current user"), ErrUserResolution)
	}

	ts := b.now().Format("2006-01-02 15:04:05.000000")
	name := fmt.Sprintf("%s-%s", b.cfg.PlaylistPrefix, ts)
	description := fmt.Sprintf("%s running playlist generated at %s", b.cfg.PlaylistPrefix, ts)

	handle, err := svc.CreatePlaylist(ctx, userID, name, description, b.cfg.Public)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create playlist"), ErrPlaylistCreation)
	}
	zlog.Info().Msgf("playlist created: id=%s name=%s user=%s", handle.ID, name, userID)

	zones, segments := b.Plan(req)
	report := &playlist.Report{
		Playlist:   handle,
		Name:       name,
		Zones:      zones,
		TrackLimit: segments[0].TrackLimit,
		Segments:   make([]playlist.SegmentOutcome, 0, len(segments)),
	}

	history := filter.NewHistory()
	for _, seg := range segments {
		outcome := b.fillSegment(ctx, svc, handle, req.Genres, seg, history)
		report.Segments = append(report.Segments, outcome)
	}

	zlog.Info().Msgf("playlist build finished: id=%s appended=%d complete=%t",
		handle.ID, report.TotalAppended(), report.Complete())
	return report, nil
}

// fillSegment searches and appends the tracks of one segment. Failures are
// recorded in the outcome, never returned.
func (b *Builder) fillSegment(
	ctx context.Context,
	svc MusicService,
	handle playlist.Handle,
	genres []string,
	seg workout.Segment,
	history *filter.History,
) playlist.SegmentOutcome {
	outcome := playlist.SegmentOutcome{
		Zone:            seg.Zone,
		TargetBPM:       seg.TargetBPM,
		Tempo:           seg.Tempo,
		TracksRequested: seg.TrackLimit,
	}

	tracks, err := svc.Recommendations(ctx, spotify.RecommendationQuery{
		Limit:      seg.TrackLimit,
		Genres:     genres,
		MinTempo:   seg.Tempo.Min,
		MaxTempo:   seg.Tempo.Max,
		MaxArtists: b.cfg.MaxArtists,
	})
	if err != nil {
		outcome.Error = err.Error()
		zlog.Warn().Msgf("segment recommendations failed: zone=%d target_bpm=%d error=%v", seg.Zone, seg.TargetBPM, err)
		return outcome
	}
	outcome.TracksFound = len(tracks)

	kept, rejected := b.filters.Apply(ctx, tracks, history)
	for code, n := range rejected {
		zlog.Debug().Msgf("segment tracks filtered: zone=%d code=%s count=%d", seg.Zone, code, n)
	}

	ids := make([]string, len(kept))
	for i, t := range kept {
		ids[i] = t.URI
		if ids[i] == "" {
			ids[i] = t.ID
		}
	}

	if err := svc.AddTracksToPlaylist(ctx, handle.ID, ids); err != nil {
		outcome.Error = err.Error()
		zlog.Warn().Msgf("segment append failed: zone=%d playlist=%s error=%v", seg.Zone, handle.ID, err)
		return outcome
	}

	history.Add(kept...)
	outcome.Appended = true
	outcome.TracksAppended = len(kept)
	zlog.Info().Msgf("segment appended: zone=%d target_bpm=%d found=%d appended=%d",
		seg.Zone, seg.TargetBPM, outcome.TracksFound, outcome.TracksAppended)
	return outcome
}
