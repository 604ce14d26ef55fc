// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/osa030/xflow/internal/domain/playlist"
	"github.com/osa030/xflow/internal/domain/track"
)

// ErrMalformedResponse is returned when a successful response lacks a field
// the caller depends on.
var ErrMalformedResponse = errors.New("malformed upstream response")

// maxTracksPerRequest is Spotify's limit for adding tracks in one call.
const maxTracksPerRequest = 100

// UpstreamError is a failed call to the Spotify Web API.
type UpstreamError struct {
	Op      string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// Client is a Spotify API client bound to one access token.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// RecommendationQuery describes a tempo-bounded recommendation search.
type RecommendationQuery struct {
	Limit      int
	Genres     []string
	MinTempo   float64
	MaxTempo   float64
	MaxArtists int
}

func newClient(c *spotify.Client, market string, maxRetries int, retryDelay time.Duration, limiter *rate.Limiter) *Client {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Client{
		client:     c,
		market:     market,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		limiter:    limiter,
	}
}

// AvailableGenres returns the genre seeds accepted by the recommendation API.
func (c *Client) AvailableGenres(ctx context.Context) ([]string, error) {
	var genres []string
	err := c.retry(ctx, retryableRead, func() error {
		g, err := c.client.GetAvailableGenreSeeds(ctx)
		if err != nil {
			return err
		}
		genres = g
		return nil
	})
	if err != nil {
		return nil, upstream("available genres", err)
	}
	return genres, nil
}

// CurrentUser returns the Spotify user ID of the token owner.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var user *spotify.PrivateUser
	err := c.retry(ctx, retryableRead, func() error {
		u, err := c.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return "", upstream("current user", err)
	}
	if user == nil || user.ID == "" {
		return "", errors.Wrap(ErrMalformedResponse, "current user: missing id")
	}
	return user.ID, nil
}

// CreatePlaylist creates a new playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (playlist.Handle, error) {
	var created *spotify.FullPlaylist
	err := c.retry(ctx, retryableWrite, func() error {
		p, err := c.client.CreatePlaylistForUser(ctx, userID, name, description, public, false)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return playlist.Handle{}, upstream("create playlist", err)
	}
	if created == nil || created.ID == "" {
		return playlist.Handle{}, errors.Wrap(ErrMalformedResponse, "create playlist: missing id")
	}

	url := created.ExternalURLs["spotify"]
	if url == "" {
		url = c.GetPlaylistURL(string(created.ID))
	}
	return playlist.Handle{ID: string(created.ID), URL: url}, nil
}

// Recommendations returns tracks for the given genre seeds within the tempo band.
// MaxArtists is logged as a request hint only; the recommendations endpoint
// exposed by the library has no parameter for it.
func (c *Client) Recommendations(ctx context.Context, q RecommendationQuery) ([]track.Track, error) {
	seeds := spotify.Seeds{Genres: q.Genres}
	attrs := spotify.NewTrackAttributes().
		MinTempo(q.MinTempo).
		MaxTempo(q.MaxTempo)

	opts := []spotify.RequestOption{spotify.Limit(q.Limit)}
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	zlog.Debug().Msgf("requesting recommendations: genres=%s limit=%d min_tempo=%.1f max_tempo=%.1f max_artists=%d",
		strings.Join(q.Genres, ","), q.Limit, q.MinTempo, q.MaxTempo, q.MaxArtists)

	var recs *spotify.Recommendations
	err := c.retry(ctx, retryableRead, func() error {
		r, err := c.client.GetRecommendations(ctx, seeds, attrs, opts...)
		if err != nil {
			return err
		}
		recs = r
		return nil
	})
	if err != nil {
		return nil, upstream("recommendations", err)
	}
	if recs == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "recommendations: empty body")
	}

	tracks := make([]track.Track, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		tracks = append(tracks, c.convertTrack(t))
	}
	return tracks, nil
}

// AddTracksToPlaylist adds tracks to a playlist in batches.
// trackIDs can be Spotify IDs, URLs, or URIs. An empty list is a no-op.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	ids := make([]spotify.ID, len(trackIDs))
	for i, trackID := range trackIDs {
		ids[i] = spotify.ID(extractTrackID(trackID))
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := i + maxTracksPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		err := c.retry(ctx, retryableWrite, func() error {
			_, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(extractPlaylistID(playlistID)), batch...)
			return err
		})
		if err != nil {
			return upstream("add tracks", err)
		}
	}

	return nil
}

// GetPlaylistURL returns the Spotify URL for a playlist.
func (c *Client) GetPlaylistURL(playlistID string) string {
	return fmt.Sprintf("https://open.spotify.com/playlist/%s", playlistID)
}

// GetTrackURL returns the Spotify URL for a track.
func (c *Client) GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// convertTrack converts a Spotify SimpleTrack to domain Track.
func (c *Client) convertTrack(t spotify.SimpleTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	url := t.ExternalURLs["spotify"]
	if url == "" {
		url = c.GetTrackURL(string(t.ID))
	}

	return track.Track{
		ID:       string(t.ID),
		URI:      string(t.URI),
		Name:     t.Name,
		Artists:  artists,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      url,
		Explicit: t.Explicit,
	}
}

// retry runs fn until it succeeds, fails with a status retryable rejects, or
// maxRetries attempts are used, backing off linearly in between. Every attempt
// waits on the shared rate limiter first.
func (c *Client) retry(ctx context.Context, retryable func(status int) bool, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "rate limiter")
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if status := statusOf(err); status == 0 || !retryable(status) {
			return err
		}

		if i < c.maxRetries-1 {
			delay := c.retryDelay * time.Duration(i+1)
			zlog.Debug().Msgf("retrying spotify call: attempt=%d delay=%v error=%v", i+1, delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// retryableRead reports whether a failed read may be sent again: rate
// limiting and transient server errors.
func retryableRead(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryableWrite reports whether a failed write may be sent again. Only 429
// guarantees the request was not processed; a 5xx may follow a committed write.
func retryableWrite(status int) bool {
	return status == http.StatusTooManyRequests
}

// httpStatusPattern matches the status the library embeds in errors it cannot
// decode, e.g. "spotify: HTTP 502: Bad Gateway (body empty)".
var httpStatusPattern = regexp.MustCompile(`\bHTTP (\d{3})\b`)

// statusOf returns the HTTP status carried by a library error, or 0.
func statusOf(err error) int {
	if err == nil {
		return 0
	}
	var se spotify.Error
	if errors.As(err, &se) && se.Status != 0 {
		return se.Status
	}
	var pse *spotify.Error
	if errors.As(err, &pse) && pse != nil && pse.Status != 0 {
		return pse.Status
	}
	if m := httpStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return status
	}
	return 0
}

// upstream converts a library error into an *UpstreamError.
func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, op)
	}

	ue := &UpstreamError{Op: op, Status: statusOf(err), Message: err.Error()}
	var se spotify.Error
	if errors.As(err, &se) && se.Message != "" {
		ue.Message = se.Message
	}
	return ue
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID URIs and open.spotify.com/<kind>/ID URLs,
// including intl-XX path prefixes and query strings. Anything else is assumed
// to be a bare ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	sep := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
