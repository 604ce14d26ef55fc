package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/osa030/xflow/internal/app/builder"
	"github.com/osa030/xflow/internal/app/genre"
	"github.com/osa030/xflow/internal/domain/playlist"
	"github.com/osa030/xflow/internal/domain/workout"
	"github.com/osa030/xflow/internal/infra/spotify"
)

const (
	// WorkoutServiceName is the fully-qualified name of the WorkoutService.
	WorkoutServiceName = "xflow.v1.WorkoutService"

	WorkoutServiceListGenresProcedure    = "/xflow.v1.WorkoutService/ListGenres"
	WorkoutServicePlanWorkoutProcedure   = "/xflow.v1.WorkoutService/PlanWorkout"
	WorkoutServiceBuildPlaylistProcedure = "/xflow.v1.WorkoutService/BuildPlaylist"
)

// GenreLister lists the available genres.
type GenreLister interface {
	List(ctx context.Context) genre.Listing
}

// TokenServices opens a music service for a user access token.
type TokenServices interface {
	ForToken(ctx context.Context, accessToken string) builder.MusicService
}

// WorkoutService implements the WorkoutService RPC.
type WorkoutService struct {
	genres  GenreLister
	builder *builder.Builder
	users   TokenServices
}

// NewWorkoutService creates a new WorkoutService.
func NewWorkoutService(genres GenreLister, b *builder.Builder, users TokenServices) *WorkoutService {
	return &WorkoutService{
		genres:  genres,
		builder: b,
		users:   users,
	}
}

// NewWorkoutServiceHandler builds an HTTP handler serving svc and returns the
// path prefix to mount it on.
func NewWorkoutServiceHandler(svc *WorkoutService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	listGenres := connect.NewUnaryHandler(WorkoutServiceListGenresProcedure, svc.ListGenres, opts...)
	planWorkout := connect.NewUnaryHandler(WorkoutServicePlanWorkoutProcedure, svc.PlanWorkout, opts...)
	buildPlaylist := connect.NewUnaryHandler(WorkoutServiceBuildPlaylistProcedure, svc.BuildPlaylist, opts...)

	return "/" + WorkoutServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case WorkoutServiceListGenresProcedure:
			listGenres.ServeHTTP(w, r)
		case WorkoutServicePlanWorkoutProcedure:
			planWorkout.ServeHTTP(w, r)
		case WorkoutServiceBuildPlaylistProcedure:
			buildPlaylist.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ListGenres returns the genre seeds, falling back to the static list.
func (s *WorkoutService) ListGenres(
	ctx context.Context,
	req *connect.Request[ListGenresRequest],
) (*connect.Response[ListGenresResponse], error) {
	listing := s.genres.List(ctx)
	return connect.NewResponse(&ListGenresResponse{
		Genres:   listing.Genres,
		Fallback: listing.Fallback,
	}), nil
}

// PlanWorkout computes zones and segments without touching Spotify.
func (s *WorkoutService) PlanWorkout(
	ctx context.Context,
	req *connect.Request[PlanWorkoutRequest],
) (*connect.Response[PlanWorkoutResponse], error) {
	if req.Msg.Age < 1 || req.Msg.Age >= 150 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("age must be in [1,150), got %d", req.Msg.Age))
	}
	if req.Msg.TotalMinutes < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("total_minutes must be non-negative, got %d", req.Msg.TotalMinutes))
	}

	zones, segments := s.builder.Plan(workout.Request{Age: req.Msg.Age, TotalMinutes: req.Msg.TotalMinutes})
	res := &PlanWorkoutResponse{
		Zones:    zones[:],
		Segments: make([]SegmentPlan, len(segments)),
	}
	for i, seg := range segments {
		res.Segments[i] = SegmentPlan{
			Zone:       seg.Zone,
			TargetBPM:  seg.TargetBPM,
			MinTempo:   seg.Tempo.Min,
			MaxTempo:   seg.Tempo.Max,
			TrackLimit: seg.TrackLimit,
		}
	}
	if len(segments) > 0 {
		res.TrackLimit = segments[0].TrackLimit
	}
	return connect.NewResponse(res), nil
}

// BuildPlaylist creates and fills a playlist for the token owner.
func (s *WorkoutService) BuildPlaylist(
	ctx context.Context,
	req *connect.Request[BuildPlaylistRequest],
) (*connect.Response[BuildPlaylistResponse], error) {
	token := strings.TrimSpace(strings.TrimPrefix(req.Header().Get(SpotifyTokenHeader), "Bearer "))
	if token == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.Newf("%s header is required", SpotifyTokenHeader))
	}

	report, err := s.builder.Build(ctx, s.users.ForToken(ctx, token), workout.Request{
		Age:          req.Msg.Age,
		TotalMinutes: req.Msg.TotalMinutes,
		Genres:       req.Msg.Genres,
		Distance:     req.Msg.Distance,
	})
	if err != nil {
		zlog.Warn().Msgf("build playlist failed: error=%v", err)
		return nil, connect.NewError(buildErrorCode(err), err)
	}
	return connect.NewResponse(toBuildResponse(report)), nil
}

func buildErrorCode(err error) connect.Code {
	switch {
	case errors.Is(err, builder.ErrInvalidRequest):
		return connect.CodeInvalidArgument
	case errors.Is(err, builder.ErrUserResolution):
		return connect.CodeUnauthenticated
	case errors.Is(err, builder.ErrPlaylistCreation):
		return connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

func toBuildResponse(r *playlist.Report) *BuildPlaylistResponse {
	res := &BuildPlaylistResponse{
		PlaylistID:  r.Playlist.ID,
		PlaylistURL: r.Playlist.URL,
		Name:        r.Name,
		Zones:       r.Zones[:],
		TrackLimit:  r.TrackLimit,
		Complete:    r.Complete(),
		Segments:    make([]SegmentOutcome, len(r.Segments)),
	}
	for i, o := range r.Segments {
		res.Segments[i] = SegmentOutcome{
			Zone:            o.Zone,
			TargetBPM:       o.TargetBPM,
			MinTempo:        o.Tempo.Min,
			MaxTempo:        o.Tempo.Max,
			TracksRequested: o.TracksRequested,
			TracksFound:     o.TracksFound,
			TracksAppended:  o.TracksAppended,
			Appended:        o.Appended,
			Error:           o.Error,
		}
	}
	return res
}

// spotifyTokenServices opens Spotify clients for bearer tokens.
type spotifyTokenServices struct {
	connector *spotify.Connector
}

// NewSpotifyTokenServices returns TokenServices backed by c.
func NewSpotifyTokenServices(c *spotify.Connector) TokenServices {
	return spotifyTokenServices{connector: c}
}

func (s spotifyTokenServices) ForToken(ctx context.Context, accessToken string) builder.MusicService {
	return s.connector.AppClient(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}
