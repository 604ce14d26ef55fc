package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// WorkoutServiceClient calls the WorkoutService.
type WorkoutServiceClient struct {
	listGenres    *connect.Client[ListGenresRequest, ListGenresResponse]
	planWorkout   *connect.Client[PlanWorkoutRequest, PlanWorkoutResponse]
	buildPlaylist *connect.Client[BuildPlaylistRequest, BuildPlaylistResponse]
	apiToken      string
}

// NewWorkoutServiceClient creates a client for the service at baseURL.
// apiToken is sent with every call when non-empty.
func NewWorkoutServiceClient(httpClient connect.HTTPClient, baseURL, apiToken string, opts ...connect.ClientOption) *WorkoutServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &WorkoutServiceClient{
		listGenres:    connect.NewClient[ListGenresRequest, ListGenresResponse](httpClient, baseURL+WorkoutServiceListGenresProcedure, opts...),
		planWorkout:   connect.NewClient[PlanWorkoutRequest, PlanWorkoutResponse](httpClient, baseURL+WorkoutServicePlanWorkoutProcedure, opts...),
		buildPlaylist: connect.NewClient[BuildPlaylistRequest, BuildPlaylistResponse](httpClient, baseURL+WorkoutServiceBuildPlaylistProcedure, opts...),
		apiToken:      apiToken,
	}
}

// ListGenres calls WorkoutService.ListGenres.
func (c *WorkoutServiceClient) ListGenres(ctx context.Context) (*ListGenresResponse, error) {
	res, err := c.listGenres.CallUnary(ctx, newRequest(&ListGenresRequest{}, c.apiToken))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// PlanWorkout calls WorkoutService.PlanWorkout.
func (c *WorkoutServiceClient) PlanWorkout(ctx context.Context, msg *PlanWorkoutRequest) (*PlanWorkoutResponse, error) {
	res, err := c.planWorkout.CallUnary(ctx, newRequest(msg, c.apiToken))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// BuildPlaylist calls WorkoutService.BuildPlaylist on behalf of the owner of
// spotifyToken.
func (c *WorkoutServiceClient) BuildPlaylist(ctx context.Context, spotifyToken string, msg *BuildPlaylistRequest) (*BuildPlaylistResponse, error) {
	req := newRequest(msg, c.apiToken)
	req.Header().Set(SpotifyTokenHeader, spotifyToken)
	res, err := c.buildPlaylist.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func newRequest[T any](msg *T, apiToken string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if apiToken != "" {
		req.Header().Set(APITokenHeader, apiToken)
	}
	return req
}
