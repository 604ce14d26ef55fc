package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zspotify "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "intl URL",
			input:    "https://open.spotify.com/intl-ja/playlist/abc123/",
			expected: "abc123",
		},
		{
			name:     "Plain playlist ID",
			input:    "37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPlaylistID(tt.input))
		})
	}
}

func TestExtractTrackID(t *testing.T) {
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("spotify:track:4uLU6hMCjMI75M1A2tKUQC"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=x"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID(" 4uLU6hMCjMI75M1A2tKUQC "))
}

func TestRetryPolicies(t *testing.T) {
	tests := []struct {
		status int
		read   bool
		write  bool
	}{
		{status: 0, read: false, write: false},
		{status: http.StatusTooManyRequests, read: true, write: true},
		{status: http.StatusInternalServerError, read: true, write: false},
		{status: http.StatusBadGateway, read: true, write: false},
		{status: http.StatusServiceUnavailable, read: true, write: false},
		{status: http.StatusGatewayTimeout, read: true, write: false},
		{status: http.StatusBadRequest, read: false, write: false},
		{status: http.StatusNotFound, read: false, write: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.read, retryableRead(tt.status))
			assert.Equal(t, tt.write, retryableWrite(tt.status))
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "library error", err: zspotify.Error{Status: 429, Message: "API rate limit exceeded"}, expected: 429},
		{name: "wrapped library error", err: errors.Wrap(zspotify.Error{Status: 503, Message: "unavailable"}, "call"), expected: 503},
		{name: "empty body", err: errors.New("spotify: HTTP 502: Bad Gateway (body empty)"), expected: 502},
		{name: "digits in message", err: errors.New("track 5003 not found in 500 results"), expected: 0},
		{name: "generic error", err: errors.New("something went wrong"), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusOf(tt.err))
		})
	}
}

func TestUpstreamError_Message(t *testing.T) {
	err := upstream("recommendations", zspotify.Error{Status: 400, Message: "invalid request"})

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "recommendations", ue.Op)
	assert.Equal(t, 400, ue.Status)
	assert.Equal(t, "recommendations: status 400: invalid request", ue.Error())
}

// fakeAPI is a minimal Spotify Web API used by the client tests.
type fakeAPI struct {
	recommendationsStatus int
	createStatus          int
	createBody            string
	addCalls              atomic.Int32
	addedURIs             [][]string
	lastQuery             atomic.Value

	// failures makes the first n calls to "METHOD /path" fail.
	failures map[string]injectedFailure
	mu       sync.Mutex
	calls    map[string]int
}

type injectedFailure struct {
	status    int
	times     int
	emptyBody bool
}

func (f *fakeAPI) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"app-token","token_type":"bearer","expires_in":3600}`)
	})

	mux.HandleFunc("/v1/recommendations/available-genre-seeds", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"genres":["acoustic","rock","work-out"]}`)
	})

	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"id":"runner","display_name":"Runner"}`)
	})

	mux.HandleFunc("/v1/users/runner/playlists", func(w http.ResponseWriter, r *http.Request) {
		status := f.createStatus
		if status == 0 {
			status = http.StatusCreated
		}
		body := f.createBody
		if body == "" {
			body = `{"id":"pl1","name":"xflow","external_urls":{"spotify":"https://open.spotify.com/playlist/pl1"}}`
		}
		writeJSON(w, status, body)
	})

	mux.HandleFunc("/v1/recommendations", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.Query())
		if f.recommendationsStatus != 0 && f.recommendationsStatus != http.StatusOK {
			writeJSON(w, f.recommendationsStatus, fmt.Sprintf(`{"error":{"status":%d,"message":"upstream trouble"}}`, f.recommendationsStatus))
			return
		}
		writeJSON(w, http.StatusOK, `{"seeds":[],"tracks":[
			{"id":"t1","uri":"spotify:track:t1","name":"Run","duration_ms":200000,"explicit":false,
			 "artists":[{"id":"a1","name":"Artist 1"}],"external_urls":{"spotify":"https://open.spotify.com/track/t1"}},
			{"id":"t2","uri":"spotify:track:t2","name":"Faster","duration_ms":180000,"explicit":true,
			 "artists":[{"id":"a2","name":"Artist 2"}]}
		]}`)
	})

	mux.HandleFunc("/v1/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.addCalls.Add(1)
		var payload struct {
			URIs []string `json:"uris"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		f.addedURIs = append(f.addedURIs, payload.URIs)
		writeJSON(w, http.StatusCreated, `{"snapshot_id":"snap"}`)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		if f.calls == nil {
			f.calls = make(map[string]int)
		}
		f.calls[key]++
		n := f.calls[key]
		failure, ok := f.failures[key]
		f.mu.Unlock()

		if ok && n <= failure.times {
			if failure.emptyBody {
				w.WriteHeader(failure.status)
				return
			}
			writeJSON(w, failure.status, fmt.Sprintf(`{"error":{"status":%d,"message":"injected failure"}}`, failure.status))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func newTestConnector(t *testing.T, api *fakeAPI) *Connector {
	t.Helper()
	return newTestConnectorWith(t, api, 2, time.Millisecond)
}

func newTestConnectorWith(t *testing.T, api *fakeAPI, maxRetries int, retryDelay time.Duration) *Connector {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	c, err := NewConnector(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:5001/callback",
		MaxRetries:   maxRetries,
		RetryDelay:   retryDelay,
		TokenURL:     server.URL + "/api/token",
		APIURL:       server.URL + "/v1/",
	})
	require.NoError(t, err)
	return c
}

func userToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "user-token", TokenType: "Bearer"}
}

func TestNewConnector_RequiresCredentials(t *testing.T) {
	_, err := NewConnector(Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestConnector_AuthURL(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{})

	u := c.AuthURL("state-123")
	assert.Contains(t, u, "accounts.spotify.com/authorize")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "playlist-modify-public")
	assert.Contains(t, u, "client_id=client-id")
}

func TestConnector_AvailableGenres(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{})

	genres, err := c.AvailableGenres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acoustic", "rock", "work-out"}, genres)
}

func TestConnector_AvailableGenres_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := NewConnector(Config{
		ClientID:     "client-id",
		ClientSecret: "wrong",
		TokenURL:     server.URL + "/api/token",
		APIURL:       server.URL + "/v1/",
	})
	require.NoError(t, err)

	_, err = c.AvailableGenres(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAppAuthentication))
}

func TestClient_CurrentUserAndCreatePlaylist(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{})
	client := c.UserClient(context.Background(), userToken())

	userID, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "runner", userID)

	handle, err := client.CreatePlaylist(context.Background(), userID, "xflow-now", "desc", true)
	require.NoError(t, err)
	assert.Equal(t, "pl1", handle.ID)
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", handle.URL)
}

func TestClient_CreatePlaylist_MissingURLFallsBack(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{createBody: `{"id":"pl1","name":"xflow"}`})
	client := c.UserClient(context.Background(), userToken())

	handle, err := client.CreatePlaylist(context.Background(), "runner", "xflow-now", "desc", true)
	require.NoError(t, err)
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", handle.URL)
}

func TestClient_CreatePlaylist_MissingID(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{createBody: `{"name":"xflow"}`})
	client := c.UserClient(context.Background(), userToken())

	_, err := client.CreatePlaylist(context.Background(), "runner", "xflow-now", "desc", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestClient_CreatePlaylist_Failure(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{
		createStatus: http.StatusForbidden,
		createBody:   `{"error":{"status":403,"message":"Insufficient client scope"}}`,
	})
	client := c.UserClient(context.Background(), userToken())

	_, err := client.CreatePlaylist(context.Background(), "runner", "xflow-now", "desc", true)
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 403, ue.Status)
	assert.Equal(t, "create playlist", ue.Op)
}

func TestClient_Recommendations(t *testing.T) {
	api := &fakeAPI{}
	c := newTestConnector(t, api)
	client := c.UserClient(context.Background(), userToken())

	tracks, err := client.Recommendations(context.Background(), RecommendationQuery{
		Limit:      6,
		Genres:     []string{"rock", "work-out"},
		MinTempo:   129.6,
		MaxTempo:   158.4,
		MaxArtists: 10,
	})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, "t1", tracks[0].ID)
	assert.Equal(t, "spotify:track:t1", tracks[0].URI)
	assert.Equal(t, []string{"Artist 1"}, tracks[0].Artists)
	assert.Equal(t, 200*time.Second, tracks[0].Duration)
	assert.Equal(t, "https://open.spotify.com/track/t1", tracks[0].URL)
	assert.True(t, tracks[1].Explicit)
	assert.Equal(t, "https://open.spotify.com/track/t2", tracks[1].URL)

	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, "rock,work-out", q.Get("seed_genres"))
	assert.Equal(t, "6", q.Get("limit"))
	assert.True(t, strings.HasPrefix(q.Get("min_tempo"), "129.6"))
	assert.True(t, strings.HasPrefix(q.Get("max_tempo"), "158.4"))
}

func TestClient_Recommendations_Failure(t *testing.T) {
	c := newTestConnector(t, &fakeAPI{recommendationsStatus: http.StatusServiceUnavailable})
	client := c.UserClient(context.Background(), userToken())

	_, err := client.Recommendations(context.Background(), RecommendationQuery{Limit: 1, Genres: []string{"rock"}})
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "recommendations", ue.Op)
	assert.Equal(t, http.StatusServiceUnavailable, ue.Status)
}

func TestClient_AddTracksToPlaylist_Batches(t *testing.T) {
	api := &fakeAPI{}
	c := newTestConnector(t, api)
	client := c.UserClient(context.Background(), userToken())

	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("spotify:track:t%d", i)
	}

	require.NoError(t, client.AddTracksToPlaylist(context.Background(), "pl1", ids))
	assert.Equal(t, int32(2), api.addCalls.Load())
	require.Len(t, api.addedURIs, 2)
	assert.Len(t, api.addedURIs[0], 100)
	assert.Len(t, api.addedURIs[1], 50)
	assert.Equal(t, "spotify:track:t0", api.addedURIs[0][0])
}

func TestClient_AddTracksToPlaylist_Empty(t *testing.T) {
	api := &fakeAPI{}
	c := newTestConnector(t, api)
	client := c.UserClient(context.Background(), userToken())

	require.NoError(t, client.AddTracksToPlaylist(context.Background(), "pl1", nil))
	assert.Equal(t, int32(0), api.addCalls.Load())
}

func TestClient_RetryLoop(t *testing.T) {
	const (
		createKey  = "POST /v1/users/runner/playlists"
		addKey     = "POST /v1/playlists/pl1/tracks"
		meKey      = "GET /v1/me"
		recsKey    = "GET /v1/recommendations"
		maxRetries = 3
	)

	createPlaylist := func(ctx context.Context, c *Client) error {
		_, err := c.CreatePlaylist(ctx, "runner", "xflow-now", "desc", true)
		return err
	}
	addTracks := func(ctx context.Context, c *Client) error {
		return c.AddTracksToPlaylist(ctx, "pl1", []string{"spotify:track:t1"})
	}
	currentUser := func(ctx context.Context, c *Client) error {
		_, err := c.CurrentUser(ctx)
		return err
	}
	recommendations := func(ctx context.Context, c *Client) error {
		_, err := c.Recommendations(ctx, RecommendationQuery{Limit: 1, Genres: []string{"rock"}})
		return err
	}

	tests := []struct {
		name      string
		key       string
		failure   injectedFailure
		call      func(context.Context, *Client) error
		wantCalls int
		wantErr   bool
	}{
		{"create playlist is not resent after 5xx", createKey, injectedFailure{status: 502, times: 1}, createPlaylist, 1, true},
		{"create playlist is resent after 429", createKey, injectedFailure{status: 429, times: 1}, createPlaylist, 2, false},
		{"add tracks is not resent after 5xx", addKey, injectedFailure{status: 502, times: 1}, addTracks, 1, true},
		{"add tracks is resent after 429", addKey, injectedFailure{status: 429, times: 1}, addTracks, 2, false},
		{"current user is resent after 5xx", meKey, injectedFailure{status: 503, times: 1}, currentUser, 2, false},
		{"recommendations give up after max retries", recsKey, injectedFailure{status: 502, times: 10}, recommendations, maxRetries, true},
		{"recommendations resent after empty 5xx body", recsKey, injectedFailure{status: 503, times: 1, emptyBody: true}, recommendations, 2, false},
		{"recommendations not resent after 404", recsKey, injectedFailure{status: 404, times: 1}, recommendations, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{failures: map[string]injectedFailure{tt.key: tt.failure}}
			c := newTestConnectorWith(t, api, maxRetries, time.Millisecond)
			client := c.UserClient(context.Background(), userToken())

			err := tt.call(context.Background(), client)
			if tt.wantErr {
				require.Error(t, err)
				var ue *UpstreamError
				require.True(t, errors.As(err, &ue))
				assert.Equal(t, tt.failure.status, ue.Status)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, api.callCount(tt.key))
		})
	}
}

func TestClient_RetryBackoffHonoursContext(t *testing.T) {
	api := &fakeAPI{failures: map[string]injectedFailure{
		"GET /v1/recommendations": {status: 503, times: 10},
	}}
	c := newTestConnectorWith(t, api, 5, time.Minute)
	client := c.UserClient(context.Background(), userToken())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := client.Recommendations(ctx, RecommendationQuery{Limit: 1, Genres: []string{"rock"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(started), 10*time.Second)
	assert.Equal(t, 1, api.callCount("GET /v1/recommendations"))
}
