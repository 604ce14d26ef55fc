package spotify

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// ErrAppAuthentication is returned when the client-credentials token exchange fails.
var ErrAppAuthentication = errors.New("spotify app authentication failed")

// Config represents Spotify client configuration.
type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	Market         string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second shared by all clients, 0 disables

	// Overridable endpoints, used by tests.
	TokenURL string
	APIURL   string
}

// Connector creates Spotify clients for the application and for users.
// It owns the OAuth configuration and the rate limiter shared by every client.
type Connector struct {
	cfg     Config
	auth    *spotifyauth.Authenticator
	app     *clientcredentials.Config
	limiter *rate.Limiter
}

// NewConnector creates a new Connector.
func NewConnector(cfg Config) (*Connector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(spotifyauth.ScopePlaylistModifyPublic),
	)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Connector{
		cfg:  cfg,
		auth: auth,
		app: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		},
		limiter: limiter,
	}, nil
}

// AuthURL returns the URL the user is redirected to for authorization.
func (c *Connector) AuthURL(state string) string {
	return c.auth.AuthURL(state)
}

// Exchange validates the callback request against state and exchanges the
// authorization code for a user token.
func (c *Connector) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	token, err := c.auth.Token(c.transportContext(ctx), state, r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}
	return token, nil
}

// AppToken performs the client-credentials exchange.
func (c *Connector) AppToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := c.app.Token(c.transportContext(ctx))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "client credentials exchange"), ErrAppAuthentication)
	}
	return token, nil
}

// AvailableGenres fetches the genre seeds using an application token.
func (c *Connector) AvailableGenres(ctx context.Context) ([]string, error) {
	token, err := c.AppToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.AppClient(ctx, token).AvailableGenres(ctx)
}

// AppClient returns a client authorized with an application token.
func (c *Connector) AppClient(ctx context.Context, token *oauth2.Token) *Client {
	httpClient := oauth2.NewClient(c.transportContext(ctx), oauth2.StaticTokenSource(token))
	return c.wrap(httpClient)
}

// UserClient returns a client authorized with a user token.
// The token is refreshed automatically when it carries a refresh token.
func (c *Connector) UserClient(ctx context.Context, token *oauth2.Token) *Client {
	httpClient := c.auth.Client(c.transportContext(ctx), token)
	return c.wrap(httpClient)
}

func (c *Connector) wrap(httpClient *http.Client) *Client {
	if c.cfg.RequestTimeout > 0 {
		httpClient.Timeout = c.cfg.RequestTimeout
	}
	var opts []spotify.ClientOption
	if c.cfg.APIURL != "" {
		opts = append(opts, spotify.WithBaseURL(c.cfg.APIURL))
	}
	return newClient(spotify.New(httpClient, opts...), c.cfg.Market, c.cfg.MaxRetries, c.cfg.RetryDelay, c.limiter)
}

// transportContext carries the base HTTP client used for token and API calls.
func (c *Connector) transportContext(ctx context.Context) context.Context {
	if c.cfg.RequestTimeout <= 0 {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: c.cfg.RequestTimeout})
}
