// Package web serves the HTML front end: the preference form, the OAuth
// handshake and the playlist result page.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/osa030/xflow/internal/app/builder"
	"github.com/osa030/xflow/internal/app/genre"
	"github.com/osa030/xflow/internal/app/preferences"
	"github.com/osa030/xflow/internal/infra/spotify"
)

//go:embed templates/*.html
var templateFS embed.FS

// Authenticator runs the user authorization code flow.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error)
	UserService(ctx context.Context, token *oauth2.Token) builder.MusicService
}

// GenreLister lists the genres offered on the form.
type GenreLister interface {
	List(ctx context.Context) genre.Listing
}

// Config configures the web front end.
type Config struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	CORSOrigins  []string
	MaxGenres    int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg     Config
	auth    Authenticator
	genres  GenreLister
	builder *builder.Builder
	store   preferences.Store
	log     zerolog.Logger
	pages   *template.Template
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(cfg Config, auth Authenticator, genres GenreLister, b *builder.Builder, store preferences.Store, log zerolog.Logger) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "xflow_session"
	}
	s := &Server{
		cfg:     cfg,
		auth:    auth,
		genres:  genres,
		builder: b,
		store:   store,
		log:     log,
		pages:   template.Must(template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Mount serves h for every path below prefix.
func (s *Server) Mount(prefix string, h http.Handler) {
	s.router.Handle(prefix+"*", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS(s.cfg.CORSOrigins))

	s.router.Get("/", s.handleHome)
	s.router.Post("/store_preferences", s.handleStorePreferences)
	s.router.Get("/login", s.handleLogin)
	s.router.Get("/callback", s.handleCallback)
	s.router.Get("/healthz", s.handleHealth)
}

// spotifyAuthenticator adapts a Connector to Authenticator.
type spotifyAuthenticator struct {
	*spotify.Connector
}

// NewSpotifyAuthenticator wraps c for use by the web front end.
func NewSpotifyAuthenticator(c *spotify.Connector) Authenticator {
	return spotifyAuthenticator{Connector: c}
}

func (a spotifyAuthenticator) UserService(ctx context.Context, token *oauth2.Token) builder.MusicService {
	return a.UserClient(ctx, token)
}
