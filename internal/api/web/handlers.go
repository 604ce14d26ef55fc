package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/osa030/xflow/internal/app/builder"
	"github.com/osa030/xflow/internal/app/preferences"
	"github.com/osa030/xflow/internal/domain/playlist"
	"github.com/osa030/xflow/internal/domain/workout"
)

// ErrMissingAuthorizationCode is returned when the callback carries no code.
var ErrMissingAuthorizationCode = errors.New("no code provided by Spotify")

const (
	stateCookieName = "xflow_oauth_state"
	stateTTL        = 10 * time.Minute
)

var templateFuncs = template.FuncMap{
	"inc":       func(i int) int { return i + 1 },
	"bpm":       func(f float64) string { return fmt.Sprintf("%.1f", f) },
	"zoneLabel": zoneLabel,
}

type homePage struct {
	Genres         []string
	GenreFallback  bool
	MaxGenres      int
	Distances      []int
	Ages           []int
	Hours          []int
	Minutes        []int
	DefaultAge     int
	DefaultMinutes int
}

type resultPage struct {
	Genres   []string
	Minutes  int
	Distance int
	Age      int
	Report   *playlist.Report
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	listing := s.genres.List(r.Context())
	s.render(w, r, "home.html", homePage{
		Genres:         listing.Genres,
		GenreFallback:  listing.Fallback,
		MaxGenres:      s.cfg.MaxGenres,
		Distances:      distanceChoices,
		Ages:           ageChoices,
		Hours:          hourChoices,
		Minutes:        minuteChoices,
		DefaultAge:     30,
		DefaultMinutes: 30,
	})
}

func (s *Server) handleStorePreferences(w http.ResponseWriter, r *http.Request) {
	req, err := parsePreferences(r, s.cfg.MaxGenres)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "Error: "+err.Error(), err)
		return
	}

	id := preferences.NewID()
	if err := s.store.Save(r.Context(), id, req); err != nil {
		s.fail(w, r, http.StatusInternalServerError, "Error: could not store preferences", err)
		return
	}

	http.SetCookie(w, s.cookie(s.cfg.CookieName, id, s.cfg.SessionTTL))
	hlog.FromRequest(r).Info().Msgf("preferences stored: age=%d minutes=%d genres=%d", req.Age, req.TotalMinutes, len(req.Genres))
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, s.cookie(stateCookieName, state, stateTTL))
	http.Redirect(w, r, s.auth.AuthURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		s.fail(w, r, http.StatusBadRequest, "Error: Spotify authorization failed: "+providerErr,
			errors.Newf("authorization denied: %s", providerErr))
		return
	}
	if q.Get("code") == "" {
		s.fail(w, r, http.StatusBadRequest, "Error: No code provided by Spotify", ErrMissingAuthorizationCode)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		s.fail(w, r, http.StatusBadRequest, "Error: invalid authorization state", errors.New("oauth state mismatch"))
		return
	}
	http.SetCookie(w, s.cookie(stateCookieName, "", -1))

	sessionID := ""
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		sessionID = c.Value
	}
	req, err := s.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, preferences.ErrMissingSessionState) {
			s.fail(w, r, http.StatusBadRequest, "Error: workout preferences not found, please submit the form again", err)
			return
		}
		s.fail(w, r, http.StatusInternalServerError, "Error: could not load preferences", err)
		return
	}

	token, err := s.auth.Exchange(ctx, stateCookie.Value, r)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "Error: could not authenticate with Spotify", err)
		return
	}

	report, err := s.builder.Build(ctx, s.auth.UserService(ctx, token), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, builder.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		s.fail(w, r, status, "Error: could not create playlist", err)
		return
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		hlog.FromRequest(r).Warn().Msgf("failed to delete preferences: session=%s error=%v", sessionID, err)
	}
	http.SetCookie(w, s.cookie(s.cfg.CookieName, "", -1))

	s.render(w, r, "result.html", resultPage{
		Genres:   req.Genres,
		Minutes:  req.TotalMinutes,
		Distance: req.Distance,
		Age:      req.Age,
		Report:   report,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// render executes a page into a buffer first so template errors become a 500
// instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.fail(w, r, http.StatusInternalServerError, "Error: could not render page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// fail logs err and writes msg as a plain-text response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Msgf("request failed: path=%s status=%d error=%v", r.URL.Path, status, err)
	http.Error(w, msg, status)
}

// cookie builds an HttpOnly cookie. A negative ttl deletes it.
func (s *Server) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		c.MaxAge = -1
	case ttl > 0:
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

// zoneLabel names a zone index for display.
func zoneLabel(z int) string {
	switch z {
	case 0:
		return "warm-up"
	case 1:
		return "steady"
	case workout.NumSegments - 1:
		return "push"
	default:
		return fmt.Sprintf("zone %d", z)
	}
}
