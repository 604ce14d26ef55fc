// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/xflow/internal/api/connect"
	"github.com/osa030/xflow/internal/api/web"
	"github.com/osa030/xflow/internal/app/builder"
	"github.com/osa030/xflow/internal/app/filter"
	"github.com/osa030/xflow/internal/app/genre"
	"github.com/osa030/xflow/internal/infra/config"
	"github.com/osa030/xflow/internal/infra/logger"
	"github.com/osa030/xflow/internal/infra/sessionstore"
	"github.com/osa030/xflow/internal/infra/spotify"
)

var (
	app        = kingpin.New("xflow-server", "xflow running playlist server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	jsonLogs   = app.Flag("json-logs", "Write JSON log lines instead of console output").Bool()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		JSON:   *jsonLogs,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	filters, err := filter.NewChainFromConfig(enabledFilters(cfg))
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	connector, err := spotify.NewConnector(spotify.Config{
		ClientID:       cfg.Spotify.ClientID,
		ClientSecret:   cfg.Spotify.ClientSecret,
		RedirectURL:    cfg.Spotify.RedirectURL,
		Market:         cfg.Spotify.Market,
		MaxRetries:     cfg.Spotify.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		RequestTimeout: cfg.RequestTimeout(),
		RateLimit:      cfg.Spotify.RateLimit,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create Spotify connector")
	}

	checkCredentials(ctx, connector)

	store, err := sessionstore.Open(ctx, cfg.Session.DSN, cfg.SessionTTL())
	if err != nil {
		return errors.Wrap(err, "failed to open session store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Error().Msgf("Failed to close session store: %v", err)
		}
	}()

	catalog := genre.NewCatalog(connector, cfg.Genres.Fallback, cfg.GenreCacheTTL())
	b := builder.New(builder.Config{
		TempoTolerance:      cfg.Workout.TempoTolerance,
		MaxArtists:          cfg.Workout.MaxArtists,
		AverageTrackMinutes: cfg.Workout.AverageTrackMinutes,
		MaxGenres:           cfg.Workout.MaxGenres,
		PlaylistPrefix:      cfg.Workout.PlaylistPrefix,
		Public:              cfg.IsPlaylistPublic(),
	}, filters)

	site := web.New(web.Config{
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.SessionTTL(),
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxGenres:    cfg.Workout.MaxGenres,
	}, web.NewSpotifyAuthenticator(connector), catalog, b, store, zlog.Logger)

	workoutService := apiconnect.NewWorkoutService(catalog, b, apiconnect.NewSpotifyTokenServices(connector))
	rpcPath, rpcHandler := apiconnect.NewWorkoutServiceHandler(
		workoutService,
		connect.WithInterceptors(apiconnect.NewAPITokenInterceptor(cfg.API.Token)),
	)
	site.Mount(rpcPath, rpcHandler)
	if cfg.API.Token == "" {
		zlog.Warn().Msg("api.token is not set, the RPC surface is unauthenticated")
	}

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(site, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s redirect_url=%s", cfg.Server.Addr, cfg.Spotify.RedirectURL)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// enabledFilters returns the filter settings that are switched on.
func enabledFilters(cfg *config.Config) map[string]config.FilterConfig {
	enabled := make(map[string]config.FilterConfig)
	for name, fc := range cfg.Filters {
		if cfg.IsFilterEnabled(name) {
			enabled[name] = fc
		}
	}
	return enabled
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// checkCredentials verifies the client credentials against Spotify with retry.
// Failure only warns: the genre catalog falls back to its static list and
// user logins surface their own errors.
func checkCredentials(ctx context.Context, connector *spotify.Connector) {
	const maxRetries = 3
	baseDelay := 1 * time.Second

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying Spotify credential check in %v...", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if _, err := connector.AppToken(ctx); err != nil {
			zlog.Warn().Msgf("Spotify credential check failed (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		zlog.Info().Msg("Spotify credentials validated successfully")
		return
	}
	zlog.Warn().Msg("Spotify credentials could not be validated, genre list will use the fallback")
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
