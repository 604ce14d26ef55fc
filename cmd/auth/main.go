// Package main provides the Spotify authorization tool. It runs the
// authorization code flow once and prints a user access token for xflow-cli.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/osa030/xflow/internal/infra/logger"
	"github.com/osa030/xflow/internal/infra/spotify"
)

var (
	app          = kingpin.New("xflow-auth", "Spotify authorization tool for xflow")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	wait         = app.Flag("wait", "How long to wait for the authorization").Default("5m").Duration()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Build redirect URI with custom port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)

	connector, err := spotify.NewConnector(spotify.Config{
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		RedirectURL:  redirectURL,
	})
	if err != nil {
		zlog.Fatal().Msgf("Failed to create Spotify connector: %v", err)
	}

	state := uuid.NewString()
	tokenCh := make(chan *oauth2.Token, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		token, err := connector.Exchange(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			zlog.Error().Msgf("Failed to get token: %v", err)
			return
		}
		fmt.Fprint(w, completePage)
		tokenCh <- token
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Msgf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize xflow:")
	fmt.Println("")
	fmt.Println(connector.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case <-time.After(*wait):
		zlog.Fatal().Msgf("Authorization not completed within %v", *wait)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Warn().Msgf("Failed to shutdown server: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Access Token:")
	fmt.Println(token.AccessToken)
	if !token.Expiry.IsZero() {
		fmt.Printf("(expires at %s)\n", token.Expiry.Format(time.RFC3339))
	}
	fmt.Println("")
	fmt.Println("Use it with xflow-cli:")
	fmt.Printf("export SPOTIFY_ACCESS_TOKEN=\"%s\"\n", token.AccessToken)
}

const completePage = `<!DOCTYPE html>
<html>
<head>
    <title>xflow - Authorization Complete</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #191414;
            color: white;
        }
    </style>
</head>
<body>
    <h1>Authorization complete</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`
