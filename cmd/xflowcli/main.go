// Package main provides the WorkoutService CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/xflow/internal/api/connect"
	"github.com/osa030/xflow/internal/domain/workout"
)

var (
	app     = kingpin.New("xflow-cli", "xflow running playlist client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "API token (or set XFLOW_API_TOKEN env)").Envar("XFLOW_API_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("60s").Duration()

	// genres command
	genresCmd = app.Command("genres", "List available genres")

	// plan command
	planCmd     = app.Command("plan", "Show zones and tempo bands without creating a playlist")
	planAge     = planCmd.Flag("age", "Runner age").Required().Int()
	planHours   = planCmd.Flag("hours", "Pace hours").Default("0").Int()
	planMinutes = planCmd.Flag("minutes", "Pace minutes").Default("0").Int()

	// build command
	buildCmd      = app.Command("build", "Create a zone-segmented playlist")
	buildSpotify  = buildCmd.Flag("spotify-token", "Spotify user access token (or set SPOTIFY_ACCESS_TOKEN env)").Envar("SPOTIFY_ACCESS_TOKEN").Required().String()
	buildAge      = buildCmd.Flag("age", "Runner age").Required().Int()
	buildHours    = buildCmd.Flag("hours", "Pace hours").Default("0").Int()
	buildMinutes  = buildCmd.Flag("minutes", "Pace minutes").Default("0").Int()
	buildDistance = buildCmd.Flag("distance", "Distance in km").Default("0").Int()
	buildGenres   = buildCmd.Flag("genre", "Genre seed (repeatable)").Required().Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewWorkoutServiceClient(http.DefaultClient, *server, *token)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch command {
	case genresCmd.FullCommand():
		err = listGenres(ctx, client)
	case planCmd.FullCommand():
		err = plan(ctx, client, *planAge, workout.HoursMinutes(*planHours, *planMinutes))
	case buildCmd.FullCommand():
		err = build(ctx, client, &apiconnect.BuildPlaylistRequest{
			Age:          *buildAge,
			TotalMinutes: workout.HoursMinutes(*buildHours, *buildMinutes),
			Distance:     *buildDistance,
			Genres:       *buildGenres,
		})
	}
	if err != nil {
		fmt.Printf("Error [%s]: %v\n", connect.CodeOf(err), err)
		os.Exit(1)
	}
}

func listGenres(ctx context.Context, client *apiconnect.WorkoutServiceClient) error {
	resp, err := client.ListGenres(ctx)
	if err != nil {
		return err
	}

	if resp.Fallback {
		fmt.Println("Genres (fallback list, Spotify unavailable):")
	} else {
		fmt.Println("Genres:")
	}
	for _, g := range resp.Genres {
		fmt.Printf("  %s\n", g)
	}
	return nil
}

func plan(ctx context.Context, client *apiconnect.WorkoutServiceClient, age, totalMinutes int) error {
	resp, err := client.PlanWorkout(ctx, &apiconnect.PlanWorkoutRequest{Age: age, TotalMinutes: totalMinutes})
	if err != nil {
		return err
	}

	fmt.Printf("Zones: %s\n", formatZones(resp.Zones))
	fmt.Printf("Tracks per segment: %d\n", resp.TrackLimit)
	fmt.Println("")
	for _, seg := range resp.Segments {
		fmt.Printf("  Zone %d: target=%d bpm tempo=%.1f-%.1f limit=%d\n",
			seg.Zone+1, seg.TargetBPM, seg.MinTempo, seg.MaxTempo, seg.TrackLimit)
	}
	return nil
}

func build(ctx context.Context, client *apiconnect.WorkoutServiceClient, req *apiconnect.BuildPlaylistRequest) error {
	started := time.Now()
	resp, err := client.BuildPlaylist(ctx, *buildSpotify, req)
	if err != nil {
		return err
	}

	fmt.Printf("Playlist: %s\n", resp.Name)
	fmt.Printf("URL: %s\n", resp.PlaylistURL)
	fmt.Printf("Zones: %s\n", formatZones(resp.Zones))
	fmt.Println("")
	for _, seg := range resp.Segments {
		status := "✓ appended"
		if !seg.Appended {
			status = "✗ failed: " + seg.Error
		}
		fmt.Printf("  Zone %d (%d bpm, %.1f-%.1f): %d/%d tracks %s\n",
			seg.Zone+1, seg.TargetBPM, seg.MinTempo, seg.MaxTempo, seg.TracksAppended, seg.TracksRequested, status)
	}
	fmt.Println("")
	if !resp.Complete {
		fmt.Println("Some segments could not be filled.")
	}
	fmt.Printf("Done in %v\n", time.Since(started).Round(time.Millisecond))
	return nil
}

func formatZones(zones []int) string {
	parts := make([]string, len(zones))
	for i, z := range zones {
		parts[i] = fmt.Sprint(z)
	}
	return strings.Join(parts, " / ")
}
