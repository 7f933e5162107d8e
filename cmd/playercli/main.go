// Package main provides the player CLI entry point for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/kamerplay/internal/api/connect"
)

var (
	app    = kingpin.New("kamerplay-playercli", "kamerplay player client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Viewer bearer token").Envar("KAMERPLAY_TOKEN").Required().String()

	// open command
	openCmd    = app.Command("open", "Open a player session")
	openViewer = openCmd.Arg("viewer-id", "Viewer ID (optional)").String()

	// close command
	closeCmd     = app.Command("close", "Close a player session")
	closeSession = closeCmd.Arg("session-id", "Session ID").Required().String()

	// play command
	playCmd     = app.Command("play", "Play a track (toggles if already loaded)")
	playSession = playCmd.Arg("session-id", "Session ID").Required().String()
	playTrack   = playCmd.Arg("track-id", "Track ID").Required().String()

	// toggle command
	toggleCmd     = app.Command("toggle", "Toggle play/pause")
	toggleSession = toggleCmd.Arg("session-id", "Session ID").Required().String()

	// stop command
	stopCmd     = app.Command("stop", "Stop and rewind")
	stopSession = stopCmd.Arg("session-id", "Session ID").Required().String()

	// seek command
	seekCmd      = app.Command("seek", "Seek to a position")
	seekSession  = seekCmd.Arg("session-id", "Session ID").Required().String()
	seekPosition = seekCmd.Arg("position", "Position (e.g. 12s, 1m30s)").Required().Duration()

	// volume command
	volumeCmd     = app.Command("volume", "Set the volume")
	volumeSession = volumeCmd.Arg("session-id", "Session ID").Required().String()
	volumeLevel   = volumeCmd.Arg("level", "Volume (0.0-1.0)").Required().Float64()

	// next / prev commands
	nextCmd     = app.Command("next", "Play the next playlist track")
	nextSession = nextCmd.Arg("session-id", "Session ID").Required().String()
	prevCmd     = app.Command("prev", "Play the previous playlist track")
	prevSession = prevCmd.Arg("session-id", "Session ID").Required().String()

	// status command
	statusCmd     = app.Command("status", "Show the session status")
	statusSession = statusCmd.Arg("session-id", "Session ID").Required().String()

	// upload command
	uploadCmd     = app.Command("upload", "Preview a local audio file")
	uploadSession = uploadCmd.Arg("session-id", "Session ID").Required().String()
	uploadFile    = uploadCmd.Arg("file", "Audio file").Required().ExistingFile()

	// revoke command
	revokeCmd     = app.Command("revoke", "Revoke an upload preview URL")
	revokeSession = revokeCmd.Arg("session-id", "Session ID").Required().String()
	revokeURL     = revokeCmd.Arg("object-url", "Object URL").Required().String()

	// subscribe command
	subscribeCmd     = app.Command("subscribe", "Subscribe to playback events")
	subscribeSession = subscribeCmd.Arg("session-id", "Session ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewPlayerServiceClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	var (
		res *apiconnect.StatusResponse
		err error
	)

	switch command {
	case openCmd.FullCommand():
		var opened *apiconnect.OpenSessionResponse
		opened, err = client.OpenSession(ctx, &apiconnect.OpenSessionRequest{ViewerID: *openViewer})
		if err == nil {
			fmt.Printf("Session opened: %s\n", opened.SessionID)
			printStatus(opened.Status)
		}
	case closeCmd.FullCommand():
		err = client.CloseSession(ctx, *closeSession)
		if err == nil {
			fmt.Println("Session closed")
		}
	case playCmd.FullCommand():
		res, err = client.Play(ctx, &apiconnect.PlayRequest{SessionID: *playSession, TrackID: *playTrack})
	case toggleCmd.FullCommand():
		res, err = client.PlayPause(ctx, *toggleSession)
	case stopCmd.FullCommand():
		res, err = client.Stop(ctx, *stopSession)
	case seekCmd.FullCommand():
		res, err = client.Seek(ctx, &apiconnect.SeekRequest{SessionID: *seekSession, PositionMs: seekPosition.Milliseconds()})
	case volumeCmd.FullCommand():
		res, err = client.SetVolume(ctx, &apiconnect.SetVolumeRequest{SessionID: *volumeSession, Volume: *volumeLevel})
	case nextCmd.FullCommand():
		res, err = client.Next(ctx, *nextSession)
	case prevCmd.FullCommand():
		res, err = client.Previous(ctx, *prevSession)
	case statusCmd.FullCommand():
		res, err = client.GetStatus(ctx, *statusSession)
	case uploadCmd.FullCommand():
		err = upload(ctx, client, *uploadSession, *uploadFile)
	case revokeCmd.FullCommand():
		var revoked *apiconnect.RevokePreviewResponse
		revoked, err = client.RevokePreview(ctx, &apiconnect.RevokePreviewRequest{SessionID: *revokeSession, ObjectURL: *revokeURL})
		if err == nil {
			fmt.Printf("Revoked: %v\n", revoked.Revoked)
		}
	case subscribeCmd.FullCommand():
		err = subscribe(ctx, client, *subscribeSession)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if res != nil {
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		printStatus(res.Status)
	}
}

func upload(ctx context.Context, client *apiconnect.PlayerServiceClient, sessionID, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	res, err := client.UploadPreview(ctx, &apiconnect.UploadPreviewRequest{
		SessionID: sessionID,
		FileName:  filepath.Base(file),
		Data:      data,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Previewing %s as %s\n", file, res.ObjectURL)
	printStatus(res.Status)
	return nil
}

func subscribe(ctx context.Context, client *apiconnect.PlayerServiceClient, sessionID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	stream, err := client.SubscribeEvents(ctx, sessionID)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Subscribed to events. Press Ctrl+C to exit.")

	for stream.Receive() {
		msg := stream.Msg()
		// Time updates are frequent, keep them on one line
		if msg.Type == "time_update" {
			fmt.Printf("\r[%d] %s / %s", msg.SequenceNo, millis(msg.Status.PositionMs), millis(msg.Status.DurationMs))
			continue
		}
		fmt.Printf("\n[%d] %s", msg.SequenceNo, msg.Type)
		if msg.Message != "" {
			fmt.Printf(": %s", msg.Message)
		}
		fmt.Println()
		printStatus(msg.Status)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Println("\nStream ended")
	return nil
}

func printStatus(s apiconnect.Status) {
	if s.Track == nil {
		fmt.Printf("  state=%s volume=%.2f (no track)\n", s.State, s.Volume)
	} else {
		mode := "full"
		if s.PreviewMode {
			mode = fmt.Sprintf("preview %s", millis(s.PreviewLimitMs))
		}
		fmt.Printf("  %s - %s [%s]\n", s.Track.Title, s.Track.Artist, s.Track.ID)
		fmt.Printf("  state=%s position=%s duration=%s volume=%.2f mode=%s\n",
			s.State, millis(s.PositionMs), millis(s.DurationMs), s.Volume, mode)
	}

	for i, t := range s.Playlist {
		marker := " "
		if i == s.CurrentIndex {
			marker = ">"
		}
		fmt.Printf("  %s %2d. %s [%s]\n", marker, i+1, t.Title, t.ID)
	}
}

func millis(ms int64) time.Duration {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second)
}
