// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/kamerplay/internal/infra/catalog"
	"github.com/osa030/kamerplay/internal/infra/config"
	"github.com/osa030/kamerplay/internal/infra/history"
	"github.com/osa030/kamerplay/internal/infra/probe"
	"github.com/osa030/kamerplay/internal/infra/storage"
)

var (
	app        = kingpin.New("kamerplay-admincli", "kamerplay admin tool")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()

	// history command
	historyCmd    = app.Command("history", "Show a viewer's recent plays")
	historyViewer = historyCmd.Arg("viewer-id", "Viewer ID").Required().String()
	historyLimit  = historyCmd.Flag("limit", "Number of entries").Default("20").Int()

	// sign command
	signCmd = app.Command("sign", "Presign an object reference")
	signRef = signCmd.Arg("ref", "Object reference (object://bucket/key)").Required().String()

	// probe command
	probeCmd  = app.Command("probe", "Read tags and duration of a local audio file")
	probeFile = probeCmd.Arg("file", "Audio file").Required().ExistingFile()

	// track command
	trackCmd   = app.Command("track", "Look up a track as a viewer")
	trackID    = trackCmd.Arg("track-id", "Track ID").Required().String()
	trackToken = trackCmd.Flag("token", "Viewer bearer token").Envar("KAMERPLAY_TOKEN").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// probe does not need the config
	if command == probeCmd.FullCommand() {
		exitOnError(probeLocal(*probeFile))
		return
	}

	cfg, err := config.Load(*configPath)
	exitOnError(err)

	switch command {
	case historyCmd.FullCommand():
		err = showHistory(ctx, cfg, *historyViewer, *historyLimit)
	case signCmd.FullCommand():
		err = sign(ctx, cfg, *signRef)
	case trackCmd.FullCommand():
		err = showTrack(ctx, cfg, *trackToken, *trackID)
	}
	exitOnError(err)
}

func showHistory(ctx context.Context, cfg *config.Config, viewerID string, limit int) error {
	if !cfg.HistoryEnabled() {
		return fmt.Errorf("history store is not configured")
	}

	store, err := history.NewStore(ctx, history.Config{
		Addr:       cfg.History.Addr,
		Password:   cfg.History.Password,
		DB:         cfg.History.DB,
		MaxEntries: cfg.History.MaxEntries,
		KeyPrefix:  cfg.History.KeyPrefix,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, viewerID, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No plays recorded")
		return nil
	}

	fmt.Printf("Recent plays of %s:\n", viewerID)
	for _, e := range entries {
		mode := "full"
		if e.Preview {
			mode = "preview"
		}
		fmt.Printf("  %s  %-7s %s - %s [%s]\n", e.PlayedAt.Local().Format(time.DateTime), mode, e.Title, e.Artist, e.TrackID)
	}
	return nil
}

func sign(ctx context.Context, cfg *config.Config, ref string) error {
	if !cfg.StorageEnabled() {
		return fmt.Errorf("object storage is not configured")
	}

	signer, err := storage.NewSigner(storage.Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Region:        cfg.Storage.Region,
		UseSSL:        cfg.Storage.UseSSL,
		Expiry:        cfg.URLExpiry(),
		DefaultBucket: cfg.Storage.DefaultBucket,
	})
	if err != nil {
		return err
	}

	url, err := signer.Sign(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

func showTrack(ctx context.Context, cfg *config.Config, token, id string) error {
	client, err := catalog.New(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Timeout: cfg.CatalogTimeout(),
	})
	if err != nil {
		return err
	}

	t, err := client.ForViewer(token).Track(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s - %s [%s]\n", t.Title, t.Artist, t.ID)
	fmt.Printf("  free=%v purchased=%v price=%.0f duration=%s fully_playable=%v\n",
		t.IsFree, t.IsPurchased, t.Price, t.Duration, t.IsFullyPlayable())
	fmt.Printf("  audio=%q file=%q preview=%q\n", t.AudioURL, t.FileURL, t.PreviewURL)
	return nil
}

func probeLocal(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	meta := probe.Read(f, filepath.Base(file))
	fmt.Printf("title=%q artist=%q album=%q duration=%s\n", meta.Title, meta.Artist, meta.Album, meta.Duration)
	return nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
