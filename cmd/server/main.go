// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/kamerplay/internal/api/connect"
	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/app/session"
	"github.com/osa030/kamerplay/internal/app/session/registry"
	"github.com/osa030/kamerplay/internal/infra/catalog"
	"github.com/osa030/kamerplay/internal/infra/config"
	"github.com/osa030/kamerplay/internal/infra/history"
	"github.com/osa030/kamerplay/internal/infra/logger"
	"github.com/osa030/kamerplay/internal/infra/storage"
)

var (
	app        = kingpin.New("kamerplay-server", "kamerplay audio playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// check-config command
	checkConfigCmd = app.Command("check-config", "Validate the config file and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output:  "stdout",
		Level:   "info",
		Service: app.Name,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
		loggerConfig.MaxBackups = 5
		loggerConfig.Compress = true
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkConfigCmd.FullCommand() {
		fmt.Printf("config OK: catalog=%s output=%s storage=%v history=%v\n",
			cfg.Catalog.BaseURL, cfg.Playback.Output.Type, cfg.StorageEnabled(), cfg.HistoryEnabled())
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalogClient, err := catalog.New(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Timeout: cfg.CatalogTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	var signer resolver.Signer
	if cfg.StorageEnabled() {
		s, err := storage.NewSigner(storage.Config{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Region:        cfg.Storage.Region,
			UseSSL:        cfg.Storage.UseSSL,
			Expiry:        cfg.URLExpiry(),
			DefaultBucket: cfg.Storage.DefaultBucket,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage signer: %w", err)
		}
		signer = s
		zlog.Info().Msgf("Object storage signing enabled: endpoint=%s", cfg.Storage.Endpoint)
	} else {
		zlog.Info().Msg("Object storage not configured, object references will be skipped")
	}

	var recorder session.HistoryRecorder
	if cfg.HistoryEnabled() {
		store, err := history.NewStore(ctx, history.Config{
			Addr:       cfg.History.Addr,
			Password:   cfg.History.Password,
			DB:         cfg.History.DB,
			MaxEntries: cfg.History.MaxEntries,
			KeyPrefix:  cfg.History.KeyPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to connect history store: %w", err)
		}
		defer store.Close()
		recorder = store
	} else {
		zlog.Info().Msg("History store not configured, playback history is disabled")
	}

	factory, err := session.NewFactory(cfg, catalogClient, resolver.New(signer), recorder)
	if err != nil {
		return fmt.Errorf("failed to create session factory: %w", err)
	}

	sessions := registry.New[*session.Manager](cfg.Server.MaxSessions)
	playerService := apiconnect.NewPlayerService(sessions, factory.New, cfg)

	mux := http.NewServeMux()
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		playerService,
		connect.WithInterceptors(apiconnect.NewAuthInterceptor()),
	)
	mux.Handle(playerPath, playerHandler)

	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go reapIdleSessions(ctx, sessions, cfg.SessionIdleTimeout())

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	// Close sessions first to terminate event streams
	sessions.CloseAll()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// reapIdleSessions closes sessions whose page went away without closing them.
func reapIdleSessions(ctx context.Context, sessions *registry.Registry[*session.Manager], maxIdle time.Duration) {
	interval := maxIdle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CloseIdle(maxIdle); n > 0 {
				zlog.Info().Msgf("Closed idle sessions: count=%d remaining=%d", n, sessions.Count())
			}
		}
	}
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
