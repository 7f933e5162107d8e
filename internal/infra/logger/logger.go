// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config represents logger configuration.
type Config struct {
	Output  string // "stdout", "stderr", or anything else for File
	Level   string // "debug", "info", "warn", "error"
	File    string // log file path
	Service string // added to every line when set

	// Rotation of File
	MaxSizeMB  int  // default 100
	MaxBackups int  // 0 keeps all
	MaxAgeDays int  // 0 keeps all
	Compress   bool // gzip rotated files
}

var (
	mu   sync.Mutex
	file io.Closer // log file opened by the last Init
)

// Init initializes the global zerolog logger with the given configuration.
// Console output is used for stdout/stderr and JSON for files. A log file
// opened by a previous Init is closed.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	var (
		writer  io.Writer
		closer  io.Closer
		console = true
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		rotated, err := fileWriter(cfg)
		if err != nil {
			return err
		}
		writer, closer, console = rotated, rotated, false
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	// Caller only for DEBUG level
	logger := newLogger(writer, console, level == zerolog.DebugLevel, cfg.Service)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	mu.Lock()
	previous := file
	file = closer
	mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// Close closes the log file, if any. Logging afterwards goes nowhere useful
// until the next Init.
func Close() error {
	mu.Lock()
	f := file
	file = nil
	mu.Unlock()

	if f == nil {
		return nil
	}
	return f.Close()
}

func newLogger(w io.Writer, console, withCaller bool, service string) zerolog.Logger {
	if console {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		if withCaller {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i interface{}) string {
				return "(" + i.(string) + ")"
			}
		}
		w = cw
	}

	ctx := zerolog.New(w).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	if withCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// shortCaller keeps the package directory and file name.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// fileWriter returns a rotating writer for cfg.File.
func fileWriter(cfg Config) (*lumberjack.Logger, error) {
	if cfg.File == "" {
		return nil, errors.New("log file path is required for file output")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}, nil
}

// parseLevel parses the log level string, defaulting to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
