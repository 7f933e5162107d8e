// Package history stores per-viewer playback history in Redis.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

// Entry is one played track.
type Entry struct {
	TrackID  string    `json:"trackId"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Preview  bool      `json:"preview"`
	PlayedAt time.Time `json:"playedAt"`
}

// Config represents history store configuration.
type Config struct {
	Addr       string
	Password   string
	DB         int
	MaxEntries int
	KeyPrefix  string
}

// Store is a Redis-backed history list per viewer, newest first.
type Store struct {
	client     *redis.Client
	maxEntries int
	keyPrefix  string
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Addr)
	}

	return newStore(client, cfg), nil
}

func newStore(client *redis.Client, cfg Config) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 50
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "kamerplay:history:"
	}
	return &Store{
		client:     client,
		maxEntries: cfg.MaxEntries,
		keyPrefix:  cfg.KeyPrefix,
	}
}

// Record prepends e to the viewer's history and trims it to the configured size.
func (s *Store) Record(ctx context.Context, viewerID string, e Entry) error {
	if viewerID == "" {
		return errors.New("viewer id is required")
	}
	if e.PlayedAt.IsZero() {
		e.PlayedAt = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to encode history entry")
	}

	key := s.key(viewerID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.maxEntries-1))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to record history for %s", viewerID)
	}

	zlog.Debug().Msgf("history recorded: viewer=%s track=%s preview=%v", viewerID, e.TrackID, e.Preview)
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all kept entries.
func (s *Store) Recent(ctx context.Context, viewerID string, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	values, err := s.client.LRange(ctx, s.key(viewerID), 0, stop).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read history for %s", viewerID)
	}

	entries := make([]Entry, 0, len(values))
	for _, v := range values {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			zlog.Warn().Msgf("skipping malformed history entry: viewer=%s error=%v", viewerID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(viewerID string) string {
	return s.keyPrefix + viewerID
}
