// Package probe reads audio metadata (tags and MP3 duration) from playable URLs.
package probe

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"
	"github.com/tcolgate/mp3"

	"github.com/osa030/kamerplay/internal/app/objecturl"
)

// ErrUnsupportedURL is returned for URLs the prober cannot fetch.
var ErrUnsupportedURL = errors.New("unsupported audio url")

// Metadata is what could be read from an audio file. Empty fields are unknown.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Objects opens uploaded audio by object URL.
type Objects interface {
	Open(url string) (io.ReadSeeker, objecturl.Object, error)
}

// Config represents prober configuration.
type Config struct {
	MaxBytes int64 // Largest remote file that is downloaded (default 32 MiB)
	Timeout  time.Duration
}

// Prober fetches audio and reads its metadata.
type Prober struct {
	objects    Objects
	httpClient *http.Client
	maxBytes   int64
}

// New creates a prober. objects may be nil when uploads are not probed.
func New(objects Objects, cfg Config) *Prober {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 32 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Prober{
		objects:    objects,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxBytes:   cfg.MaxBytes,
	}
}

// Probe reads metadata from the audio at rawURL. The title falls back to the
// file name without extension.
func (p *Prober) Probe(ctx context.Context, rawURL string) (Metadata, error) {
	r, name, err := p.open(ctx, rawURL)
	if err != nil {
		return Metadata{}, err
	}
	return Read(r, name), nil
}

// Duration returns the decoded duration of the audio at rawURL, or zero when
// it cannot be computed.
func (p *Prober) Duration(ctx context.Context, rawURL string) (time.Duration, error) {
	meta, err := p.Probe(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	return meta.Duration, nil
}

// Read reads tags and, for MP3 data, the duration from r.
func Read(r io.ReadSeeker, name string) Metadata {
	var meta Metadata

	if m, err := tag.ReadFrom(r); err == nil {
		meta.Title = strings.TrimSpace(m.Title())
		meta.Artist = strings.TrimSpace(m.Artist())
		meta.Album = strings.TrimSpace(m.Album())
	}
	if meta.Title == "" {
		base := path.Base(name)
		meta.Title = strings.TrimSuffix(base, path.Ext(base))
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == ".mp3" || ext == "" {
		if _, err := r.Seek(0, io.SeekStart); err == nil {
			d, err := mp3Duration(r)
			if err != nil {
				zlog.Debug().Msgf("probe: mp3 decode failed: name=%s error=%v", name, err)
			} else {
				meta.Duration = d
			}
		}
	}

	return meta
}

func (p *Prober) open(ctx context.Context, rawURL string) (io.ReadSeeker, string, error) {
	if objecturl.IsObjectURL(rawURL) {
		if p.objects == nil {
			return nil, "", errors.Wrapf(ErrUnsupportedURL, "%s", rawURL)
		}
		r, obj, err := p.objects.Open(rawURL)
		if err != nil {
			return nil, "", err
		}
		return r, obj.Name, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", errors.Wrapf(ErrUnsupportedURL, "%s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create request")
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to fetch audio")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("failed to fetch audio: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read audio")
	}
	return bytes.NewReader(data), u.Path, nil
}

func mp3Duration(r io.Reader) (time.Duration, error) {
	decoder := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	var total time.Duration

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration()
	}

	return total, nil
}
