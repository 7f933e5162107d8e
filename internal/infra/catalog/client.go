// Package catalog provides a client for the marketplace sound API.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// ErrTrackNotFound is returned when the API has no record for a sound ID.
var ErrTrackNotFound = errors.New("track not found")

// Client is a marketplace API client. Requests are made on behalf of a
// viewer through ForViewer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Config represents catalog client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// soundRecord is the API representation of a sound.
type soundRecord struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	AudioURL        string  `json:"audioUrl"`
	FileURL         string  `json:"fileUrl"`
	PreviewURL      string  `json:"previewUrl"`
	IsFree          bool    `json:"isFree"`
	IsPurchased     bool    `json:"isPurchased"`
	Price           float64 `json:"price"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type soundListResponse struct {
	Sounds []soundRecord `json:"sounds"`
}

type soundResponse struct {
	Sound soundRecord `json:"sound"`
}

// apiError represents an error response from the API.
type apiError struct {
	Message string `json:"message"`
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid catalog base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		timeout:    cfg.Timeout,
	}, nil
}

// Viewer is a catalog view authenticated with one viewer's bearer token.
type Viewer struct {
	client     *Client
	httpClient *http.Client
}

// ForViewer returns a view that sends token as the bearer credential.
func (c *Client) ForViewer(token string) *Viewer {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	hc.Timeout = c.timeout

	return &Viewer{client: c, httpClient: hc}
}

// Purchased returns the viewer's purchased sounds in library order.
func (v *Viewer) Purchased(ctx context.Context) ([]track.Track, error) {
	return v.list(ctx, "/sounds/purchased")
}

// Favorites returns the viewer's favorite sounds in the order they were added.
func (v *Viewer) Favorites(ctx context.Context) ([]track.Track, error) {
	return v.list(ctx, "/sounds/favorites")
}

// Track returns a single sound with the viewer's ownership applied.
func (v *Viewer) Track(ctx context.Context, id string) (track.Track, error) {
	if id == "" {
		return track.Track{}, errors.New("track id is required")
	}

	var response soundResponse
	if err := v.get(ctx, "/sounds/"+url.PathEscape(id), &response); err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to get track %s", id)
	}
	return response.Sound.toTrack(), nil
}

func (v *Viewer) list(ctx context.Context, path string) ([]track.Track, error) {
	var response soundListResponse
	if err := v.get(ctx, path, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", path)
	}

	tracks := make([]track.Track, 0, len(response.Sounds))
	for _, s := range response.Sounds {
		tracks = append(tracks, s.toTrack())
	}
	zlog.Debug().Msgf("catalog: listed sounds: path=%s count=%d", path, len(tracks))
	return tracks, nil
}

func (v *Viewer) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.client.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrTrackNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return errors.Newf("catalog API error %d: %s", resp.StatusCode, apiErr.Message)
		}
		return errors.Newf("catalog API error %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func (s soundRecord) toTrack() track.Track {
	price := s.Price
	if price < 0 {
		price = 0
	}
	return track.Track{
		ID:          s.ID,
		Title:       s.Title,
		Artist:      s.Artist,
		AudioURL:    s.AudioURL,
		FileURL:     s.FileURL,
		PreviewURL:  s.PreviewURL,
		IsFree:      s.IsFree,
		IsPurchased: s.IsPurchased,
		Price:       price,
		Duration:    time.Duration(s.DurationSeconds * float64(time.Second)),
	}
}
