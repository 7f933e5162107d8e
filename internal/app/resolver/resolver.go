// Package resolver picks the playable URL for a track and decides whether
// playback is preview-limited.
package resolver

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// ObjectScheme prefixes audio references stored as object keys ("object://bucket/key").
const ObjectScheme = "object://"

// ErrNoPlayableSource is returned when no URL candidate resolves.
var ErrNoPlayableSource = errors.New("no playable source")

// Source is the result of resolving a track.
type Source struct {
	URL            string
	PreviewLimited bool
}

// Signer turns an object reference into a fetchable URL.
type Signer interface {
	Sign(ctx context.Context, ref string) (string, error)
}

// Resolver resolves track sources.
type Resolver struct {
	signer Signer
}

// New creates a resolver. signer may be nil, in which case object references are skipped.
func New(signer Signer) *Resolver {
	return &Resolver{signer: signer}
}

// Resolve returns the URL to load and whether playback must be capped.
func (r *Resolver) Resolve(ctx context.Context, t track.Track) (Source, error) {
	limited := !t.IsFullyPlayable()

	for _, candidate := range candidates(t, limited) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}

		if strings.HasPrefix(candidate, ObjectScheme) {
			if r.signer == nil {
				zlog.Debug().Msgf("resolver: skipping object reference without signer: track=%s", t.ID)
				continue
			}
			signed, err := r.signer.Sign(ctx, candidate)
			if err != nil {
				zlog.Warn().Msgf("resolver: failed to sign candidate: track=%s error=%v", t.ID, err)
				continue
			}
			candidate = signed
		}

		return Source{URL: candidate, PreviewLimited: limited}, nil
	}

	return Source{}, errors.Wrapf(ErrNoPlayableSource, "track %s", t.ID)
}

// candidates returns the URL fields in preference order.
func candidates(t track.Track, limited bool) []string {
	if limited {
		return []string{t.PreviewURL, t.AudioURL, t.FileURL}
	}
	return []string{t.AudioURL, t.FileURL, t.PreviewURL}
}
