// Package storage signs object storage references into temporary URLs.
package storage

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	zlog "github.com/rs/zerolog/log"
)

// Scheme prefixes object references ("object://bucket/key").
const Scheme = "object://"

// ErrInvalidReference is returned for references that name no object.
var ErrInvalidReference = errors.New("invalid object reference")

// Config represents object storage configuration.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	Expiry        time.Duration
	DefaultBucket string // used for references without a bucket ("object:///key")
}

// Signer presigns GET URLs for stored audio.
type Signer struct {
	client        *minio.Client
	expiry        time.Duration
	defaultBucket string
}

// NewSigner creates a signer. No request is sent: presigning is computed
// locally from the credentials and region.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = time.Hour
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage client")
	}

	zlog.Info().Msgf("storage signer ready: endpoint=%s region=%s expiry=%v", cfg.Endpoint, cfg.Region, cfg.Expiry)

	return &Signer{
		client:        client,
		expiry:        cfg.Expiry,
		defaultBucket: cfg.DefaultBucket,
	}, nil
}

// Sign returns a presigned GET URL for ref.
func (s *Signer) Sign(ctx context.Context, ref string) (string, error) {
	bucket, key, err := s.parse(ref)
	if err != nil {
		return "", err
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to presign %s", ref)
	}
	return u.String(), nil
}

func (s *Signer) parse(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, Scheme)
	if !ok {
		return "", "", errors.Wrapf(ErrInvalidReference, "missing scheme: %s", ref)
	}

	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		bucket = s.defaultBucket
	}
	if bucket == "" || key == "" {
		return "", "", errors.Wrapf(ErrInvalidReference, "%s", ref)
	}
	return bucket, key, nil
}
