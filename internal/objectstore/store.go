package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"social-ingest/internal/logging"
	"social-ingest/internal/metrics"
)

var log = logging.For("store")

// Presigned URL validity windows.
const (
	DefaultPresignTTL = 7 * 24 * time.Hour
	// MaxPresignTTL is the longest expiry SigV4 (and MinIO) will sign.
	MaxPresignTTL = 7 * 24 * time.Hour
	// ProfilePhotoTTL is requested for profile photos; presigned mode clamps it
	// to MaxPresignTTL, public mode ignores it.
	ProfilePhotoTTL = 365 * 24 * time.Hour
)

var (
	// ErrNotFound is returned when an object or bucket does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty or malformed object keys.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrInvalidURL is returned when a reference URL cannot be mapped to a key.
	ErrInvalidURL = errors.New("invalid object url")
)

// URLMode selects how reference URLs are issued.
type URLMode string

const (
	// URLModePresigned issues time-limited signed GET URLs.
	URLModePresigned URLMode = "presigned"
	// URLModePublic issues stable URLs; the bucket must allow anonymous reads.
	URLModePublic URLMode = "public"
)

// ParseURLMode maps a config string onto a URLMode.
func ParseURLMode(s string) (URLMode, error) {
	switch URLMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", URLModePresigned:
		return URLModePresigned, nil
	case URLModePublic:
		return URLModePublic, nil
	default:
		return "", fmt.Errorf("unknown storage url mode %q (want presigned or public)", s)
	}
}

// Store is the bucket-oriented object store used by the pipeline. Gateway
// talks to S3/MinIO; Memory keeps objects in process.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// ReferenceURL returns the URL handed to clients for key: presigned for
	// ttl in presigned mode, the stable public URL otherwise.
	ReferenceURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// KeyFromURL maps a URL previously returned by ReferenceURL back to its key.
	KeyFromURL(rawURL string) (string, error)
	Close() error
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// RewriteHost replaces the scheme, host and port of rawURL with those of
// public, keeping path and query. When public is nil or rawURL does not
// parse, rawURL is returned unchanged.
func RewriteHost(rawURL string, public *url.URL) string {
	if public == nil || public.Host == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		log.Warn("failed to parse url for public rewrite: %v", err)
		return rawURL
	}
	u.Scheme = public.Scheme
	u.Host = public.Host
	return u.String()
}

// keyFromPath strips the leading "/<bucket>/" segment of a path-style
// object URL. When the first segment is not the bucket (e.g. a proxy that
// mounts the bucket under another name) the first segment is dropped anyway.
func keyFromPath(rawURL, bucket string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	p := strings.TrimPrefix(u.Path, "/")
	if bucket != "" && strings.HasPrefix(p, bucket+"/") {
		p = strings.TrimPrefix(p, bucket+"/")
	} else {
		idx := strings.Index(p, "/")
		if idx < 0 {
			return "", fmt.Errorf("%w: no key in %q", ErrInvalidURL, rawURL)
		}
		p = p[idx+1:]
	}
	if err := validateKey(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return p, nil
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultPresignTTL
	}
	if ttl > MaxPresignTTL {
		log.Debug("presign ttl %v exceeds maximum, clamping to %v", ttl, MaxPresignTTL)
		return MaxPresignTTL
	}
	return ttl
}

func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.StorageOperationsTotal.WithLabelValues(op, status).Inc()
	metrics.StorageOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
