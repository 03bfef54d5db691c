package social

import (
	"context"
	"net/http"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/media"
	"social-ingest/internal/retry"
)

const (
	DefaultInstagramAPIBase = "https://www.instagram.com"
	DefaultInstagramAppID   = "936619743392459"
	DefaultFetchTimeout     = 15 * time.Second
	DefaultCacheTTL         = 10 * time.Minute
	DefaultCacheSize        = 512

	// MaxInstagramImages is how many recent posts are rehosted.
	MaxInstagramImages = 6
	// maxPageBytes bounds how much of an HTML page is parsed.
	maxPageBytes = 5 << 20
)

// Acquirer rehosts media concurrently. *acquire.Acquirer implements it.
type Acquirer interface {
	AcquireAll(ctx context.Context, reqs []acquire.Request) []*media.Ref
	AcquireEach(ctx context.Context, reqs []acquire.Request) []acquire.Result
}

// Config configures the strategies. Zero values take the defaults.
type Config struct {
	// Client performs upstream requests. Its Timeout is replaced by
	// FetchTimeout when zero.
	Client           *http.Client
	FetchTimeout     time.Duration
	InstagramAPIBase string
	InstagramAppID   string
	// Retry governs the Instagram profile call.
	Retry retry.Config
	// CacheSize < 0 disables the metadata cache.
	CacheSize int
	CacheTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.FetchTimeout}
	}
	if c.InstagramAPIBase == "" {
		c.InstagramAPIBase = DefaultInstagramAPIBase
	}
	if c.InstagramAppID == "" {
		c.InstagramAppID = DefaultInstagramAppID
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig("instagram_profile")
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}
