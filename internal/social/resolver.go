package social

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"social-ingest/internal/logging"
)

var log = logging.For("social")

// Strategy turns a classified URL into a record. Implementations never
// fail: upstream problems produce a degraded Outcome.
type Strategy interface {
	Platform() Platform
	Fetch(ctx context.Context, u *url.URL) Outcome
}

var hostTable = map[string]Platform{
	"instagram.com": PlatformInstagram,
	"instagr.am":    PlatformInstagram,
	"tiktok.com":    PlatformTikTok,
	"vm.tiktok.com": PlatformTikTok,
	"x.com":         PlatformTwitter,
	"twitter.com":   PlatformTwitter,
}

// ParseURL validates raw as an absolute http(s) URL with a host. Failures
// wrap ErrInvalidInput.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidInput, raw)
	}
	u.Scheme = scheme
	return u, nil
}

// NormalizeHost lower-cases host and strips a leading "www.".
func NormalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// Classify maps a hostname to its platform. Unknown hosts are Open Graph.
func Classify(host string) Platform {
	if p, ok := hostTable[NormalizeHost(host)]; ok {
		return p
	}
	return PlatformOpenGraph
}

// Resolver selects the strategy for a URL. The strategy set is closed:
// one per Platform.
type Resolver struct {
	instagram *Instagram
	tiktok    *TikTok
	twitter   *Twitter
	opengraph *OpenGraph
}

// NewResolver builds every strategy from cfg. acq rehosts media; it may be
// nil, in which case records carry no media.
func NewResolver(cfg Config, acq Acquirer) *Resolver {
	cfg = cfg.withDefaults()
	og := newOpenGraph(cfg, acq)
	return &Resolver{
		instagram: newInstagram(cfg, acq),
		tiktok:    &TikTok{og: og},
		twitter:   &Twitter{},
		opengraph: og,
	}
}

// Resolve validates rawURL and picks its strategy. No network I/O happens
// here.
func (r *Resolver) Resolve(rawURL string) (Strategy, *url.URL, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	return r.For(Classify(u.Hostname())), u, nil
}

// For returns the strategy of p.
func (r *Resolver) For(p Platform) Strategy {
	switch p {
	case PlatformInstagram:
		return r.instagram
	case PlatformTikTok:
		return r.tiktok
	case PlatformTwitter:
		return r.twitter
	default:
		return r.opengraph
	}
}
