package social

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

var tiktokUsernamePattern = regexp.MustCompile(`(?i)tiktok\.com/@([^/?#]+)`)

// TikTokUsername extracts the handle from a tiktok.com/@user URL.
func TikTokUsername(rawURL string) string {
	if m := tiktokUsernamePattern.FindStringSubmatch(rawURL); m != nil {
		return strings.TrimPrefix(m[1], "@")
	}
	return ""
}

// TikTok reads the page's Open Graph tags; TikTok's own API needs
// elevated access. Records keep platform "tiktok".
type TikTok struct {
	og *OpenGraph
}

// Platform implements Strategy.
func (s *TikTok) Platform() Platform { return PlatformTikTok }

// Fetch implements Strategy.
func (s *TikTok) Fetch(ctx context.Context, u *url.URL) Outcome {
	out := s.og.fetch(ctx, u, PlatformTikTok)
	rec := out.Record
	rec.Username = TikTokUsername(u.String())
	if out.Degraded() && rec.Username != "" {
		rec.DisplayName = rec.Username
	}
	return out
}
