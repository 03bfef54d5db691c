package social

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"social-ingest/internal/media"
)

// TwitterHandle returns the first path segment of u without a leading "@".
func TwitterHandle(u *url.URL) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return strings.TrimPrefix(seg, "@")
}

// Twitter builds records from the URL alone. The X API is paid and
// unreliable, so no request is made.
type Twitter struct{}

// Platform implements Strategy.
func (s *Twitter) Platform() Platform { return PlatformTwitter }

// Fetch implements Strategy.
func (s *Twitter) Fetch(_ context.Context, u *url.URL) Outcome {
	handle := TwitterHandle(u)
	rec := &ProfileRecord{
		Platform:  PlatformTwitter,
		Username:  handle,
		MediaRefs: []*media.Ref{},
	}
	if handle == "" {
		return degraded(rec, fmt.Errorf("no handle in %s", u))
	}
	rec.DisplayName = "@" + handle
	return success(rec)
}
