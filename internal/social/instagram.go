package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"social-ingest/internal/acquire"
	"social-ingest/internal/media"
	"social-ingest/internal/metrics"
	"social-ingest/internal/retry"
)

// Ordered: the first pattern that matches the raw URL wins.
var instagramUsernamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)instagram\.com/([^/?#]+)`),
	regexp.MustCompile(`(?i)instagr\.am/([^/?#]+)`),
	regexp.MustCompile(`@([a-zA-Z0-9._]+)`),
}

// InstagramUsername extracts the handle from rawURL, without a leading "@".
func InstagramUsername(rawURL string) string {
	for _, re := range instagramUsernamePatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil && m[1] != "" {
			return strings.TrimPrefix(m[1], "@")
		}
	}
	return ""
}

var errUnauthorized = errors.New("instagram returned 401")

type instagramUser struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Biography string `json:"biography"`
	Timeline  struct {
		Edges []struct {
			Node struct {
				DisplayURL   string `json:"display_url"`
				ThumbnailSrc string `json:"thumbnail_src"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_owner_to_timeline_media"`
}

type instagramResponse struct {
	Data struct {
		User *instagramUser `json:"user"`
	} `json:"data"`
}

// imageURLs returns up to limit post images, newest first.
func (u *instagramUser) imageURLs(limit int) []string {
	var urls []string
	for _, e := range u.Timeline.Edges {
		if len(urls) == limit {
			break
		}
		src := e.Node.DisplayURL
		if src == "" {
			src = e.Node.ThumbnailSrc
		}
		if src != "" {
			urls = append(urls, src)
		}
	}
	return urls
}

// Instagram fetches profiles from the web profile-info API. The endpoint
// intermittently answers 401 to anonymous clients, so that status alone is
// retried.
type Instagram struct {
	client  *http.Client
	apiBase string
	appID   string
	retry   retry.Config
	acq     Acquirer
	cache   *metaCache[*instagramUser]
}

func newInstagram(cfg Config, acq Acquirer) *Instagram {
	return &Instagram{
		client:  cfg.Client,
		apiBase: strings.TrimSuffix(cfg.InstagramAPIBase, "/"),
		appID:   cfg.InstagramAppID,
		retry:   cfg.Retry,
		acq:     acq,
		cache:   newMetaCache[*instagramUser]("instagram", cfg.CacheSize, cfg.CacheTTL),
	}
}

// Platform implements Strategy.
func (s *Instagram) Platform() Platform { return PlatformInstagram }

// Fetch implements Strategy.
func (s *Instagram) Fetch(ctx context.Context, u *url.URL) Outcome {
	username := InstagramUsername(u.String())
	fallback := &ProfileRecord{
		Platform:    PlatformInstagram,
		Username:    username,
		DisplayName: username,
	}
	if username == "" {
		return degraded(fallback, fmt.Errorf("no username in %s", u))
	}

	user, err := s.profile(ctx, username)
	if err != nil {
		log.Warn("instagram profile %s unavailable, returning basic data: %v", username, err)
		return degraded(fallback, err)
	}

	rec := &ProfileRecord{
		Platform:    PlatformInstagram,
		Username:    username,
		DisplayName: user.FullName,
		Bio:         user.Biography,
		MediaRefs:   []*media.Ref{},
	}
	if user.Username != "" {
		rec.Username = user.Username
	}
	if rec.DisplayName == "" {
		rec.DisplayName = username
	}

	images := user.imageURLs(MaxInstagramImages)
	if s.acq != nil && len(images) > 0 {
		reqs := make([]acquire.Request, len(images))
		for i, src := range images {
			reqs[i] = acquire.Request{
				SourceURL: src,
				Class:     media.ClassSocial,
				Group:     string(PlatformInstagram),
				Referer:   "https://www.instagram.com/",
			}
		}
		rec.MediaRefs = s.acq.AcquireAll(ctx, reqs)
	}

	log.Info("instagram profile %s: %d/%d images rehosted", rec.Username, len(rec.MediaRefs), len(images))
	return success(rec)
}

func (s *Instagram) profile(ctx context.Context, username string) (*instagramUser, error) {
	key := strings.ToLower(username)
	if user, ok := s.cache.get(key); ok {
		log.Debug("instagram profile %s served from cache", username)
		return user, nil
	}

	user, err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) (*instagramUser, error) {
		return s.requestProfile(ctx, username, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.cache.add(key, user)
	return user, nil
}

func (s *Instagram) requestProfile(ctx context.Context, username string, attempt int) (*instagramUser, error) {
	apiURL := s.apiBase + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(username)
	log.Debug("instagram API attempt %d: %s", attempt, apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", acquire.BrowserUserAgent)
	req.Header.Set("X-IG-App-ID", s.appID)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("instagram", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	metrics.UpstreamRequestsTotal.WithLabelValues("instagram", metrics.StatusClass(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, retry.Retryable(fmt.Errorf("%w: %w", ErrUpstreamUnavailable, errUnauthorized))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: instagram returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body instagramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrUpstreamUnavailable, err)
	}
	if body.Data.User == nil {
		return nil, fmt.Errorf("%w: no user in response", ErrUpstreamUnavailable)
	}
	return body.Data.User, nil
}
