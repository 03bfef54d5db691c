package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"social-ingest/internal/acquire"
	"social-ingest/internal/media"
	"social-ingest/internal/metrics"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// PageMeta is the metadata scraped from an HTML page. URLs are absolute.
type PageMeta struct {
	Title       string
	Description string
	Image       string
	SiteName    string
	Favicon     string
}

// titleSeparators end the page title proper; the earliest one wins.
var titleSeparators = []string{" - ", " | ", " : "}

// CleanTitle drops site branding after the first separator.
func CleanTitle(title string) string {
	cut := -1
	for _, sep := range titleSeparators {
		if i := strings.Index(title, sep); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(title[:cut])
}

// ResolveRef makes href absolute against the page's scheme and host.
func ResolveRef(page *url.URL, href string) string {
	href = strings.TrimSpace(href)
	origin := page.Scheme + "://" + page.Host
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return page.Scheme + ":" + href
	case strings.HasPrefix(href, "/"):
		return origin + href
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	default:
		return origin + "/" + href
	}
}

// ParsePage extracts Open Graph metadata from doc, falling back to the
// twitter:* tags. page resolves relative image and icon references.
func ParsePage(doc *goquery.Document, page *url.URL) PageMeta {
	tags := map[string]string{}
	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("property")
		if !ok || name == "" {
			name, ok = sel.Attr("name")
		}
		if !ok {
			return
		}
		name = strings.ToLower(strings.TrimSpace(name))
		content, ok := sel.Attr("content")
		if !ok || name == "" {
			return
		}
		if _, seen := tags[name]; !seen {
			tags[name] = strings.TrimSpace(content)
		}
	})

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := tags[k]; v != "" {
				return v
			}
		}
		return ""
	}

	title := first("og:title", "twitter:title", "og:site_name")
	if title == "" {
		title = page.Hostname()
	}

	meta := PageMeta{
		Title:       CleanTitle(title),
		Description: first("og:description", "twitter:description"),
		SiteName:    tags["og:site_name"],
		Favicon:     ResolveRef(page, FaviconHref(doc, page)),
	}
	if img := first("og:image", "twitter:image"); img != "" {
		meta.Image = ResolveRef(page, img)
	}
	return meta
}

// FaviconHref picks the best icon link: apple-touch-icon, then an icon
// sized 192, then a plain icon, then a shortcut icon, then /favicon.ico.
func FaviconHref(doc *goquery.Document, page *url.URL) string {
	var apple, sized, plain, shortcut string
	doc.Find("link[rel][href]").Each(func(_ int, sel *goquery.Selection) {
		rel, _ := sel.Attr("rel")
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		tokens := strings.Fields(strings.ToLower(rel))
		has := func(t string) bool {
			for _, tok := range tokens {
				if tok == t {
					return true
				}
			}
			return false
		}
		sizes, _ := sel.Attr("sizes")

		switch {
		case has("apple-touch-icon") || has("apple-touch-icon-precomposed"):
			if apple == "" {
				apple = href
			}
		case has("icon") && strings.Contains(sizes, "192"):
			if sized == "" {
				sized = href
			}
		case len(tokens) == 1 && tokens[0] == "icon":
			if plain == "" {
				plain = href
			}
		case has("shortcut") && has("icon"):
			if shortcut == "" {
				shortcut = href
			}
		}
	})

	for _, href := range []string{apple, sized, plain, shortcut} {
		if href != "" {
			return href
		}
	}
	return page.Scheme + "://" + page.Host + "/favicon.ico"
}

// OpenGraph builds records from a page's meta tags. It is the fallback for
// every host without a dedicated strategy.
type OpenGraph struct {
	client *http.Client
	acq    Acquirer
	cache  *metaCache[PageMeta]
}

func newOpenGraph(cfg Config, acq Acquirer) *OpenGraph {
	return &OpenGraph{
		client: cfg.Client,
		acq:    acq,
		cache:  newMetaCache[PageMeta]("opengraph", cfg.CacheSize, cfg.CacheTTL),
	}
}

// Platform implements Strategy.
func (s *OpenGraph) Platform() Platform { return PlatformOpenGraph }

// Fetch implements Strategy.
func (s *OpenGraph) Fetch(ctx context.Context, u *url.URL) Outcome {
	return s.fetch(ctx, u, PlatformOpenGraph)
}

func (s *OpenGraph) fetch(ctx context.Context, u *url.URL, platform Platform) Outcome {
	meta, err := s.Meta(ctx, u)
	if err != nil {
		host := u.Hostname()
		log.Warn("open graph fetch for %s failed: %v", u, err)
		return degraded(&ProfileRecord{
			Platform:    platform,
			DisplayName: host,
			OpenGraph:   &PageInfo{Title: host},
		}, err)
	}

	info := &PageInfo{
		Title:       meta.Title,
		Description: meta.Description,
		SiteName:    meta.SiteName,
	}
	rec := &ProfileRecord{
		Platform:    platform,
		DisplayName: meta.Title,
		Bio:         meta.Description,
		MediaRefs:   []*media.Ref{},
		OpenGraph:   info,
	}

	if s.acq == nil {
		return success(rec)
	}

	var reqs []acquire.Request
	if meta.Image != "" {
		reqs = append(reqs, acquire.Request{SourceURL: meta.Image, Class: media.ClassOG})
	}
	if meta.Favicon != "" {
		reqs = append(reqs, acquire.Request{SourceURL: meta.Favicon, Class: media.ClassFavicon})
	}

	for _, res := range s.acq.AcquireEach(ctx, reqs) {
		if res.Ref == nil {
			continue
		}
		switch res.Request.Class {
		case media.ClassOG:
			info.Image = res.Ref
			rec.MediaRefs = append(rec.MediaRefs, res.Ref)
		case media.ClassFavicon:
			info.Favicon = res.Ref
		}
	}

	return success(rec)
}

// Meta fetches and parses the page at u, consulting the cache first.
func (s *OpenGraph) Meta(ctx context.Context, u *url.URL) (PageMeta, error) {
	key := u.String()
	if meta, ok := s.cache.get(key); ok {
		return meta, nil
	}

	doc, err := s.fetchDocument(ctx, u)
	if err != nil {
		return PageMeta{}, err
	}

	meta := ParsePage(doc, u)
	log.Debug("open graph %s: title=%q image=%t favicon=%s", u, meta.Title, meta.Image != "", meta.Favicon)
	s.cache.add(key, meta)
	return meta, nil
}

func (s *OpenGraph) fetchDocument(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", acquire.BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("opengraph", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	metrics.UpstreamRequestsTotal.WithLabelValues("opengraph", metrics.StatusClass(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstreamUnavailable, u, resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUpstreamUnavailable, u, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUpstreamUnavailable, u, err)
	}
	return doc, nil
}
