package social

import (
	"encoding/json"
	"errors"

	"social-ingest/internal/media"
)

// Platform identifies the strategy that produced a record.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformOpenGraph Platform = "opengraph"
)

var (
	// ErrInvalidInput is the only error ingestion surfaces: the URL is
	// missing, malformed, or not http(s).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable marks a third-party failure. It degrades the
	// record and is never returned to callers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ProfileRecord is the normalized result of an ingestion. It is built once
// by a strategy and not modified afterwards.
type ProfileRecord struct {
	Platform    Platform
	Username    string
	DisplayName string
	Bio         string
	MediaRefs   []*media.Ref

	// OpenGraph is set on records produced by the Open Graph strategy
	// (including TikTok) and carries the page metadata.
	OpenGraph *PageInfo
}

// PageInfo is the Open Graph part of a record.
type PageInfo struct {
	Title       string
	Description string
	SiteName    string
	Image       *media.Ref
	Favicon     *media.Ref
}

// Images returns the reference URLs of the record's media, in order.
func (r *ProfileRecord) Images() []string {
	urls := make([]string, 0, len(r.MediaRefs))
	for _, ref := range r.MediaRefs {
		urls = append(urls, ref.PublicURL)
	}
	return urls
}

type pageJSON struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	SiteName    string  `json:"siteName,omitempty"`
	Favicon     *string `json:"favicon,omitempty"`
}

type recordJSON struct {
	Platform    Platform `json:"platform"`
	Username    string   `json:"username,omitempty"`
	DisplayName string   `json:"displayName"`
	Bio         string   `json:"bio"`
	Images      []string `json:"images"`
	*pageJSON
}

func refURL(ref *media.Ref) *string {
	if ref == nil {
		return nil
	}
	u := ref.PublicURL
	return &u
}

// MarshalJSON renders the wire form: media as a flat "images" list and,
// for Open Graph records, the page fields alongside.
func (r *ProfileRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Platform:    r.Platform,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Bio:         r.Bio,
		Images:      r.Images(),
	}
	if og := r.OpenGraph; og != nil {
		out.pageJSON = &pageJSON{
			Title:       og.Title,
			Description: og.Description,
			Image:       refURL(og.Image),
			SiteName:    og.SiteName,
			Favicon:     refURL(og.Favicon),
		}
	}
	return json.Marshal(out)
}

// Outcome is what a strategy returns: a record, and when the record is a
// fallback, the reason full retrieval failed.
type Outcome struct {
	Record *ProfileRecord
	// Reason is nil on success.
	Reason error
}

// Degraded reports whether the record is a minimal fallback.
func (o Outcome) Degraded() bool {
	return o.Reason != nil
}

func success(r *ProfileRecord) Outcome {
	return Outcome{Record: r}
}

func degraded(r *ProfileRecord, reason error) Outcome {
	if r.MediaRefs == nil {
		r.MediaRefs = []*media.Ref{}
	}
	return Outcome{Record: r, Reason: reason}
}
