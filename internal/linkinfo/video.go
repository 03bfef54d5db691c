package linkinfo

import (
	"net/url"
	"strings"
)

// Video platforms.
const (
	YouTube = "youtube"
	Vimeo   = "vimeo"
	Loom    = "loom"
)

// Video is an embeddable video reference.
type Video struct {
	Platform string `json:"platform"`
	VideoID  string `json:"videoId"`
	EmbedURL string `json:"embedUrl"`
}

// ParseVideoURL recognises YouTube (youtu.be/<id> and ?v=<id>), Vimeo and
// Loom links. ok is false for anything else.
func ParseVideoURL(rawURL string) (v Video, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return Video{}, false
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "youtu.be"):
		id := strings.Trim(u.Path, "/")
		return video(YouTube, id, "https://www.youtube.com/embed/")
	case strings.Contains(host, "youtube.com"):
		return video(YouTube, u.Query().Get("v"), "https://www.youtube.com/embed/")
	case strings.Contains(host, "vimeo.com"):
		return video(Vimeo, lastSegment(u.Path), "https://player.vimeo.com/video/")
	case strings.Contains(host, "loom.com"):
		return video(Loom, lastSegment(u.Path), "https://www.loom.com/embed/")
	}
	return Video{}, false
}

func video(platform, id, embedBase string) (Video, bool) {
	if id == "" {
		return Video{}, false
	}
	return Video{
		Platform: platform,
		VideoID:  id,
		EmbedURL: embedBase + url.PathEscape(id),
	}, true
}

func lastSegment(p string) string {
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
