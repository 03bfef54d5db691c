package linkinfo

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Info describes a link for display.
type Info struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// Platform is the icon slug of a known domain, empty otherwise.
	Platform string `json:"platform,omitempty"`
}

type domain struct {
	name string
	slug string
}

var knownDomains = map[string]domain{
	"instagram.com":    {"Instagram", "instagram"},
	"twitter.com":      {"X", "x"},
	"x.com":            {"X", "x"},
	"facebook.com":     {"Facebook", "facebook"},
	"linkedin.com":     {"LinkedIn", "linkedin"},
	"github.com":       {"GitHub", "github"},
	"youtube.com":      {"YouTube", "youtube"},
	"tiktok.com":       {"TikTok", "tiktok"},
	"twitch.tv":        {"Twitch", "twitch"},
	"discord.com":      {"Discord", "discord"},
	"discord.gg":       {"Discord", "discord"},
	"reddit.com":       {"Reddit", "reddit"},
	"pinterest.com":    {"Pinterest", "pinterest"},
	"snapchat.com":     {"Snapchat", "snapchat"},
	"spotify.com":      {"Spotify", "spotify"},
	"apple.com":        {"Apple", "apple"},
	"google.com":       {"Google", "google"},
	"gmail.com":        {"Gmail", "gmail"},
	"behance.net":      {"Behance", "behance"},
	"dribbble.com":     {"Dribbble", "dribbble"},
	"figma.com":        {"Figma", "figma"},
	"notion.so":        {"Notion", "notion"},
	"medium.com":       {"Medium", "medium"},
	"substack.com":     {"Substack", "substack"},
	"patreon.com":      {"Patreon", "patreon"},
	"ko-fi.com":        {"Ko-fi", "kofi"},
	"buymeacoffee.com": {"Buy Me a Coffee", "buymeacoffee"},
}

// Detect returns display info for rawURL. Known domains get their brand
// name; anything else is titled after its first host label ("blog.example.com"
// becomes "Blog"). Unparseable URLs are titled "Link".
func Detect(rawURL string) Info {
	info := Info{URL: rawURL, Title: "Link"}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return info
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if d, ok := knownDomains[host]; ok {
		info.Title = d.name
		info.Platform = d.slug
		return info
	}

	label, _, _ := strings.Cut(host, ".")
	info.Title = capitalize(label)
	return info
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
