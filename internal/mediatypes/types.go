package mediatypes

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// DefaultContentType is returned when nothing better is known.
const DefaultContentType = "application/octet-stream"

// ImageExtensions maps file extensions to whether they are accepted image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
}

// canonicalExt picks the extension used in object keys for a MIME type.
var canonicalExt = map[string]string{
	"image/jpeg":               "jpg",
	"image/pjpeg":              "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/bmp":                "bmp",
	"image/webp":               "webp",
	"image/svg+xml":            "svg",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"image/tiff":               "tiff",
	"image/heic":               "heic",
	"image/heif":               "heif",
	"image/avif":               "avif",
}

// GetMimeType returns the MIME type for a given file extension.
// The extension may be upper-case and may omit the leading dot.
// Returns DefaultContentType if the extension is not recognized.
func GetMimeType(ext string) string {
	ext = normalizeExt(ext)
	if m, ok := MimeTypes[ext]; ok {
		return m
	}
	return DefaultContentType
}

// ExtForContentType returns the key extension (without dot) for a MIME type,
// ignoring parameters such as charset. The second value is false when the
// type is not a known image type.
func ExtForContentType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	ext, ok := canonicalExt[mediaType]
	return ext, ok
}

// IsImageContentType reports whether contentType declares an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// ExtFromURL returns the lower-case extension (with dot) of the URL path,
// ignoring query and fragment. Empty when the URL has none or is invalid.
func ExtFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

// ExtFromFilename returns the extension (without dot) of an uploaded file
// name, lower-cased. Empty when there is none.
func ExtFromFilename(name string) string {
	ext := strings.ToLower(path.Ext(name))
	return strings.TrimPrefix(ext, ".")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
