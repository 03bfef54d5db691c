package objectstore

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// SocialPrefix is the root of every key the ingestion pipeline writes.
// Cleanup refuses to delete anything outside it.
const SocialPrefix = "social/"

// NewID returns the random identifier embedded in object keys.
func NewID() string {
	return uuid.NewString()
}

// SocialKey builds social/<group>/<id>.<ext>, where group is a platform
// ("instagram") or an asset group ("og", "favicon").
func SocialKey(group, ext string) string {
	return path.Join("social", sanitizeSegment(group), NewID()+"."+strings.TrimPrefix(ext, "."))
}

// UserUploadKey builds <userID>/<id>.<ext> for direct uploads.
func UserUploadKey(userID, ext string) string {
	return path.Join(sanitizeSegment(userID), NewID()+"."+strings.TrimPrefix(ext, "."))
}

// ProfilePhotoKey builds <userID>/profile-<id>.jpg.
func ProfilePhotoKey(userID string) string {
	return path.Join(sanitizeSegment(userID), "profile-"+NewID()+".jpg")
}

// ProfilePhotoPrefix is the prefix every profile photo of userID starts with.
func ProfilePhotoPrefix(userID string) string {
	return sanitizeSegment(userID) + "/profile-"
}

// IsSocialKey reports whether key lives under SocialPrefix.
func IsSocialKey(key string) bool {
	return strings.HasPrefix(key, SocialPrefix) && validateKey(key) == nil
}

// sanitizeSegment keeps a single path segment safe for use in a key.
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
