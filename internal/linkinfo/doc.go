// Package linkinfo derives display metadata for links without touching the
// network: a human title and platform slug for well-known domains, and embed
// URLs for YouTube, Vimeo and Loom videos.
package linkinfo
