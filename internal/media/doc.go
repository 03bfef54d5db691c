// Package media transcodes downloaded images into the canonical form of
// their asset class:
//
//	social   400x400  cover, centred      JPEG q80
//	og       600x315  cover, centred      JPEG q85
//	profile  512x512  cover, centred      JPEG q85
//	favicon  128x128  contain, transparent PNG
//	upload   stored as received
//
// Decoding goes through imaging with the x/image decoders registered.
// Favicons the Go decoders cannot read are rasterized with libvips when it
// has been initialized, and otherwise stored unchanged with a content type
// taken from the URL extension.
package media
