// Package mediatypes provides the image MIME tables shared by the transcoder,
// the acquisition pipeline and the upload handlers.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
// Use GetMimeType when only a URL or file extension is known (for example a
// favicon stored without transcoding), and ExtForContentType to pick the
// extension of an object key from a declared MIME type:
//
//	ext := mediatypes.ExtFromURL("https://example.com/favicon.svg") // ".svg"
//	ct := mediatypes.GetMimeType(ext)                               // "image/svg+xml"
package mediatypes
