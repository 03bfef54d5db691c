// Package acquire rehosts remote images: download with browser headers,
// transcode per asset class, upload under a fresh key, and hand back a
// media.Ref pointing at the stored copy.
//
// Acquisition never fails an ingestion. Acquire returns nil on any error,
// and AcquireAll fans out with an errgroup whose branches always return nil,
// so one bad image cannot cancel the others. Objects already stored are
// never rolled back.
package acquire
