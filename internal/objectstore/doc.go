// Package objectstore is the gateway between the ingestion pipeline and the
// S3-compatible bucket that holds every image the service rehosts.
//
// Two implementations satisfy Store:
//
//	objectstore.New(ctx, cfg)        // Gateway, AWS SDK v2 against MinIO or S3
//	objectstore.NewMemory(base, b)   // in-process, for tests and local runs
//
// # Keys
//
// Ingested assets live under "social/<group>/<uuid>.<ext>". User uploads
// live under "<userId>/<uuid>.<ext>" and profile photos under
// "<userId>/profile-<uuid>.jpg". Only keys under SocialPrefix are eligible
// for cleanup.
//
// # Reference URLs
//
// In presigned mode (the default) ReferenceURL signs a GET. SigV4 caps the
// lifetime at seven days, so longer TTLs are clamped. In public mode it
// returns the stable path-style URL. Either way, when a public URL is
// configured its scheme and host replace the internal endpoint's.
package objectstore
