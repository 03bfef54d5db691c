/*
Package workers sizes the goroutine pools used by media acquisition.

Counts derive from runtime.GOMAXPROCS rather than runtime.NumCPU, so a pod
limited to two CPUs on a 64-core node gets two CPU workers, not 64.

	workers.ForIO(16)        // downloads and object store calls, 2 per CPU
	workers.ForCPU(4)        // transcoding, 1 per CPU
	workers.ForFanOut(6, 16) // six images: at most six workers

Operators can pin the count with MEDIA_WORKERS; the per-call limit still
applies.
*/
package workers
