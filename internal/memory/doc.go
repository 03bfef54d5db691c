// Package memory keeps image decoding inside the container's memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the Kubernetes Downward API
// (MEMORY_LIMIT, optionally scaled by MEMORY_RATIO) unless GOMEMLIMIT is
// already set. Call it first thing in main.
//
// A [Monitor] samples heap usage and acts as a gate for decode work: once
// allocation crosses the critical watermark, [Monitor.Wait] blocks until
// usage falls back below the high watermark or the caller's context ends.
// A full-size decode of a large JPEG can allocate hundreds of megabytes, and
// an ingestion fans out several at once, so the acquirer waits on the gate
// before every transcode.
//
//	spec:
//	  containers:
//	  - name: social-ingest
//	    env:
//	    - name: MEMORY_LIMIT
//	      valueFrom:
//	        resourceFieldRef:
//	          resource: limits.memory
//	    - name: MEMORY_RATIO
//	      value: "0.80"  # libvips allocates outside the Go heap
package memory
