package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "MEDIA_WORKERS"

// Count returns the number of workers for a task type, derived from
// GOMAXPROCS so container CPU limits are respected.
//
// multiplier is 1.0 for CPU-bound work (transcoding) and 2.0 for I/O-bound
// work (downloads, object store calls). limit caps the result; 0 means no
// cap. MEDIA_WORKERS, when set to a positive integer, replaces the computed
// value (still subject to limit).
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

// ForCPU returns the worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForFanOut sizes a fan-out over n items: never more workers than items,
// never fewer than one.
func ForFanOut(n, limit int) int {
	if n < 1 {
		return 1
	}
	return capAt(ForIO(limit), n)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
