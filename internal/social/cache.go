package social

import (
	"time"

	"social-ingest/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// metaCache holds upstream metadata (never media) for a short TTL. A nil
// *metaCache is a disabled cache.
type metaCache[V any] struct {
	name string
	lru  *expirable.LRU[string, V]
}

func newMetaCache[V any](name string, size int, ttl time.Duration) *metaCache[V] {
	if size < 0 {
		return nil
	}
	return &metaCache[V]{
		name: name,
		lru:  expirable.NewLRU[string, V](size, nil, ttl),
	}
}

func (c *metaCache[V]) get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		metrics.MetadataCacheHits.WithLabelValues(c.name).Inc()
	} else {
		metrics.MetadataCacheMisses.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

func (c *metaCache[V]) add(key string, v V) {
	if c == nil {
		return
	}
	c.lru.Add(key, v)
}
