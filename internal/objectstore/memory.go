package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Object is a stored blob held by Memory.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process Store. It backs STORAGE_BACKEND=memory for local
// development and stands in for S3 in tests. Reference URLs are public-style
// URLs under BaseURL.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	failOn  map[string]error
	baseURL string
	bucket  string
}

// NewMemory returns an empty Memory store whose URLs look like
// <baseURL>/<bucket>/<key>.
func NewMemory(baseURL, bucket string) *Memory {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	if bucket == "" {
		bucket = "media"
	}
	return &Memory{
		objects: make(map[string]Object),
		failOn:  make(map[string]error),
		baseURL: baseURL,
		bucket:  bucket,
	}
}

// FailOn makes the given operation ("put", "head", "delete", "url") return
// err for key. Use key "*" to fail every key.
func (m *Memory) FailOn(op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[op+"\x00"+key] = err
}

func (m *Memory) injected(op, key string) error {
	if err, ok := m.failOn[op+"\x00"+key]; ok {
		return err
	}
	return m.failOn[op+"\x00*"]
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) (err error) {
	if err = validateKey(key); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("put", start, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.injected("put", key); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = Object{Data: buf, ContentType: contentType}
	return nil
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.injected("head", key); err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	_, ok := m.objects[key]
	return ok, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) (err error) {
	if err = validateKey(key); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.injected("delete", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	delete(m.objects, key)
	return nil
}

// ReferenceURL implements Store. ttl is ignored.
func (m *Memory) ReferenceURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.injected("url", key); err != nil {
		return "", err
	}
	return m.baseURL + "/" + m.bucket + "/" + escapeKey(key), nil
}

// KeyFromURL implements Store.
func (m *Memory) KeyFromURL(rawURL string) (string, error) {
	return keyFromPath(rawURL, m.bucket)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Get returns the object stored under key.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns all stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
