// Package blobcache caches bytes fetched from remote artifact stores so
// repeated descriptor and provider-module reads do not re-hit the network.
package blobcache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is the default lifetime of a cached artifact.
const DefaultTTL = 5 * time.Minute

// Cache is a byte cache keyed by artifact identity.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	Remove(ctx context.Context, key string)
}

// Key digests the identity parts of an artifact into a fixed-size key.
func Key(parts ...string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "/")), 16)
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

type inMemory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	storage map[string]memEntry
}

// NewMemory creates an in-memory TTL cache. A non-positive ttl uses
// DefaultTTL.
func NewMemory(ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &inMemory{ttl: ttl}
}

func (m *inMemory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.storage[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.storage, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

func (m *inMemory) Set(_ context.Context, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string]memEntry)
	}
	m.storage[key] = memEntry{data: data, expiresAt: time.Now().Add(m.ttl)}
}

func (m *inMemory) Remove(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		delete(m.storage, key)
	}
}
