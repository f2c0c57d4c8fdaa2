// Package modelcache stores built model snapshots so that a model file whose content
// and convention set have not changed does not need to be replayed.
package modelcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Cache is implemented by every snapshot backend
type Cache interface {
	// Get returns the stored bytes or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores bytes under key; a zero ttl uses the backend default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key
	Delete(ctx context.Context, key string) error

	// Clear removes every key owned by the cache
	Clear(ctx context.Context) error

	// Exists reports whether key is present and not expired
	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds settings shared by all backends
type Config struct {
	// DefaultTTL applies when Set is called with a zero ttl. Negative means no expiry.
	DefaultTTL time.Duration
	// Prefix namespaces keys in shared stores
	Prefix string
}

// DefaultConfig returns the default backend settings
func DefaultConfig() Config {
	return Config{
		DefaultTTL: time.Hour,
		Prefix:     "modelkit:snapshot:",
	}
}

// ErrCacheMiss is returned when a key is absent or expired
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss reports whether err is, or wraps, a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// Key derives the cache key of a model built from source with the given conventions.
// Convention order is significant.
func Key(source []byte, conventions []string) string {
	h := sha256.New()
	h.Write(source)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(conventions, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads a snapshot stored under key
func Load(ctx context.Context, c Cache, key string) (*metadata.Snapshot, error) {
	data, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var snap metadata.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// Store writes a snapshot under key
func Store(ctx context.Context, c Cache, key string, snap *metadata.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}
