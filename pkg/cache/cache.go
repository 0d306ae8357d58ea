// Package cache provides the byte cache behind registry lookups and
// transitive graph crawls.
//
// Three backends implement [Cache]: [FileCache] for the CLI (one JSON file per
// entry under the user cache directory), [RedisCache] for shared deployments
// of the API server, and [NullCache] when caching is disabled. Keys are built
// with a [Keyer] so that different package indexes never share entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache stores opaque byte values with an optional expiry.
type Cache interface {
	// Get returns the value and true on a hit. Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// HTTPKey keys a registry response, e.g. HTTPKey("pypi:", "requests").
	HTTPKey(namespace, key string) string
	// GraphKey keys a crawled dependency graph. source identifies what was
	// crawled, such as the digest of a manifest.
	GraphKey(source string, opts GraphKeyOpts) string
}

// GraphKeyOpts are the crawl options that change a graph's shape.
type GraphKeyOpts struct {
	MaxDepth    int               `json:"max_depth"`
	MaxNodes    int               `json:"max_nodes"`
	IndexURL    string            `json:"index_url,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// GraphKey returns "graph:" followed by a SHA-256 of source and opts.
// Environment maps encode with sorted keys, so equal options give equal keys.
func (DefaultKeyer) GraphKey(source string, opts GraphKeyOpts) string {
	data, _ := json.Marshal([]any{source, opts})
	return "graph:" + Hash(data)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
