package deps

import (
	"time"

	"github.com/matzehuels/reqlint/pkg/marker"
)

const (
	DefaultMaxDepth = 50             // Default maximum dependency depth
	DefaultMaxNodes = 5000           // Default maximum packages to fetch
	DefaultCacheTTL = 24 * time.Hour // Default HTTP cache duration
)

// Options configures manifest parsing and dependency resolution.
type Options struct {
	MaxDepth    int                  // Maximum depth to traverse (default: 50)
	MaxNodes    int                  // Maximum packages to fetch (default: 5000)
	CacheTTL    time.Duration        // HTTP cache duration (default: 24h)
	Refresh     bool                 // Bypass cache for fresh data
	Environment marker.Environment   // Marker environment (default: marker.DefaultEnvironment())
	Logger      func(string, ...any) // Progress/error callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Environment == nil {
		opts.Environment = marker.DefaultEnvironment()
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Package holds metadata fetched from a package index.
type Package struct {
	Name         string   // Package name
	Version      string   // Latest version
	Dependencies []string // Direct dependency names that apply in the environment
	Description  string   // Package summary
	License      string   // License identifier
	Author       string   // Primary author or maintainer
	Repository   string   // Source repository URL
	HomePage     string   // Project homepage URL
}

// Metadata converts Package fields to node metadata.
func (p *Package) Metadata() map[string]any {
	m := map[string]any{"version": p.Version}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if p.License != "" {
		m["license"] = p.License
	}
	if p.Author != "" {
		m["author"] = p.Author
	}
	if p.Repository != "" {
		m["repository"] = p.Repository
	}
	if p.HomePage != "" {
		m["homepage"] = p.HomePage
	}
	return m
}
