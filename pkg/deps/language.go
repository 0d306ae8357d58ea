package deps

import (
	"time"

	"github.com/matzehuels/reqlint/pkg/cache"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// ResolverOptions configures the index client behind a Resolver.
type ResolverOptions struct {
	Cache    cache.Cache   // Response cache (nil disables caching)
	CacheTTL time.Duration // Response cache duration
	IndexURL string        // Package index root; empty selects the default
}

// Language ties an ecosystem's index resolver to its manifest parsers.
type Language struct {
	Name            string
	DefaultRegistry string
	ManifestTypes   []string
	ManifestAliases map[string]string
	NewResolver     func(opts ResolverOptions) (Resolver, error)
	NewManifest     func(name string, res Resolver) ManifestParser
	ManifestParsers func(res Resolver) []ManifestParser
}

// Resolver creates the language's default index resolver.
func (l *Language) Resolver(opts ResolverOptions) (Resolver, error) {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return l.NewResolver(opts)
}

// Manifest returns the parser registered under name or one of its aliases.
// A nil res yields a parser that does not contact the index.
func (l *Language) Manifest(name string, res Resolver) (ManifestParser, error) {
	if l.NewManifest != nil {
		if p := l.NewManifest(l.alias(name), res); p != nil {
			return p, nil
		}
	}
	return nil, errs.New(errs.ErrCodeUnsupported, "unknown %s manifest type %q (available: %v)", l.Name, name, l.ManifestTypes)
}

// Detect picks the parser for path by filename.
func (l *Language) Detect(path string, res Resolver) (ManifestParser, error) {
	return DetectManifest(path, l.ManifestParsers(res)...)
}

func (l *Language) alias(name string) string {
	if v, ok := l.ManifestAliases[name]; ok {
		return v
	}
	return name
}
