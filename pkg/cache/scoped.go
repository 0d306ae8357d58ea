package cache

// ScopedKeyer wraps a Keyer with a prefix. The CLI scopes keys by index URL
// so that a private index never serves entries cached from PyPI:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "index:"+Hash([]byte(indexURL))[:12]+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// GraphKey generates a prefixed key for dependency graph caching.
func (k *ScopedKeyer) GraphKey(source string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(source, opts)
}
