// Package integrations provides HTTP clients for package index APIs.
//
// The [pypi] subpackage talks to the PyPI JSON API (or any index that mirrors
// it). [Client] holds the shared plumbing: response caching through a
// [cache.Cache], retries with backoff for network errors and 5xx responses,
// rate-limit detection, and observability hooks around every request.
//
//	client := pypi.NewClient(backend, 24*time.Hour)
//	pkg, err := client.FetchPackage(ctx, "fastapi", false) // false = use cache
//
// [pypi]: github.com/matzehuels/reqlint/pkg/integrations/pypi
// [cache.Cache]: github.com/matzehuels/reqlint/pkg/cache.Cache
package integrations
