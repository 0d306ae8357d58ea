package integrations

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/reqlint/pkg/requirements"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package doesn't exist on the index.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with the standard registry timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NormalizePkgName converts a package name to its PEP 503 canonical form.
func NormalizePkgName(name string) string {
	return requirements.NormalizeName(name)
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// NormalizeRepoURL converts git@, git:// and git+ repository URLs to their
// HTTPS form without a .git suffix.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

var repoURLKeys = []string{"Source", "Source Code", "Repository", "Code", "Homepage"}

// RepoURL picks the source repository from a package's project URLs.
func RepoURL(urls map[string]string) string {
	for _, k := range repoURLKeys {
		if u := urls[k]; strings.Contains(u, "github.com") || strings.Contains(u, "gitlab.com") {
			return NormalizeRepoURL(u)
		}
	}
	return ""
}
