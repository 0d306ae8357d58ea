package pypi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/reqlint/pkg/cache"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/integrations"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/pep440"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// DefaultBaseURL is the PyPI JSON API root.
const DefaultBaseURL = "https://pypi.org/pypi"

// PackageInfo holds metadata for a Python package.
//
// Releases lists every version that has at least one non-yanked file, sorted
// ascending by PEP 440 order. Versions that do not parse as PEP 440 are
// omitted. RequiresDist keeps the raw PEP 508 strings of the latest release so
// that callers can evaluate markers under their own environment.
type PackageInfo struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Summary      string            `json:"summary,omitempty"`
	License      string            `json:"license,omitempty"`
	Author       string            `json:"author,omitempty"`
	HomePage     string            `json:"home_page,omitempty"`
	Repository   string            `json:"repository,omitempty"`
	ProjectURLs  map[string]string `json:"project_urls,omitempty"`
	RequiresDist []string          `json:"requires_dist,omitempty"`
	Releases     []string          `json:"releases,omitempty"`
	Yanked       []string          `json:"yanked,omitempty"`
}

// Requirements parses RequiresDist. Entries that fail to parse are skipped.
func (p *PackageInfo) Requirements() []*requirements.Requirement {
	var out []*requirements.Requirement
	for _, s := range p.RequiresDist {
		if r, err := requirements.ParseRequirement(s); err == nil {
			out = append(out, r)
		}
	}
	return out
}

// Dependencies returns the normalized names of the requirements whose marker
// holds in env. With an environment that sets no extra, optional extras are
// dropped. Markers that cannot be evaluated are treated as false.
func (p *PackageInfo) Dependencies(env marker.Environment) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, r := range p.Requirements() {
		if ok, err := r.Applies(env); err != nil || !ok {
			continue
		}
		if key := r.Key(); !seen[key] {
			seen[key] = true
			deps = append(deps, key)
		}
	}
	return deps
}

// Versions parses Releases.
func (p *PackageInfo) Versions() []pep440.Version {
	out := make([]pep440.Version, 0, len(p.Releases))
	for _, s := range p.Releases {
		if v, err := pep440.Parse(s); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Client provides access to the PyPI JSON API. It is safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client that caches responses in backend for
// cacheTTL. Pass nil to disable caching.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cacheTTL, map[string]string{"Accept": "application/json"}),
		baseURL: DefaultBaseURL,
	}
}

// WithIndexURL returns a copy of c that queries a different index. A PEP 503
// simple index URL ("https://host/simple") is mapped to its JSON API root
// ("https://host/pypi"). Cache keys are scoped by the index URL.
func (c *Client) WithIndexURL(indexURL string) *Client {
	base := strings.TrimRight(indexURL, "/")
	if base == "" || base == DefaultBaseURL {
		return c
	}
	if strings.HasSuffix(base, "/simple") {
		base = strings.TrimSuffix(base, "/simple") + "/pypi"
	}
	scope := "index:" + cache.Hash([]byte(base))[:12] + ":"
	return &Client{
		Client:  c.Client.WithKeyer(cache.NewScopedKeyer(nil, scope)),
		baseURL: base,
	}
}

// BaseURL returns the JSON API root the client queries.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchPackage retrieves metadata for a package. The name is normalized
// (PEP 503) before lookup. With refresh the cache is bypassed.
//
// It returns an error wrapping [integrations.ErrNotFound] when the package
// does not exist and [integrations.ErrNetwork] for transport failures.
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	if err := errs.ValidatePythonPackageName(pkg); err != nil {
		return nil, err
	}
	pkg = integrations.NormalizePkgName(pkg)
	var info PackageInfo
	err := c.Cached(ctx, pkg, refresh, &info, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	var data apiResponse
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(pkg)), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return err
	}

	urls := make(map[string]string, len(data.Info.ProjectURLs))
	for k, v := range data.Info.ProjectURLs {
		if s, ok := v.(string); ok {
			urls[k] = s
		}
	}
	releases, yanked := splitReleases(data.Releases)

	*info = PackageInfo{
		Name:         data.Info.Name,
		Version:      data.Info.Version,
		Summary:      data.Info.Summary,
		License:      extractLicenseType(data.Info.License, data.Info.Classifiers),
		Author:       data.Info.Author,
		HomePage:     data.Info.HomePage,
		Repository:   integrations.RepoURL(urls),
		ProjectURLs:  urls,
		RequiresDist: data.Info.RequiresDist,
		Releases:     releases,
		Yanked:       yanked,
	}
	return nil
}

// splitReleases separates installable versions from fully yanked ones.
// Versions without files are dropped since nothing can be installed.
func splitReleases(releases map[string][]apiFile) (installable, yanked []string) {
	var ok []pep440.Version
	for raw, files := range releases {
		if len(files) == 0 {
			continue
		}
		v, err := pep440.Parse(raw)
		if err != nil {
			continue
		}
		allYanked := true
		for _, f := range files {
			if !f.Yanked {
				allYanked = false
				break
			}
		}
		if allYanked {
			yanked = append(yanked, v.String())
			continue
		}
		ok = append(ok, v)
	}
	pep440.Sort(ok)
	installable = make([]string, len(ok))
	for i, v := range ok {
		installable[i] = v.Raw()
	}
	return installable, yanked
}

type apiResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type apiInfo struct {
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Summary      string         `json:"summary"`
	License      string         `json:"license"`
	Classifiers  []string       `json:"classifiers"`
	RequiresDist []string       `json:"requires_dist"`
	ProjectURLs  map[string]any `json:"project_urls"`
	HomePage     string         `json:"home_page"`
	Author       string         `json:"author"`
}

type apiFile struct {
	Filename string `json:"filename"`
	Yanked   bool   `json:"yanked"`
}

// extractLicenseType prefers the trove classifier ("License :: OSI Approved
// :: MIT License" gives "MIT License") and falls back to a short license field.
func extractLicenseType(license string, classifiers []string) string {
	for _, c := range classifiers {
		if strings.HasPrefix(c, "License :: ") {
			if parts := strings.Split(c, " :: "); len(parts) >= 3 {
				return parts[len(parts)-1]
			}
		}
	}
	if license != "" && len(license) < 100 && !strings.Contains(license, "\n") {
		return strings.TrimSpace(license)
	}
	if license != "" {
		if first := strings.TrimSpace(strings.Split(license, "\n")[0]); len(first) < 50 {
			return first
		}
	}
	return ""
}
