package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxNameLength = 256
	maxPathLength = 500
)

// pythonNameRe matches distribution names as PEP 508 defines them.
var pythonNameRe = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

// ValidatePythonPackageName reports whether name can be used as a PyPI
// project name. Names go into index URLs and cache keys, so anything that is
// not a PEP 508 name is rejected before a request is built.
func ValidatePythonPackageName(name string) error {
	switch {
	case name == "":
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	case len(name) > maxNameLength:
		return New(ErrCodeInvalidPackage, "package name too long (max %d characters)", maxNameLength)
	case hasControl(name):
		return New(ErrCodeInvalidPackage, "package name contains control characters")
	case !pythonNameRe.MatchString(name):
		return New(ErrCodeInvalidPackage, "invalid Python package name %q", name)
	}
	return nil
}

// ValidatePath checks a manifest path supplied by a client, such as the name
// stored with a report. It must be relative and stay inside its root.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return New(ErrCodeInvalidPath, "path cannot be empty")
	case len(path) > maxPathLength:
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	case hasControl(path):
		return New(ErrCodeInvalidPath, "path contains control characters")
	case strings.HasPrefix(path, "/"):
		return New(ErrCodeInvalidPath, "path must be relative")
	case strings.Contains(path, "\\"):
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot leave its directory (..)")
		}
	}
	return nil
}

// ValidateURL checks a package index URL. Only absolute http and https URLs
// with a host are accepted.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme: %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL has no host: %q", rawURL)
	}
	return nil
}

func hasControl(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}
