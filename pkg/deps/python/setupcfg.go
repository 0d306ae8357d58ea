package python

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/matzehuels/reqlint/pkg/deps"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

var cfgCommentRE = regexp.MustCompile(`(^|\s+)#.*$`)

// SetupCfg reads setuptools declarative metadata: [metadata] name and
// [options] install_requires, extras_require and python_requires.
type SetupCfg struct {
	resolver deps.Resolver
}

func (s *SetupCfg) Type() string              { return "setup.cfg" }
func (s *SetupCfg) IncludesTransitive() bool  { return s.resolver != nil }
func (s *SetupCfg) Supports(name string) bool { return name == "setup.cfg" }

func (s *SetupCfg) Parse(path string, opts deps.Options) (*deps.ManifestResult, error) {
	cfg, err := loadSetupCfg(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	options := cfg.Section("options")
	reqs, err := cfgRequirements(dir, options.Key("install_requires").String())
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "%s: install_requires", path)
	}

	optional := map[string][]*requirements.Requirement{}
	if sec, err := cfg.GetSection("options.extras_require"); err == nil {
		for _, key := range sec.Keys() {
			extra, err := cfgRequirements(dir, key.String())
			if err != nil {
				return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "%s: extras_require %s", path, key.Name())
			}
			optional[key.Name()] = extra
		}
	}

	name := cfg.Section("metadata").Key("name").String()
	g, err := graph(name, reqs, s.resolver, opts)
	if err != nil {
		return nil, err
	}
	return &deps.ManifestResult{
		Type:               s.Type(),
		IncludesTransitive: s.resolver != nil,
		RootPackage:        name,
		Requirements:       reqs,
		Optional:           optional,
		PythonRequires:     strings.TrimSpace(options.Key("python_requires").String()),
		Graph:              g,
	}, nil
}

func loadSetupCfg(path string) (*ini.File, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "setup.cfg %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "read %s", path)
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
		KeyValueDelimiters:         "=:",
	}, path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return cfg, nil
}

// cfgRequirements splits a multi-line option value into requirements. A
// "file:" value names requirements files relative to dir.
func cfgRequirements(dir, value string) ([]*requirements.Requirement, error) {
	value = strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(value, "file:"); ok {
		var out []*requirements.Requirement
		for _, f := range strings.Split(rest, ",") {
			m, err := requirements.ParseFile(filepath.Join(dir, strings.TrimSpace(f)), requirements.Options{FollowIncludes: true})
			if err != nil {
				return nil, err
			}
			out = append(out, m.Requirements()...)
		}
		return out, nil
	}

	var (
		out  []*requirements.Requirement
		errL []error
	)
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(cfgCommentRE.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		req, err := requirements.ParseRequirement(line)
		if err != nil {
			errL = append(errL, err)
			continue
		}
		out = append(out, req)
	}
	return out, errors.Join(errL...)
}

func extractSetupCfgName(dir string) string {
	path := filepath.Join(dir, "setup.cfg")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	cfg, err := loadSetupCfg(path)
	if err != nil {
		return ""
	}
	return cfg.Section("metadata").Key("name").String()
}
