package marker

import (
	"maps"
	"runtime"
	"slices"
	"strings"

	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// Marker variables defined by PEP 508.
const (
	PythonVersion                = "python_version"
	PythonFullVersion            = "python_full_version"
	OSName                       = "os_name"
	SysPlatform                  = "sys_platform"
	PlatformRelease              = "platform_release"
	PlatformSystem               = "platform_system"
	PlatformVersion              = "platform_version"
	PlatformMachine              = "platform_machine"
	PlatformPythonImplementation = "platform_python_implementation"
	ImplementationName           = "implementation_name"
	ImplementationVersion        = "implementation_version"
	Extra                        = "extra"
)

// DefaultPythonVersion is the interpreter version assumed when none is configured.
const DefaultPythonVersion = "3.12"

var variables = []string{
	PythonVersion, PythonFullVersion, OSName, SysPlatform, PlatformRelease,
	PlatformSystem, PlatformVersion, PlatformMachine,
	PlatformPythonImplementation, ImplementationName, ImplementationVersion, Extra,
}

// aliases maps legacy PEP 345 spellings to their PEP 508 names.
var aliases = map[string]string{
	"os.name":                        OSName,
	"sys.platform":                   SysPlatform,
	"platform.version":               PlatformVersion,
	"platform.machine":               PlatformMachine,
	"platform.python_implementation": PlatformPythonImplementation,
	"python_implementation":          PlatformPythonImplementation,
}

// Variables returns the PEP 508 marker variable names.
func Variables() []string { return slices.Clone(variables) }

// canonicalVariable resolves aliases and reports whether name is a variable.
func canonicalVariable(name string) (string, bool) {
	if a, ok := aliases[name]; ok {
		return a, true
	}
	return name, slices.Contains(variables, name)
}

// Environment holds the values marker variables evaluate to.
type Environment map[string]string

// DefaultEnvironment describes a CPython interpreter of [DefaultPythonVersion]
// on the host operating system and architecture.
func DefaultEnvironment() Environment {
	return Platform(runtime.GOOS, runtime.GOARCH).WithPythonVersion(DefaultPythonVersion)
}

// Platform returns an environment for a Go GOOS/GOARCH pair. Interpreter
// variables are left at CPython defaults; set the version with
// [Environment.WithPythonVersion].
func Platform(goos, goarch string) Environment {
	env := Environment{
		OSName:                       "posix",
		SysPlatform:                  goos,
		PlatformSystem:               "Linux",
		PlatformMachine:              machine(goos, goarch),
		PlatformRelease:              "",
		PlatformVersion:              "",
		PlatformPythonImplementation: "CPython",
		ImplementationName:           "cpython",
		Extra:                        "",
	}
	switch goos {
	case "darwin":
		env[PlatformSystem] = "Darwin"
	case "windows":
		env[OSName] = "nt"
		env[SysPlatform] = "win32"
		env[PlatformSystem] = "Windows"
	case "freebsd", "openbsd", "netbsd":
		env[PlatformSystem] = strings.ToUpper(goos[:1]) + goos[1:]
		env[SysPlatform] = goos + "14"
	case "linux":
	default:
		env[PlatformSystem] = goos
	}
	return env
}

func machine(goos, goarch string) string {
	switch goarch {
	case "amd64":
		if goos == "windows" {
			return "AMD64"
		}
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		if goos == "linux" {
			return "aarch64"
		}
		return "arm64"
	case "arm":
		return "armv7l"
	}
	return goarch
}

// WithPythonVersion returns a copy of env for the given interpreter version.
// "3.7" sets python_version to "3.7" and python_full_version to "3.7.0";
// "3.11.4" sets them to "3.11" and "3.11.4".
func (env Environment) WithPythonVersion(version string) Environment {
	out := env.Clone()
	parts := strings.Split(strings.TrimSpace(version), ".")
	switch len(parts) {
	case 0, 1:
		out[PythonVersion] = version
		out[PythonFullVersion] = version
	case 2:
		out[PythonVersion] = version
		out[PythonFullVersion] = version + ".0"
	default:
		out[PythonVersion] = parts[0] + "." + parts[1]
		out[PythonFullVersion] = version
	}
	out[ImplementationVersion] = out[PythonFullVersion]
	return out
}

// WithExtra returns a copy of env evaluating extra == name.
func (env Environment) WithExtra(name string) Environment {
	out := env.Clone()
	out[Extra] = name
	return out
}

// Clone returns a shallow copy of env.
func (env Environment) Clone() Environment {
	out := make(Environment, len(env))
	maps.Copy(out, env)
	return out
}

// Merge returns a copy of env with overrides applied. Keys may use legacy
// aliases; unknown keys are rejected.
func (env Environment) Merge(overrides map[string]string) (Environment, error) {
	out := env.Clone()
	// python_version also sets python_full_version, so an explicit full
	// version must be applied after it.
	if v, ok := overrides[PythonVersion]; ok && v != "" {
		out = out.WithPythonVersion(v)
	}
	for k, v := range overrides {
		name, ok := canonicalVariable(k)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidMarker, "unknown marker variable %q", k)
		}
		if name == PythonVersion {
			continue
		}
		out[name] = v
	}
	return out, nil
}

func (env Environment) lookup(name string) (string, error) {
	v, ok := env[name]
	if !ok {
		if name == Extra {
			return "", nil
		}
		return "", errs.New(errs.ErrCodeInvalidMarker, "marker variable %q is not set in the environment", name)
	}
	return v, nil
}
