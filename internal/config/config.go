// Package config loads reqlint settings from a YAML file, REQLINT_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/marker"
)

const (
	appName   = "reqlint"
	envPrefix = "REQLINT"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreNone   = "none"
)

type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	Dir       string        `mapstructure:"dir"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the merged configuration.
type Config struct {
	PythonVersion   string       `mapstructure:"python_version"`
	SysPlatform     string       `mapstructure:"sys_platform"`
	PlatformMachine string       `mapstructure:"platform_machine"`
	IndexURL        string       `mapstructure:"index_url"`
	Cache           CacheConfig  `mapstructure:"cache"`
	Store           StoreConfig  `mapstructure:"store"`
	Server          ServerConfig `mapstructure:"server"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Load reads the config file (path, or the default location when empty),
// applies REQLINT_* environment variables and then any changed flags bound
// with the keys in bindings (config key -> flag name).
func Load(path string, flags *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else if dir, err := ConfigDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case path == "" && errors.Is(err, os.ErrNotExist):
		default:
			return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "read config %s", path)
		}
	}

	for key, name := range bindings {
		if flags == nil {
			break
		}
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errs.Wrap(errs.ErrCodeInternal, err, "bind flag %s", name)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "decode config")
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("python_version", marker.DefaultPythonVersion)
	v.SetDefault("sys_platform", "")
	v.SetDefault("platform_machine", "")
	v.SetDefault("index_url", "")
	v.SetDefault("cache.backend", CacheFile)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("store.backend", StoreSQLite)
	v.SetDefault("store.path", "")
	v.SetDefault("store.mongo_uri", "")
	v.SetDefault("store.mongo_database", "reqlint")
	v.SetDefault("server.addr", ":8080")
}

func (c *Config) validate() error {
	if c.IndexURL != "" {
		if err := errs.ValidateURL(c.IndexURL); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidInput, err, "index_url")
		}
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "unknown cache backend %q (want file, redis or none)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case StoreSQLite, StoreNone:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return errs.New(errs.ErrCodeInvalidInput, "store.mongo_uri is required for the mongo store")
		}
	default:
		return errs.New(errs.ErrCodeInvalidInput, "unknown store backend %q (want sqlite, mongo or none)", c.Store.Backend)
	}
	return nil
}

// Environment returns the marker environment described by the config.
func (c *Config) Environment() marker.Environment {
	env := marker.DefaultEnvironment()
	if c.SysPlatform != "" || c.PlatformMachine != "" {
		env = marker.Platform(goosFor(c.SysPlatform), goarchFor(c.PlatformMachine))
		if c.SysPlatform != "" {
			env[marker.SysPlatform] = c.SysPlatform
		}
		if c.PlatformMachine != "" {
			env[marker.PlatformMachine] = c.PlatformMachine
		}
	}
	if c.PythonVersion != "" {
		env = env.WithPythonVersion(c.PythonVersion)
	}
	return env
}

// CacheDir returns the configured cache directory or the XDG default
// (~/.cache/reqlint).
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return CacheDir()
}

// StorePath returns the SQLite database path, defaulting to
// reqlint.db under the XDG data directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".db"), nil
}

// ConfigDir is $XDG_CONFIG_HOME/reqlint or ~/.config/reqlint.
func ConfigDir() (string, error) { return xdg("XDG_CONFIG_HOME", ".config") }

// CacheDir is $XDG_CACHE_HOME/reqlint or ~/.cache/reqlint.
func CacheDir() (string, error) { return xdg("XDG_CACHE_HOME", ".cache") }

// DataDir is $XDG_DATA_HOME/reqlint or ~/.local/share/reqlint.
func DataDir() (string, error) { return xdg("XDG_DATA_HOME", filepath.Join(".local", "share")) }

func xdg(env, fallback string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidPath, err, "resolve home directory")
	}
	return filepath.Join(home, fallback, appName), nil
}

// goosFor maps a sys_platform value to a Go OS name.
func goosFor(platform string) string {
	switch {
	case platform == "":
		return runtime.GOOS
	case platform == "win32" || platform == "cygwin":
		return "windows"
	case platform == "darwin":
		return "darwin"
	case strings.HasPrefix(platform, "freebsd"):
		return "freebsd"
	default:
		return "linux"
	}
}

func goarchFor(machine string) string {
	switch machine {
	case "x86_64", "AMD64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "i386", "i686", "x86":
		return "386"
	case "":
		return runtime.GOARCH
	}
	return machine
}
