// Package cli implements the reqlint command-line interface.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/internal/config"
	"github.com/matzehuels/reqlint/pkg/buildinfo"
	"github.com/matzehuels/reqlint/pkg/cache"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/observability"
	"github.com/matzehuels/reqlint/pkg/store"
	"github.com/matzehuels/reqlint/pkg/store/mongo"
	"github.com/matzehuels/reqlint/pkg/store/sqlite"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "reqlint"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// ErrCheckFailed is returned by the check command when the report has
// errors (or warnings with --strict). main exits with status 2 on it.
var ErrCheckFailed = errors.New("check failed")

// flagBindings maps config keys to the command flags that override them.
var flagBindings = map[string]string{
	"python_version":   "python",
	"sys_platform":     "platform",
	"platform_machine": "machine",
	"index_url":        "index-url",
	"server.addr":      "addr",
}

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "reqlint checks pip requirements files",
		Long:         `reqlint parses pip requirements files, evaluates their environment markers, and checks them for syntax errors, conflicting constraints and requirements missing from the project's install metadata.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/reqlint/config.yaml)")

	root.AddCommand(c.parseCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.evalCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath, cmd.Flags(), flagBindings)
	if err != nil {
		return err
	}
	if cfg.File != "" {
		c.Logger.Debug("loaded config", "file", cfg.File)
	}
	c.cfg = cfg
	observability.SetCacheHooks(logHooks{c.Logger})
	observability.SetHTTPHooks(logHooks{c.Logger})
	observability.SetCheckHooks(logHooks{c.Logger})
	return nil
}

// config returns the loaded configuration, loading defaults when a command
// runs without the root pre-run (tests).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		cfg, err := config.Load(c.configPath, nil, nil)
		if err != nil {
			c.Logger.Warn("using default config", "error", err)
			cfg = &config.Config{}
		}
		c.cfg = cfg
	}
	return c.cfg
}

// =============================================================================
// Backends
// =============================================================================

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.config()
	if noCache || cfg.Cache.Backend == config.CacheNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Backend == config.CacheRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{Addr: cfg.Cache.RedisAddr, Prefix: appName + ":"})
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newIndex returns a PyPI client over the configured cache. The returned
// close function releases the cache.
func (c *CLI) newIndex(ctx context.Context, noCache bool, indexURL string) (*pypi.Client, func(), error) {
	cfg := c.config()
	backend, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, nil, err
	}
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := pypi.NewClient(backend, ttl)
	if indexURL == "" {
		indexURL = cfg.IndexURL
	}
	if indexURL != "" {
		client = client.WithIndexURL(indexURL)
	}
	return client, func() { _ = backend.Close() }, nil
}

// openStore opens the configured report store. It returns nil when the
// store is disabled.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg := c.config()
	switch cfg.Store.Backend {
	case config.StoreNone:
		return nil, nil
	case config.StoreMongo:
		st, err := mongo.Open(ctx, mongo.Options{URI: cfg.Store.MongoURI, Database: cfg.Store.MongoDatabase})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	st, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// requireStore is openStore for commands that cannot run without one.
func (c *CLI) requireStore(ctx context.Context) (store.Store, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errs.New(errs.ErrCodeUnsupported, "report store is disabled (store.backend: none)")
	}
	return st, nil
}

// =============================================================================
// Output Helpers
// =============================================================================

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "create %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
