package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/cache"
	"github.com/matzehuels/reqlint/pkg/dag"
	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/deps/python"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	pkgio "github.com/matzehuels/reqlint/pkg/io"
	"github.com/matzehuels/reqlint/pkg/render/dot"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
)

type graphOpts struct {
	manifest   string
	transitive bool
	maxDepth   int
	maxNodes   int
	refresh    bool
	noCache    bool
	detailed   bool
	format     string
	output     string
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatDOT, maxDepth: 10, maxNodes: deps.DefaultMaxNodes}

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Draw the dependency graph of a manifest",
		Long: `Draw the requirements of a manifest as a Graphviz graph. Requirements whose
marker is false in the configured environment are drawn dashed.

With --transitive the graph is expanded through the package index, keeping
only the dependencies whose markers apply.

Examples:
  reqlint graph requirements.txt > deps.dot
  reqlint graph requirements.txt --transitive --format svg -o deps.svg
  reqlint graph poetry.lock --format svg -o lock.svg
  reqlint graph requirements.txt --transitive --format json -o deps.json
  reqlint graph deps.json --format svg -o deps.svg

A .json file written by --format json is read back as a graph, so a resolved
graph can be rendered again without contacting the index.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: manifestArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args[0], opts)
		},
	}

	addEnvironmentFlags(cmd)
	cmd.Flags().StringVarP(&opts.manifest, "type", "t", "", "manifest type (default: by filename)")
	cmd.Flags().BoolVar(&opts.transitive, "transitive", false, "resolve dependencies through the index")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", opts.maxDepth, "maximum dependency depth with --transitive")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", opts.maxNodes, "maximum packages to fetch with --transitive")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached index responses")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the index response cache")
	cmd.Flags().String("index-url", "", "package index URL")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show versions and markers in labels")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, path string, opts graphOpts) error {
	switch opts.format {
	case formatDOT, formatSVG, formatJSON:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "unknown format %q (want dot, svg or json)", opts.format)
	}

	var (
		g   *dag.DAG
		err error
	)
	if filepath.Ext(path) == ".json" {
		g, err = pkgio.ImportJSON(path)
	} else {
		g, err = c.buildGraph(ctx, path, opts)
	}
	if err != nil {
		return err
	}

	w, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := writeGraph(ctx, w, g, opts); err != nil {
		return err
	}
	if opts.output != "" {
		printFile(opts.output)
	}
	return nil
}

func writeGraph(ctx context.Context, w io.Writer, g *dag.DAG, opts graphOpts) error {
	if opts.format == formatJSON {
		return pkgio.WriteJSON(g, w)
	}
	out := []byte(dot.ToDOT(g, dot.Options{Detailed: opts.detailed}))
	if opts.format == formatSVG {
		var err error
		if out, err = dot.RenderSVG(ctx, string(out)); err != nil {
			return err
		}
	}
	if _, err := w.Write(out); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "write graph")
	}
	return nil
}

func (c *CLI) buildGraph(ctx context.Context, path string, opts graphOpts) (*dag.DAG, error) {
	cfg := c.config()
	dopts := deps.Options{
		MaxDepth:    opts.maxDepth,
		MaxNodes:    opts.maxNodes,
		CacheTTL:    cfg.Cache.TTL,
		Refresh:     opts.refresh,
		Environment: cfg.Environment(),
		Logger:      logf(c.Logger),
	}
	if !opts.transitive {
		return c.drawManifest(ctx, path, opts, nil, dopts)
	}

	backend, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return nil, err
	}
	defer backend.Close()
	res, err := python.Language.Resolver(deps.ResolverOptions{Cache: backend, CacheTTL: cfg.Cache.TTL, IndexURL: cfg.IndexURL})
	if err != nil {
		return nil, err
	}

	key, cacheable := graphKey(path, cfg.IndexURL, dopts)
	if cacheable && !opts.refresh {
		if data, ok, err := backend.Get(ctx, key); err == nil && ok {
			if g, err := pkgio.ReadJSON(bytes.NewReader(data)); err == nil {
				c.Logger.Debug("using cached graph", "manifest", path)
				return g, nil
			}
		}
	}

	spin := newSpinnerWithContext(ctx, "Resolving dependencies of "+path+"...")
	spin.Start()
	g, err := c.drawManifest(ctx, path, opts, res, dopts)
	spin.Stop()
	if err != nil || !cacheable {
		return g, err
	}
	var buf bytes.Buffer
	if pkgio.WriteJSON(g, &buf) == nil {
		if err := backend.Set(ctx, key, buf.Bytes(), cfg.Cache.TTL); err != nil {
			c.Logger.Debug("graph not cached", "error", err)
		}
	}
	return g, nil
}

func (c *CLI) drawManifest(ctx context.Context, path string, opts graphOpts, res deps.Resolver, dopts deps.Options) (*dag.DAG, error) {
	prog := newProgress(c.Logger)
	result, err := c.parseManifest(path, opts.manifest, res, dopts)
	if result == nil || result.Graph == nil {
		if err == nil {
			err = errs.New(errs.ErrCodeInvalidManifest, "%s: no requirements", path)
		}
		return nil, err
	}
	if err != nil {
		c.Logger.Warn("manifest has errors, drawing what parsed", "error", err)
	}
	g := result.Graph
	prog.done(fmt.Sprintf("Built graph with %d packages and %d edges", g.NodeCount()-1, g.EdgeCount()))
	return g, nil
}

// graphKey keys a transitive graph by the manifest's content and the crawl
// options. Manifests read from stdin are not cached.
func graphKey(path, indexURL string, dopts deps.Options) (string, bool) {
	if path == "-" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return cache.NewDefaultKeyer().GraphKey(cache.Hash(data), cache.GraphKeyOpts{
		MaxDepth:    dopts.MaxDepth,
		MaxNodes:    dopts.MaxNodes,
		IndexURL:    indexURL,
		Environment: dopts.Environment,
	}), true
}
