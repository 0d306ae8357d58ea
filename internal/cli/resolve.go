package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/requirements"
	"github.com/matzehuels/reqlint/pkg/resolve"
)

type resolveOpts struct {
	pre     bool
	refresh bool
	noCache bool
	format  string
	output  string
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	opts := resolveOpts{format: formatText}

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Pin requirements to the newest matching releases",
		Long: `Pin every requirement that applies in the configured environment to the
highest release on the index satisfying its constraints (including -c
constraint files). Markers are kept on the pinned lines. Dependencies of the
pinned packages are not resolved.

Examples:
  reqlint resolve requirements.txt
  reqlint resolve requirements.txt --python 3.8 -o requirements.lock.txt
  reqlint resolve requirements.txt --pre --format json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: manifestArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args[0], opts)
		},
	}

	addEnvironmentFlags(cmd)
	cmd.Flags().BoolVar(&opts.pre, "pre", false, "include pre-releases")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached index responses")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the index response cache")
	cmd.Flags().String("index-url", "", "package index URL (default: the manifest's -i, else PyPI)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, path string, opts resolveOpts) error {
	m, err := requirements.ParseFile(path, requirements.Options{FollowIncludes: true, Getenv: os.LookupEnv})
	if err != nil {
		return err
	}

	cfg := c.config()
	indexURL := cfg.IndexURL
	if urls := m.IndexURLs(); indexURL == "" && len(urls) > 0 {
		indexURL = urls[0]
	}
	index, closeIndex, err := c.newIndex(ctx, opts.noCache, indexURL)
	if err != nil {
		return err
	}
	defer closeIndex()

	prog := newProgress(c.Logger)
	spin := newSpinnerWithContext(ctx, "Resolving "+path+"...")
	spin.Start()
	res, err := resolve.Pin(ctx, m, cfg.Environment(), index, resolve.Options{
		Prereleases: opts.pre,
		Refresh:     opts.refresh,
		Logger:      logf(c.Logger),
	})
	spin.Stop()
	if res == nil {
		return err
	}
	for _, u := range res.Unresolved {
		printWarning("%s: %s", u.Name, u.Reason)
	}
	prog.done(fmt.Sprintf("Pinned %d of %d requirements", len(res.Pins), len(res.Pins)+len(res.Unresolved)))

	w, werr := openOutput(opts.output)
	if werr != nil {
		return werr
	}
	defer w.Close()
	if opts.format == formatJSON {
		werr = writeJSON(w, res)
	} else {
		_, werr = res.WriteTo(w)
	}
	if werr != nil {
		return werr
	}
	if opts.output != "" {
		printFile(opts.output)
	}
	return err
}
