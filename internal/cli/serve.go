package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/api"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve manifest parsing, checking and marker evaluation over HTTP.
Reports from POST /v1/check are saved to the configured store.

Examples:
  reqlint serve --addr :8080
  REQLINT_STORE_BACKEND=mongo REQLINT_STORE_MONGO_URI=mongodb://localhost reqlint serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), online)
		},
	}

	addEnvironmentFlags(cmd)
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().BoolVar(&online, "online", false, "allow online checks against the index")
	cmd.Flags().String("index-url", "", "package index URL for online checks")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, online bool) error {
	cfg := c.config()
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	} else {
		c.Logger.Warn("report store disabled, reports will not be saved")
	}

	opts := api.Options{
		Store:       st,
		Environment: cfg.Environment(),
		Logger:      c.Logger,
	}
	if online {
		index, closeIndex, err := c.newIndex(ctx, false, cfg.IndexURL)
		if err != nil {
			return err
		}
		defer closeIndex()
		opts.Index = index
	}

	err = api.New(opts).ListenAndServe(ctx, cfg.Server.Addr)
	if errors.Is(err, context.Canceled) {
		c.Logger.Info("server stopped")
		return nil
	}
	return err
}
