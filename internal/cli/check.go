package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/check"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

const defaultManifest = "requirements.txt"

type checkOpts struct {
	metadata    string
	noDiscover  bool
	lock        string
	online      bool
	pre         bool
	refresh     bool
	noCache     bool
	strict      bool
	record      bool
	interactive bool
	format      string
	disable     []string
}

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	opts := checkOpts{format: formatText}

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Check a requirements file",
		Long: `Check a requirements file (default: requirements.txt) for syntax errors,
markers that do not evaluate, conflicting constraints, and requirements
declared in the project's install metadata but missing from the file.

Install metadata is read from --metadata, or from a setup.cfg or
pyproject.toml next to the manifest. Without it the missing and
constraint-mismatch rules are skipped.

The command exits with status 2 when the report has errors, or warnings
with --strict.

Examples:
  reqlint check docs/requirements.txt
  reqlint check requirements.txt --python 3.7 --metadata setup.cfg
  reqlint check requirements.txt --lock poetry.lock --strict
  reqlint check requirements.txt --online --record
  reqlint check requirements.txt --interactive`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: manifestArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultManifest
			if len(args) == 1 {
				path = args[0]
			}
			return c.runCheck(cmd.Context(), path, opts)
		},
	}

	addEnvironmentFlags(cmd)
	cmd.Flags().StringVarP(&opts.metadata, "metadata", "m", "", "install metadata file (setup.cfg or pyproject.toml)")
	cmd.Flags().BoolVar(&opts.noDiscover, "no-discover", false, "do not look for install metadata next to the manifest")
	cmd.Flags().StringVarP(&opts.lock, "lock", "l", "", "poetry.lock to compare pinned versions against")
	cmd.Flags().BoolVar(&opts.online, "online", false, "check packages and releases against the index")
	cmd.Flags().BoolVar(&opts.pre, "pre", false, "consider pre-releases in online checks")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached index responses")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the index response cache")
	cmd.Flags().String("index-url", "", "package index URL (default https://pypi.org/simple)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on warnings too")
	cmd.Flags().BoolVar(&opts.record, "record", false, "save the report to the history store")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse findings interactively")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text or json")
	cmd.Flags().StringSliceVar(&opts.disable, "disable", nil, "rules to turn off, e.g. unpinned,duplicate")

	return cmd
}

// addEnvironmentFlags registers the flags that override the marker
// environment. They are bound to config keys in flagBindings.
func addEnvironmentFlags(cmd *cobra.Command) {
	cmd.Flags().String("python", "", "python version markers are evaluated for (default 3.12)")
	cmd.Flags().String("platform", "", "sys_platform markers are evaluated for (default: host)")
	cmd.Flags().String("machine", "", "platform_machine markers are evaluated for (default: host)")
}

func (c *CLI) runCheck(ctx context.Context, path string, opts checkOpts) error {
	if opts.format != formatText && opts.format != formatJSON {
		return errs.New(errs.ErrCodeInvalidInput, "unknown format %q (want text or json)", opts.format)
	}
	disable, err := parseRules(opts.disable)
	if err != nil {
		return err
	}

	cfg := c.config()
	copts := check.Options{
		Environment:      cfg.Environment(),
		DiscoverMetadata: !opts.noDiscover,
		Online:           opts.online,
		Refresh:          opts.refresh,
		Prereleases:      opts.pre,
		Disable:          disable,
		Getenv:           os.LookupEnv,
		Logger:           logf(c.Logger),
	}
	if opts.online {
		index, closeIndex, err := c.newIndex(ctx, opts.noCache, cfg.IndexURL)
		if err != nil {
			return err
		}
		defer closeIndex()
		copts.Index = index
	}

	prog := newProgress(c.Logger)
	var spin *Spinner
	if opts.online && opts.format == formatText {
		spin = newSpinnerWithContext(ctx, "Checking "+path+" against the index...")
		spin.Start()
	}
	rep, err := check.Run(ctx, check.Input{Path: path, MetadataPath: opts.metadata, LockPath: opts.lock}, copts)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Checked %d requirements in %s", rep.Summary.Requirements, path))

	if opts.record {
		if err := c.recordReport(ctx, rep); err != nil {
			return err
		}
	}

	switch {
	case opts.format == formatJSON:
		if err := writeJSON(os.Stdout, rep); err != nil {
			return err
		}
	case opts.interactive && len(rep.Findings) > 0:
		if _, err := tea.NewProgram(newFindingsModel(rep), tea.WithContext(ctx)).Run(); err != nil {
			return errs.Wrap(errs.ErrCodeInternal, err, "run findings browser")
		}
	default:
		printReport(rep, opts.record)
	}

	if rep.Failed(opts.strict) {
		return ErrCheckFailed
	}
	return nil
}

func (c *CLI) recordReport(ctx context.Context, rep *check.Report) error {
	st, err := c.requireStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SaveReport(ctx, rep); err != nil {
		return err
	}
	c.Logger.Debug("report recorded", "id", rep.ID)
	return nil
}

func parseRules(names []string) ([]check.Rule, error) {
	var out []check.Rule
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r := check.Rule(name)
		if !slices.Contains(check.Rules, r) {
			return nil, errs.New(errs.ErrCodeInvalidInput, "unknown rule %q", name)
		}
		out = append(out, r)
	}
	return out, nil
}

// printReport writes the text form of a report to stdout.
func printReport(rep *check.Report, recorded bool) {
	printKeyValue("Manifest", rep.Manifest)
	if rep.Metadata != "" {
		printKeyValue("Metadata", rep.Metadata)
	}
	if rep.Lock != "" {
		printKeyValue("Lock", rep.Lock)
	}
	printKeyValue("Environment", fmt.Sprintf("python %s, %s", rep.Environment["python_version"], rep.Environment["sys_platform"]))

	if len(rep.Findings) == 0 {
		printSuccess("No findings")
	} else {
		fmt.Println(findingsTable(rep.Findings))
	}
	for _, s := range rep.Skipped {
		printDetail("skipped %s: %s", s.Rule, s.Reason)
	}
	fmt.Println(summaryLine(rep.Summary))
	if recorded {
		printNextStep("Show again", "reqlint history show "+rep.ID)
	}
}
