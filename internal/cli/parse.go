package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/deps/python"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// Output formats.
const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
)

type parseOpts struct {
	format   string
	manifest string // explicit manifest type
	output   string
}

// parseCommand creates the parse command.
func (c *CLI) parseCommand() *cobra.Command {
	opts := parseOpts{format: formatTable}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Print the requirements of a manifest",
		Long: `Parse a requirements file, setup.cfg, pyproject.toml or poetry.lock and
print its requirements. Use "-" to read a requirements file from stdin.

Syntax errors are listed after the entries and make the command fail.

Examples:
  reqlint parse requirements.txt
  reqlint parse docs/requirements.txt --format json
  reqlint parse deps.txt --type requirements
  cat requirements.txt | reqlint parse -`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: manifestArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runParse(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: table or json")
	cmd.Flags().StringVarP(&opts.manifest, "type", "t", "", "manifest type: requirements, setupcfg, pyproject or poetry (default: by filename)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runParse(path string, opts parseOpts) error {
	if opts.format != formatTable && opts.format != formatJSON {
		return errs.New(errs.ErrCodeInvalidInput, "unknown format %q (want table or json)", opts.format)
	}
	dopts := deps.Options{Environment: c.config().Environment(), Logger: logf(c.Logger)}
	res, perr := c.parseManifest(path, opts.manifest, nil, dopts)
	if res == nil {
		return perr
	}

	w, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer w.Close()

	if opts.format == formatJSON {
		if err := writeJSON(w, parseJSON(res)); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, requirementsTable(res.Requirements))
		writeOptional(w, res)
	}

	if res.Manifest != nil {
		if bad := res.Manifest.AllErrors(); len(bad) > 0 {
			for _, le := range bad {
				printError("%s", le.Error())
			}
			return errs.New(errs.ErrCodeInvalidManifest, "%s has %d invalid line(s)", path, len(bad))
		}
	}
	return perr
}

// parseManifest parses path with the parser for kind, or the one matching
// its filename. "-" reads a requirements file from stdin. Unrecognized
// names are parsed as requirements files. A non-nil res expands the graph
// transitively.
func (c *CLI) parseManifest(path, kind string, res deps.Resolver, dopts deps.Options) (*deps.ManifestResult, error) {
	if path == "-" {
		m, err := requirements.Parse(os.Stdin, requirements.Options{Getenv: os.LookupEnv})
		if m == nil {
			return nil, err
		}
		return &deps.ManifestResult{
			Type:         "requirements",
			Requirements: m.Requirements(),
			Manifest:     m,
			Graph:        deps.ProjectGraph("", m.Requirements(), dopts),
		}, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "manifest %s", path)
	}
	var (
		parser deps.ManifestParser
		err    error
	)
	if kind != "" {
		parser, err = python.Language.Manifest(kind, res)
	} else if parser, err = python.Language.Detect(path, res); errs.Is(err, errs.ErrCodeUnsupported) {
		c.Logger.Debug("unknown manifest name, parsing as requirements file", "path", path)
		parser, err = python.Language.Manifest("requirements", res)
	}
	if err != nil {
		return nil, err
	}
	return parser.Parse(path, dopts)
}

type parsedManifest struct {
	Type           string                                 `json:"type"`
	Name           string                                 `json:"name,omitempty"`
	PythonRequires string                                 `json:"python_requires,omitempty"`
	Requirements   []*requirements.Requirement            `json:"requirements"`
	Optional       map[string][]*requirements.Requirement `json:"optional,omitempty"`
	Locked         map[string]string                      `json:"locked,omitempty"`
	Entries        []requirements.Entry                   `json:"entries,omitempty"`
	Errors         []lineError                            `json:"errors,omitempty"`
}

type lineError struct {
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func parseJSON(res *deps.ManifestResult) parsedManifest {
	out := parsedManifest{
		Type:           res.Type,
		Name:           res.RootPackage,
		PythonRequires: res.PythonRequires,
		Requirements:   res.Requirements,
		Optional:       res.Optional,
		Locked:         res.Locked,
	}
	if out.Requirements == nil {
		out.Requirements = []*requirements.Requirement{}
	}
	if res.Manifest != nil {
		out.Entries = res.Manifest.Entries
		for _, le := range res.Manifest.AllErrors() {
			out.Errors = append(out.Errors, lineError{Path: le.Path, Line: le.Line, Text: le.Text, Message: le.Message()})
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// requirementsTable renders one row per requirement.
func requirementsTable(reqs []*requirements.Requirement) string {
	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		constraint := r.Specifiers.String()
		if r.URL != "" {
			constraint = "@ " + r.URL
		}
		mark := ""
		if r.Marker != nil {
			mark = r.Marker.String()
		}
		line := ""
		if r.Line > 0 {
			line = strconv.Itoa(r.Line)
		}
		rows = append(rows, []string{line, r.Name, constraint, mark})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Line", "Package", "Constraint", "Marker").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}

func writeOptional(w io.Writer, res *deps.ManifestResult) {
	names := make([]string, 0, len(res.Optional))
	for name := range res.Optional {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, StyleTitle.Render("["+name+"]"))
		fmt.Fprintln(w, requirementsTable(res.Optional[name]))
	}
	if res.PythonRequires != "" {
		fmt.Fprintln(w, StyleDim.Render("requires-python: ")+res.PythonRequires)
	}
}
