package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/check"
	"github.com/matzehuels/reqlint/pkg/marker"
)

type evalOpts struct {
	matrix bool
	format string
}

type evalResult struct {
	Marker      string            `json:"marker"`
	Result      bool              `json:"result"`
	Environment map[string]string `json:"environment,omitempty"`
	Matrix      map[string]bool   `json:"matrix,omitempty"`
}

// evalCommand creates the eval command.
func (c *CLI) evalCommand() *cobra.Command {
	opts := evalOpts{format: formatText}

	cmd := &cobra.Command{
		Use:   "eval <marker>",
		Short: "Evaluate an environment marker",
		Long: `Evaluate a PEP 508 environment marker under the configured environment.

Examples:
  reqlint eval 'python_version < "3.8"' --python 3.7
  reqlint eval 'sys_platform == "win32"' --platform win32
  reqlint eval 'python_version < "3.8"' --matrix`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEval(args[0], opts)
		},
	}

	addEnvironmentFlags(cmd)
	cmd.Flags().BoolVar(&opts.matrix, "matrix", false, "evaluate for every supported python version")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text or json")

	return cmd
}

func (c *CLI) runEval(expr string, opts evalOpts) error {
	m, err := marker.Parse(expr)
	if err != nil {
		return err
	}
	env := c.config().Environment()
	ok, err := m.Evaluate(env)
	if err != nil {
		return err
	}
	out := evalResult{Marker: m.String(), Result: ok}

	if opts.matrix {
		out.Matrix = map[string]bool{}
		for _, v := range check.SupportedPythons {
			r, err := m.Evaluate(env.WithPythonVersion(v))
			if err != nil {
				return err
			}
			out.Matrix[v] = r
		}
	}

	if opts.format == formatJSON {
		out.Environment = env
		return writeJSON(os.Stdout, out)
	}

	if !opts.matrix {
		fmt.Println(ok)
		return nil
	}
	printKeyValue("marker", out.Marker)
	for _, v := range check.SupportedPythons {
		printKeyValue("python "+v, boolText(out.Matrix[v]))
	}
	return nil
}

func boolText(b bool) string {
	if b {
		return StyleSuccess.Render("true")
	}
	return StyleDim.Render("false")
}
