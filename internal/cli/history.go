package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reqlint/pkg/store"
)

// historyCommand creates the history command for recorded reports.
func (c *CLI) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse reports saved with check --record",
	}

	cmd.AddCommand(c.historyListCommand())
	cmd.AddCommand(c.historyShowCommand())

	return cmd
}

func (c *CLI) historyListCommand() *cobra.Command {
	var (
		opts   store.ListOptions
		format = formatTable
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runHistoryList(cmd.Context(), opts, format)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", store.DefaultListLimit, "maximum reports to list")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "only reports for this manifest path")
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: table or json")
	return cmd
}

func (c *CLI) runHistoryList(ctx context.Context, opts store.ListOptions, format string) error {
	st, err := c.requireStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.ListReports(ctx, opts)
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeJSON(os.Stdout, list)
	}
	if len(list) == 0 {
		printInfo("No recorded reports")
		printNextStep("Record one with", "reqlint check requirements.txt --record")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Manifest,
			fmt.Sprint(r.Summary.Errors),
			fmt.Sprint(r.Summary.Warnings),
		})
	}
	fmt.Println(table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Created", "Manifest", "Errors", "Warnings").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			if col == 3 && row < len(list) && list[row].Summary.Errors > 0 {
				return StyleError.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render())
	return nil
}

func (c *CLI) historyShowCommand() *cobra.Command {
	format := formatText
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.requireStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := st.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(os.Stdout, rep)
			}
			printKeyValue("Report", rep.ID)
			printKeyValue("Created", rep.CreatedAt.Local().Format(time.DateTime))
			printReport(rep, false)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: text or json")
	return cmd
}
