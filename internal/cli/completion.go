package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion bash|zsh|fish|powershell",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell.

  source <(reqlint completion bash)
  reqlint completion zsh > "${fpath[1]}/_reqlint"
  reqlint completion fish > ~/.config/fish/completions/reqlint.fish
  reqlint completion powershell | Out-String | Invoke-Expression

Manifest arguments complete to requirements*.txt, *.in, setup.cfg,
pyproject.toml and poetry.lock files.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return root.GenBashCompletionV2(out, true)
			}
		},
	}
}

// manifestArgs completes the manifest argument of parse, check, resolve and
// graph to the file types reqlint reads.
func manifestArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"txt", "in", "cfg", "toml", "lock", "json"}, cobra.ShellCompDirectiveFilterFileExt
}
