package commands

import (
	"os"

	"github.com/spf13/cobra"
)

func (c *CLI) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script declared in package.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			result, err := c.app.RunScript(cmd.Context(), args[0])
			if len(result.Output) > 0 {
				_, _ = os.Stdout.Write(result.Output)
			}
			return err
		},
	}
}
