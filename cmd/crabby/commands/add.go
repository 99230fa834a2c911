package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <package>[@range]",
		Short: "Add a dependency to package.json and install it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, _ := cmd.Flags().GetBool("dev")
			name, rangeExpr := splitSpec(args[0])
			report, err := c.app.Add(cmd.Context(), name, rangeExpr, dev)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
	cmd.Flags().BoolP("dev", "D", false, "Add to devDependencies instead of dependencies")
	return cmd
}

// splitSpec separates "name@range" into its parts. Scoped names keep their
// leading "@", so only a separator past the first byte counts.
func splitSpec(arg string) (name, rangeExpr string) {
	if i := strings.LastIndex(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}
