package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Aliases: []string{"i"},
		Short:   "Install all dependencies declared in package.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Install(cmd.Context())
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
}

func printReport(report *domain.InstallReport) {
	fmt.Printf("installed %d packages (%d from cache)\n", report.Installed, report.CacheHits)
	for _, f := range report.FailedScripts {
		fmt.Printf("warning: %s script failed for %s@%s\n", f.Script, f.Package, f.Version)
		if len(f.Output) > 0 {
			fmt.Println(f.Output)
		}
	}
}
