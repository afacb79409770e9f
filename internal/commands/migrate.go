package commands

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"juju/internal/services"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite legacy year units into the current schema",
	Long: `Rewrites every legacy year unit found in the data directory. Originals are
backed up first, rows that cannot be converted go to an unmigrated sidecar file.
The report is printed as JSON.`,
	RunE: withService(func(cmd *cobra.Command, service *services.SessionService, args []string) error {
		report, err := service.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if !report.Success {
			return fmt.Errorf("migration finished with %d errors", len(report.Errors))
		}
		return nil
	}),
}
