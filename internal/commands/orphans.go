package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"juju/internal/services"
	"juju/internal/validation"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Count or repair sessions that reference a missing project",
	RunE: withService(func(cmd *cobra.Command, service *services.SessionService, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")
		if !repair {
			count, err := service.CountOrphans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d orphaned sessions\n", count)
			return nil
		}

		raw, _ := cmd.Flags().GetString("policy")
		policy, err := validation.ParsePolicy(raw)
		if err != nil {
			return err
		}
		result, err := service.RepairOrphans(cmd.Context(), policy)
		if err != nil {
			return err
		}
		if result.CreatedProject != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (%s)\n", result.CreatedProject.Name, result.CreatedProject.ID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reassigned %d, flagged %d\n", len(result.Reassigned), len(result.Flagged))
		return nil
	}),
}

func init() {
	orphansCmd.Flags().Bool("repair", false, "Apply the repair policy instead of only counting")
	orphansCmd.Flags().String("policy", "flag", "Repair policy: flag or reassign")
}
