package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"juju/internal/models"
	"juju/internal/services"
	"juju/internal/storage"
)

const dateLayout = "2006-01-02"

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List sessions",
	Long:    "List sessions, optionally limited to a project or an inclusive date range (YYYY-MM-DD)",
	RunE: withService(func(cmd *cobra.Command, service *services.SessionService, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		var (
			sessions []models.Session
			report   storage.LoadReport
			err      error
		)
		switch {
		case project != "":
			sessions, report, err = service.QueryByProject(cmd.Context(), project)
		case from != "" || to != "":
			var r models.DateRange
			r, err = dateRange(from, to, service.Location())
			if err != nil {
				return err
			}
			sessions, report, err = service.QueryByDateInterval(cmd.Context(), r)
		default:
			sessions, report, err = service.QueryAllSessions(cmd.Context(), nil)
		}
		if err != nil {
			return err
		}

		printSessions(cmd, sessions)
		for _, q := range report.Quarantined {
			cmd.PrintErrf("warning: quarantined %s\n", q)
		}
		for _, row := range report.RowErrors {
			cmd.PrintErrf("warning: %d line %d skipped: %v\n", row.Year, row.Line, row.Err)
		}
		return nil
	}),
}

// dateRange turns inclusive calendar dates into a half-open range. A missing
// bound falls back to the other one.
func dateRange(from, to string, loc *time.Location) (models.DateRange, error) {
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("invalid --from %q: %w", from, err)
	}
	end, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("invalid --to %q: %w", to, err)
	}
	return models.DateRange{From: start, To: end.AddDate(0, 0, 1)}, nil
}

func printSessions(cmd *cobra.Command, sessions []models.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-17s %-6s %-6s %-20s %s\n", "START", "END", "MIN", "PROJECT", "NOTES")
	fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("-", 72))

	total := 0
	for _, s := range sessions {
		project := s.ProjectName
		if len(project) > 18 {
			project = project[:15] + "..."
		}
		minutes := s.DurationMinutes()
		total += minutes
		fmt.Fprintf(cmd.OutOrStdout(), "%-17s %-6s %-6d %-20s %s\n",
			s.Start.Format("2006-01-02 15:04"),
			s.End.Format("15:04"),
			minutes,
			project,
			s.Notes)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d sessions, %dh%02dm\n", len(sessions), total/60, total%60)
}
