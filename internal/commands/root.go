package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"juju/internal/di"
	"juju/internal/services"
	"juju/internal/structures"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var flags = structures.CliFlags{}

var rootCmd = &cobra.Command{
	Use:   "juju",
	Short: "Personal time tracking engine",
	Long: `juju records work sessions against projects, stores them in yearly CSV units
and serves them, with per-project aggregates, over a small HTTP API.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "juju %s (commit %s, built %s)\n", version, commit, date)
	},
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// withService builds the session service and closes it after fn returns.
func withService(fn func(*cobra.Command, *services.SessionService, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		service, err := di.InitSessionService(&flags)
		if err != nil {
			return err
		}
		defer service.Close()
		return fn(cmd, service, args)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "config/config.yml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flags.DebugMode, "debug", "d", false, "Enable debug mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}
