package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pegavagas/harvester/internal/schedule"
)

// newScheduleCmd creates the 'schedule' subcommand, which runs the full
// pipeline on a cron spec until interrupted.
func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Runs the full pipeline on a cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			scheduler, err := schedule.New(
				viper.GetString("schedule.cron"),
				appInstance.GetPipeline(),
				appInstance.RunConfig(false),
				appInstance.GetLogger(),
			)
			if err != nil {
				return err
			}
			scheduler.Start(cmd.Context())
			return nil
		},
	}
}
