package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand, which executes the full pipeline
// once: harvest, extract, gate, load, notify.
func newRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the full harvest pipeline once",
		Long: `Executes one end-to-end pass: fetch listings from every enabled
source inside the incremental window, extract structured records,
apply the quality gate, load accepted postings into the warehouse,
and send notifications for postings not yet delivered.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.GetPipeline().Run(cmd.Context(), appInstance.RunConfig(dryRun))
			if err != nil {
				return fmt.Errorf("run pipeline: %w", err)
			}
			appInstance.GetLogger().Info("Run command finished.",
				zap.String("run_id", summary.RunID),
				zap.Int("accepted", summary.Accepted),
				zap.Int("notifications_sent", summary.NotificationsSent))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate everything but skip warehouse writes, notifications, and the cursor commit")
	return cmd
}
