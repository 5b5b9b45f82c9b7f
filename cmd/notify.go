package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/job"
)

// newNotifyCmd creates the 'notify' subcommand: deliver a batch of accepted
// records, honoring the at-most-once ledger.
func newNotifyCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Sends notifications for accepted records not yet delivered",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var records []job.Record
			if err := readJSON(in, &records); err != nil {
				return err
			}
			summary, err := appInstance.GetPipeline().NotifyStage(cmd.Context(), records)
			if err != nil {
				return fmt.Errorf("notify stage: %w", err)
			}
			appInstance.GetLogger().Info("Notify command finished.",
				zap.Int("sent", summary.NotificationsSent),
				zap.Int("already_delivered", summary.AlreadyDelivered))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "data/stage/accepted.json", "accepted records file")
	return cmd
}
