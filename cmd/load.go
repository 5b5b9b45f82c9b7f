package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/job"
)

// newLoadCmd creates the 'load' subcommand: gate and warehouse-load a batch
// of extracted records.
func newLoadCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Gates extracted records and loads the keepers into the warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var results []job.ExtractionResult
			if err := readJSON(in, &results); err != nil {
				return err
			}
			accepted, summary, err := appInstance.GetPipeline().LoadStage(cmd.Context(), results)
			if err != nil {
				return fmt.Errorf("load stage: %w", err)
			}
			if err := writeJSON(out, accepted); err != nil {
				return err
			}
			appInstance.GetLogger().Info("Load command finished.",
				zap.Int("accepted", summary.Accepted),
				zap.Any("rejected", summary.RejectedByReason),
				zap.Int("facts_loaded", summary.FactsLoaded),
				zap.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "data/stage/records.json", "extracted records file")
	cmd.Flags().StringVar(&out, "out", "data/stage/accepted.json", "file to write accepted records to")
	return cmd
}
