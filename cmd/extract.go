package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/source"
)

// newExtractCmd creates the 'extract' subcommand: structured extraction over
// a previously harvested batch file.
func newExtractCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extracts structured records from a harvested batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var listings []source.RawListing
			if err := readJSON(in, &listings); err != nil {
				return err
			}
			results, summary, err := appInstance.GetPipeline().ExtractStage(cmd.Context(), listings)
			if err != nil {
				return fmt.Errorf("extract stage: %w", err)
			}
			if err := writeJSON(out, results); err != nil {
				return err
			}
			appInstance.GetLogger().Info("Extract command finished.",
				zap.Int("extracted", len(results)),
				zap.Int("failures", summary.ExtractionFailures),
				zap.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "data/stage/listings.json", "harvested batch file")
	cmd.Flags().StringVar(&out, "out", "data/stage/records.json", "file to write extracted records to")
	return cmd
}
