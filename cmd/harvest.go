package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newHarvestCmd creates the 'harvest' subcommand: fetch, dedupe, and archive
// only, writing the batch to a file so later stages can pick it up.
func newHarvestCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Fetches and archives listings without extracting them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			listings, summary, err := appInstance.GetPipeline().HarvestStage(cmd.Context(), appInstance.RunConfig(false))
			if err != nil {
				return fmt.Errorf("harvest stage: %w", err)
			}
			if err := writeJSON(out, listings); err != nil {
				return err
			}
			appInstance.GetLogger().Info("Harvest command finished.",
				zap.Int("fetched", summary.Fetched),
				zap.Int("deduped", summary.Deduped),
				zap.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "data/stage/listings.json", "file to write the harvested batch to")
	return cmd
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
