// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/app"
	"github.com/pegavagas/harvester/internal/logging"
	"github.com/pegavagas/harvester/internal/pipeline"
	"github.com/pegavagas/harvester/internal/warehouse"
	"github.com/pegavagas/harvester/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows a
// mock app to be injected during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetPipeline() *pipeline.Pipeline
	GetStore() warehouse.Store
	RunConfig(dryRun bool) pipeline.Config
}

// newApp is the application factory. It's a variable so tests can replace it
// with a mock factory.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests remote job postings into the analytics warehouse.",
		Long: `harvester collects job postings from ATS APIs and listing pages,
extracts structured records, filters them down to truly remote roles
workable from Brazil, loads the keepers into a star-schema warehouse,
and notifies subscribers about new postings.`,

		// Runs after config is loaded but before the subcommand's RunE,
		// which makes it the right place to build and inject the app.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newNotifyCmd())
	cmd.AddCommand(newScheduleCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if _, err := logging.InitLogger(viper.GetBool("log.development")); err != nil {
		panic(err)
	}

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
