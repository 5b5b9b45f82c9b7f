// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/pegavagas/harvester/internal/logging"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup to ensure that configuration is loaded and
// available to all other packages.
func InitConfig() {
	// --- Set Search Paths ---
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                // Current working directory
	viper.AddConfigPath("/etc/harvester/")  // System-wide configuration
	viper.AddConfigPath("$HOME/.harvester") // User-specific configuration

	// --- Set Defaults ---
	viper.SetDefault("log.development", false)

	// Source adapters.
	viper.SetDefault("source.enabled", []string{"gupy"})
	viper.SetDefault("source.terms", []string{
		"engenheiro de dados",
		"data engineer",
		"analista de dados",
	})
	viper.SetDefault("source.limit", 0)
	viper.SetDefault("source.page_size", 50)
	viper.SetDefault("source.max_pages", 40)
	viper.SetDefault("source.page_delay", "500ms")
	viper.SetDefault("source.request_timeout", "15s")
	viper.SetDefault("source.fetch_deadline", "10m")
	viper.SetDefault("source.max_attempts", 3)
	viper.SetDefault("source.user_agent", "Mozilla/5.0 (compatible; harvester/1.0)")
	viper.SetDefault("source.greenhouse.companies", []string{})
	viper.SetDefault("source.lever.companies", []string{})

	// Browser rendering for listing pages that need JavaScript.
	viper.SetDefault("render.enabled", false)
	viper.SetDefault("render.timeout", "15s")
	viper.SetDefault("render.max_concurrency", 2)
	viper.SetDefault("render.domain_qps", 0.5)

	// Detector thresholds for deciding when a static fetch is enough.
	viper.SetDefault("detector.min_html_bytes", 2000)
	viper.SetDefault("detector.keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})

	// Content cleaning.
	viper.SetDefault("content.max_chars", 15000)

	// Structured extraction.
	viper.SetDefault("extract.model", "gpt-4o-mini")
	viper.SetDefault("extract.api_key", "")
	viper.SetDefault("extract.max_attempts", 3)
	viper.SetDefault("extract.timeout", "60s")

	// Quality gate.
	viper.SetDefault("gate.min_score", 50)
	viper.SetDefault("gate.strict_remote", true)
	viper.SetDefault("gate.target_roles", []string{
		"Data Engineer",
		"Data Scientist",
		"Data Analyst",
		"Analytics Engineer",
		"Machine Learning Engineer",
	})

	// Warehouse.
	viper.SetDefault("warehouse.provider", "postgres")
	viper.SetDefault("warehouse.dsn", "postgres://localhost:5432/harvester")

	// Delivery ledger.
	viper.SetDefault("ledger.provider", "file")
	viper.SetDefault("ledger.path", "data/ledger.json")
	viper.SetDefault("ledger.redis_addr", "localhost:6379")
	viper.SetDefault("ledger.redis_key", "harvester:delivered")

	// Sync cursor.
	viper.SetDefault("cursor.path", "data/cursor.json")
	viper.SetDefault("cursor.lookback", "72h")

	// Raw-listing archive.
	viper.SetDefault("archive.provider", "local")
	viper.SetDefault("archive.base_dir", "data/raw")
	viper.SetDefault("archive.gcs_bucket", "")

	// Telegram notifications.
	viper.SetDefault("notify.provider", "none")
	viper.SetDefault("notify.telegram.token", "")
	viper.SetDefault("notify.telegram.chat_id", "")
	viper.SetDefault("notify.send_delay", "500ms")

	// Metrics endpoint.
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")

	// Scheduler.
	viper.SetDefault("schedule.cron", "0 */6 * * *")

	// --- Environment Variables ---
	viper.SetEnvPrefix("HARVESTER") // e.g., HARVESTER_WAREHOUSE_DSN=...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Not fatal; defaults and environment variables still apply.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
