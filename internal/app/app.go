// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/archive"
	archivegcs "github.com/pegavagas/harvester/internal/archive/gcs"
	archivelocal "github.com/pegavagas/harvester/internal/archive/local"
	archivememory "github.com/pegavagas/harvester/internal/archive/memory"
	"github.com/pegavagas/harvester/internal/clock/system"
	"github.com/pegavagas/harvester/internal/content"
	"github.com/pegavagas/harvester/internal/cursor"
	"github.com/pegavagas/harvester/internal/extract"
	"github.com/pegavagas/harvester/internal/gate"
	"github.com/pegavagas/harvester/internal/ledger"
	"github.com/pegavagas/harvester/internal/logging"
	"github.com/pegavagas/harvester/internal/metrics"
	"github.com/pegavagas/harvester/internal/notify"
	"github.com/pegavagas/harvester/internal/pipeline"
	"github.com/pegavagas/harvester/internal/render"
	"github.com/pegavagas/harvester/internal/source"
	"github.com/pegavagas/harvester/internal/warehouse"
)

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and handed to the commands through the
// cobra context.
type App struct {
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	terms    []string
	limit    int
	ledger   ledger.Ledger
	store    warehouse.Store
	renderer render.Renderer
	notifier notify.Notifier
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetPipeline returns the wired pipeline.
func (a *App) GetPipeline() *pipeline.Pipeline {
	return a.pipeline
}

// RunConfig builds the pipeline config from the loaded settings.
func (a *App) RunConfig(dryRun bool) pipeline.Config {
	return pipeline.Config{
		Terms:  a.terms,
		Limit:  a.limit,
		DryRun: dryRun,
	}
}

// GetStore exposes the warehouse store, for the load-only command.
func (a *App) GetStore() warehouse.Store {
	return a.store
}

// NewApp creates and initializes a new App struct based on the application's
// configuration. It is the central point for service initialization and is
// designed to fail fast when a critical service cannot be built.
func NewApp(ctx context.Context) (*App, error) {
	l := logging.L
	l.Info("Initializing application services...")
	metrics.Init()

	srcCfg := source.Config{
		PageSize:       viper.GetInt("source.page_size"),
		MaxPages:       viper.GetInt("source.max_pages"),
		PageDelay:      viper.GetDuration("source.page_delay"),
		RequestTimeout: viper.GetDuration("source.request_timeout"),
		FetchDeadline:  viper.GetDuration("source.fetch_deadline"),
		UserAgent:      viper.GetString("source.user_agent"),
	}

	// 1. Browser renderer, only when enabled.
	var renderer render.Renderer = render.NoOp{}
	if viper.GetBool("render.enabled") {
		r, err := render.NewChromedp(render.Config{
			Timeout:        viper.GetDuration("render.timeout"),
			MaxConcurrency: viper.GetInt("render.max_concurrency"),
			DomainQPS:      viper.GetFloat64("render.domain_qps"),
			UserAgent:      srcCfg.UserAgent,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize renderer: %w", err)
		}
		renderer = r
		l.Info("Browser renderer enabled")
	}
	detector := render.NewDetector(
		viper.GetInt("detector.min_html_bytes"),
		viper.GetStringSlice("detector.keywords"),
	)

	// 2. Source adapters.
	adapters, err := buildAdapters(srcCfg, renderer, detector, l)
	if err != nil {
		return nil, err
	}

	// 3. Warehouse store.
	var store warehouse.Store
	switch provider := viper.GetString("warehouse.provider"); provider {
	case "postgres":
		dsn := viper.GetString("warehouse.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("warehouse provider is 'postgres' but warehouse.dsn is not set")
		}
		l.Info("Connecting to PostgreSQL warehouse...")
		loader, err := warehouse.NewLoader(ctx, warehouse.Config{DSN: dsn})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize warehouse: %w", err)
		}
		if err := loader.EnsureSchema(ctx); err != nil {
			loader.Close()
			return nil, fmt.Errorf("failed to ensure warehouse schema: %w", err)
		}
		store = loader
	case "noop":
		l.Info("Using No-Op warehouse. Accepted postings will be discarded.")
		store = warehouse.NoOp{}
	default:
		return nil, fmt.Errorf("unknown warehouse provider: %s", provider)
	}

	// 4. Delivery ledger.
	var led ledger.Ledger
	switch provider := viper.GetString("ledger.provider"); provider {
	case "file":
		led, err = ledger.NewFile(viper.GetString("ledger.path"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ledger: %w", err)
		}
	case "redis":
		led, err = ledger.NewRedis(ctx, ledger.RedisConfig{
			Addr:     viper.GetString("ledger.redis_addr"),
			Password: viper.GetString("ledger.redis_password"),
			DB:       viper.GetInt("ledger.redis_db"),
			Key:      viper.GetString("ledger.redis_key"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis ledger: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown ledger provider: %s", provider)
	}

	// 5. Raw-listing archive.
	var blobs archive.BlobStore
	switch provider := viper.GetString("archive.provider"); provider {
	case "local":
		blobs, err = archivelocal.New(archivelocal.Config{BaseDir: viper.GetString("archive.base_dir")})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
	case "gcs":
		bucket := viper.GetString("archive.gcs_bucket")
		if bucket == "" {
			return nil, fmt.Errorf("archive provider is 'gcs' but archive.gcs_bucket is not set")
		}
		client, gcsErr := gcsclient.NewClient(ctx)
		if gcsErr != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", gcsErr)
		}
		blobs, err = archivegcs.New(client, archivegcs.Config{Bucket: bucket})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS archive: %w", err)
		}
		l.Info("Using GCS archive", zap.String("bucket", bucket))
	case "memory":
		blobs = archivememory.NewBlobStore()
	case "noop":
		l.Info("Using No-Op archive. Raw listings will not be kept.")
		blobs = archive.NoOp{}
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", provider)
	}

	// 6. Notifier. Missing credentials only disable the notify stage; the
	// harvest and load commands share this container and must still run.
	var notifier notify.Notifier
	switch provider := viper.GetString("notify.provider"); provider {
	case "telegram":
		notifier, err = notify.NewTelegram(notify.TelegramConfig{
			Token:     viper.GetString("notify.telegram.token"),
			ChatID:    viper.GetString("notify.telegram.chat_id"),
			SendDelay: viper.GetDuration("notify.send_delay"),
		}, "", l)
		if errors.Is(err, notify.ErrNotConfigured) {
			l.Warn("Telegram credentials missing; deliveries will fail until configured")
			notifier = notify.Unconfigured{}
		} else if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
	case "none":
		l.Info("Notifications disabled.")
		notifier = notify.NoOp{}
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", provider)
	}

	// 7. Structured extractor. A missing API key only disables extraction.
	var client extract.Client = extract.Unconfigured{}
	if viper.GetString("extract.api_key") == "" {
		l.Warn("Extraction API key missing; extraction will fail until configured")
	} else {
		client, err = extract.NewOpenAIClient(extract.OpenAIConfig{
			APIKey:  viper.GetString("extract.api_key"),
			BaseURL: viper.GetString("extract.base_url"),
			Model:   viper.GetString("extract.model"),
			Timeout: viper.GetDuration("extract.timeout"),
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize extraction client: %w", err)
		}
	}
	extractor := extract.New(client, viper.GetInt("extract.max_attempts"), l)

	// 8. Cursor and remaining stages.
	cur, err := cursor.NewStore(viper.GetString("cursor.path"), viper.GetDuration("cursor.lookback"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cursor: %w", err)
	}

	pipe := pipeline.New(
		adapters,
		content.NewCleaner(viper.GetInt("content.max_chars")),
		extractor,
		gate.New(gate.Config{
			TargetRoles:  viper.GetStringSlice("gate.target_roles"),
			MinScore:     viper.GetInt("gate.min_score"),
			StrictRemote: viper.GetBool("gate.strict_remote"),
		}),
		store,
		led,
		cur,
		archive.New(blobs),
		notifier,
		system.New(),
		l,
	)

	if viper.GetBool("metrics.enabled") {
		addr := viper.GetString("metrics.addr")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			l.Info("Starting metrics server", zap.String("addr", addr))
			server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			if err := server.ListenAndServe(); err != nil {
				l.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	l.Info("Application services initialized successfully.")
	return &App{
		logger:   l,
		pipeline: pipe,
		terms:    viper.GetStringSlice("source.terms"),
		limit:    viper.GetInt("source.limit"),
		ledger:   led,
		store:    store,
		renderer: renderer,
		notifier: notifier,
	}, nil
}

func buildAdapters(cfg source.Config, renderer render.Renderer, detector *render.Detector, l *zap.Logger) ([]source.Adapter, error) {
	registry := source.NewRegistry(
		source.NewGupyAdapter(cfg, "", l),
		source.NewGreenhouseAdapter(cfg, "", viper.GetStringSlice("source.greenhouse.companies"), l),
		source.NewLeverAdapter(cfg, "", viper.GetStringSlice("source.lever.companies"), l),
		source.NewVagasAdapter(cfg, "", l),
		source.NewLinkedInAdapter(cfg, "", renderer, detector, l),
	)
	enabled := viper.GetStringSlice("source.enabled")
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no source adapters enabled")
	}
	adapters := make([]source.Adapter, 0, len(enabled))
	for _, name := range enabled {
		a, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	l.Info("Source adapters enabled", zap.Strings("sources", enabled))
	return adapters, nil
}

// Close gracefully shuts down all services in the App container.
// It is called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	if err := a.ledger.Close(); err != nil {
		a.logger.Warn("Error closing ledger", zap.Error(err))
	}
	a.store.Close()
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("Error closing notifier", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.renderer.Close(ctx); err != nil {
		a.logger.Warn("Error closing renderer", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr sync failures are common and harmless here.
		a.logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
