package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/sitecheck/internal/config"
	"github.com/vbonduro/sitecheck/internal/db"
	"github.com/vbonduro/sitecheck/internal/logging"
	"github.com/vbonduro/sitecheck/internal/metrics"
	"github.com/vbonduro/sitecheck/internal/notify"
	"github.com/vbonduro/sitecheck/internal/photostore"
	"github.com/vbonduro/sitecheck/internal/photostore/local"
	s3store "github.com/vbonduro/sitecheck/internal/photostore/s3"
	"github.com/vbonduro/sitecheck/internal/resilience"
	"github.com/vbonduro/sitecheck/internal/service"
	"github.com/vbonduro/sitecheck/internal/store"
	"github.com/vbonduro/sitecheck/internal/store/postgres"
	"github.com/vbonduro/sitecheck/internal/web"
)

func serveCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inspection HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	catalog, err := loadCatalog(cfg.ChecklistPath)
	if err != nil {
		return err
	}
	logger.Info("checklist loaded", "categories", len(catalog.Categories()), "items", catalog.ItemCount())

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	photos, err := newPhotoStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.SaveRetryAttempts,
		BreakerEnabled:   true,
	}, logger)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Catalog:   catalog,
		Gateway:   backend.gateway,
		Saver:     service.NewAsyncSaver(backend.gateway, executor, m, cfg.SaveQueueSize, logger),
		Publisher: publisher,
		Photos:    photos,
		Metrics:   m,
		Logger:    logger,
	}
	if backend.photoMeta != nil {
		deps.PhotoMeta = backend.photoMeta
	}
	svc := service.NewInspectionService(deps)
	defer svc.Close()

	return web.NewServer(svc, m, logger).ListenAndServe(ctx, cfg.ListenAddr)
}

type backend struct {
	gateway   service.Gateway
	photoMeta *store.PhotoStore
	close     func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store; inspections are lost on restart")
		return &backend{gateway: store.NewMemoryStore(), close: func() {}}, nil
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return &backend{gateway: pg, close: func() {
			if err := pg.Close(); err != nil {
				logger.Error("failed to close postgres", "error", err)
			}
		}}, nil
	case "sqlite", "":
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.DBPath)
		return &backend{
			gateway:   store.NewInspectionStore(database),
			photoMeta: store.NewPhotoStore(database),
			close: func() {
				if err := database.Close(); err != nil {
					logger.Error("failed to close database", "error", err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func newPhotoStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (photostore.PhotoStore, error) {
	switch cfg.PhotoBackend {
	case "s3":
		logger.Info("using s3 photo store", "bucket", cfg.S3Bucket)
		return s3store.New(ctx, s3store.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case "local", "":
		ps, err := local.NewLocalPhotoStore(cfg.PhotoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize photo store: %w", err)
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown PHOTO_BACKEND %q", cfg.PhotoBackend)
	}
}

// newPublisher connects to NATS when NATS_URL is set. Otherwise captures are
// only logged.
func newPublisher(cfg *config.Config, logger *slog.Logger) (notify.Publisher, error) {
	if cfg.NATSURL == "" {
		return notify.NewLogPublisher(logger), nil
	}
	p, err := notify.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, notify.NATSOptions{
		Executor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("publishing defect captures", "url", cfg.NATSURL, "subject", cfg.NATSSubject)
	return p, nil
}
