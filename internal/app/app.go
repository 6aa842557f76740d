package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"NewsCrawler/internal/api"
	"NewsCrawler/internal/config"
	"NewsCrawler/internal/infrastructure/classifier"
	"NewsCrawler/internal/infrastructure/crawler"
	"NewsCrawler/internal/infrastructure/export"
	"NewsCrawler/internal/infrastructure/storage"
	"NewsCrawler/internal/logging"
	"NewsCrawler/internal/metrics"
	"NewsCrawler/internal/registry"
	"NewsCrawler/internal/scanner"
	"NewsCrawler/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	runs   *registry.Registry
	server *api.Server
	db     *sql.DB
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	}

	promReg := prometheus.NewRegistry()
	if err := metrics.Register(promReg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var db *sql.DB
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	} else {
		baseLogger.Warn("no database configured, review history will not persist")
	}
	repo := storage.NewPostgresRepository(db)

	seed, err := repo.TrainingData(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load training corpus: %w", err)
	}

	bayes := classifier.New(baseLogger.With("component", "classifier"))
	retrainer := usecase.NewRetrainer(bayes, seed, cfg.Retrainer.MinExamples,
		baseLogger.With("component", "retrainer"))

	channelReg := scanner.NewRegistry()
	channelReg.Register(crawler.NewSiteCrawler(nil, cfg.Crawler,
		baseLogger.With("component", "crawler.standard")))
	channelReg.Register(crawler.NewWechatCrawler(nil, cfg.Crawler,
		baseLogger.With("component", "crawler.wechat")))

	resolver := crawler.NewResolver(cfg.Sites, cfg.Aliases,
		baseLogger.With("component", "resolver"))
	source := crawler.NewChannelSource(channelReg, resolver,
		baseLogger.With("component", "source"))

	runs := registry.New(cfg.Registry.RunTTL.Std(), baseLogger.With("component", "registry"))

	exporter, err := export.NewCSVExporter(cfg.Export.Dir)
	if err != nil {
		return nil, fmt.Errorf("init exporter: %w", err)
	}
	templates, err := export.NewTemplateExporter(cfg.Export.Dir)
	if err != nil {
		return nil, fmt.Errorf("init template exporter: %w", err)
	}

	crawlService := usecase.NewCrawlService(usecase.CrawlDeps{
		Source:       source,
		Classifier:   bayes,
		Registry:     runs,
		ExcerptLimit: cfg.Crawler.ExcerptLimit,
		Logger:       baseLogger.With("component", "crawl"),
	})

	reconciler := usecase.NewReconciler(usecase.ReconcilerDeps{
		Registry:  runs,
		Repo:      repo,
		Exporter:  exporter,
		Retrainer: retrainer,
		Logger:    baseLogger.With("component", "reconcile"),
	})

	handler := api.NewHandler(crawlService, reconciler, exporter, templates,
		baseLogger.With("component", "api"))

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.ShutdownTimeout.Std(), handler, promReg)
	if err != nil {
		return nil, err
	}

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		runs:   runs,
		server: server,
		db:     db,
	}, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	a.runs.Start(ctx, a.cfg.Registry.SweepInterval.Std())
	defer a.runs.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.server.Address())
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		a.server.Shutdown(context.Background())
		<-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}
