package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Djoulzy/compta/internal/domain/account"
	accounthandler "github.com/Djoulzy/compta/internal/domain/account/handler"
	importhandler "github.com/Djoulzy/compta/internal/domain/import/handler"
	importrepo "github.com/Djoulzy/compta/internal/domain/import/repository"
	importservice "github.com/Djoulzy/compta/internal/domain/import/service"
	"github.com/Djoulzy/compta/internal/domain/operation"
	operationhandler "github.com/Djoulzy/compta/internal/domain/operation/handler"
	"github.com/Djoulzy/compta/internal/domain/tag"
	taghandler "github.com/Djoulzy/compta/internal/domain/tag/handler"

	"github.com/Djoulzy/compta/pkg/config"
	"github.com/Djoulzy/compta/pkg/cron"
	"github.com/Djoulzy/compta/pkg/db"
	"github.com/Djoulzy/compta/pkg/metrics"
	"github.com/Djoulzy/compta/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	AccountRepo   *account.Repository
	TagRepo       *tag.Repository
	OperationRepo *operation.Repository
	ImportRepo    *importrepo.Repository

	// Services
	TagService       *tag.Service
	OperationService *operation.Service
	ImportPipeline   *importservice.Pipeline
	FileStorage      storage.Storage
	Scheduler        *cron.Scheduler

	// Handlers
	AccountHandler   *accounthandler.Handler
	TagHandler       *taghandler.Handler
	OperationHandler *operationhandler.Handler
	ImportHandler    *importhandler.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.AccountRepo = account.NewRepository(d.DB.Pool, d.Logger)
	d.TagRepo = tag.NewRepository(d.DB.Pool, d.Logger)
	d.OperationRepo = operation.NewRepository(d.DB.Pool, d.Logger)
	d.ImportRepo = importrepo.NewRepository(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	// Rule changes trigger a synchronous reclassification sweep over the
	// operation snapshots.
	d.TagService = tag.NewService(d.TagRepo, d.OperationRepo, d.Metrics, d.Logger)

	d.OperationService = operation.NewService(d.OperationRepo, d.AccountRepo, d.TagRepo, d.Logger)

	d.ImportPipeline = importservice.NewPipeline(
		d.ImportRepo,
		d.AccountRepo,
		d.OperationRepo,
		d.TagRepo,
		d.FileStorage,
		d.Metrics,
		d.Logger,
	)

	// Nightly sweep catches snapshots left stale by direct edits.
	d.Scheduler = cron.NewScheduler(d.TagService, d.Config.Jobs.ReclassifySchedule, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.AccountHandler = accounthandler.NewHandler(d.AccountRepo, d.Logger)
	d.TagHandler = taghandler.NewHandler(d.TagService, d.Logger)
	d.OperationHandler = operationhandler.NewHandler(d.OperationRepo, d.OperationService, d.Logger)
	d.ImportHandler = importhandler.NewHandler(d.ImportPipeline, d.ImportRepo, d.OperationRepo, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
