// Package app wires the maintenance runner: configuration, logging,
// database, migrations and the three storage-bounding jobs.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wordbank/lexstore/internal/archive"
	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/logging"
	"github.com/wordbank/lexstore/internal/maintenance"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rm     repomanager.RepositoryManager
}

func NewApp(cfg *config.Config) (*App, error) {
	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(l)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &App{config: cfg, logger: logger, db: db, rm: rm}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes one maintenance pass: collapse redundant records, hide
// stale drafts, then collect unreferenced chunks. The chunk collector runs
// last so it sees the references the first two jobs removed.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	defer app.db.Close()

	if app.config.MaintenanceNoOp {
		app.logger.Info(ctx, "running in no-op mode, nothing will be modified")
	}

	obs := maintenance.NewLogObserver(app.logger)

	var archiver maintenance.Archiver
	if app.config.ArchiveEnabled() {
		archiver = archive.NewS3Archiver(app.config)
	}

	collapsed, err := maintenance.NewCollapser(app.rm, app.config, obs).Run(ctx, app.db)
	if err != nil {
		return fmt.Errorf("collapse: %w", err)
	}

	hidden, err := maintenance.NewOldVersionCleaner(app.rm, app.config, obs).Run(ctx, app.db)
	if err != nil {
		return fmt.Errorf("hide old versions: %w", err)
	}

	collected, err := maintenance.NewChunkGC(app.rm, app.config, obs, archiver).Run(ctx, app.db)
	if err != nil {
		return fmt.Errorf("chunk gc: %w", err)
	}

	app.logger.Info(ctx, "maintenance pass finished",
		"collapsed", len(collapsed),
		"hidden", len(hidden),
		"chunks_collected", len(collected),
	)
	return nil
}
