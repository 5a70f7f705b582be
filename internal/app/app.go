package app

import (
	"context"
	"fmt"

	"github.com/semmidev/wpbackup/internal/adapter/archive"
	"github.com/semmidev/wpbackup/internal/adapter/database"
	"github.com/semmidev/wpbackup/internal/adapter/notifier"
	"github.com/semmidev/wpbackup/internal/adapter/storage"
	"github.com/semmidev/wpbackup/internal/config"
	"github.com/semmidev/wpbackup/internal/domain"
	"github.com/semmidev/wpbackup/internal/infrastructure/logger"
	"github.com/semmidev/wpbackup/internal/infrastructure/scheduler"
	"github.com/semmidev/wpbackup/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	source    domain.TableSource
	backupUC  *usecase.Backup
	notifiers []domain.Notifier
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	output, err := storage.ForOutput(cfg.Backup.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize output storage: %w", err)
	}

	source, err := database.New(&cfg.Database)
	if err != nil {
		return nil, domain.NewBackupError(domain.KindUnknown, "initialize database", err)
	}

	if err := source.Ping(context.Background()); err != nil {
		// The dump reports the failure as ConnectionUnavailable; keep going so
		// the failed run is logged and notified like any other.
		log.Errorf("Failed to connect to %s (%s): %v", cfg.Database.Name, cfg.Database.Type, err)
	} else {
		log.Infof("✓ Connected to %s (%s)", cfg.Database.Name, cfg.Database.Type)
	}

	request := domain.BackupRequest{
		RootDir:    cfg.Backup.RootDir,
		OutputPath: cfg.Backup.OutputPath,
		Exclusions: cfg.Backup.Exclusions,
		Policy:     domain.Policy(cfg.Backup.Policy),
	}

	backupUC := usecase.NewBackup(request, source, archive.OpenZip, output, log.Named("backup"))

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(log),
		source:    source,
		backupUC:  backupUC,
		notifiers: initializeNotifiers(cfg, log),
	}, nil
}

func initializeNotifiers(cfg *config.Config, log *logger.Logger) []domain.Notifier {
	var notifiers []domain.Notifier

	if cfg.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(&cfg.Notify.Telegram, cfg.App.Name)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			notifiers = append(notifiers, tg)
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	return notifiers
}

// progressLogger logs stage changes at info and entry progress at debug.
// Each run gets its own logger.
func progressLogger(log *logger.Logger) domain.ProgressFunc {
	last := domain.Stage("")
	return func(p domain.Progress) {
		if p.Stage != last {
			last = p.Stage
			log.Infof("Stage %s (dirs=%d files=%d tables=%d rows=%d)", p.Stage, p.Dirs, p.Files, p.Tables, p.Rows)
			return
		}
		log.Debugf("%s: %s", p.Stage, p.Current)
	}
}

// RunOnce performs a single backup, notifies, and returns the result.
func (a *App) RunOnce(ctx context.Context) domain.BackupResult {
	result := a.backupUC.Start(ctx, progressLogger(a.logger.Named("progress"))).Wait()
	a.notify(ctx, result)
	return result
}

// Run performs one backup when no schedule is configured or once is set;
// otherwise it schedules backups until ctx is cancelled.
func (a *App) Run(ctx context.Context, once bool) error {
	if once || a.config.Backup.Schedule == "" {
		result := a.RunOnce(ctx)
		if !result.OK {
			return fmt.Errorf("%s", result.Message)
		}
		return nil
	}

	if err := a.scheduler.AddJob("backup", a.config.Backup.Schedule, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup of %s ===", a.config.Backup.RootDir)
		result := a.RunOnce(ctx)
		if !result.OK {
			return result.Err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started, backup schedule: %s", a.config.Backup.Schedule)

	<-ctx.Done()
	return nil
}

func (a *App) notify(ctx context.Context, result domain.BackupResult) {
	for _, n := range a.notifiers {
		if err := n.Notify(ctx, result); err != nil {
			a.logger.Warnf("Failed to send notification: %v", err)
		}
	}
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	if err := a.source.Close(); err != nil {
		a.logger.Warnf("Failed to close database: %v", err)
	}
	a.logger.Close()
}
