// Package main is the entry point for the Finance-Instruments optimization server.
// It serves efficient frontiers, portfolio metrics, bond valuations and two-asset
// yield curves over HTTP, and keeps a history of served frontiers in SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/falcone-gk/Finance-Instruments/internal/config"
	"github.com/falcone-gk/Finance-Instruments/internal/database"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/charts"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/frontier"
	frontierhandlers "github.com/falcone-gk/Finance-Instruments/internal/modules/frontier/handlers"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/metrics"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/montecarlo"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/optimization"
	"github.com/falcone-gk/Finance-Instruments/internal/reliability"
	"github.com/falcone-gk/Finance-Instruments/internal/scheduler"
	"github.com/falcone-gk/Finance-Instruments/internal/server"
	"github.com/falcone-gk/Finance-Instruments/pkg/logger"
)

// walCheckpointSchedule truncates the run database WAL daily at 03:00.
const walCheckpointSchedule = "0 0 3 * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Finance-Instruments")

	handler, err := newFrontierHandler(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build frontier handler")
	}

	// Run history is optional; without it the /frontier/runs endpoints report 503.
	var (
		runsDB *database.DB
		sched  *scheduler.Scheduler
	)
	if cfg.Runs.Enabled {
		runsDB, err = database.New(database.Config{
			Path: cfg.Runs.DBPath,
			Name: "runs",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open run database")
		}
		if err := runsDB.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate run database")
		}

		repo := frontier.NewRunRepository(runsDB.Conn(), log)
		handler.SetRunStore(repo)

		sched = scheduler.New(log)
		if err := sched.AddJob(cfg.Runs.PruneSchedule, scheduler.NewRunRetentionJob(repo, cfg.Runs.Retention, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register run retention job")
		}
		if err := sched.AddJob(walCheckpointSchedule, scheduler.NewWALCheckpointJob(log, runsDB)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
		}
		if cfg.Backup.Enabled {
			job, err := newBackupJob(cfg, runsDB, log)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to configure run backups")
			}
			if err := sched.AddJob(cfg.Backup.Schedule, job); err != nil {
				log.Fatal().Err(err).Msg("Failed to register run backup job")
			}
		}
		sched.Start()

		log.Info().Str("path", runsDB.Path()).Msg("Run history enabled")
	}

	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		Frontier: handler,
		RunsDB:   runsDB,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// In-flight frontier sweeps get the request timeout to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if runsDB != nil {
		if err := runsDB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close run database")
		}
	}

	log.Info().Msg("Server stopped")
}

// newFrontierHandler wires the optimizer, the presenter and the request
// defaults from configuration.
func newFrontierHandler(cfg *config.Config, log zerolog.Logger) (*frontierhandlers.Handler, error) {
	method, err := optimization.ParseMethod(cfg.Optimizer.Method)
	if err != nil {
		return nil, err
	}
	optimizer, err := optimization.NewAugmentedLagrangian(optimization.Settings{
		Method:              method,
		MaxIterations:       cfg.Optimizer.MaxIterations,
		ConstraintTolerance: cfg.Optimizer.ConstraintTolerance,
		Timeout:             cfg.Optimizer.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}

	style := charts.DefaultStyle()
	style.Width = cfg.Charts.Width
	style.Height = cfg.Charts.Height
	presenter, err := charts.NewPresenter(charts.Config{
		Enabled:   cfg.Charts.Enabled,
		OutputDir: cfg.Charts.OutputDir,
		Style:     style,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("charts: %w", err)
	}

	aggregation, err := metrics.ParseAggregation(cfg.Frontier.ReturnAggregation)
	if err != nil {
		return nil, err
	}
	sampling, err := montecarlo.ParseSampling(cfg.MonteCarlo.Sampling)
	if err != nil {
		return nil, err
	}

	return frontierhandlers.NewHandler(optimizer, presenter, frontierhandlers.Options{
		Resolution:  cfg.Frontier.Resolution,
		Samples:     cfg.MonteCarlo.Samples,
		Aggregation: aggregation,
		Workers:     cfg.Frontier.Workers,
		Sampling:    sampling,
		Seed:        cfg.MonteCarlo.Seed,
	}, log), nil
}

// newBackupJob archives the run database to the configured bucket.
func newBackupJob(cfg *config.Config, runsDB *database.DB, log zerolog.Logger) (*reliability.BackupJob, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := reliability.NewS3Store(ctx, reliability.S3Config{
		Bucket:          cfg.Backup.Bucket,
		Endpoint:        cfg.Backup.Endpoint,
		Region:          cfg.Backup.Region,
		AccessKeyID:     cfg.Backup.AccessKeyID,
		SecretAccessKey: cfg.Backup.SecretAccessKey,
	}, log)
	if err != nil {
		return nil, err
	}

	service, err := reliability.NewBackupService(store, reliability.Options{
		StagingDir: cfg.Backup.StagingDir,
		Prefix:     cfg.Backup.Prefix,
		Keep:       cfg.Backup.Keep,
	}, log, runsDB)
	if err != nil {
		return nil, err
	}

	log.Info().Str("bucket", cfg.Backup.Bucket).Str("schedule", cfg.Backup.Schedule).Msg("Run backups enabled")
	return reliability.NewBackupJob(service, cfg.Backup.Retention, log), nil
}
