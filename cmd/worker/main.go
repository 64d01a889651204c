package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"server/internal/adapter/repo"
	"server/internal/caption"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/synthetic"
	"server/internal/storage"
)

type jobWorker struct {
	store        *repo.JobStorePG
	files        *storage.FileStore
	orchestrator *pipeline.Orchestrator
	logger       infra.Logger
	pollInterval time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to connect database")
	}
	defer pool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	store := repo.NewJobStore(pool)
	orchestrator := pipeline.NewOrchestrator(
		store,
		synthetic.Analyzer{},
		synthetic.Generator{},
		synthetic.Compositor{},
		caption.NewStatic(cfg.DefaultLocale),
		logger,
	)

	worker := &jobWorker{
		store:        store,
		files:        fileStore,
		orchestrator: orchestrator,
		logger:       logger,
		pollInterval: cfg.WorkerPollInterval,
	}

	logger.Info().Int("consumers", cfg.WorkerConcurrency).Msg("worker: started")
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		g.Go(func() error { return worker.consume(gctx) })
	}
	g.Go(func() error { return worker.sweepExpired(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// consume claims pending jobs until the context is cancelled.
func (w *jobWorker) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.store.Claim(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.pollInterval):
			}
			continue
		}
		w.handleJob(ctx, job)
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job *domain.Job) {
	w.logger.Info().Str("job_id", job.ID).Msg("worker: picked job")
	images, err := w.loadImages(ctx, job)
	if err != nil {
		w.failJob(ctx, job.ID, err)
		return
	}
	w.orchestrator.Run(ctx, job.ID, job.InputConfig, images)
}

// loadImages pulls the uploaded source images back out of the file store.
func (w *jobWorker) loadImages(ctx context.Context, job *domain.Job) ([]*domain.UploadedImage, error) {
	if len(job.ImageRefs) == 0 {
		return nil, errors.New("job has no stored images")
	}
	images := make([]*domain.UploadedImage, 0, len(job.ImageRefs))
	for _, ref := range job.ImageRefs {
		data, err := w.files.Read(ctx, ref.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("load image %s: %w", ref.ID, err)
		}
		images = append(images, &domain.UploadedImage{
			ID:       ref.ID,
			Data:     data,
			Filename: ref.Filename,
		})
	}
	return images, nil
}

// sweepExpired periodically deletes rows past their expiry. Reads already
// treat expired jobs as missing; the sweep only reclaims storage.
func (w *jobWorker) sweepExpired(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deleted, err := w.store.DeleteExpired(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("worker: expiry sweep failed")
				continue
			}
			if deleted > 0 {
				w.logger.Info().Int64("deleted", deleted).Msg("worker: expired jobs removed")
			}
		}
	}
}

// failJob records a terminal failure for errors raised before the
// pipeline could take over the job.
func (w *jobWorker) failJob(ctx context.Context, jobID string, cause error) {
	w.logger.Error().Err(cause).Str("job_id", jobID).Msg("worker: job failed before pipeline start")
	status := domain.JobStatusFailed
	msg := cause.Error()
	completed := time.Now()
	update := domain.JobUpdate{
		Status:       &status,
		ErrorMessage: &msg,
		CompletedAt:  &completed,
	}
	if err := w.store.Update(ctx, jobID, update); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: failed to persist job failure")
	}
}
