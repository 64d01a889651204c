package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// ErrNoReadySlides is the fatal reason when the Generator returned slides
// but none of them reached the ready status. Distinct from a Generator
// error so callers can tell the two apart.
var ErrNoReadySlides = errors.New("no slides were generated successfully")

// Progress checkpoints. Progress is monotonically non-decreasing within a
// job and reaches 100 only at completion.
const (
	progressStart        = 5
	progressAnalyzeEnd   = 30
	progressGenerateFrom = 35
	progressGenerateDone = 60
	progressComposited   = 85
	progressCaptioning   = 90
	progressDone         = 100
)

// Orchestrator drives one job through the pipeline stages in order,
// mutating the job row after each stage. It is not safely re-runnable for
// the same job id; callers create a new job for retries.
type Orchestrator struct {
	store      domain.JobStore
	analyzer   Analyzer
	generator  Generator
	compositor Compositor
	captioner  Captioner
	logger     zerolog.Logger
	now        func() time.Time
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(store domain.JobStore, analyzer Analyzer, generator Generator, compositor Compositor, captioner Captioner, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		analyzer:   analyzer,
		generator:  generator,
		compositor: compositor,
		captioner:  captioner,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the pipeline for an already-created job. The caller observes
// the outcome via job store reads only; Run never lets a failure escape —
// any error, including a panic in a collaborator, ends as status=failed on
// the row.
func (o *Orchestrator) Run(ctx context.Context, jobID string, cfg domain.CarouselConfig, images []*domain.UploadedImage) {
	defer func() {
		if r := recover(); r != nil {
			o.markFailed(ctx, jobID, fmt.Errorf("pipeline panic: %v", r))
		}
	}()
	if err := o.run(ctx, jobID, cfg, images); err != nil {
		o.markFailed(ctx, jobID, err)
	}
}

func (o *Orchestrator) run(ctx context.Context, jobID string, cfg domain.CarouselConfig, images []*domain.UploadedImage) error {
	started := o.now()
	o.update(ctx, jobID, domain.JobUpdate{
		Status:      statusPtr(domain.JobStatusProcessing),
		CurrentStep: strPtr(domain.StepAnalyzing),
		Progress:    intPtr(progressStart),
		StartedAt:   &started,
	})

	o.analyzeAll(ctx, jobID, images)

	o.update(ctx, jobID, domain.JobUpdate{
		CurrentStep: strPtr(domain.StepGenerating),
		Progress:    intPtr(progressGenerateFrom),
	})
	out, err := o.generator.Generate(ctx, GenerateRequest{
		Theme:      cfg.Theme,
		SlideCount: cfg.SlideCount,
		Keywords:   cfg.Keywords,
		Images:     images,
	})
	if err := o.stageFailed(domain.StepGenerating, err); err != nil {
		return err
	}

	ready := readySlides(out.Slides)
	if len(ready) == 0 {
		return ErrNoReadySlides
	}
	o.update(ctx, jobID, domain.JobUpdate{
		CurrentStep: strPtr(domain.StepCompositing),
		Progress:    intPtr(progressGenerateDone),
	})
	slides, err := o.compositor.Composite(ctx, ready, cfg.Platforms, out.FilterConfig)
	if err := o.stageFailed(domain.StepCompositing, err); err != nil {
		return err
	}
	o.update(ctx, jobID, domain.JobUpdate{Progress: intPtr(progressComposited)})

	o.update(ctx, jobID, domain.JobUpdate{
		CurrentStep: strPtr(domain.StepCaptioning),
		Progress:    intPtr(progressCaptioning),
	})
	caption := ""
	if o.captioner != nil {
		text, cerr := o.captioner.Caption(ctx, cfg.Locale, cfg.Theme, cfg.Keywords)
		if cerr != nil {
			_ = o.stageFailed(domain.StepCaptioning, cerr)
		} else {
			caption = text
		}
	}

	completed := o.now()
	result := &domain.GenerationResult{
		Caption:    caption,
		Slides:     slides,
		SlideCount: len(ready),
		Platforms:  cfg.Platforms,
	}
	o.update(ctx, jobID, domain.JobUpdate{
		Status:      statusPtr(domain.JobStatusCompleted),
		CurrentStep: strPtr(domain.StepDone),
		Progress:    intPtr(progressDone),
		Result:      result,
		CompletedAt: &completed,
	})
	o.logger.Info().Str("job_id", jobID).Int("slides", len(ready)).Msg("pipeline: job completed")
	return nil
}

// analyzeAll runs the Analyzer over each image independently. A failed
// analysis never aborts the job; the image simply carries no analysis.
func (o *Orchestrator) analyzeAll(ctx context.Context, jobID string, images []*domain.UploadedImage) {
	if o.analyzer == nil || len(images) == 0 {
		return
	}
	span := progressAnalyzeEnd - progressStart
	for i, img := range images {
		analysis, err := o.analyzer.Analyze(ctx, img)
		if err := o.stageFailed(domain.StepAnalyzing, err); err == nil && analysis != nil {
			img.Analysis = analysis
		}
		progress := progressStart + span*(i+1)/len(images)
		o.update(ctx, jobID, domain.JobUpdate{Progress: intPtr(progress)})
	}
}

// stageFailed applies the stage's failure policy: fatal errors propagate,
// non-fatal ones are logged and swallowed.
func (o *Orchestrator) stageFailed(step string, err error) error {
	if err == nil {
		return nil
	}
	if stagePolicy[step] == nonFatal {
		o.logger.Warn().Err(err).Str("step", step).Msg("pipeline: non-fatal stage failure")
		return nil
	}
	return err
}

// markFailed records the terminal failure best-effort: a store error here is
// logged, never propagated.
func (o *Orchestrator) markFailed(ctx context.Context, jobID string, cause error) {
	completed := o.now()
	upd := domain.JobUpdate{
		Status:       statusPtr(domain.JobStatusFailed),
		ErrorMessage: strPtr(cause.Error()),
		CompletedAt:  &completed,
	}
	if err := o.store.Update(ctx, jobID, upd); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: failed to persist job failure")
	}
	o.logger.Error().Err(cause).Str("job_id", jobID).Msg("pipeline: job failed")
}

func (o *Orchestrator) update(ctx context.Context, jobID string, upd domain.JobUpdate) {
	if err := o.store.Update(ctx, jobID, upd); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: job update failed")
	}
}

func readySlides(slides []GeneratedSlide) []GeneratedSlide {
	var ready []GeneratedSlide
	for _, s := range slides {
		if s.Status == SlideReady {
			ready = append(ready, s)
		}
	}
	return ready
}

func statusPtr(s domain.JobStatus) *domain.JobStatus { return &s }
func strPtr(s string) *string                        { return &s }
func intPtr(i int) *int                              { return &i }
