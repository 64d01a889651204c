package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// recordStore applies updates to a single job and keeps the update history
// so tests can assert on the sequence of persisted states.
type recordStore struct {
	job     domain.Job
	updates []domain.JobUpdate
}

func (s *recordStore) Create(_ context.Context, job *domain.Job) error {
	s.job = *job
	return nil
}

func (s *recordStore) Get(_ context.Context, _ string) (*domain.Job, error) {
	copied := s.job
	return &copied, nil
}

func (s *recordStore) Update(_ context.Context, _ string, upd domain.JobUpdate) error {
	s.updates = append(s.updates, upd)
	if upd.Status != nil {
		s.job.Status = *upd.Status
	}
	if upd.CurrentStep != nil {
		s.job.CurrentStep = *upd.CurrentStep
	}
	if upd.Progress != nil {
		s.job.Progress = *upd.Progress
	}
	if upd.Result != nil {
		s.job.Result = upd.Result
	}
	if upd.ErrorMessage != nil {
		s.job.ErrorMessage = *upd.ErrorMessage
	}
	if upd.StartedAt != nil {
		s.job.StartedAt = upd.StartedAt
	}
	if upd.CompletedAt != nil {
		s.job.CompletedAt = upd.CompletedAt
	}
	return nil
}

type stubAnalyzer struct {
	err   error
	calls int
}

func (a *stubAnalyzer) Analyze(_ context.Context, _ *domain.UploadedImage) (*domain.ImageAnalysis, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &domain.ImageAnalysis{Description: "stub"}, nil
}

type stubGenerator struct {
	out    *GenerateOutput
	err    error
	panics bool
}

func (g *stubGenerator) Generate(_ context.Context, req GenerateRequest) (*GenerateOutput, error) {
	if g.panics {
		panic("generator exploded")
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.out != nil {
		return g.out, nil
	}
	slides := make([]GeneratedSlide, 0, len(req.Images))
	for i, img := range req.Images {
		slides = append(slides, GeneratedSlide{
			Index:         i,
			Status:        SlideReady,
			Text:          "slide",
			SourceImageID: img.ID,
			Data:          img.Data,
		})
	}
	return &GenerateOutput{Slides: slides}, nil
}

type stubCompositor struct {
	err error
}

func (c *stubCompositor) Composite(_ context.Context, slides []GeneratedSlide, platforms []string, _ FilterConfig) ([]domain.Slide, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []domain.Slide
	for _, platform := range platforms {
		for _, s := range slides {
			out = append(out, domain.Slide{
				Platform:   platform,
				SlideIndex: s.Index,
				ImageBytes: s.Data,
				Format:     "png",
			})
		}
	}
	return out, nil
}

type stubCaptioner struct {
	text   string
	err    error
	locale string
}

func (c *stubCaptioner) Caption(_ context.Context, locale, _ string, _ []string) (string, error) {
	c.locale = locale
	return c.text, c.err
}

func testImages(n int) []*domain.UploadedImage {
	images := make([]*domain.UploadedImage, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, &domain.UploadedImage{
			ID:       string(rune('a' + i)),
			Data:     []byte{0x89, 'P', 'N', 'G', byte(i)},
			Filename: "img.png",
		})
	}
	return images
}

func newTestOrchestrator(store domain.JobStore, a Analyzer, g Generator, c Compositor, cap Captioner) *Orchestrator {
	return NewOrchestrator(store, a, g, c, cap, zerolog.Nop())
}

func TestRunCompletesJob(t *testing.T) {
	store := &recordStore{}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{}, &stubCompositor{}, &stubCaptioner{text: "hello world"})

	cfg := domain.CarouselConfig{Theme: "coffee", Platforms: []string{"instagram"}, SlideCount: 3}
	orch.Run(context.Background(), "job-1", cfg, testImages(3))

	if store.job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed (error: %q)", store.job.Status, store.job.ErrorMessage)
	}
	if store.job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", store.job.Progress)
	}
	if store.job.CurrentStep != domain.StepDone {
		t.Fatalf("current step = %q, want done", store.job.CurrentStep)
	}
	if store.job.Result == nil {
		t.Fatal("expected a result on the completed job")
	}
	if store.job.Result.SlideCount != 3 {
		t.Fatalf("result slide count = %d, want 3", store.job.Result.SlideCount)
	}
	if len(store.job.Result.Platforms) != 1 || store.job.Result.Platforms[0] != "instagram" {
		t.Fatalf("result platforms = %v, want [instagram]", store.job.Result.Platforms)
	}
	if store.job.Result.Caption != "hello world" {
		t.Fatalf("result caption = %q, want %q", store.job.Result.Caption, "hello world")
	}
	if store.job.StartedAt == nil || store.job.CompletedAt == nil {
		t.Fatal("expected started_at and completed_at to be set")
	}
}

func TestRunPassesJobLocaleToCaptioner(t *testing.T) {
	store := &recordStore{}
	captioner := &stubCaptioner{text: "teks"}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{}, &stubCompositor{}, captioner)

	cfg := domain.CarouselConfig{Platforms: []string{"instagram"}, Locale: "id"}
	orch.Run(context.Background(), "job-1", cfg, testImages(2))

	if captioner.locale != "id" {
		t.Fatalf("captioner locale = %q, want the job's locale", captioner.locale)
	}
}

func TestRunGeneratorFailureIsFatal(t *testing.T) {
	store := &recordStore{}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{err: errors.New("model quota exceeded")}, &stubCompositor{}, &stubCaptioner{})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, testImages(2))

	if store.job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", store.job.Status)
	}
	if !strings.Contains(store.job.ErrorMessage, "model quota exceeded") {
		t.Fatalf("error message = %q, want the generator error", store.job.ErrorMessage)
	}
	if store.job.Result != nil {
		t.Fatal("failed job must not carry a result")
	}
}

func TestRunCompositorFailureIsFatal(t *testing.T) {
	store := &recordStore{}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{}, &stubCompositor{err: errors.New("render crashed")}, &stubCaptioner{})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, testImages(2))

	if store.job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", store.job.Status)
	}
	if !strings.Contains(store.job.ErrorMessage, "render crashed") {
		t.Fatalf("error message = %q, want the compositor error", store.job.ErrorMessage)
	}
}

func TestRunFailsWhenNoSlideIsReady(t *testing.T) {
	store := &recordStore{}
	gen := &stubGenerator{out: &GenerateOutput{
		Slides: []GeneratedSlide{
			{Index: 0, Status: SlideFailed},
			{Index: 1, Status: SlideFailed},
		},
	}}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, gen, &stubCompositor{}, &stubCaptioner{})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, testImages(2))

	if store.job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", store.job.Status)
	}
	if store.job.ErrorMessage != ErrNoReadySlides.Error() {
		t.Fatalf("error message = %q, want %q", store.job.ErrorMessage, ErrNoReadySlides.Error())
	}
}

func TestRunDropsFailedSlides(t *testing.T) {
	store := &recordStore{}
	gen := &stubGenerator{out: &GenerateOutput{
		Slides: []GeneratedSlide{
			{Index: 0, Status: SlideReady, Data: []byte("a")},
			{Index: 1, Status: SlideFailed},
			{Index: 2, Status: SlideReady, Data: []byte("c")},
		},
	}}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, gen, &stubCompositor{}, &stubCaptioner{})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, testImages(3))

	if store.job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", store.job.Status)
	}
	if store.job.Result.SlideCount != 2 {
		t.Fatalf("result slide count = %d, want 2 ready slides", store.job.Result.SlideCount)
	}
}

func TestRunAnalyzerFailureIsNonFatal(t *testing.T) {
	store := &recordStore{}
	analyzer := &stubAnalyzer{err: errors.New("vision unavailable")}
	orch := newTestOrchestrator(store, analyzer, &stubGenerator{}, &stubCompositor{}, &stubCaptioner{})

	images := testImages(3)
	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, images)

	if store.job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed despite analyzer failures", store.job.Status)
	}
	if analyzer.calls != 3 {
		t.Fatalf("analyzer calls = %d, want every image attempted", analyzer.calls)
	}
	for _, img := range images {
		if img.Analysis != nil {
			t.Fatal("failed analysis must not attach a result to the image")
		}
	}
}

func TestRunCaptionFailureIsNonFatal(t *testing.T) {
	store := &recordStore{}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{}, &stubCompositor{}, &stubCaptioner{err: errors.New("caption model down")})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, testImages(2))

	if store.job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed despite caption failure", store.job.Status)
	}
	if store.job.Result.Caption != "" {
		t.Fatalf("caption = %q, want empty after caption failure", store.job.Result.Caption)
	}
}

func TestRunProgressIsMonotonic(t *testing.T) {
	store := &recordStore{}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{}, &stubCompositor{}, &stubCaptioner{text: "c"})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram", "tiktok"}}, testImages(4))

	last := 0
	sawHundredAt := -1
	for i, upd := range store.updates {
		if upd.Progress == nil {
			continue
		}
		if *upd.Progress < last {
			t.Fatalf("progress went backwards: %d after %d", *upd.Progress, last)
		}
		last = *upd.Progress
		if *upd.Progress == 100 {
			sawHundredAt = i
		}
	}
	if last != 100 {
		t.Fatalf("final progress = %d, want 100", last)
	}
	final := store.updates[sawHundredAt]
	if final.Status == nil || *final.Status != domain.JobStatusCompleted {
		t.Fatal("progress 100 must coincide with the completed status")
	}
}

func TestRunRecoversCollaboratorPanic(t *testing.T) {
	store := &recordStore{}
	orch := newTestOrchestrator(store, &stubAnalyzer{}, &stubGenerator{panics: true}, &stubCompositor{}, &stubCaptioner{})

	orch.Run(context.Background(), "job-1", domain.CarouselConfig{Platforms: []string{"instagram"}}, testImages(2))

	if store.job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed after panic", store.job.Status)
	}
	if !strings.Contains(store.job.ErrorMessage, "generator exploded") {
		t.Fatalf("error message = %q, want the panic value", store.job.ErrorMessage)
	}
}
