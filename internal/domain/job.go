package domain

import (
	"fmt"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Pipeline step labels, informational only.
const (
	StepAnalyzing   = "analyzing"
	StepGenerating  = "generating"
	StepCompositing = "compositing"
	StepCaptioning  = "captioning"
	StepDone        = "done"
)

// JobTTL is how long a job remains readable after creation.
const JobTTL = time.Hour

// CarouselConfig is the normalized copy of a caller's generation request.
// It is written once at job creation and never mutated afterwards.
type CarouselConfig struct {
	Theme      string   `json:"theme"`
	Platforms  []string `json:"platforms"`
	SlideCount int      `json:"slide_count"`
	Keywords   []string `json:"keywords"`
	ImageCount int      `json:"image_count"`
	Locale     string   `json:"locale,omitempty"`
}

// Validate checks the caller-supplied fields of a generation request.
func (c *CarouselConfig) Validate() error {
	if len(c.Platforms) == 0 {
		return fmt.Errorf("%w: at least one target platform is required", ErrInvalidConfig)
	}
	if c.SlideCount < 0 {
		return fmt.Errorf("%w: slide count must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Slide is a single export-ready carousel image produced by the Compositor.
type Slide struct {
	Platform   string `json:"platform"`
	SlideIndex int    `json:"slide_index"`
	ImageBytes []byte `json:"image_bytes"`
	Format     string `json:"format"`
}

// GenerationResult is the terminal output of a completed job. It is
// assembled once at the final pipeline stage and immutable thereafter.
type GenerationResult struct {
	Caption    string   `json:"caption,omitempty"`
	Slides     []Slide  `json:"slides"`
	SlideCount int      `json:"slide_count"`
	Platforms  []string `json:"platforms"`
}

// ImageRef points at an uploaded source image persisted in the file store.
type ImageRef struct {
	ID         string `json:"id"`
	StorageKey string `json:"storage_key"`
	Filename   string `json:"filename"`
}

// Job tracks one execution of the generation pipeline through to a terminal
// state. The ID doubles as an unguessable token for read-only retrieval.
type Job struct {
	ID           string
	OwnerID      string
	Status       JobStatus
	CurrentStep  string
	Progress     int
	InputConfig  CarouselConfig
	ImageRefs    []ImageRef
	Result       *GenerationResult
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the job is past its expiry instant.
func (j *Job) Expired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}

// ImageAnalysis is the Analyzer collaborator's per-image output, attached
// in place to the uploaded image when analysis succeeds.
type ImageAnalysis struct {
	Description string   `json:"description"`
	Subjects    []string `json:"subjects,omitempty"`
	Mood        string   `json:"mood,omitempty"`
}

// UploadedImage is a pipeline input owned by the orchestrator's caller.
type UploadedImage struct {
	ID       string
	Data     []byte
	Filename string
	Analysis *ImageAnalysis
}
