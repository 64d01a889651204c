package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/middleware"
	"server/pkg/zip"
)

const (
	maxUploadBytes  = 32 << 20
	maxUploadImages = 35
)

type carouselCreateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type carouselPublishRequest struct {
	Platforms []string `json:"platforms"`
}

// CarouselsCreate accepts a multipart generation request (a `config` JSON
// part plus `image` file parts), persists the images and creates a pending
// job for the worker to pick up.
func (a *App) CarouselsCreate(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	var cfg domain.CarouselConfig
	if raw := r.FormValue("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid config json")
			return
		}
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one image is required")
		return
	}
	if len(files) > maxUploadImages {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("at most %d images are accepted", maxUploadImages))
		return
	}
	if err := cfg.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if cfg.SlideCount == 0 {
		cfg.SlideCount = len(files)
	}
	cfg.ImageCount = len(files)
	if cfg.Locale == "" {
		cfg.Locale = middleware.LocaleFromContext(r.Context())
	}

	jobID := uuid.NewString()
	refs := make([]domain.ImageRef, 0, len(files))
	for i, fh := range files {
		data, err := readMultipartFile(fh)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("read image %d: %v", i+1, err))
			return
		}
		key := fmt.Sprintf("uploads/%s/image-%02d%s", jobID, i+1, safeExt(fh.Filename))
		savedKey, err := a.Files.Write(r.Context(), key, data)
		if err != nil {
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("carousels: persist upload failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
			return
		}
		refs = append(refs, domain.ImageRef{
			ID:         uuid.NewString(),
			StorageKey: savedKey,
			Filename:   fh.Filename,
		})
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:          jobID,
		OwnerID:     ownerID,
		Status:      domain.JobStatusPending,
		Progress:    0,
		InputConfig: cfg,
		ImageRefs:   refs,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.JobTTL),
	}
	if err := a.Store.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("carousels: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	a.json(w, http.StatusAccepted, carouselCreateResponse{JobID: jobID, Status: string(job.Status)})
}

// CarouselStatus implements the job read contract: progress while
// processing, the result when completed, the error when failed, and
// not-found once the job has expired.
func (a *App) CarouselStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	payload := map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
		"expires_at": job.ExpiresAt,
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		payload["result"] = job.Result
		payload["completed_at"] = job.CompletedAt
	case domain.JobStatusFailed:
		payload["error"] = job.ErrorMessage
		payload["completed_at"] = job.CompletedAt
	default:
		payload["progress"] = job.Progress
		payload["current_step"] = job.CurrentStep
	}
	a.json(w, http.StatusOK, payload)
}

// CarouselPublish fans the completed job's slides out to the selected
// platforms. Outcomes are reported per platform and never stored on the
// job row; publishing is a separate action against generated slides.
func (a *App) CarouselPublish(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		a.error(w, http.StatusConflict, "not_ready", "job has no completed result to publish")
		return
	}
	var req carouselPublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Platforms) == 0 {
		req.Platforms = job.Result.Platforms
	}
	outcomes, err := a.Coordinator.PublishAll(r.Context(), job.OwnerID, req.Platforms, job.Result.Slides, job.Result.Caption)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("carousels: publish failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to publish")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "outcomes": outcomes})
}

// CarouselExport streams the composited slides as a zip archive for manual
// posting on platforms without a publish adapter.
func (a *App) CarouselExport(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		a.error(w, http.StatusConflict, "not_ready", "job has no completed result to export")
		return
	}
	assets := make([]zip.Asset, 0, len(job.Result.Slides))
	for _, slide := range job.Result.Slides {
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-slide-%02d.%s", slide.Platform, slide.SlideIndex+1, slide.Format),
			Data:     slide.ImageBytes,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("carousels: build archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "carousel-"+job.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// loadOwnedJob fetches the job from the path parameter, enforcing expiry
// (via the store) and ownership. Non-owned jobs read as not-found so the id
// keeps working as an unguessable token.
func (a *App) loadOwnedJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	ownerID := middleware.UserIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return nil, false
	}
	job, err := a.Store.Get(r.Context(), jobID)
	if err != nil || job.OwnerID != ownerID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	return job, true
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

func safeExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return ext
	default:
		return ".bin"
	}
}
