package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TikTok photo-mode post limits.
const (
	tiktokMinItems = 2
	tiktokMaxItems = 35
)

// TikTokOptions configures the TikTok adapter.
type TikTokOptions struct {
	BaseURL         string
	HTTPClient      *http.Client
	Logger          zerolog.Logger
	PollInterval    time.Duration
	MaxPollAttempts int
}

// TikTok publishes a photo post through the content init protocol: a single
// init call declares the image count and returns one upload URL per image
// plus a publish id; images are uploaded to their assigned slots and the
// publish id is polled until terminal.
type TikTok struct {
	baseURL      string
	client       *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration
	pollMax      int
}

// NewTikTok constructs the adapter with sane defaults.
func NewTikTok(opts TikTokOptions) *TikTok {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://open.tiktokapis.com/v2"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxAttempts := opts.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	return &TikTok{
		baseURL:      baseURL,
		client:       client,
		logger:       opts.Logger,
		pollInterval: interval,
		pollMax:      maxAttempts,
	}
}

// Platform returns the platform identifier.
func (a *TikTok) Platform() string { return PlatformTikTok }

type tiktokInitResponse struct {
	Data struct {
		PublishID  string   `json:"publish_id"`
		UploadURLs []string `json:"upload_urls"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tiktokStatusResponse struct {
	Data struct {
		Status     string `json:"status"`
		FailReason string `json:"fail_reason"`
	} `json:"data"`
}

// Publish runs init, slot uploads and the status poll to a terminal outcome.
func (a *TikTok) Publish(ctx context.Context, req Request) (*Outcome, error) {
	if n := len(req.Images); n < tiktokMinItems || n > tiktokMaxItems {
		return nil, fmt.Errorf("tiktok: photo post needs %d-%d images, got %d: %w",
			tiktokMinItems, tiktokMaxItems, n, ErrImageCount)
	}
	token := req.Credentials.AccessToken

	var initResp tiktokInitResponse
	initPayload := map[string]any{
		"post_info": map[string]any{
			"title":         req.Caption,
			"privacy_level": "PUBLIC_TO_EVERYONE",
		},
		"source_info": map[string]any{
			"source":      "FILE_UPLOAD",
			"photo_count": len(req.Images),
		},
	}
	if err := postJSON(ctx, a.client, a.baseURL+"/post/publish/content/init/", token, initPayload, &initResp); err != nil {
		return nil, fmt.Errorf("tiktok: init publish: %w", err)
	}
	if code := initResp.Error.Code; code != "" && code != "ok" {
		return nil, &apiError{platform: PlatformTikTok, message: initResp.Error.Message}
	}
	if initResp.Data.PublishID == "" {
		return nil, &apiError{platform: PlatformTikTok, message: "init response missing publish_id"}
	}
	// A slot count that disagrees with the declared photo count is a
	// protocol violation, not something to retry or upload around.
	if len(initResp.Data.UploadURLs) != len(req.Images) {
		return nil, &apiError{
			platform: PlatformTikTok,
			message: fmt.Sprintf("init returned %d upload slots for %d images",
				len(initResp.Data.UploadURLs), len(req.Images)),
		}
	}

	for i, img := range req.Images {
		if err := uploadBytes(ctx, a.client, initResp.Data.UploadURLs[i], token, "application/octet-stream", img); err != nil {
			return nil, fmt.Errorf("tiktok: upload image %d: %w", i+1, err)
		}
	}

	if err := a.waitForPublish(ctx, initResp.Data.PublishID, token); err != nil {
		return nil, err
	}
	return &Outcome{Platform: PlatformTikTok, Success: true, PublishID: initResp.Data.PublishID}, nil
}

// waitForPublish polls the publish status at a fixed interval until the
// platform reports a terminal flag or the attempt ceiling is exhausted.
func (a *TikTok) waitForPublish(ctx context.Context, publishID, token string) error {
	err := pollUntil(ctx, a.pollInterval, a.pollMax, func(ctx context.Context) (bool, error) {
		var status tiktokStatusResponse
		payload := map[string]any{"publish_id": publishID}
		if err := postJSON(ctx, a.client, a.baseURL+"/post/publish/status/fetch/", token, payload, &status); err != nil {
			return false, fmt.Errorf("tiktok: publish status: %w", err)
		}
		switch status.Data.Status {
		case "PUBLISH_COMPLETE":
			return true, nil
		case "FAILED":
			reason := status.Data.FailReason
			if reason == "" {
				reason = "publish failed"
			}
			return false, &apiError{platform: PlatformTikTok, message: reason}
		default:
			return false, nil
		}
	})
	if err != nil {
		return fmt.Errorf("tiktok: publish %s: %w", publishID, err)
	}
	return nil
}

var _ Adapter = (*TikTok)(nil)
