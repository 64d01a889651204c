package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Instagram carousel limits imposed by the platform.
const (
	instagramMinItems = 2
	instagramMaxItems = 10
)

// InstagramOptions configures the Instagram adapter.
type InstagramOptions struct {
	BaseURL         string
	HTTPClient      *http.Client
	Logger          zerolog.Logger
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Instagram publishes a carousel through the container protocol: upload
// each image as a carousel item, create a parent container over the item
// ids, poll the container until processing finishes, then publish it.
type Instagram struct {
	baseURL      string
	client       *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration
	pollMax      int
}

// NewInstagram constructs the adapter with sane defaults.
func NewInstagram(opts InstagramOptions) *Instagram {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.instagram.com/v21.0"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxAttempts := opts.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	return &Instagram{
		baseURL:      baseURL,
		client:       client,
		logger:       opts.Logger,
		pollInterval: interval,
		pollMax:      maxAttempts,
	}
}

// Platform returns the platform identifier.
func (a *Instagram) Platform() string { return PlatformInstagram }

type igIDResponse struct {
	ID string `json:"id"`
}

type igStatusResponse struct {
	StatusCode string `json:"status_code"`
}

type igPermalinkResponse struct {
	Permalink string `json:"permalink"`
}

// Publish runs the full container protocol to a terminal outcome.
func (a *Instagram) Publish(ctx context.Context, req Request) (*Outcome, error) {
	if n := len(req.Images); n < instagramMinItems || n > instagramMaxItems {
		return nil, fmt.Errorf("instagram: carousel needs %d-%d images, got %d: %w",
			instagramMinItems, instagramMaxItems, n, ErrImageCount)
	}
	account := req.Credentials.AccountID
	token := req.Credentials.AccessToken

	// Item containers, one per image. The first failure aborts; no cleanup
	// of already-created items is attempted.
	itemIDs := make([]string, 0, len(req.Images))
	for i, img := range req.Images {
		var resp igIDResponse
		payload := map[string]any{
			"is_carousel_item": true,
			"image_data":       base64.StdEncoding.EncodeToString(img),
		}
		if err := postJSON(ctx, a.client, a.baseURL+"/"+account+"/media", token, payload, &resp); err != nil {
			return nil, fmt.Errorf("instagram: upload carousel item %d: %w", i+1, err)
		}
		if resp.ID == "" {
			return nil, &apiError{platform: PlatformInstagram, message: "carousel item response missing id"}
		}
		itemIDs = append(itemIDs, resp.ID)
	}

	// Parent container over all item ids.
	var container igIDResponse
	payload := map[string]any{
		"media_type": "CAROUSEL",
		"children":   itemIDs,
		"caption":    req.Caption,
	}
	if err := postJSON(ctx, a.client, a.baseURL+"/"+account+"/media", token, payload, &container); err != nil {
		return nil, fmt.Errorf("instagram: create container: %w", err)
	}
	if container.ID == "" {
		return nil, &apiError{platform: PlatformInstagram, message: "container response missing id"}
	}

	if err := a.waitForContainer(ctx, container.ID, token); err != nil {
		return nil, err
	}

	var post igIDResponse
	publishPayload := map[string]any{"creation_id": container.ID}
	if err := postJSON(ctx, a.client, a.baseURL+"/"+account+"/media_publish", token, publishPayload, &post); err != nil {
		return nil, fmt.Errorf("instagram: publish container: %w", err)
	}
	if post.ID == "" {
		return nil, &apiError{platform: PlatformInstagram, message: "publish response missing id"}
	}

	outcome := &Outcome{Platform: PlatformInstagram, Success: true, PostID: post.ID}
	// Permalink is optional output; failing to fetch it never fails the publish.
	var link igPermalinkResponse
	if err := getJSON(ctx, a.client, a.baseURL+"/"+post.ID+"?fields=permalink", token, &link); err != nil {
		a.logger.Warn().Err(err).Str("post_id", post.ID).Msg("instagram: permalink fetch failed")
	} else {
		outcome.Permalink = link.Permalink
	}
	return outcome, nil
}

// waitForContainer polls the container's processing status at a fixed
// interval. FINISHED proceeds, ERROR aborts immediately, and exhausting the
// attempt ceiling surfaces ErrPollTimeout.
func (a *Instagram) waitForContainer(ctx context.Context, containerID, token string) error {
	err := pollUntil(ctx, a.pollInterval, a.pollMax, func(ctx context.Context) (bool, error) {
		var status igStatusResponse
		if err := getJSON(ctx, a.client, a.baseURL+"/"+containerID+"?fields=status_code", token, &status); err != nil {
			return false, fmt.Errorf("instagram: container status: %w", err)
		}
		switch status.StatusCode {
		case "FINISHED":
			return true, nil
		case "ERROR":
			return false, &apiError{platform: PlatformInstagram, message: "container processing failed"}
		default:
			return false, nil
		}
	})
	if err != nil {
		return fmt.Errorf("instagram: container %s: %w", containerID, err)
	}
	return nil
}

var _ Adapter = (*Instagram)(nil)
