package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LinkedInOptions configures the LinkedIn adapter.
type LinkedInOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// LinkedIn publishes a carousel as a multi-page document post: the PDF is
// synthesized client-side, an upload is registered, the bytes are PUT to
// the returned URL and a post referencing the document is created. There is
// no asynchronous processing step; the final call decides success.
type LinkedIn struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewLinkedIn constructs the adapter with sane defaults.
func NewLinkedIn(opts LinkedInOptions) *LinkedIn {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.linkedin.com/rest"
	}
	return &LinkedIn{baseURL: baseURL, client: client, logger: opts.Logger}
}

// Platform returns the platform identifier.
func (a *LinkedIn) Platform() string { return PlatformLinkedIn }

type liInitializeUploadResponse struct {
	Value struct {
		UploadURL string `json:"uploadUrl"`
		Document  string `json:"document"`
	} `json:"value"`
}

type liCreatePostResponse struct {
	ID string `json:"id"`
}

// Publish synthesizes the document and runs register, upload and post
// creation synchronously.
func (a *LinkedIn) Publish(ctx context.Context, req Request) (*Outcome, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("linkedin: document needs at least 1 image: %w", ErrImageCount)
	}
	token := req.Credentials.AccessToken
	owner := "urn:li:person:" + req.Credentials.AccountID

	pdf, err := buildCarouselDocument(req.Images)
	if err != nil {
		return nil, fmt.Errorf("linkedin: %w", err)
	}

	var init liInitializeUploadResponse
	initPayload := map[string]any{
		"initializeUploadRequest": map[string]any{"owner": owner},
	}
	if err := postJSON(ctx, a.client, a.baseURL+"/documents?action=initializeUpload", token, initPayload, &init); err != nil {
		return nil, fmt.Errorf("linkedin: initialize upload: %w", err)
	}
	if init.Value.UploadURL == "" || init.Value.Document == "" {
		return nil, &apiError{platform: PlatformLinkedIn, message: "initialize upload response missing uploadUrl or document urn"}
	}

	if err := uploadBytes(ctx, a.client, init.Value.UploadURL, token, "application/pdf", pdf); err != nil {
		return nil, fmt.Errorf("linkedin: upload document: %w", err)
	}

	postPayload := map[string]any{
		"author":     owner,
		"commentary": req.Caption,
		"visibility": "PUBLIC",
		"content": map[string]any{
			"media": map[string]any{
				"id":    init.Value.Document,
				"title": "carousel",
			},
		},
		"lifecycleState": "PUBLISHED",
	}
	var created liCreatePostResponse
	if err := a.createPost(ctx, token, postPayload, &created); err != nil {
		return nil, fmt.Errorf("linkedin: create post: %w", err)
	}
	if created.ID == "" {
		return nil, &apiError{platform: PlatformLinkedIn, message: "create post response missing post urn"}
	}
	return &Outcome{Platform: PlatformLinkedIn, Success: true, PostURN: created.ID}, nil
}

// createPost posts the payload and recovers the post URN from the
// X-RestLi-Id header when the body is empty.
func (a *LinkedIn) createPost(ctx context.Context, token string, payload map[string]any, out *liCreatePostResponse) error {
	body, err := encodeJSON(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/posts", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{platform: PlatformLinkedIn, status: resp.StatusCode, message: "create post rejected"}
	}
	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		out.ID = id
	}
	return nil
}

var _ Adapter = (*LinkedIn)(nil)
