package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"server/internal/domain"
)

// Platform identifiers accepted by the coordinator.
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformLinkedIn  = "linkedin"
	PlatformFacebook  = "facebook"
	PlatformX         = "x"
	PlatformPinterest = "pinterest"
)

var (
	// ErrImageCount marks a precondition failure on the image count; no
	// network call has been made when it is returned.
	ErrImageCount = errors.New("image count out of range")
	// ErrPollTimeout means the platform never reported a terminal status
	// within the attempt ceiling. The underlying publish may still have
	// succeeded out-of-band, so it is kept distinct from API errors.
	ErrPollTimeout = errors.New("timed out waiting for platform to finish processing")
	// ErrNotSupported is returned by placeholder adapters.
	ErrNotSupported = errors.New("publishing not supported yet, export the slides and post manually")
)

// Request carries one publish attempt against a single platform.
type Request struct {
	Images      [][]byte
	Caption     string
	Credentials domain.PlatformCredentials
}

// Outcome is the terminal per-platform result of a publish attempt. It is
// reported to the caller and never persisted on the job row.
type Outcome struct {
	Platform  string `json:"platform"`
	Success   bool   `json:"success"`
	PostID    string `json:"post_id,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	PublishID string `json:"publish_id,omitempty"`
	PostURN   string `json:"post_urn,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Adapter drives one platform's publish protocol to a terminal result.
// Implementations are polymorphic over this contract; callers never branch
// on the platform beyond picking the adapter.
type Adapter interface {
	Platform() string
	Publish(ctx context.Context, req Request) (*Outcome, error)
}

// apiError is a protocol-level failure: a non-2xx response or a malformed
// or rejecting API reply.
type apiError struct {
	platform string
	status   int
	message  string
}

func (e *apiError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("%s api: status %d: %s", e.platform, e.status, e.message)
	}
	return fmt.Sprintf("%s api: %s", e.platform, e.message)
}

// postJSON sends a JSON payload with a bearer token and decodes the JSON
// reply into out (when out is non-nil).
func postJSON(ctx context.Context, client *http.Client, url, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return doJSON(client, req, out)
}

// getJSON issues an authorized GET and decodes the JSON reply into out.
func getJSON(ctx context.Context, client *http.Client, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return doJSON(client, req, out)
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{platform: req.URL.Host, status: resp.StatusCode, message: snippet(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apiError{platform: req.URL.Host, message: "malformed response body"}
	}
	return nil
}

// uploadBytes PUTs raw bytes to an upload URL handed out by a platform.
func uploadBytes(ctx context.Context, client *http.Client, url, token, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{platform: req.URL.Host, status: resp.StatusCode, message: "upload rejected"}
	}
	return nil
}

func encodeJSON(payload any) (io.Reader, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(b), nil
}

func snippet(data []byte) string {
	const max = 256
	s := string(bytes.TrimSpace(data))
	if len(s) > max {
		return s[:max]
	}
	return s
}
