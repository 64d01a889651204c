package publish

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

func testCreds() domain.PlatformCredentials {
	return domain.PlatformCredentials{AccessToken: "token", AccountID: "acct"}
}

func newTestInstagram(rt roundTripperFunc) *Instagram {
	return NewInstagram(InstagramOptions{
		BaseURL:         "https://ig.test/v21.0",
		HTTPClient:      clientWith(rt),
		Logger:          zerolog.Nop(),
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
	})
}

func TestInstagramRejectsImageCountWithoutNetworkCall(t *testing.T) {
	calls := 0
	adapter := newTestInstagram(func(r *http.Request) (*http.Response, error) {
		calls++
		return emptyResponse(http.StatusOK), nil
	})

	for _, n := range []int{0, 1, 11} {
		images := make([][]byte, n)
		_, err := adapter.Publish(context.Background(), Request{Images: images, Credentials: testCreds()})
		if !errors.Is(err, ErrImageCount) {
			t.Fatalf("publish with %d images = %v, want ErrImageCount", n, err)
		}
	}
	if calls != 0 {
		t.Fatalf("transport calls = %d, count validation must happen before any request", calls)
	}
}

func TestInstagramPublishesCarousel(t *testing.T) {
	var itemUploads, containerCreates, publishes int
	adapter := newTestInstagram(func(r *http.Request) (*http.Response, error) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/acct/media"):
			var payload map[string]any
			decodeBody(t, r, &payload)
			if payload["is_carousel_item"] == true {
				itemUploads++
				if payload["image_data"] == "" {
					t.Fatal("carousel item upload missing image_data")
				}
				return jsonResponse(http.StatusOK, map[string]string{"id": "item-" + string(rune('0'+itemUploads))}), nil
			}
			containerCreates++
			if payload["media_type"] != "CAROUSEL" {
				t.Fatalf("container media_type = %v, want CAROUSEL", payload["media_type"])
			}
			children, _ := payload["children"].([]any)
			if len(children) != 2 {
				t.Fatalf("container children = %v, want the two item ids", payload["children"])
			}
			return jsonResponse(http.StatusOK, map[string]string{"id": "container-1"}), nil
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "container-1"):
			return jsonResponse(http.StatusOK, map[string]string{"status_code": "FINISHED"}), nil
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/acct/media_publish"):
			publishes++
			return jsonResponse(http.StatusOK, map[string]string{"id": "post-9"}), nil
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "post-9"):
			return jsonResponse(http.StatusOK, map[string]string{"permalink": "https://instagram.test/p/post-9"}), nil
		}
		t.Fatalf("unexpected request %s %s", r.Method, r.URL)
		return nil, nil
	})

	outcome, err := adapter.Publish(context.Background(), Request{
		Images:      [][]byte{[]byte("a"), []byte("b")},
		Caption:     "two slides",
		Credentials: testCreds(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !outcome.Success || outcome.PostID != "post-9" {
		t.Fatalf("outcome = %+v, want success with post id", outcome)
	}
	if outcome.Permalink != "https://instagram.test/p/post-9" {
		t.Fatalf("permalink = %q", outcome.Permalink)
	}
	if itemUploads != 2 || containerCreates != 1 || publishes != 1 {
		t.Fatalf("items=%d containers=%d publishes=%d, want 2/1/1", itemUploads, containerCreates, publishes)
	}
}

func TestInstagramPermalinkFailureDoesNotFailPublish(t *testing.T) {
	adapter := newTestInstagram(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/acct/media"):
			return jsonResponse(http.StatusOK, map[string]string{"id": "id-1"}), nil
		case strings.Contains(r.URL.RawQuery, "status_code"):
			return jsonResponse(http.StatusOK, map[string]string{"status_code": "FINISHED"}), nil
		case strings.HasSuffix(r.URL.Path, "/acct/media_publish"):
			return jsonResponse(http.StatusOK, map[string]string{"id": "post-1"}), nil
		default:
			return emptyResponse(http.StatusInternalServerError), nil
		}
	})

	outcome, err := adapter.Publish(context.Background(), Request{
		Images:      [][]byte{[]byte("a"), []byte("b")},
		Credentials: testCreds(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !outcome.Success || outcome.PostID != "post-1" {
		t.Fatalf("outcome = %+v, want success even without permalink", outcome)
	}
	if outcome.Permalink != "" {
		t.Fatalf("permalink = %q, want empty", outcome.Permalink)
	}
}

func TestInstagramPollTimeout(t *testing.T) {
	statusChecks := 0
	adapter := newTestInstagram(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/acct/media"):
			return jsonResponse(http.StatusOK, map[string]string{"id": "id-1"}), nil
		case strings.Contains(r.URL.RawQuery, "status_code"):
			statusChecks++
			return jsonResponse(http.StatusOK, map[string]string{"status_code": "IN_PROGRESS"}), nil
		case strings.HasSuffix(r.URL.Path, "/acct/media_publish"):
			t.Fatal("media_publish must not be called when the container never finishes")
		}
		return emptyResponse(http.StatusOK), nil
	})

	_, err := adapter.Publish(context.Background(), Request{
		Images:      [][]byte{[]byte("a"), []byte("b")},
		Credentials: testCreds(),
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if statusChecks != 3 {
		t.Fatalf("status checks = %d, want the attempt ceiling", statusChecks)
	}
}

func TestInstagramContainerError(t *testing.T) {
	adapter := newTestInstagram(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/acct/media"):
			return jsonResponse(http.StatusOK, map[string]string{"id": "id-1"}), nil
		case strings.Contains(r.URL.RawQuery, "status_code"):
			return jsonResponse(http.StatusOK, map[string]string{"status_code": "ERROR"}), nil
		}
		t.Fatalf("unexpected request %s %s", r.Method, r.URL)
		return nil, nil
	})

	_, err := adapter.Publish(context.Background(), Request{
		Images:      [][]byte{[]byte("a"), []byte("b")},
		Credentials: testCreds(),
	})
	if err == nil || !strings.Contains(err.Error(), "container processing failed") {
		t.Fatalf("err = %v, want container processing failure", err)
	}
	if errors.Is(err, ErrPollTimeout) {
		t.Fatal("a terminal ERROR status is not a poll timeout")
	}
}
