package publish

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/stages"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

func testLogger() logger.Logger {
	l := logger.NewApiLogger(&config.Config{Logger: config.Logger{Level: "error"}})
	l.InitLogger()
	return l
}

func writeClipFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(path, []byte("mp4-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistryResolvesKnownPlatforms(t *testing.T) {
	r := NewRegistry(&config.Config{}, testLogger())
	for _, platform := range []string{PlatformYoutube, PlatformInstagram, PlatformTiktok} {
		p, err := r.ForPlatform(platform)
		if err != nil {
			t.Fatalf("ForPlatform(%s) error: %v", platform, err)
		}
		if p.Platform() != platform {
			t.Errorf("adapter for %s reports %s", platform, p.Platform())
		}
	}
	// Lookup is case-insensitive.
	if _, err := r.ForPlatform("YouTube"); err != nil {
		t.Errorf("mixed-case lookup failed: %v", err)
	}
	if _, err := r.ForPlatform("myspace"); err == nil {
		t.Error("unknown platform resolved")
	}
}

func TestRegistryDryRunStubsAdapters(t *testing.T) {
	cfg := &config.Config{Publish: config.PublishConfig{DryRun: true}}
	r := NewRegistry(cfg, testLogger())
	if !r.DryRun() {
		t.Fatal("DryRun() = false")
	}

	p, err := r.ForPlatform(PlatformYoutube)
	if err != nil {
		t.Fatal(err)
	}
	input := &models.PublishInput{ClipPath: "/work/final.mp4", Title: "t"}
	first, err := p.Publish(context.Background(), input)
	if err != nil {
		t.Fatalf("dry-run publish error: %v", err)
	}
	if !strings.HasPrefix(first.ExternalID, "dry-") {
		t.Errorf("external id = %q, want dry- prefix", first.ExternalID)
	}

	// Same clip and platform fabricate the same id.
	second, err := p.Publish(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if second.ExternalID != first.ExternalID {
		t.Errorf("dry-run ids differ: %q vs %q", first.ExternalID, second.ExternalID)
	}

	// A different platform fabricates a different id for the same clip.
	ig, err := r.ForPlatform(PlatformInstagram)
	if err != nil {
		t.Fatal(err)
	}
	other, err := ig.Publish(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if other.ExternalID == first.ExternalID {
		t.Error("dry-run ids collide across platforms")
	}
}

func TestJoinHashtags(t *testing.T) {
	cases := []struct {
		name string
		tags []string
		want string
	}{
		{"empty", nil, ""},
		{"adds missing prefix", []string{"shorts", "clip"}, "#shorts #clip"},
		{"keeps existing prefix", []string{"#a", "b"}, "#a #b"},
		{"drops blanks", []string{" ", "#a", ""}, "#a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := joinHashtags(tc.tags); got != tc.want {
				t.Errorf("joinHashtags(%v) = %q, want %q", tc.tags, got, tc.want)
			}
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		wantKind  stages.ErrorKind
		wantError bool
	}{
		{"ok", http.StatusOK, "", false},
		{"created", http.StatusCreated, "", false},
		{"bad request is permanent", http.StatusBadRequest, stages.KindPermanent, true},
		{"unauthorized is permanent", http.StatusUnauthorized, stages.KindPermanent, true},
		{"rate limit is transient", http.StatusTooManyRequests, stages.KindTransient, true},
		{"server error is transient", http.StatusBadGateway, stages.KindTransient, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tc.status,
				Body:       io.NopCloser(strings.NewReader(`{"error":"boom"}`)),
			}
			err := classifyHTTPStatus("upload", resp)
			if !tc.wantError {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := stages.KindOf(err); got != tc.wantKind {
				t.Errorf("KindOf = %s, want %s", got, tc.wantKind)
			}
		})
	}
}

func TestInstagramPublishTwoStepFlow(t *testing.T) {
	var uploadCaption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("upload not multipart: %v", err)
			}
			uploadCaption = r.FormValue("caption")
			if r.FormValue("media_type") != "REELS" {
				t.Errorf("media_type = %q", r.FormValue("media_type"))
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
		case "/media_publish":
			body, _ := io.ReadAll(r.Body)
			if string(body) != "creation_id=container-1" {
				t.Errorf("publish body = %q", body)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id":        "media-9",
				"permalink": "https://www.instagram.com/reel/media-9",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := &config.Config{Publish: config.PublishConfig{
		InstagramBaseURL: srv.URL,
		InstagramToken:   "token",
	}}
	p := NewInstagramPublisher(cfg, testLogger())

	res, err := p.Publish(context.Background(), &models.PublishInput{
		ClipPath: writeClipFile(t),
		Caption:  "the best part",
		Hashtags: []string{"shorts"},
	})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if res.ExternalID != "media-9" {
		t.Errorf("external id = %q", res.ExternalID)
	}
	if res.UploadURL != "https://www.instagram.com/reel/media-9" {
		t.Errorf("upload url = %q", res.UploadURL)
	}
	if uploadCaption != "the best part\n#shorts" {
		t.Errorf("caption = %q", uploadCaption)
	}
}

func TestInstagramPublishRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := &config.Config{Publish: config.PublishConfig{
		InstagramBaseURL: srv.URL,
		InstagramToken:   "token",
	}}
	p := NewInstagramPublisher(cfg, testLogger())

	_, err := p.Publish(context.Background(), &models.PublishInput{ClipPath: writeClipFile(t)})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !stages.IsRetryable(err) {
		t.Errorf("rate limit not retryable: %v", err)
	}
}

func TestInstagramPublishUnconfigured(t *testing.T) {
	p := NewInstagramPublisher(&config.Config{}, testLogger())
	_, err := p.Publish(context.Background(), &models.PublishInput{ClipPath: "/work/final.mp4"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if stages.KindOf(err) != stages.KindPermanent {
		t.Errorf("KindOf = %s, want permanent", stages.KindOf(err))
	}
}

func TestTiktokPublishUploadsWithTitle(t *testing.T) {
	var gotTitle, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("upload not multipart: %v", err)
		}
		gotTitle = r.FormValue("title")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"share_id": "v123"},
		})
	}))
	defer srv.Close()

	cfg := &config.Config{Publish: config.PublishConfig{
		TiktokBaseURL: srv.URL,
		TiktokToken:   "tok",
	}}
	p := NewTiktokPublisher(cfg, testLogger())

	res, err := p.Publish(context.Background(), &models.PublishInput{
		ClipPath: writeClipFile(t),
		Title:    "Peak moment",
		Hashtags: []string{"fyp"},
	})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if res.ExternalID != "v123" {
		t.Errorf("external id = %q", res.ExternalID)
	}
	if res.UploadURL != "https://www.tiktok.com/@me/video/v123" {
		t.Errorf("upload url = %q", res.UploadURL)
	}
	if gotTitle != "Peak moment #fyp" {
		t.Errorf("title = %q", gotTitle)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestTiktokPublishMissingShareIDIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{}})
	}))
	defer srv.Close()

	cfg := &config.Config{Publish: config.PublishConfig{
		TiktokBaseURL: srv.URL,
		TiktokToken:   "tok",
	}}
	p := NewTiktokPublisher(cfg, testLogger())

	_, err := p.Publish(context.Background(), &models.PublishInput{ClipPath: writeClipFile(t)})
	if err == nil {
		t.Fatal("expected an error")
	}
	if stages.KindOf(err) != stages.KindPermanent {
		t.Errorf("KindOf = %s, want permanent", stages.KindOf(err))
	}
}
