package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/stages"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// instagramPublisher posts reels through a Graph-style two step flow: upload
// the media container, then publish it.
type instagramPublisher struct {
	cfg    *config.Config
	logger logger.Logger
	client *http.Client
}

func NewInstagramPublisher(cfg *config.Config, logger logger.Logger) Publisher {
	return &instagramPublisher{cfg: cfg, logger: logger, client: &http.Client{}}
}

func (p *instagramPublisher) Platform() string { return PlatformInstagram }

func (p *instagramPublisher) Publish(ctx context.Context, input *models.PublishInput) (*Result, error) {
	base := strings.TrimRight(p.cfg.Publish.InstagramBaseURL, "/")
	if base == "" || p.cfg.Publish.InstagramToken == "" {
		return nil, stages.NewPermanent("publish", "instagram not configured", nil)
	}

	caption := input.Caption
	if tags := joinHashtags(input.Hashtags); tags != "" {
		caption = strings.TrimSpace(caption + "\n" + tags)
	}

	containerID, err := p.uploadContainer(ctx, base, input.ClipPath, caption)
	if err != nil {
		return nil, err
	}

	body := bytes.NewBufferString("creation_id=" + containerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/media_publish", body)
	if err != nil {
		return nil, stages.NewPermanent("publish", "instagram publish request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+p.cfg.Publish.InstagramToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, stages.NewTransient("publish", "instagram publish", err)
	}
	defer resp.Body.Close()
	if err := classifyHTTPStatus("instagram publish", resp); err != nil {
		return nil, err
	}

	var out struct {
		ID        string `json:"id"`
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, stages.NewTransient("publish", "instagram publish response", err)
	}
	if out.ID == "" {
		return nil, stages.NewPermanent("publish", "instagram publish returned no media id", nil)
	}
	url := out.Permalink
	if url == "" {
		url = fmt.Sprintf("https://www.instagram.com/reel/%s", out.ID)
	}
	return &Result{ExternalID: out.ID, UploadURL: url}, nil
}

func (p *instagramPublisher) uploadContainer(ctx context.Context, base, clipPath, caption string) (string, error) {
	f, err := os.Open(clipPath)
	if err != nil {
		return "", stages.NewPermanent("publish", "open clip file", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filepath.Base(clipPath))
	if err != nil {
		return "", stages.NewPermanent("publish", "instagram multipart", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", stages.NewPermanent("publish", "read clip file", err)
	}
	_ = w.WriteField("media_type", "REELS")
	_ = w.WriteField("caption", caption)
	if err := w.Close(); err != nil {
		return "", stages.NewPermanent("publish", "instagram multipart", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/media", &buf)
	if err != nil {
		return "", stages.NewPermanent("publish", "instagram upload request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.Publish.InstagramToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", stages.NewTransient("publish", "instagram upload", err)
	}
	defer resp.Body.Close()
	if err := classifyHTTPStatus("instagram upload", resp); err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", stages.NewTransient("publish", "instagram upload response", err)
	}
	if out.ID == "" {
		return "", stages.NewPermanent("publish", "instagram upload returned no container id", nil)
	}
	return out.ID, nil
}

func joinHashtags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// classifyHTTPStatus drains a snippet of the failure body for the error
// message and maps the status code onto the retry taxonomy.
func classifyHTTPStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := errors.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return stages.NewTransient("publish", op, err)
	}
	return stages.NewPermanent("publish", op, err)
}
