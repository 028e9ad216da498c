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

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/stages"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

type tiktokPublisher struct {
	cfg    *config.Config
	logger logger.Logger
	client *http.Client
}

func NewTiktokPublisher(cfg *config.Config, logger logger.Logger) Publisher {
	return &tiktokPublisher{cfg: cfg, logger: logger, client: &http.Client{}}
}

func (p *tiktokPublisher) Platform() string { return PlatformTiktok }

func (p *tiktokPublisher) Publish(ctx context.Context, input *models.PublishInput) (*Result, error) {
	base := strings.TrimRight(p.cfg.Publish.TiktokBaseURL, "/")
	if base == "" || p.cfg.Publish.TiktokToken == "" {
		return nil, stages.NewPermanent("publish", "tiktok not configured", nil)
	}

	f, err := os.Open(input.ClipPath)
	if err != nil {
		return nil, stages.NewPermanent("publish", "open clip file", err)
	}
	defer f.Close()

	title := input.Title
	if tags := joinHashtags(input.Hashtags); tags != "" {
		title = strings.TrimSpace(title + " " + tags)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filepath.Base(input.ClipPath))
	if err != nil {
		return nil, stages.NewPermanent("publish", "tiktok multipart", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, stages.NewPermanent("publish", "read clip file", err)
	}
	_ = w.WriteField("title", title)
	if err := w.Close(); err != nil {
		return nil, stages.NewPermanent("publish", "tiktok multipart", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/video/upload", &buf)
	if err != nil {
		return nil, stages.NewPermanent("publish", "tiktok upload request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.Publish.TiktokToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, stages.NewTransient("publish", "tiktok upload", err)
	}
	defer resp.Body.Close()
	if err := classifyHTTPStatus("tiktok upload", resp); err != nil {
		return nil, err
	}

	var out struct {
		Data struct {
			ShareID string `json:"share_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, stages.NewTransient("publish", "tiktok upload response", err)
	}
	if out.Data.ShareID == "" {
		return nil, stages.NewPermanent("publish", "tiktok upload returned no share id", nil)
	}
	return &Result{
		ExternalID: out.Data.ShareID,
		UploadURL:  fmt.Sprintf("https://www.tiktok.com/@me/video/%s", out.Data.ShareID),
	}, nil
}
