package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// Platform names accepted by the registry.
const (
	PlatformYoutube   = "youtube"
	PlatformInstagram = "instagram"
	PlatformTiktok    = "tiktok"
)

// Result carries the external identifiers returned by a platform after a
// successful publish.
type Result struct {
	ExternalID string
	UploadURL  string
}

// Publisher is one platform adapter. Publish must be idempotent from the
// caller's point of view only in the sense that the orchestrator dedups by
// receipt before calling it; the adapter itself always performs the upload.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, input *models.PublishInput) (*Result, error)
}

// Registry resolves a platform name to its configured adapter. When dry-run
// is enabled every adapter is replaced by a stub that fabricates a
// deterministic external id without any network call.
type Registry struct {
	cfg        *config.Config
	logger     logger.Logger
	publishers map[string]Publisher
}

func NewRegistry(cfg *config.Config, logger logger.Logger) *Registry {
	r := &Registry{cfg: cfg, logger: logger, publishers: make(map[string]Publisher)}
	r.register(NewYoutubePublisher(cfg, logger))
	r.register(NewInstagramPublisher(cfg, logger))
	r.register(NewTiktokPublisher(cfg, logger))
	return r
}

func (r *Registry) register(p Publisher) {
	if r.cfg.Publish.DryRun {
		p = &dryRunPublisher{platform: p.Platform(), logger: r.logger}
	}
	r.publishers[p.Platform()] = p
}

// DryRun reports whether adapters are stubbed out.
func (r *Registry) DryRun() bool {
	return r.cfg.Publish.DryRun
}

// ForPlatform returns the adapter for the given platform name.
func (r *Registry) ForPlatform(platform string) (Publisher, error) {
	p, ok := r.publishers[strings.ToLower(platform)]
	if !ok {
		return nil, errors.Errorf("unknown publish platform: %s", platform)
	}
	return p, nil
}

// dryRunPublisher fabricates receipts so the orchestrator path can be
// exercised end to end without platform credentials.
type dryRunPublisher struct {
	platform string
	logger   logger.Logger
}

func (d *dryRunPublisher) Platform() string { return d.platform }

func (d *dryRunPublisher) Publish(ctx context.Context, input *models.PublishInput) (*Result, error) {
	sum := sha256.Sum256([]byte(d.platform + "|" + input.ClipPath))
	id := "dry-" + hex.EncodeToString(sum[:8])
	d.logger.Infof("dry-run publish to %s: %s (%s)", d.platform, input.ClipPath, id)
	return &Result{
		ExternalID: id,
		UploadURL:  fmt.Sprintf("https://%s.example/%s", d.platform, id),
	}, nil
}
