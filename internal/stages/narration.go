package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// NarrateInput asks for title/narration/caption/hashtags for one clip.
type NarrateInput struct {
	ClipID            string
	WorkDir           string
	Language          string
	Style             string
	TargetDurationSec float64
	Context           string
}

// TextProvider is one entry in the narration fallback chain, evaluated in
// order. A provider that is not configured is skipped; a failing provider
// hands over to the next one.
type TextProvider interface {
	Name() string
	IsConfigured() bool
	Generate(ctx context.Context, input NarrateInput) (*models.Narration, error)
}

// Narrator runs the ordered provider chain. The final stub provider is
// always configured and never fails, so narration as a stage never fails
// and pipeline-level retries do not apply to it.
type Narrator struct {
	providers []TextProvider
	logger    logger.Logger
}

func NewNarrator(cfg *config.Config, log logger.Logger) *Narrator {
	return &Narrator{
		providers: []TextProvider{
			newPollinationsTextProvider(cfg),
			stubTextProvider{},
		},
		logger: log,
	}
}

// NewNarratorWithProviders is used by tests to inject a custom chain. The
// stub is always appended so the never-fails contract holds.
func NewNarratorWithProviders(log logger.Logger, providers ...TextProvider) *Narrator {
	return &Narrator{providers: append(providers, stubTextProvider{}), logger: log}
}

func (n *Narrator) Run(ctx context.Context, input NarrateInput) (*models.StageResult, *models.Narration, error) {
	if input.TargetDurationSec <= 0 {
		return nil, nil, NewInvalidInput(models.StageNarrate, "target duration must be positive")
	}
	start := time.Now()

	var narration *models.Narration
	var provider string
	fallbackUsed := false
	for _, p := range n.providers {
		if !p.IsConfigured() {
			continue
		}
		result, err := p.Generate(ctx, input)
		if err != nil {
			n.logger.Warnf("narration provider %s failed, trying next: %v", p.Name(), err)
			fallbackUsed = true
			continue
		}
		narration = result
		provider = p.Name()
		break
	}
	if narration == nil {
		// Unreachable while the stub terminates the chain; kept as a guard.
		return nil, nil, NewPermanent(models.StageNarrate, "no narration provider produced a result", nil)
	}
	if provider == stubProviderName {
		fallbackUsed = true
	}

	outDir, err := StageDir(input.WorkDir, input.ClipID, models.StageNarrate)
	if err != nil {
		return nil, nil, NewPermanent(models.StageNarrate, "failed to prepare output dir", err)
	}
	outPath := filepath.Join(outDir, "narration.json")
	data, err := json.MarshalIndent(narration, "", "  ")
	if err != nil {
		return nil, nil, NewPermanent(models.StageNarrate, "failed to encode narration", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return nil, nil, NewPermanent(models.StageNarrate, "failed to write narration", err)
	}

	return &models.StageResult{
		Stage:         models.StageNarrate,
		ArtifactPaths: []string{outPath},
		Provider:      provider,
		FallbackUsed:  fallbackUsed,
		DurationMS:    time.Since(start).Milliseconds(),
		Success:       true,
	}, narration, nil
}

// LoadNarration reads a persisted narration artifact on idempotent resume.
func LoadNarration(path string) (*models.Narration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var narration models.Narration
	if err := json.Unmarshal(data, &narration); err != nil {
		return nil, err
	}
	return &narration, nil
}

// pollinationsTextProvider generates narration via the free pollinations.ai
// text endpoint. No API key needed; configured whenever a base URL is set.
type pollinationsTextProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func newPollinationsTextProvider(cfg *config.Config) *pollinationsTextProvider {
	timeout := time.Duration(cfg.Providers.AITimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &pollinationsTextProvider{
		baseURL:    cfg.Providers.AIBaseURL,
		model:      cfg.Providers.AIModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *pollinationsTextProvider) Name() string { return "pollinations" }

func (p *pollinationsTextProvider) IsConfigured() bool { return p.baseURL != "" }

func (p *pollinationsTextProvider) Generate(ctx context.Context, input NarrateInput) (*models.Narration, error) {
	prompt := buildNarrationPrompt(input)
	reqURL := fmt.Sprintf("%s/%s?model=%s&json=true", strings.TrimRight(p.baseURL, "/"), url.PathEscape(prompt), url.QueryEscape(p.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ShortsEngine/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, NewTransient(models.StageNarrate, "pollinations request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewTransient(models.StageNarrate, fmt.Sprintf("HTTP %d from pollinations", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransient(models.StageNarrate, "failed to read pollinations response", err)
	}

	var narration models.Narration
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&narration); err != nil || narration.Narration == "" {
		return nil, NewTransient(models.StageNarrate, "pollinations returned unusable payload", err)
	}
	return &narration, nil
}

func buildNarrationPrompt(input NarrateInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a %.0f second short-form video narration in %s, style %s.",
		input.TargetDurationSec, input.Language, input.Style)
	if input.Context != "" {
		fmt.Fprintf(&sb, " Context: %s.", input.Context)
	}
	sb.WriteString(` Respond as JSON with keys "title", "narration", "caption", "hashtags".`)
	return sb.String()
}

const stubProviderName = "stub"

// stubTextProvider is the deterministic terminal fallback. Output depends
// only on the input so re-runs with the same fingerprint stay stable.
type stubTextProvider struct{}

func (stubTextProvider) Name() string { return stubProviderName }

func (stubTextProvider) IsConfigured() bool { return true }

func (stubTextProvider) Generate(_ context.Context, input NarrateInput) (*models.Narration, error) {
	seed := fnv.New32a()
	fmt.Fprintf(seed, "%s|%s|%s|%.0f", input.ClipID, input.Language, input.Style, input.TargetDurationSec)
	variant := seed.Sum32() % uint32(len(stubOpeners))

	opener := stubOpeners[variant]
	sentences := int(input.TargetDurationSec / 8)
	if sentences < 2 {
		sentences = 2
	}
	var sb strings.Builder
	sb.WriteString(opener)
	for i := 1; i < sentences; i++ {
		fmt.Fprintf(&sb, " %s", stubFillers[(int(variant)+i)%len(stubFillers)])
	}

	return &models.Narration{
		Title:     fmt.Sprintf("Moment worth watching #%d", variant+1),
		Narration: sb.String(),
		Caption:   "You won't believe this moment.",
		Hashtags:  []string{"#shorts", "#viral", "#clip"},
	}, nil
}

var stubOpeners = []string{
	"Watch closely, because this moment changes everything.",
	"Here is a scene most people scroll right past.",
	"This clip starts slow, then everything flips.",
	"Nobody expected what happens in the next few seconds.",
}

var stubFillers = []string{
	"Keep your eyes on the center of the frame.",
	"The details here tell the whole story.",
	"Notice how quickly the mood shifts.",
	"This is the part everyone rewinds.",
	"And just like that, it is over.",
}
