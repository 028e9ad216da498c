package stages

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// SynthesizeInput asks for a rendered voice track for narration text.
type SynthesizeInput struct {
	ClipID  string
	WorkDir string
	Text    string
	Voice   string
}

// VoiceProvider is one entry in the voice synthesis fallback chain.
type VoiceProvider interface {
	Name() string
	IsConfigured() bool
	Synthesize(ctx context.Context, input SynthesizeInput, outPath string) error
}

// Synthesizer renders narration audio through the provider chain, ending in
// a synthetic tone so the stage never fails.
type Synthesizer struct {
	providers []VoiceProvider
	logger    logger.Logger
}

func NewSynthesizer(cfg *config.Config, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		providers: []VoiceProvider{
			newHTTPVoiceProvider(cfg),
			newEdgeTTSProvider(cfg),
		},
		logger: log,
	}
}

// NewSynthesizerWithProviders is used by tests to inject a custom chain.
func NewSynthesizerWithProviders(log logger.Logger, providers ...VoiceProvider) *Synthesizer {
	return &Synthesizer{providers: providers, logger: log}
}

func (s *Synthesizer) Run(ctx context.Context, input SynthesizeInput) (*models.StageResult, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, NewInvalidInput(models.StageSynthesize, "narration text is required")
	}
	start := time.Now()

	outDir, err := StageDir(input.WorkDir, input.ClipID, models.StageSynthesize)
	if err != nil {
		return nil, NewPermanent(models.StageSynthesize, "failed to prepare output dir", err)
	}

	fallbackUsed := false
	provider := ""
	var outPath string
	for _, p := range s.providers {
		if !p.IsConfigured() {
			continue
		}
		candidate := filepath.Join(outDir, "voice.mp3")
		if err := p.Synthesize(ctx, input, candidate); err != nil {
			s.logger.Warnf("voice provider %s failed, trying next: %v", p.Name(), err)
			fallbackUsed = true
			continue
		}
		provider = p.Name()
		outPath = candidate
		break
	}

	if outPath == "" {
		// Terminal fallback: a synthetic tone sized to the narration length.
		outPath = filepath.Join(outDir, "voice.wav")
		if err := writeBeepWav(outPath, beepDurationFor(input.Text)); err != nil {
			return nil, NewPermanent(models.StageSynthesize, "failed to write fallback tone", err)
		}
		provider = "beep"
		fallbackUsed = true
	}

	return &models.StageResult{
		Stage:         models.StageSynthesize,
		ArtifactPaths: []string{outPath},
		Provider:      provider,
		FallbackUsed:  fallbackUsed,
		DurationMS:    time.Since(start).Milliseconds(),
		Success:       true,
	}, nil
}

// httpVoiceProvider streams rendered speech from an OpenAI-compatible audio
// endpoint (pollinations exposes one without a key).
type httpVoiceProvider struct {
	baseURL    string
	voice      string
	httpClient *http.Client
}

func newHTTPVoiceProvider(cfg *config.Config) *httpVoiceProvider {
	timeout := time.Duration(cfg.Providers.TTSTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &httpVoiceProvider{
		baseURL:    cfg.Providers.TTSBaseURL,
		voice:      cfg.Providers.TTSVoice,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *httpVoiceProvider) Name() string { return "pollinations-audio" }

func (p *httpVoiceProvider) IsConfigured() bool { return p.baseURL != "" }

func (p *httpVoiceProvider) Synthesize(ctx context.Context, input SynthesizeInput, outPath string) error {
	voice := input.Voice
	if voice == "" {
		voice = p.voice
	}
	reqURL := fmt.Sprintf("%s/%s?model=openai-audio&voice=%s",
		strings.TrimRight(p.baseURL, "/"), url.PathEscape(input.Text), url.QueryEscape(voice))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ShortsEngine/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return NewTransient(models.StageSynthesize, "tts request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewTransient(models.StageSynthesize, fmt.Sprintf("HTTP %d from tts provider", resp.StatusCode), nil)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return NewTransient(models.StageSynthesize, "failed to stream tts audio", err)
	}
	return nil
}

// edgeTTSProvider shells out to the edge-tts CLI when it is installed.
type edgeTTSProvider struct {
	voice   string
	enabled bool
}

func newEdgeTTSProvider(cfg *config.Config) *edgeTTSProvider {
	return &edgeTTSProvider{
		voice:   cfg.Providers.TTSVoice,
		enabled: cfg.Providers.TTSProvider == "edge-tts",
	}
}

func (p *edgeTTSProvider) Name() string { return "edge-tts" }

func (p *edgeTTSProvider) IsConfigured() bool {
	if !p.enabled {
		return false
	}
	_, err := exec.LookPath("edge-tts")
	return err == nil
}

func (p *edgeTTSProvider) Synthesize(ctx context.Context, input SynthesizeInput, outPath string) error {
	voice := input.Voice
	if voice == "" {
		voice = p.voice
	}
	if voice == "" {
		voice = "en-US-GuyNeural"
	}
	cmd := exec.CommandContext(ctx, "edge-tts",
		"--voice", voice,
		"--text", input.Text,
		"--write-media", outPath,
	)
	if err := cmd.Run(); err != nil {
		return NewTransient(models.StageSynthesize, "edge-tts failed", err)
	}
	return nil
}

const (
	beepSampleRate = 22050
	beepFrequency  = 440.0
	wordsPerSecond = 2.5
)

func beepDurationFor(text string) time.Duration {
	words := len(strings.Fields(text))
	sec := float64(words) / wordsPerSecond
	if sec < 1 {
		sec = 1
	}
	if sec > 120 {
		sec = 120
	}
	return time.Duration(sec * float64(time.Second))
}

// writeBeepWav renders a 16-bit mono PCM sine tone. The WAV container is a
// fixed 44-byte header, written by hand so the fallback needs no codec.
func writeBeepWav(path string, duration time.Duration) error {
	sampleCount := int(float64(beepSampleRate) * duration.Seconds())
	dataSize := sampleCount * 2

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 0, 44)
	header = append(header, []byte("RIFF")...)
	header = binary.LittleEndian.AppendUint32(header, uint32(36+dataSize))
	header = append(header, []byte("WAVEfmt ")...)
	header = binary.LittleEndian.AppendUint32(header, 16)
	header = binary.LittleEndian.AppendUint16(header, 1) // PCM
	header = binary.LittleEndian.AppendUint16(header, 1) // mono
	header = binary.LittleEndian.AppendUint32(header, beepSampleRate)
	header = binary.LittleEndian.AppendUint32(header, beepSampleRate*2)
	header = binary.LittleEndian.AppendUint16(header, 2)
	header = binary.LittleEndian.AppendUint16(header, 16)
	header = append(header, []byte("data")...)
	header = binary.LittleEndian.AppendUint32(header, uint32(dataSize))
	if _, err := f.Write(header); err != nil {
		return err
	}

	samples := make([]byte, dataSize)
	for i := 0; i < sampleCount; i++ {
		v := math.Sin(2 * math.Pi * beepFrequency * float64(i) / beepSampleRate)
		sample := int16(v * 0.25 * math.MaxInt16)
		binary.LittleEndian.PutUint16(samples[i*2:], uint16(sample))
	}
	if _, err := f.Write(samples); err != nil {
		return err
	}
	return nil
}
