package stages

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

const (
	composeTimeout = 15 * time.Minute

	outputWidth  = 1080
	outputHeight = 1920
	outputFPS    = 30
	videoCRF     = 20
	videoPreset  = "veryfast"

	subFontSize = 36
	subMargin   = 64
	subOutline  = 2

	musicGainDB   = -10.0
	duckThreshold = 0.1
	duckRatio     = 8
)

// ComposeInput assembles one final vertical video.
type ComposeInput struct {
	ClipID    string
	WorkDir   string
	ClipPath  string
	AudioPath string
	SrtPath   string
	MusicPath string
	Scope     string
}

// Compositor renders the social-ready short: 1080x1920 at 30fps, H.264 +
// AAC, voice-first audio mix with an optional ducked music bed, and
// burnt-in subtitles. Failures are treated as transient since render
// errors are commonly resource exhaustion.
type Compositor struct {
	logger logger.Logger
}

func NewCompositor(log logger.Logger) *Compositor {
	return &Compositor{logger: log}
}

func (c *Compositor) Run(ctx context.Context, input ComposeInput) (*models.StageResult, error) {
	if err := validateComposeInput(input); err != nil {
		return nil, err
	}
	start := time.Now()

	outDir, err := StageDir(input.WorkDir, input.ClipID, models.StageCompose)
	if err != nil {
		return nil, NewPermanent(models.StageCompose, "failed to prepare output dir", err)
	}
	name := "final.mp4"
	if input.Scope != "" {
		name = fmt.Sprintf("final_%s.mp4", input.Scope)
	}
	outPath := filepath.Join(outDir, name)

	args := buildComposeArgs(input, outPath)

	composeCtx, cancel := context.WithTimeout(ctx, composeTimeout)
	defer cancel()

	cmd := exec.CommandContext(composeCtx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()
	if composeCtx.Err() == context.DeadlineExceeded {
		return nil, NewTransient(models.StageCompose, "render timed out", composeCtx.Err())
	}
	if runErr != nil {
		return nil, NewTransient(models.StageCompose, "ffmpeg render failed", runErr)
	}
	if _, err := os.Stat(outPath); err != nil {
		return nil, NewTransient(models.StageCompose, "render produced no output", err)
	}

	c.logger.Infof("composed %s in %s", outPath, time.Since(start))

	return &models.StageResult{
		Stage:         models.StageCompose,
		ArtifactPaths: []string{outPath},
		Provider:      "ffmpeg",
		Scope:         input.Scope,
		DurationMS:    time.Since(start).Milliseconds(),
		Success:       true,
	}, nil
}

func validateComposeInput(input ComposeInput) error {
	if input.ClipPath == "" || input.AudioPath == "" || input.SrtPath == "" {
		return NewInvalidInput(models.StageCompose, "clip, audio and subtitle paths are required")
	}
	for _, p := range []string{input.ClipPath, input.AudioPath, input.SrtPath} {
		if _, err := os.Stat(p); err != nil {
			return NewInvalidInput(models.StageCompose, fmt.Sprintf("input not readable: %v", err))
		}
	}
	if input.MusicPath != "" {
		if _, err := os.Stat(input.MusicPath); err != nil {
			return NewInvalidInput(models.StageCompose, fmt.Sprintf("music bed not readable: %v", err))
		}
	}
	return nil
}

func buildComposeArgs(input ComposeInput, outPath string) []string {
	args := []string{"-i", input.ClipPath, "-i", input.AudioPath}
	if input.MusicPath != "" {
		args = append(args, "-stream_loop", "-1", "-i", input.MusicPath)
	}

	videoFilter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d,subtitles=%s:force_style='FontSize=%d,Outline=%d,MarginV=%d'",
		outputWidth, outputHeight, outputWidth, outputHeight, outputFPS,
		escapeFilterPath(input.SrtPath), subFontSize, subOutline, subMargin,
	)

	var filterComplex string
	if input.MusicPath != "" {
		// Voice-first mix: the music bed is attenuated and side-chain
		// ducked under the narration.
		filterComplex = fmt.Sprintf(
			"[0:v]%s[v];[2:a]volume=%.1fdB[m];[m][1:a]sidechaincompress=threshold=%.3f:ratio=%d[mduck];[1:a][mduck]amix=inputs=2:duration=first[a]",
			videoFilter, musicGainDB, duckThreshold, duckRatio,
		)
	} else {
		filterComplex = fmt.Sprintf("[0:v]%s[v];[1:a]anull[a]", videoFilter)
	}

	args = append(args,
		"-filter_complex", filterComplex,
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-preset", videoPreset,
		"-crf", fmt.Sprintf("%d", videoCRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-movflags", "+faststart",
		"-y", outPath,
	)
	return args
}

func escapeFilterPath(path string) string {
	// ffmpeg filter syntax treats ':' and '\' specially inside options.
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return replacer.Replace(path)
}
