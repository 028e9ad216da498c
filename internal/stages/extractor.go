package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

const (
	probeTimeout   = 30 * time.Second
	extractTimeout = 5 * time.Minute
)

// ExtractInput bounds candidate clip selection from one source video.
type ExtractInput struct {
	ClipID     string
	SourcePath string
	WorkDir    string
	MinDurSec  int
	MaxDurSec  int
	TopN       int
}

// Candidate is one extracted clip file plus basic metadata, mirrored into
// a JSON sidecar so downstream consumers can treat extraction as an opaque
// batch operation with a file contract.
type Candidate struct {
	Index         int     `json:"index"`
	Path          string  `json:"path"`
	StartSec      float64 `json:"start_sec"`
	EndSec        float64 `json:"end_sec"`
	DurationSec   float64 `json:"duration_sec"`
	FileSizeBytes int64   `json:"file_size_bytes"`
}

type extractManifest struct {
	SourcePath string      `json:"source_path"`
	Candidates []Candidate `json:"candidates"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Extractor cuts candidate clips out of a long source video with ffmpeg.
type Extractor struct {
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Run probes the source, slices scene windows between the duration bounds,
// keeps the top N and stream-copies each into its own file.
func (e *Extractor) Run(ctx context.Context, input ExtractInput) (*models.StageResult, []Candidate, error) {
	if err := validateExtractInput(input); err != nil {
		return nil, nil, err
	}
	start := time.Now()

	duration, err := probeDuration(ctx, input.SourcePath)
	if err != nil {
		return nil, nil, err
	}

	windows := sliceWindows(duration, float64(input.MinDurSec), float64(input.MaxDurSec))
	windows = topWindows(windows, input.TopN)
	if len(windows) == 0 {
		return nil, nil, NewPermanent(models.StageExtract,
			fmt.Sprintf("source too short for bounds [%d,%d]s", input.MinDurSec, input.MaxDurSec), nil)
	}

	outDir, err := StageDir(input.WorkDir, input.ClipID, models.StageExtract)
	if err != nil {
		return nil, nil, NewPermanent(models.StageExtract, "failed to prepare output dir", err)
	}

	candidates := make([]Candidate, 0, len(windows))
	paths := make([]string, 0, len(windows)+1)
	for i, w := range windows {
		outPath := filepath.Join(outDir, fmt.Sprintf("candidate_%03d.mp4", i))
		if err := cutClip(ctx, input.SourcePath, outPath, w.start, w.end); err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(outPath)
		if err != nil {
			return nil, nil, NewPermanent(models.StageExtract, "extracted clip missing", err)
		}
		candidates = append(candidates, Candidate{
			Index:         i,
			Path:          outPath,
			StartSec:      w.start,
			EndSec:        w.end,
			DurationSec:   w.end - w.start,
			FileSizeBytes: info.Size(),
		})
		paths = append(paths, outPath)
	}

	manifestPath := filepath.Join(outDir, "candidates.json")
	if err := writeManifest(manifestPath, input.SourcePath, candidates); err != nil {
		return nil, nil, NewPermanent(models.StageExtract, "failed to write manifest", err)
	}
	paths = append(paths, manifestPath)

	e.logger.Infof("extracted %d candidates from %s", len(candidates), input.SourcePath)

	return &models.StageResult{
		Stage:         models.StageExtract,
		ArtifactPaths: paths,
		Provider:      "ffmpeg",
		DurationMS:    time.Since(start).Milliseconds(),
		Success:       true,
	}, candidates, nil
}

// LoadManifest reads a previously written candidates manifest, used when the
// extract stage is skipped on an idempotent resume.
func LoadManifest(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read candidates manifest")
	}
	var m extractManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode candidates manifest")
	}
	return m.Candidates, nil
}

func validateExtractInput(input ExtractInput) error {
	if input.SourcePath == "" {
		return NewInvalidInput(models.StageExtract, "source path is required")
	}
	if input.MinDurSec >= input.MaxDurSec {
		return NewInvalidInput(models.StageExtract,
			fmt.Sprintf("min duration %d must be less than max duration %d", input.MinDurSec, input.MaxDurSec))
	}
	if input.TopN < 1 {
		return NewInvalidInput(models.StageExtract, "top N must be at least 1")
	}
	if _, err := os.Stat(input.SourcePath); err != nil {
		return NewInvalidInput(models.StageExtract, fmt.Sprintf("source not readable: %v", err))
	}
	return nil
}

type window struct {
	start float64
	end   float64
	score float64
}

// sliceWindows generates candidate windows between the bounds with a 50%
// stride, scored by length so longer windows win ties deterministically.
func sliceWindows(totalSec, minSec, maxSec float64) []window {
	var out []window
	if totalSec <= 0 || minSec <= 0 {
		return out
	}
	stride := minSec / 2
	for start := 0.0; start+minSec <= totalSec; start += stride {
		end := start + maxSec
		if end > totalSec {
			end = totalSec
		}
		if end-start >= minSec {
			out = append(out, window{start: start, end: end, score: (end - start) * 0.1})
		}
	}
	return out
}

func topWindows(windows []window, topN int) []window {
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].score > windows[j].score
	})
	if len(windows) > topN {
		windows = windows[:topN]
	}
	// Restore chronological order for stable candidate numbering.
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].start < windows[j].start
	})
	return windows
}

func probeDuration(ctx context.Context, path string) (float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if probeCtx.Err() == context.DeadlineExceeded {
		return 0, NewTransient(models.StageExtract, "ffprobe timed out", probeCtx.Err())
	}
	if err != nil {
		return 0, NewPermanent(models.StageExtract, "ffprobe failed, malformed media", err)
	}
	duration, err := parseProbeDuration(string(out))
	if err != nil {
		return 0, NewPermanent(models.StageExtract, "ffprobe returned no duration", err)
	}
	return duration, nil
}

func parseProbeDuration(out string) (float64, error) {
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f", duration)
	}
	return duration, nil
}

func cutClip(ctx context.Context, inputPath, outputPath string, startSec, endSec float64) error {
	cutCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(cutCtx, "ffmpeg",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-to", fmt.Sprintf("%.3f", endSec),
		"-i", inputPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y", outputPath,
	)
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if cutCtx.Err() == context.DeadlineExceeded {
		return NewTransient(models.StageExtract, "ffmpeg cut timed out", cutCtx.Err())
	}
	if err != nil {
		return NewPermanent(models.StageExtract, "ffmpeg cut failed", err)
	}
	return nil
}

func writeManifest(path, sourcePath string, candidates []Candidate) error {
	data, err := json.MarshalIndent(extractManifest{
		SourcePath: sourcePath,
		Candidates: candidates,
		CreatedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
