package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/shorts-engine/internal/models"
)

// SubtitleInput distributes narration text over a clip's duration.
type SubtitleInput struct {
	ClipID      string
	WorkDir     string
	Text        string
	DurationSec float64
}

// SubtitleEntry is one timed cue of the generated track.
type SubtitleEntry struct {
	Index    int
	StartSec float64
	EndSec   float64
	Text     string
}

// SubtitleBuilder produces an SRT track with equal-share timing: sentences
// are distributed evenly across the clip duration. This is a deliberate
// approximation, not an audio-aligned transcription.
type SubtitleBuilder struct{}

func NewSubtitleBuilder() *SubtitleBuilder {
	return &SubtitleBuilder{}
}

func (b *SubtitleBuilder) Run(input SubtitleInput) (*models.StageResult, error) {
	if input.DurationSec <= 0 {
		return nil, NewInvalidInput(models.StageSubtitle, "clip duration must be positive")
	}
	start := time.Now()

	entries := BuildEntries(input.Text, input.DurationSec)

	outDir, err := StageDir(input.WorkDir, input.ClipID, models.StageSubtitle)
	if err != nil {
		return nil, NewPermanent(models.StageSubtitle, "failed to prepare output dir", err)
	}
	outPath := filepath.Join(outDir, "subtitles.srt")
	if err := os.WriteFile(outPath, []byte(RenderSRT(entries)), 0644); err != nil {
		return nil, NewPermanent(models.StageSubtitle, "failed to write srt", err)
	}

	return &models.StageResult{
		Stage:         models.StageSubtitle,
		ArtifactPaths: []string{outPath},
		Provider:      "equal-share",
		DurationMS:    time.Since(start).Milliseconds(),
		Success:       true,
	}, nil
}

// BuildEntries splits text into sentences and gives each an equal share of
// the duration. Zero sentences yields a single entry spanning the whole
// clip so the compositor always has a track to burn in.
func BuildEntries(text string, durationSec float64) []SubtitleEntry {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return []SubtitleEntry{{
			Index:    1,
			StartSec: 0,
			EndSec:   durationSec,
			Text:     "...",
		}}
	}

	share := durationSec / float64(len(sentences))
	entries := make([]SubtitleEntry, 0, len(sentences))
	for i, sentence := range sentences {
		end := float64(i+1) * share
		if end > durationSec {
			end = durationSec
		}
		entries = append(entries, SubtitleEntry{
			Index:    i + 1,
			StartSec: float64(i) * share,
			EndSec:   end,
			Text:     sentence,
		})
	}
	return entries
}

// SplitSentences breaks narration into sentence-level chunks on
// terminating punctuation, dropping empties.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(strings.Trim(current.String(), ".!?")); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// RenderSRT formats entries in SubRip form.
func RenderSRT(entries []SubtitleEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			e.Index, formatSRTTime(e.StartSec), formatSRTTime(e.EndSec), e.Text)
	}
	return sb.String()
}

func formatSRTTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	millis := int((sec - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, millis)
}
