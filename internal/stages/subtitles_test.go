package stages

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/shorts-engine/internal/models"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "First. Second! Third?", []string{"First", "Second", "Third"}},
		{"trailing fragment", "One. And then", []string{"One", "And then"}},
		{"empty", "", nil},
		{"only punctuation", "... !!", nil},
		{"single sentence", "Just one line.", []string{"Just one line"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitSentences(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildEntriesEqualShare(t *testing.T) {
	entries := BuildEntries("One. Two. Three. Four.", 40)
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	for i, e := range entries {
		wantStart := float64(i) * 10
		wantEnd := float64(i+1) * 10
		if math.Abs(e.StartSec-wantStart) > 1e-9 || math.Abs(e.EndSec-wantEnd) > 1e-9 {
			t.Errorf("entry %d timing = [%f, %f], want [%f, %f]", i, e.StartSec, e.EndSec, wantStart, wantEnd)
		}
		if e.Index != i+1 {
			t.Errorf("entry %d index = %d, want %d", i, e.Index, i+1)
		}
	}
	last := entries[len(entries)-1]
	if last.EndSec != 40 {
		t.Errorf("final entry ends at %f, want clip duration 40", last.EndSec)
	}
}

func TestBuildEntriesZeroSentences(t *testing.T) {
	entries := BuildEntries("", 25.5)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 placeholder", len(entries))
	}
	e := entries[0]
	if e.StartSec != 0 || e.EndSec != 25.5 || e.Text != "..." {
		t.Errorf("placeholder = %+v, want full-duration ...", e)
	}
}

func TestRenderSRT(t *testing.T) {
	entries := []SubtitleEntry{
		{Index: 1, StartSec: 0, EndSec: 2.5, Text: "Hello"},
		{Index: 2, StartSec: 2.5, EndSec: 5, Text: "World"},
	}
	srt := RenderSRT(entries)
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello\n\n2\n00:00:02,500 --> 00:00:05,000\nWorld\n\n"
	if srt != want {
		t.Errorf("RenderSRT = %q, want %q", srt, want)
	}
}

func TestFormatSRTTime(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "00:00:00,000"},
		{61.25, "00:01:01,250"},
		{3661.5, "01:01:01,500"},
		{-3, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := formatSRTTime(tt.sec); got != tt.want {
			t.Errorf("formatSRTTime(%f) = %s, want %s", tt.sec, got, tt.want)
		}
	}
}

func TestSubtitleBuilderRun(t *testing.T) {
	workDir := t.TempDir()
	b := NewSubtitleBuilder()

	result, err := b.Run(SubtitleInput{
		ClipID:      "clip-1",
		WorkDir:     workDir,
		Text:        "First part. Second part.",
		DurationSec: 30,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Stage != models.StageSubtitle || !result.Success {
		t.Errorf("result = %+v, want successful subtitle stage", result)
	}
	raw, err := os.ReadFile(result.FirstArtifact())
	if err != nil {
		t.Fatalf("reading srt: %v", err)
	}
	if !strings.Contains(string(raw), "First part") {
		t.Errorf("srt missing text: %q", raw)
	}
	if filepath.Ext(result.FirstArtifact()) != ".srt" {
		t.Errorf("artifact %s is not an srt file", result.FirstArtifact())
	}
}

func TestSubtitleBuilderRejectsZeroDuration(t *testing.T) {
	b := NewSubtitleBuilder()
	_, err := b.Run(SubtitleInput{ClipID: "c", WorkDir: t.TempDir(), Text: "x.", DurationSec: 0})
	if err == nil {
		t.Fatal("expected error for zero duration")
	}
	if KindOf(err) != KindInvalidInput {
		t.Errorf("KindOf(err) = %s, want invalid_input", KindOf(err))
	}
}
