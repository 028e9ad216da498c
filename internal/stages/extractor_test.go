package stages

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSliceWindows(t *testing.T) {
	tests := []struct {
		name     string
		totalSec float64
		minSec   float64
		maxSec   float64
		want     int
	}{
		{"source shorter than min", 10, 20, 60, 0},
		{"exactly one window", 20, 20, 60, 1},
		{"stride is half the min bound", 40, 20, 60, 3},
		{"zero duration", 0, 20, 60, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sliceWindows(tt.totalSec, tt.minSec, tt.maxSec)
			if len(got) != tt.want {
				t.Errorf("sliceWindows(%g, %g, %g) yielded %d windows, want %d",
					tt.totalSec, tt.minSec, tt.maxSec, len(got), tt.want)
			}
			for _, w := range got {
				if w.end-w.start < tt.minSec {
					t.Errorf("window [%g, %g] shorter than min %g", w.start, w.end, tt.minSec)
				}
				if w.end > tt.totalSec {
					t.Errorf("window [%g, %g] exceeds source duration %g", w.start, w.end, tt.totalSec)
				}
			}
		})
	}
}

func TestTopWindowsKeepsChronologicalOrder(t *testing.T) {
	windows := sliceWindows(300, 20, 60)
	top := topWindows(windows, 3)
	if len(top) != 3 {
		t.Fatalf("got %d windows, want 3", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].start < top[i-1].start {
			t.Errorf("windows out of chronological order: %g before %g", top[i].start, top[i-1].start)
		}
	}
}

func TestTopWindowsFewerThanN(t *testing.T) {
	windows := sliceWindows(25, 20, 60)
	top := topWindows(windows, 5)
	if len(top) != len(windows) {
		t.Errorf("topWindows trimmed %d windows to %d with budget 5", len(windows), len(top))
	}
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{"plain", "123.456\n", 123.456, false},
		{"whitespace", "  42.0  ", 42.0, false},
		{"garbage", "N/A", 0, true},
		{"empty", "", 0, true},
		{"negative", "-5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeDuration(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProbeDuration(%q) error = %v, wantErr %v", tt.out, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseProbeDuration(%q) = %g, want %g", tt.out, got, tt.want)
			}
		})
	}
}

func TestValidateExtractInput(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input ExtractInput
		valid bool
	}{
		{"ok", ExtractInput{SourcePath: src, MinDurSec: 20, MaxDurSec: 60, TopN: 3}, true},
		{"missing source", ExtractInput{MinDurSec: 20, MaxDurSec: 60, TopN: 3}, false},
		{"min not below max", ExtractInput{SourcePath: src, MinDurSec: 60, MaxDurSec: 60, TopN: 3}, false},
		{"zero topN", ExtractInput{SourcePath: src, MinDurSec: 20, MaxDurSec: 60, TopN: 0}, false},
		{"unreadable source", ExtractInput{SourcePath: src + ".missing", MinDurSec: 20, MaxDurSec: 60, TopN: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateExtractInput(tt.input)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if KindOf(err) != KindInvalidInput {
					t.Errorf("KindOf(err) = %s, want invalid_input", KindOf(err))
				}
			}
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.json")
	in := []Candidate{
		{Index: 0, Path: "/tmp/a.mp4", StartSec: 0, EndSec: 40, DurationSec: 40, FileSizeBytes: 1024},
		{Index: 1, Path: "/tmp/b.mp4", StartSec: 10, EndSec: 55, DurationSec: 45, FileSizeBytes: 2048},
	}
	if err := writeManifest(path, "/videos/source.mp4", in); err != nil {
		t.Fatalf("writeManifest() error: %v", err)
	}
	out, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d candidates, want %d", len(out), len(in))
	}
	if out[1].Path != in[1].Path || out[1].DurationSec != in[1].DurationSec {
		t.Errorf("candidate 1 = %+v, want %+v", out[1], in[1])
	}
}

func TestResultFolderName(t *testing.T) {
	date := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	got := ResultFolderName("/videos/my_documentary.mp4", date)
	if got != "my_documentary-2026-08-26" {
		t.Errorf("ResultFolderName = %s", got)
	}
}
