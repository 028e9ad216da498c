package stages

import (
	"context"
	"testing"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

func testLogger() logger.Logger {
	l := logger.NewApiLogger(&config.Config{Logger: config.Logger{Level: "error"}})
	l.InitLogger()
	return l
}

type failingTextProvider struct {
	calls int
}

func (f *failingTextProvider) Name() string       { return "failing" }
func (f *failingTextProvider) IsConfigured() bool { return true }
func (f *failingTextProvider) Generate(_ context.Context, _ NarrateInput) (*models.Narration, error) {
	f.calls++
	return nil, NewTransient(models.StageNarrate, "provider down", nil)
}

type unconfiguredTextProvider struct{}

func (unconfiguredTextProvider) Name() string       { return "unconfigured" }
func (unconfiguredTextProvider) IsConfigured() bool { return false }
func (unconfiguredTextProvider) Generate(_ context.Context, _ NarrateInput) (*models.Narration, error) {
	panic("must not be called")
}

func TestNarratorFallsBackToStub(t *testing.T) {
	failing := &failingTextProvider{}
	n := NewNarratorWithProviders(testLogger(), failing)

	result, narration, err := n.Run(context.Background(), NarrateInput{
		ClipID:            "clip-1",
		WorkDir:           t.TempDir(),
		Language:          "en",
		Style:             "energetic",
		TargetDurationSec: 40,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if failing.calls != 1 {
		t.Errorf("failing provider called %d times, want 1", failing.calls)
	}
	if !result.FallbackUsed {
		t.Errorf("FallbackUsed = false, want true after provider failure")
	}
	if result.Provider != "stub" {
		t.Errorf("Provider = %s, want stub", result.Provider)
	}
	if narration.Narration == "" || narration.Title == "" {
		t.Errorf("stub produced empty narration: %+v", narration)
	}
}

func TestNarratorSkipsUnconfiguredProviders(t *testing.T) {
	n := NewNarratorWithProviders(testLogger(), unconfiguredTextProvider{})

	result, _, err := n.Run(context.Background(), NarrateInput{
		ClipID:            "clip-2",
		WorkDir:           t.TempDir(),
		Language:          "en",
		Style:             "calm",
		TargetDurationSec: 30,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Provider != "stub" {
		t.Errorf("Provider = %s, want stub", result.Provider)
	}
}

func TestNarratorStubIsDeterministic(t *testing.T) {
	input := NarrateInput{
		ClipID:            "clip-3",
		Language:          "en",
		Style:             "energetic",
		TargetDurationSec: 40,
	}
	first, err := stubTextProvider{}.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	second, err := stubTextProvider{}.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if first.Narration != second.Narration || first.Title != second.Title {
		t.Errorf("stub output differs between identical runs")
	}
}

func TestNarratorPersistsArtifact(t *testing.T) {
	n := NewNarratorWithProviders(testLogger())

	result, narration, err := n.Run(context.Background(), NarrateInput{
		ClipID:            "clip-4",
		WorkDir:           t.TempDir(),
		Language:          "en",
		Style:             "energetic",
		TargetDurationSec: 25,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	loaded, err := LoadNarration(result.FirstArtifact())
	if err != nil {
		t.Fatalf("LoadNarration() error: %v", err)
	}
	if loaded.Narration != narration.Narration {
		t.Errorf("persisted narration differs from returned one")
	}
}

func TestNarratorRejectsNonPositiveDuration(t *testing.T) {
	n := NewNarratorWithProviders(testLogger())
	_, _, err := n.Run(context.Background(), NarrateInput{ClipID: "c", WorkDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for zero duration")
	}
	if KindOf(err) != KindInvalidInput {
		t.Errorf("KindOf(err) = %s, want invalid_input", KindOf(err))
	}
}
