package models

import (
	"strings"
	"time"
)

// Stage names in pipeline order.
const (
	StageExtract    = "extract"
	StageNarrate    = "narrate"
	StageSynthesize = "synthesize"
	StageSubtitle   = "subtitle"
	StageCompose    = "compose"
	StageUpload     = "upload"
)

// StageOrder is the fixed execution order of the clip pipeline.
var StageOrder = []string{
	StageExtract,
	StageNarrate,
	StageSynthesize,
	StageSubtitle,
	StageCompose,
	StageUpload,
}

// StageResult is the typed outcome of one stage for one clip. Results are
// append-only per job; a run accumulates them in order so a job can be
// inspected mid-run and resumed without redoing completed work.
type StageResult struct {
	ID            int64     `json:"id" db:"id"`
	JobID         string    `json:"job_id" db:"job_id"`
	Fingerprint   string    `json:"fingerprint" db:"fingerprint"`
	Stage         string    `json:"stage" db:"stage"`
	Scope         string    `json:"scope,omitempty" db:"scope"`
	ArtifactPaths []string  `json:"artifact_paths" db:"-"`
	Artifacts     string    `json:"-" db:"artifacts"`
	Provider      string    `json:"provider,omitempty" db:"provider"`
	FallbackUsed  bool      `json:"fallback_used" db:"fallback_used"`
	DurationMS    int64     `json:"duration_ms" db:"duration_ms"`
	Success       bool      `json:"success" db:"success"`
	Message       string    `json:"message,omitempty" db:"message"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

const artifactSeparator = "\n"

// EncodeArtifacts packs ArtifactPaths into the persisted column form.
func (r *StageResult) EncodeArtifacts() {
	r.Artifacts = strings.Join(r.ArtifactPaths, artifactSeparator)
}

// DecodeArtifacts unpacks the persisted column form into ArtifactPaths.
func (r *StageResult) DecodeArtifacts() {
	if r.Artifacts == "" {
		r.ArtifactPaths = nil
		return
	}
	r.ArtifactPaths = strings.Split(r.Artifacts, artifactSeparator)
}

// FirstArtifact returns the primary artifact path, if any.
func (r *StageResult) FirstArtifact() string {
	if len(r.ArtifactPaths) == 0 {
		return ""
	}
	return r.ArtifactPaths[0]
}

// Narration is the structured output of the narration stage.
type Narration struct {
	Title     string   `json:"title"`
	Narration string   `json:"narration"`
	Caption   string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
}
