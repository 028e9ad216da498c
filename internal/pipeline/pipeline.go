package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/clipforge/shorts-engine/internal/config"
	"github.com/clipforge/shorts-engine/internal/jobs"
	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/stages"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// ErrCancelled aborts a run when the job was cancelled mid-flight. The
// in-flight stage finishes and its result is persisted; subsequent stages
// never start. Partial artifacts stay on disk for inspection.
var ErrCancelled = errors.New("job cancelled")

// Progress checkpoints reported at stage boundaries. Stage internals are
// opaque, so no finer granularity exists.
const (
	progressClaimed     = 5
	progressExtracted   = 15
	progressNarrated    = 35
	progressSynthesized = 55
	progressSubtitled   = 75
	progressComposed    = 90
	progressDone        = 100
)

var stageCheckpoints = map[string]int{
	models.StageExtract:    progressExtracted,
	models.StageNarrate:    progressNarrated,
	models.StageSynthesize: progressSynthesized,
	models.StageSubtitle:   progressSubtitled,
	models.StageCompose:    progressComposed,
	models.StageUpload:     progressDone,
}

// Adapters wrap the external collaborators behind stage-shaped interfaces
// so the pipeline can be exercised with fakes.
type ExtractorAdapter interface {
	Run(ctx context.Context, input stages.ExtractInput) (*models.StageResult, []stages.Candidate, error)
}

type NarratorAdapter interface {
	Run(ctx context.Context, input stages.NarrateInput) (*models.StageResult, *models.Narration, error)
}

type SynthesizerAdapter interface {
	Run(ctx context.Context, input stages.SynthesizeInput) (*models.StageResult, error)
}

type SubtitlerAdapter interface {
	Run(input stages.SubtitleInput) (*models.StageResult, error)
}

type CompositorAdapter interface {
	Run(ctx context.Context, input stages.ComposeInput) (*models.StageResult, error)
}

type UploaderAdapter interface {
	Run(ctx context.Context, input stages.UploadInput) (*models.StageResult, error)
}

// ProgressFunc receives checkpoint percentages as stages complete.
type ProgressFunc func(percent int)

// Result is the payload stored on the job once a run completes.
type Result struct {
	Fingerprint string   `json:"fingerprint"`
	Candidates  int      `json:"candidates"`
	FinalVideos []string `json:"final_videos"`
	Uploaded    []string `json:"uploaded,omitempty"`
	Titles      []string `json:"titles"`
}

// Pipeline runs the six stages in fixed order for one clip, persisting a
// StageResult after each stage so a retried run resumes instead of redoing
// completed work.
type Pipeline struct {
	cfg         *config.Config
	repo        jobs.Repository
	extractor   ExtractorAdapter
	narrator    NarratorAdapter
	synthesizer SynthesizerAdapter
	subtitler   SubtitlerAdapter
	compositor  CompositorAdapter
	uploader    UploaderAdapter
	logger      logger.Logger
}

func New(
	cfg *config.Config,
	repo jobs.Repository,
	extractor ExtractorAdapter,
	narrator NarratorAdapter,
	synthesizer SynthesizerAdapter,
	subtitler SubtitlerAdapter,
	compositor CompositorAdapter,
	uploader UploaderAdapter,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		repo:        repo,
		extractor:   extractor,
		narrator:    narrator,
		synthesizer: synthesizer,
		subtitler:   subtitler,
		compositor:  compositor,
		uploader:    uploader,
		logger:      log,
	}
}

// Run processes one clip end to end and returns the encoded result payload.
func (p *Pipeline) Run(ctx context.Context, job *models.Job, clip *models.Clip, report ProgressFunc) (string, error) {
	if report == nil {
		report = func(int) {}
	}
	fingerprint := Fingerprint(FingerprintParams{
		SourcePath:  clip.SourcePath,
		MinDurSec:   p.cfg.Pipeline.MinClipSec,
		MaxDurSec:   p.cfg.Pipeline.MaxClipSec,
		TopN:        p.cfg.Pipeline.TopClips,
		Language:    p.cfg.Pipeline.Language,
		Style:       p.cfg.Pipeline.Style,
		TTSProvider: p.cfg.Providers.TTSProvider,
		AIProvider:  p.cfg.Providers.AIProvider,
	})
	report(progressClaimed)

	candidates, err := p.extractStage(ctx, job, clip, fingerprint)
	if err != nil {
		return "", err
	}
	report(progressExtracted)

	tracker := newFanOutTracker(len(candidates), report)
	branches := make([]*branchOutput, len(candidates))

	limit := p.cfg.Pipeline.FanOutLimit
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	errs := make([]error, len(candidates))
	for i := range candidates {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out, err := p.runBranch(ctx, job, clip, fingerprint, candidates[idx], idx, tracker)
			branches[idx] = out
			errs[idx] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	result := Result{Fingerprint: fingerprint, Candidates: len(candidates)}
	for _, b := range branches {
		result.FinalVideos = append(result.FinalVideos, b.finalVideo)
		result.Titles = append(result.Titles, b.title)
	}

	if clip.IsRemote() && p.uploader != nil {
		uploaded, err := p.uploadStage(ctx, job, clip, fingerprint, result.FinalVideos)
		if err != nil {
			return "", err
		}
		result.Uploaded = uploaded
	}
	report(progressDone)

	payload, err := json.Marshal(result)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode pipeline result")
	}
	return string(payload), nil
}

type branchOutput struct {
	finalVideo string
	title      string
}

// runBranch processes one extraction candidate through
// narrate -> synthesize -> subtitle -> compose.
func (p *Pipeline) runBranch(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint string, candidate stages.Candidate, idx int, tracker *fanOutTracker) (*branchOutput, error) {
	scope := CandidateScope(idx)
	out := &branchOutput{}

	// Each candidate is content-addressed so re-extraction never creates a
	// second record.
	branchClip, err := p.repo.CreateClip(ctx, &models.Clip{
		SourcePath:    clip.SourcePath,
		LocalPath:     candidate.Path,
		RemoteFileID:  clip.RemoteFileID,
		DurationSec:   candidate.DurationSec,
		FileSizeBytes: candidate.FileSizeBytes,
		Fingerprint:   fmt.Sprintf("%s:%s", fingerprint, scope),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist candidate clip")
	}

	// Narrate.
	narration, err := p.narrateStage(ctx, job, branchClip, fingerprint, scope, candidate)
	if err != nil {
		return nil, err
	}
	tracker.stageDone(idx, models.StageNarrate)
	out.title = narration.Title

	// Synthesize voice.
	voiceResult, err := p.synthesizeStage(ctx, job, branchClip, fingerprint, scope, narration)
	if err != nil {
		return nil, err
	}
	tracker.stageDone(idx, models.StageSynthesize)

	// Subtitles.
	srtResult, err := p.subtitleStage(ctx, job, branchClip, fingerprint, scope, narration, candidate)
	if err != nil {
		return nil, err
	}
	tracker.stageDone(idx, models.StageSubtitle)

	// Compose.
	composeResult, err := p.composeStage(ctx, job, branchClip, fingerprint, scope, candidate, voiceResult, srtResult)
	if err != nil {
		return nil, err
	}
	tracker.stageDone(idx, models.StageCompose)

	out.finalVideo = composeResult.FirstArtifact()
	return out, nil
}

func (p *Pipeline) extractStage(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint string) ([]stages.Candidate, error) {
	if err := p.checkCancelled(ctx, job.JobID); err != nil {
		return nil, err
	}
	if prior, err := p.repo.GetStageResult(ctx, fingerprint, models.StageExtract, ""); err == nil {
		candidates, loadErr := stages.LoadManifest(prior.ArtifactPaths[len(prior.ArtifactPaths)-1])
		if loadErr == nil {
			p.logger.Infof("job %s: reusing extraction artifacts for fingerprint %.12s", job.JobID, fingerprint)
			if err := p.recordReuse(ctx, job.JobID, prior); err != nil {
				return nil, err
			}
			return candidates, nil
		}
		p.logger.Warnf("job %s: stale extraction manifest, re-extracting: %v", job.JobID, loadErr)
	}

	result, candidates, err := p.extractor.Run(ctx, stages.ExtractInput{
		ClipID:     clip.ClipID,
		SourcePath: clip.LocalPath,
		WorkDir:    p.cfg.Pipeline.WorkDir,
		MinDurSec:  p.cfg.Pipeline.MinClipSec,
		MaxDurSec:  p.cfg.Pipeline.MaxClipSec,
		TopN:       p.cfg.Pipeline.TopClips,
	})
	if err != nil {
		return nil, err
	}
	if err := p.persistResult(ctx, job.JobID, fingerprint, "", result); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (p *Pipeline) narrateStage(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint, scope string, candidate stages.Candidate) (*models.Narration, error) {
	if err := p.checkCancelled(ctx, job.JobID); err != nil {
		return nil, err
	}
	if prior, err := p.repo.GetStageResult(ctx, fingerprint, models.StageNarrate, scope); err == nil {
		narration, loadErr := stages.LoadNarration(prior.FirstArtifact())
		if loadErr == nil {
			if err := p.recordReuse(ctx, job.JobID, prior); err != nil {
				return nil, err
			}
			return narration, nil
		}
	}

	result, narration, err := p.narrator.Run(ctx, stages.NarrateInput{
		ClipID:            clip.ClipID,
		WorkDir:           p.cfg.Pipeline.WorkDir,
		Language:          p.cfg.Pipeline.Language,
		Style:             p.cfg.Pipeline.Style,
		TargetDurationSec: candidate.DurationSec,
	})
	if err != nil {
		return nil, err
	}
	if err := p.persistResult(ctx, job.JobID, fingerprint, scope, result); err != nil {
		return nil, err
	}
	return narration, nil
}

func (p *Pipeline) synthesizeStage(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint, scope string, narration *models.Narration) (*models.StageResult, error) {
	if err := p.checkCancelled(ctx, job.JobID); err != nil {
		return nil, err
	}
	if prior, err := p.repo.GetStageResult(ctx, fingerprint, models.StageSynthesize, scope); err == nil {
		if err := p.recordReuse(ctx, job.JobID, prior); err != nil {
			return nil, err
		}
		return prior, nil
	}

	result, err := p.synthesizer.Run(ctx, stages.SynthesizeInput{
		ClipID:  clip.ClipID,
		WorkDir: p.cfg.Pipeline.WorkDir,
		Text:    narration.Narration,
		Voice:   p.cfg.Providers.TTSVoice,
	})
	if err != nil {
		return nil, err
	}
	if err := p.persistResult(ctx, job.JobID, fingerprint, scope, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) subtitleStage(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint, scope string, narration *models.Narration, candidate stages.Candidate) (*models.StageResult, error) {
	if err := p.checkCancelled(ctx, job.JobID); err != nil {
		return nil, err
	}
	if prior, err := p.repo.GetStageResult(ctx, fingerprint, models.StageSubtitle, scope); err == nil {
		if err := p.recordReuse(ctx, job.JobID, prior); err != nil {
			return nil, err
		}
		return prior, nil
	}

	result, err := p.subtitler.Run(stages.SubtitleInput{
		ClipID:      clip.ClipID,
		WorkDir:     p.cfg.Pipeline.WorkDir,
		Text:        narration.Narration,
		DurationSec: candidate.DurationSec,
	})
	if err != nil {
		return nil, err
	}
	if err := p.persistResult(ctx, job.JobID, fingerprint, scope, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) composeStage(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint, scope string, candidate stages.Candidate, voice, srt *models.StageResult) (*models.StageResult, error) {
	if err := p.checkCancelled(ctx, job.JobID); err != nil {
		return nil, err
	}
	if prior, err := p.repo.GetStageResult(ctx, fingerprint, models.StageCompose, scope); err == nil {
		if err := p.recordReuse(ctx, job.JobID, prior); err != nil {
			return nil, err
		}
		return prior, nil
	}

	result, err := p.compositor.Run(ctx, stages.ComposeInput{
		ClipID:    clip.ClipID,
		WorkDir:   p.cfg.Pipeline.WorkDir,
		ClipPath:  candidate.Path,
		AudioPath: voice.FirstArtifact(),
		SrtPath:   srt.FirstArtifact(),
		MusicPath: p.cfg.Pipeline.MusicBedPath,
		Scope:     scope,
	})
	if err != nil {
		return nil, err
	}
	if err := p.persistResult(ctx, job.JobID, fingerprint, scope, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) uploadStage(ctx context.Context, job *models.Job, clip *models.Clip, fingerprint string, videos []string) ([]string, error) {
	if err := p.checkCancelled(ctx, job.JobID); err != nil {
		return nil, err
	}
	if prior, err := p.repo.GetStageResult(ctx, fingerprint, models.StageUpload, ""); err == nil {
		if err := p.recordReuse(ctx, job.JobID, prior); err != nil {
			return nil, err
		}
		return prior.ArtifactPaths, nil
	}

	result, err := p.uploader.Run(ctx, stages.UploadInput{
		ClipID:     clip.ClipID,
		SourcePath: clip.SourcePath,
		VideoPaths: videos,
		Date:       time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := p.persistResult(ctx, job.JobID, fingerprint, "", result); err != nil {
		return nil, err
	}
	return result.ArtifactPaths, nil
}

// persistResult stores the stage outcome before the next stage is allowed
// to start.
func (p *Pipeline) persistResult(ctx context.Context, jobID, fingerprint, scope string, result *models.StageResult) error {
	result.JobID = jobID
	result.Fingerprint = fingerprint
	result.Scope = scope
	if _, err := p.repo.AppendStageResult(ctx, result); err != nil {
		return errors.Wrapf(err, "failed to persist %s stage result", result.Stage)
	}
	return nil
}

// recordReuse appends a copy of a prior run's result under the current job
// so mid-run inspection shows all completed stages, preserving the original
// provider and fallback metadata.
func (p *Pipeline) recordReuse(ctx context.Context, jobID string, prior *models.StageResult) error {
	reused := *prior
	reused.ID = 0
	reused.JobID = jobID
	reused.Message = "reused artifacts"
	if _, err := p.repo.AppendStageResult(ctx, &reused); err != nil {
		return errors.Wrapf(err, "failed to record reused %s stage result", prior.Stage)
	}
	return nil
}

func (p *Pipeline) checkCancelled(ctx context.Context, jobID string) error {
	cancelled, err := p.repo.IsCancelled(ctx, jobID)
	if err != nil {
		return errors.Wrap(err, "failed to read cancellation flag")
	}
	if cancelled {
		return ErrCancelled
	}
	return nil
}

// fanOutTracker maps per-candidate stage completion onto the coarse job
// progress checkpoints. The reported value is the checkpoint of the last
// stage every candidate has passed, so progress stays monotonic under
// concurrent branches.
type fanOutTracker struct {
	mu       sync.Mutex
	reached  []int
	report   ProgressFunc
	reported int
}

var branchStageIndex = map[string]int{
	models.StageNarrate:    1,
	models.StageSynthesize: 2,
	models.StageSubtitle:   3,
	models.StageCompose:    4,
}

var branchCheckpoints = []int{
	progressExtracted,
	progressNarrated,
	progressSynthesized,
	progressSubtitled,
	progressComposed,
}

func newFanOutTracker(candidates int, report ProgressFunc) *fanOutTracker {
	return &fanOutTracker{
		reached: make([]int, candidates),
		report:  report,
	}
}

func (t *fanOutTracker) stageDone(candidate int, stage string) {
	idx, ok := branchStageIndex[stage]
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx > t.reached[candidate] {
		t.reached[candidate] = idx
	}
	min := t.reached[0]
	for _, r := range t.reached[1:] {
		if r < min {
			min = r
		}
	}
	checkpoint := branchCheckpoints[min]
	if checkpoint > t.reported {
		t.reported = checkpoint
		t.report(checkpoint)
	}
}
