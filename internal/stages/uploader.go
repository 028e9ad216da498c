package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/shorts-engine/internal/models"
	"github.com/clipforge/shorts-engine/internal/remote"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

// UploadInput pushes final videos back to the remote store.
type UploadInput struct {
	ClipID     string
	SourcePath string
	VideoPaths []string
	Date       time.Time
}

// Uploader stores composed videos in a dated result folder named
// deterministically from the source file name, reusing the folder on
// re-runs instead of duplicating it.
type Uploader struct {
	store  remote.Store
	logger logger.Logger
}

func NewUploader(store remote.Store, log logger.Logger) *Uploader {
	return &Uploader{store: store, logger: log}
}

func (u *Uploader) Run(ctx context.Context, input UploadInput) (*models.StageResult, error) {
	if len(input.VideoPaths) == 0 {
		return nil, NewInvalidInput(models.StageUpload, "no videos to upload")
	}
	start := time.Now()

	folderName := ResultFolderName(input.SourcePath, input.Date)
	folder, err := u.store.CreateFolder(ctx, folderName, "")
	if err != nil {
		return nil, NewTransient(models.StageUpload, "failed to create result folder", err)
	}

	// A re-run reuses the folder, so skip anything already there.
	existing := map[string]string{}
	if files, err := u.store.List(ctx, folder.ID, ""); err == nil {
		for _, f := range files {
			if !f.IsFolder {
				existing[f.Name] = f.ID
			}
		}
	}

	uploaded := make([]string, 0, len(input.VideoPaths))
	for _, videoPath := range input.VideoPaths {
		name := filepath.Base(videoPath)
		if id, ok := existing[name]; ok {
			u.logger.Infof("skipping %s, already present in %s", name, folder.ID)
			uploaded = append(uploaded, id)
			continue
		}
		file, err := u.store.Upload(ctx, videoPath, name, folder.ID)
		if err != nil {
			return nil, NewTransient(models.StageUpload, fmt.Sprintf("failed to upload %s", name), err)
		}
		uploaded = append(uploaded, file.ID)
	}

	for _, id := range uploaded {
		if url, err := u.store.PresignGet(ctx, id); err == nil {
			u.logger.Infof("result available: %s", url)
		}
	}
	u.logger.Infof("uploaded %d videos to %s", len(uploaded), folder.ID)

	return &models.StageResult{
		Stage:         models.StageUpload,
		ArtifactPaths: uploaded,
		Provider:      "remote-store",
		DurationMS:    time.Since(start).Milliseconds(),
		Success:       true,
	}, nil
}

// ResultFolderName derives the deterministic dated folder for a source.
func ResultFolderName(sourcePath string, date time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return fmt.Sprintf("%s-%s", stem, date.UTC().Format("2006-01-02"))
}
