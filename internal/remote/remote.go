package remote

import (
	"context"
	"time"
)

// File is one remote object or folder entry.
type File struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	IsFolder bool      `json:"is_folder"`
	Modified time.Time `json:"modified"`
}

// Store is the remote object store consumed by the pipeline: a
// content-addressed-by-name pass-through, not implemented beyond this
// contract. Folders are key prefixes.
type Store interface {
	List(ctx context.Context, folderID, query string) ([]File, error)
	Download(ctx context.Context, fileID, localPath string) (string, error)
	Upload(ctx context.Context, localPath, name, parentFolderID string) (*File, error)
	CreateFolder(ctx context.Context, name, parentID string) (*File, error)
	PresignGet(ctx context.Context, fileID string) (string, error)
}
