package models

import (
	"time"
)

// Clip is one extracted candidate clip. Immutable once extracted; only its
// processing status changes elsewhere. Content-addressed by Fingerprint so
// re-extraction with identical source and bounds reuses the same record.
type Clip struct {
	ClipID        string    `json:"clip_id" db:"clip_id" redis:"clip_id" validate:"omitempty"`
	SourcePath    string    `json:"source_path" db:"source_path" redis:"source_path" validate:"required,lte=512"`
	LocalPath     string    `json:"local_path" db:"local_path" redis:"local_path" validate:"omitempty,lte=512"`
	RemoteFileID  string    `json:"remote_file_id,omitempty" db:"remote_file_id" redis:"remote_file_id" validate:"omitempty"`
	DurationSec   float64   `json:"duration_sec" db:"duration_sec" redis:"duration_sec" validate:"gte=0"`
	FileSizeBytes int64     `json:"file_size_bytes" db:"file_size_bytes" redis:"file_size_bytes" validate:"gte=0"`
	Fingerprint   string    `json:"fingerprint" db:"fingerprint" redis:"fingerprint" validate:"required"`
	CreatedAt     time.Time `json:"created_at" db:"created_at" redis:"created_at"`
}

// IsRemote reports whether the clip originated from the remote store,
// which decides whether the upload stage runs.
func (c *Clip) IsRemote() bool {
	return c.RemoteFileID != ""
}

type ClipList struct {
	Clips      []*Clip `json:"clips"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	HasMore    bool    `json:"has_more"`
}
