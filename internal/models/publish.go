package models

import (
	"time"
)

// PublishReceipt records one successful publish to one platform. The
// title/caption/hashtags are snapshots copied at publish time so the
// publish remains reproducible from the receipt alone.
type PublishReceipt struct {
	ReceiptID  string    `json:"receipt_id" db:"receipt_id" validate:"omitempty"`
	ClipID     string    `json:"clip_id" db:"clip_id" validate:"required"`
	Platform   string    `json:"platform" db:"platform" validate:"required,lte=32"`
	ExternalID string    `json:"external_id" db:"external_id" validate:"required"`
	UploadURL  string    `json:"upload_url" db:"upload_url" validate:"omitempty"`
	ClipPath   string    `json:"clip_path" db:"clip_path" validate:"required"`
	Title      string    `json:"title,omitempty" db:"title"`
	Caption    string    `json:"caption,omitempty" db:"caption"`
	Hashtags   string    `json:"hashtags,omitempty" db:"hashtags"`
	DryRun     bool      `json:"dry_run" db:"dry_run"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// PublishInput is the contract passed to a platform adapter.
type PublishInput struct {
	ClipPath string   `json:"clip_path" validate:"required"`
	Title    string   `json:"title,omitempty" validate:"omitempty,lte=255"`
	Caption  string   `json:"caption,omitempty" validate:"omitempty,lte=2200"`
	Hashtags []string `json:"hashtags,omitempty" validate:"omitempty,dive,lte=64"`
}

// EnqueueInput is the body of a job creation request. A process-clip job may
// register its source clip inline by giving source_path (and remote_file_id
// when the source lives in the object store) instead of an existing clip_id.
type EnqueueInput struct {
	Kind         string     `json:"kind" validate:"required,oneof=process-clip publish-content"`
	ClipID       string     `json:"clip_id,omitempty" validate:"omitempty"`
	SourcePath   string     `json:"source_path,omitempty" validate:"omitempty,lte=512"`
	RemoteFileID string     `json:"remote_file_id,omitempty" validate:"omitempty,lte=512"`
	Platform     string     `json:"platform,omitempty" validate:"omitempty,lte=32"`
	Priority     int        `json:"priority,omitempty" validate:"gte=0,lte=9"`
	Force        bool       `json:"force,omitempty"`
	RunAt        *time.Time `json:"run_at,omitempty"`
}

type JobList struct {
	Jobs       []*Job `json:"jobs"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	HasMore    bool   `json:"has_more"`
}
