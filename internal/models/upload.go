package models

import "time"

type UploadStatus string

const (
	UploadUploading  UploadStatus = "uploading"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadError      UploadStatus = "error"
)

// UploadTask tracks one upload. Progress is 0–100 and never decreases while uploading.
type UploadTask struct {
	ID        string       `json:"id"`
	FileName  string       `json:"fileName"`
	FilePath  string       `json:"filePath,omitempty"`
	Size      int64        `json:"size"`
	Title     string       `json:"title"`
	Status    UploadStatus `json:"status"`
	Progress  float64      `json:"progress"`
	VideoID   string       `json:"videoId,omitempty"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"startedAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Terminal reports whether the task reached completed or error.
func (t UploadTask) Terminal() bool {
	return t.Status == UploadCompleted || t.Status == UploadError
}
