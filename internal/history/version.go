// Package history keeps pre-sync snapshots of a project tree for rollback.
package history

import "time"

// FileVersion records one file's state at snapshot time. BackupPath is empty
// when no physical backup copy exists; such files cannot be restored.
type FileVersion struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	Modified   time.Time `json:"modified"`
	SyncID     string    `json:"sync_id"`
	BackupPath string    `json:"backup_path,omitempty"`
}

// SyncSnapshot is an immutable record of the whole tree at one point in time.
type SyncSnapshot struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"project_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Files      []FileVersion `json:"files"`
	TotalSize  int64         `json:"total_size"`
	FilesCount int           `json:"files_count"`
	Message    string        `json:"message,omitempty"`
}

// SnapshotSummary is the listing view of a snapshot.
type SnapshotSummary struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	FilesCount int       `json:"files_count"`
	TotalSize  int64     `json:"total_size"`
	Message    string    `json:"message,omitempty"`
}

// SnapshotDiff is the path-keyed comparison of two snapshots.
type SnapshotDiff struct {
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Deleted   []string `json:"deleted"`
	Unchanged []string `json:"unchanged"`
}
