// Package resume is the persisted ledger that lets an interrupted sync
// continue partial uploads from a byte offset instead of restarting.
package resume

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	StatusPending    TransferStatus = "pending"
	StatusInProgress TransferStatus = "in_progress"
	StatusPaused     TransferStatus = "paused"
	StatusCompleted  TransferStatus = "completed"
	StatusFailed     TransferStatus = "failed"
)

// Terminal reports whether the status can never transition again.
// Failed and Paused may go back to InProgress on retry; only Completed is final.
func (s TransferStatus) Terminal() bool {
	return s == StatusCompleted
}

// FileTransferState tracks one file within a session.
// Invariant: TransferredBytes <= TotalSize, and Completed implies equality.
type FileTransferState struct {
	Path             string         `json:"path"`
	LocalPath        string         `json:"local_path"`
	RemotePath       string         `json:"remote_path"`
	TotalSize        int64          `json:"total_size"`
	TransferredBytes int64          `json:"transferred_bytes"`
	Checksum         string         `json:"checksum,omitempty"`
	Status           TransferStatus `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Resumable reports whether this file is a candidate for byte-offset
// continuation: partially transferred and not completed.
func (f *FileTransferState) Resumable() bool {
	return !f.Status.Terminal() &&
		f.TransferredBytes > 0 &&
		f.TransferredBytes < f.TotalSize
}

// TransferSession is the unit of resumability: one session per sync attempt.
type TransferSession struct {
	ID        string                        `json:"id"`
	ProjectID string                        `json:"project_id"`
	StartedAt time.Time                     `json:"started_at"`
	Files     map[string]*FileTransferState `json:"files"`
	Completed bool                          `json:"completed"`
}

func NewSession(projectID string) *TransferSession {
	return &TransferSession{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		StartedAt: time.Now().UTC(),
		Files:     make(map[string]*FileTransferState),
	}
}

// AddFile registers a Pending entry. Re-adding a path resets its state.
func (s *TransferSession) AddFile(path, localPath, remotePath string, totalSize int64) {
	now := time.Now().UTC()
	s.Files[path] = &FileTransferState{
		Path:       path,
		LocalPath:  localPath,
		RemotePath: remotePath,
		TotalSize:  totalSize,
		Status:     StatusPending,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// UpdateProgress records the transferred byte offset and moves the file to
// InProgress. Unknown paths are ignored.
func (s *TransferSession) UpdateProgress(path string, transferred int64) {
	f, ok := s.Files[path]
	if !ok {
		return
	}
	if transferred > f.TotalSize {
		transferred = f.TotalSize
	}
	f.TransferredBytes = transferred
	f.Status = StatusInProgress
	f.UpdatedAt = time.Now().UTC()
}

func (s *TransferSession) MarkCompleted(path string) {
	if f, ok := s.Files[path]; ok {
		f.TransferredBytes = f.TotalSize
		f.Status = StatusCompleted
		f.UpdatedAt = time.Now().UTC()
	}
}

func (s *TransferSession) MarkFailed(path string) {
	if f, ok := s.Files[path]; ok {
		f.Status = StatusFailed
		f.UpdatedAt = time.Now().UTC()
	}
}

func (s *TransferSession) MarkPaused(path string) {
	if f, ok := s.Files[path]; ok {
		f.Status = StatusPaused
		f.UpdatedAt = time.Now().UTC()
	}
}

// ResumableFiles returns candidates for byte-offset continuation, ordered by
// path for deterministic scheduling.
func (s *TransferSession) ResumableFiles() []*FileTransferState {
	var files []*FileTransferState
	for _, f := range s.Files {
		if f.Resumable() {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// PendingFiles returns files never started plus failed ones eligible for retry.
func (s *TransferSession) PendingFiles() []*FileTransferState {
	var files []*FileTransferState
	for _, f := range s.Files {
		if f.Status == StatusPending || f.Status == StatusFailed {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// IsComplete reports whether every registered file reached Completed.
func (s *TransferSession) IsComplete() bool {
	for _, f := range s.Files {
		if f.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Offset returns the recorded byte offset for a path, or 0 when the path is
// unknown or not resumable.
func (s *TransferSession) Offset(path string) int64 {
	if f, ok := s.Files[path]; ok && f.Resumable() {
		return f.TransferredBytes
	}
	return 0
}
