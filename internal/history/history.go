package history

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/deploysync/deploysync/internal/jsonstore"
)

// DefaultMaxSnapshots caps retained snapshots per project.
const DefaultMaxSnapshots = 10

// ProjectVersionHistory holds a project's snapshots, oldest first.
// Invariant: len(Snapshots) <= MaxSnapshots; eviction deletes the snapshot's
// backup files before dropping the metadata so the two never diverge.
type ProjectVersionHistory struct {
	ProjectID    string         `json:"project_id"`
	Snapshots    []SyncSnapshot `json:"snapshots"`
	MaxSnapshots int            `json:"max_snapshots"`
}

func NewProjectVersionHistory(projectID string) *ProjectVersionHistory {
	return &ProjectVersionHistory{
		ProjectID:    projectID,
		MaxSnapshots: DefaultMaxSnapshots,
	}
}

// AddSnapshot appends and enforces the retention cap.
func (h *ProjectVersionHistory) AddSnapshot(snapshot SyncSnapshot) {
	h.Snapshots = append(h.Snapshots, snapshot)

	for len(h.Snapshots) > h.MaxSnapshots {
		evicted := h.Snapshots[0]
		h.Snapshots = h.Snapshots[1:]

		if root := backupRoot(&evicted); root != "" {
			if err := os.RemoveAll(root); err != nil {
				slog.Warn("evict backup remove", "snapshot", evicted.ID, "path", root, "error", err)
			}
			continue
		}
		for _, f := range evicted.Files {
			if f.BackupPath == "" {
				continue
			}
			if err := os.Remove(f.BackupPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("evict backup remove", "snapshot", evicted.ID, "path", f.BackupPath, "error", err)
			}
		}
	}
}

// backupRoot locates the snapshot's {backups}/{project}/{snapshotID} directory
// by ascending from any recorded backup path, so eviction can drop the whole
// tree including nested subdirectories.
func backupRoot(s *SyncSnapshot) string {
	for _, f := range s.Files {
		if f.BackupPath == "" {
			continue
		}
		dir := filepath.Dir(f.BackupPath)
		for dir != "." && dir != string(filepath.Separator) {
			if filepath.Base(dir) == s.ID {
				return dir
			}
			dir = filepath.Dir(dir)
		}
	}
	return ""
}

func (h *ProjectVersionHistory) GetSnapshot(id string) *SyncSnapshot {
	for i := range h.Snapshots {
		if h.Snapshots[i].ID == id {
			return &h.Snapshots[i]
		}
	}
	return nil
}

func (h *ProjectVersionHistory) Latest() *SyncSnapshot {
	if len(h.Snapshots) == 0 {
		return nil
	}
	return &h.Snapshots[len(h.Snapshots)-1]
}

func (h *ProjectVersionHistory) List() []SnapshotSummary {
	summaries := make([]SnapshotSummary, 0, len(h.Snapshots))
	for _, s := range h.Snapshots {
		summaries = append(summaries, SnapshotSummary{
			ID:         s.ID,
			Timestamp:  s.Timestamp,
			FilesCount: s.FilesCount,
			TotalSize:  s.TotalSize,
			Message:    s.Message,
		})
	}
	return summaries
}

// Store persists one history document per project under {dir}/{projectID}.json
// with paired backup trees under {backupsDir}/{projectID}/{snapshotID}/...
type Store struct {
	dir        string
	backupsDir string
}

func NewStore(dir, backupsDir string) *Store {
	return &Store{dir: dir, backupsDir: backupsDir}
}

func (s *Store) Path(projectID string) string {
	return filepath.Join(s.dir, projectID+".json")
}

// BackupDir returns the backup root for a project.
func (s *Store) BackupDir(projectID string) string {
	return filepath.Join(s.backupsDir, projectID)
}

func (s *Store) Load(projectID string) (*ProjectVersionHistory, error) {
	history := NewProjectVersionHistory(projectID)
	if _, err := jsonstore.Load(s.Path(projectID), history); err != nil {
		return nil, err
	}
	if history.MaxSnapshots <= 0 {
		history.MaxSnapshots = DefaultMaxSnapshots
	}
	return history, nil
}

func (s *Store) Save(history *ProjectVersionHistory) error {
	return jsonstore.Save(s.Path(history.ProjectID), history)
}
