package history

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/deploysync/deploysync/internal/utils"
)

// RestoreSnapshot copies each matching file's backup into targetPath and
// returns the relative paths actually restored. subset entries are doublestar
// glob patterns (a literal path matches itself); nil restores everything.
// Files without a usable backup are skipped silently; restore is not atomic.
func RestoreSnapshot(snapshot *SyncSnapshot, targetPath string, subset []string) ([]string, error) {
	if err := utils.EnsureDir(targetPath); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	restored := []string{}
	for _, fv := range snapshot.Files {
		if !matchesSubset(fv.Path, subset) {
			continue
		}
		if fv.BackupPath == "" || !utils.FileExists(fv.BackupPath) {
			continue
		}

		dst := filepath.Join(targetPath, filepath.FromSlash(fv.Path))
		if err := utils.CopyFile(fv.BackupPath, dst); err != nil {
			return restored, fmt.Errorf("restore %s: %w", fv.Path, err)
		}
		restored = append(restored, fv.Path)
	}

	slog.Info("snapshot restore", "snapshot", snapshot.ID, "restored", len(restored), "target", targetPath)
	return restored, nil
}

func matchesSubset(rel string, subset []string) bool {
	if len(subset) == 0 {
		return true
	}
	for _, pattern := range subset {
		if rel == pattern {
			return true
		}
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
