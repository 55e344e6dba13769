package history

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/deploysync/deploysync/internal/ignore"
	"github.com/deploysync/deploysync/internal/utils"
)

// CreateSnapshot walks localPath once, hashing every tracked file. When
// backupDir is non-empty each file is also copied to
// {backupDir}/{snapshotID}/{rel}; a file whose copy fails is still recorded,
// just without a backup path. This walk is independent of the delta analyzer.
func CreateSnapshot(ctx context.Context, projectID, localPath, backupDir, message string) (*SyncSnapshot, error) {
	if !utils.DirExists(localPath) {
		return nil, fmt.Errorf("local path does not exist: %s", localPath)
	}

	snapshotID := uuid.NewString()
	ignoreList := ignore.NewList(localPath)

	var files []FileVersion
	var totalSize int64

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		rel = utils.NormalizeRel(rel)

		if ignoreList.ShouldIgnore(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("snapshot skip", "path", rel, "error", err)
			return nil
		}

		hash, err := utils.FileHash(path)
		if err != nil {
			slog.Warn("snapshot skip", "path", rel, "error", err)
			return nil
		}

		backupPath := ""
		if backupDir != "" {
			dst := filepath.Join(backupDir, snapshotID, filepath.FromSlash(rel))
			if err := utils.CopyFile(path, dst); err != nil {
				slog.Warn("snapshot backup failed", "path", rel, "error", err)
			} else {
				backupPath = dst
			}
		}

		totalSize += info.Size()
		files = append(files, FileVersion{
			ID:         uuid.NewString(),
			Path:       rel,
			Hash:       hash,
			Size:       info.Size(),
			Modified:   info.ModTime().UTC(),
			SyncID:     snapshotID,
			BackupPath: backupPath,
		})
		return nil
	}

	if err := filepath.WalkDir(localPath, walkFn); err != nil {
		return nil, err
	}

	return &SyncSnapshot{
		ID:         snapshotID,
		ProjectID:  projectID,
		Timestamp:  time.Now().UTC(),
		Files:      files,
		TotalSize:  totalSize,
		FilesCount: len(files),
		Message:    message,
	}, nil
}
