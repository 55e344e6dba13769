// Package jsonstore persists one logical document per concern as a
// pretty-printed JSON file. Documents are read-modify-written as a whole; an
// advisory file lock serializes writers across processes.
package jsonstore

import (
	"errors"
	"os"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/deploysync/deploysync/internal/syncerr"
	"github.com/deploysync/deploysync/internal/utils"
)

// Load reads the document at path into out. A missing file is not an error:
// it returns false and leaves out untouched (empty state). A document that
// exists but fails to parse is a consistency error, never a silent reset.
func Load(path string, out any) (bool, error) {
	// the lock file lives next to the document; on a fresh install neither
	// the document nor its directory exists yet
	if err := utils.EnsureParent(path); err != nil {
		return false, syncerr.New(syncerr.KindIO, path, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return false, syncerr.New(syncerr.KindIO, path, err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, syncerr.New(syncerr.KindIO, path, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, syncerr.New(syncerr.KindConsistency, path, err)
	}
	return true, nil
}

// Save writes the document atomically (temp file + rename) under the lock.
func Save(path string, v any) error {
	if err := utils.EnsureParent(path); err != nil {
		return syncerr.New(syncerr.KindIO, path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return syncerr.New(syncerr.KindIO, path, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return syncerr.New(syncerr.KindIO, path, err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return syncerr.New(syncerr.KindIO, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return syncerr.New(syncerr.KindIO, path, err)
	}
	return nil
}
