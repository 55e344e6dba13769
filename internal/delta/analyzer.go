package delta

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deploysync/deploysync/internal/ignore"
	"github.com/deploysync/deploysync/internal/utils"
)

// memoized signatures are reused across passes while size and mtime hold
const memoSize = 4096

type memoEntry struct {
	sig   *FileSignature
	size  int64
	mtime time.Time
}

// Analyzer walks a project tree and classifies every file against the
// signature cache.
type Analyzer struct {
	store *CacheStore
	memo  *lru.Cache[string, memoEntry]
}

func NewAnalyzer(store *CacheStore) *Analyzer {
	memo, _ := lru.New[string, memoEntry](memoSize)
	return &Analyzer{store: store, memo: memo}
}

func (a *Analyzer) Store() *CacheStore {
	return a.store
}

// signatureFor generates (or reuses) the live signature for a file.
func (a *Analyzer) signatureFor(filePath, rel string, info fs.FileInfo) (*FileSignature, error) {
	if entry, ok := a.memo.Get(filePath); ok {
		if entry.size == info.Size() && entry.mtime.Equal(info.ModTime()) {
			return entry.sig, nil
		}
	}

	sig, err := GenerateSignature(filePath, rel)
	if err != nil {
		return nil, err
	}
	a.memo.Add(filePath, memoEntry{sig: sig, size: info.Size(), mtime: info.ModTime()})
	return sig, nil
}

// AnalyzeTree walks root, producing one delta per tracked file plus synthetic
// Deleted deltas for cached paths no longer on disk. Per-file I/O errors are
// logged and the file skipped; only walk-level failures abort the pass.
func (a *Analyzer) AnalyzeTree(ctx context.Context, root string, cache *SignatureCache) ([]*FileDelta, error) {
	ignoreList := ignore.NewList(root)
	seen := make(map[string]struct{})
	var deltas []*FileDelta

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

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = utils.NormalizeRel(rel)

		if ignoreList.ShouldIgnore(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("delta analyze skip", "path", rel, "error", err)
			return nil
		}

		live, err := a.signatureFor(path, rel, info)
		if err != nil {
			slog.Warn("delta analyze skip", "path", rel, "error", err)
			return nil
		}

		seen[rel] = struct{}{}
		deltas = append(deltas, CompareSignatures(live, cache.Get(rel)))
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}

	// cached paths missing on disk
	for rel := range cache.Signatures {
		if _, ok := seen[rel]; ok {
			continue
		}
		if !utils.FileExists(filepath.Join(root, filepath.FromSlash(rel))) {
			deltas = append(deltas, DeletedDelta(rel))
		}
	}

	return deltas, nil
}

// UpdateCacheAfterSync regenerates signatures only for the paths actually
// touched by a sync, removes entries for paths gone from disk, and persists
// the cache. Cost stays proportional to the synced set, not the whole tree.
func (a *Analyzer) UpdateCacheAfterSync(cache *SignatureCache, root string, syncedPaths []string) error {
	for _, rel := range syncedPaths {
		fullPath := filepath.Join(root, filepath.FromSlash(rel))

		info, err := os.Stat(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				cache.Remove(rel)
				continue
			}
			slog.Warn("cache update skip", "path", rel, "error", err)
			continue
		}

		sig, err := a.signatureFor(fullPath, rel, info)
		if err != nil {
			slog.Warn("cache update skip", "path", rel, "error", err)
			continue
		}
		cache.Set(sig)
	}

	return a.store.Save(cache)
}
