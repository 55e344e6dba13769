package history

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// CompareSnapshots is a pure set comparison keyed by relative path and
// whole-file hash. No chunking is involved.
func CompareSnapshots(old, new *SyncSnapshot) SnapshotDiff {
	oldByPath := make(map[string]string, len(old.Files))
	for _, f := range old.Files {
		oldByPath[f.Path] = f.Hash
	}
	newByPath := make(map[string]string, len(new.Files))
	for _, f := range new.Files {
		newByPath[f.Path] = f.Hash
	}

	oldPaths := mapset.NewSet[string]()
	for p := range oldByPath {
		oldPaths.Add(p)
	}
	newPaths := mapset.NewSet[string]()
	for p := range newByPath {
		newPaths.Add(p)
	}

	diff := SnapshotDiff{
		Added:   newPaths.Difference(oldPaths).ToSlice(),
		Deleted: oldPaths.Difference(newPaths).ToSlice(),
	}

	for _, p := range oldPaths.Intersect(newPaths).ToSlice() {
		if oldByPath[p] != newByPath[p] {
			diff.Modified = append(diff.Modified, p)
		} else {
			diff.Unchanged = append(diff.Unchanged, p)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Deleted)
	sort.Strings(diff.Unchanged)
	return diff
}
