package delta

import (
	"fmt"
	"io"
	"os"
)

type Status string

const (
	// StatusNew marks a file with no cached signature; it transfers entirely.
	StatusNew Status = "new"
	// StatusUnchanged marks a full-hash match; nothing transfers.
	StatusUnchanged Status = "unchanged"
	// StatusModified marks a chunk-level change; TransferSize counts changed chunks.
	StatusModified Status = "modified"
	// StatusSmallFile marks a file under MinDeltaFileSize; it transfers entirely.
	StatusSmallFile Status = "small_file"
	// StatusDeleted marks a cached path no longer present on disk.
	StatusDeleted Status = "deleted"
)

// FileDelta classifies one file against its cached signature. Ephemeral:
// recomputed on every analysis pass, never persisted.
type FileDelta struct {
	Path           string  `json:"path"`
	Status         Status  `json:"status"`
	TotalSize      int64   `json:"total_size"`
	TransferSize   int64   `json:"transfer_size"`
	ChangedChunks  []int   `json:"changed_chunks"`
	SavingsPercent float64 `json:"savings_percent"`
}

// NeedsTransfer reports whether the orchestrator must upload this file.
func (d *FileDelta) NeedsTransfer() bool {
	return d.Status == StatusNew || d.Status == StatusSmallFile || d.Status == StatusModified
}

// CompareSignatures derives the delta between a live signature and the cached
// one. A nil cached signature means the file is new. Files under the chunking
// threshold always re-transfer whole, even when a cached entry exists.
func CompareSignatures(live, cached *FileSignature) *FileDelta {
	if cached == nil {
		return &FileDelta{
			Path:         live.Path,
			Status:       StatusNew,
			TotalSize:    live.TotalSize,
			TransferSize: live.TotalSize,
		}
	}

	if live.TotalSize < MinDeltaFileSize {
		return &FileDelta{
			Path:         live.Path,
			Status:       StatusSmallFile,
			TotalSize:    live.TotalSize,
			TransferSize: live.TotalSize,
		}
	}

	if live.FullHash == cached.FullHash {
		return &FileDelta{
			Path:           live.Path,
			Status:         StatusUnchanged,
			TotalSize:      live.TotalSize,
			SavingsPercent: 100.0,
		}
	}

	// Chunk-by-chunk comparison by index. A live chunk with no cached
	// counterpart (file grew) counts as changed. Cached chunks past the live
	// count (file shrank) are dropped: the remote copy is truncated by the
	// full-file overwrite on upload.
	var changed []int
	var transferSize int64
	for _, chunk := range live.ChunkHashes {
		if chunk.Index >= len(cached.ChunkHashes) || cached.ChunkHashes[chunk.Index].Hash != chunk.Hash {
			changed = append(changed, chunk.Index)
			transferSize += int64(chunk.Size)
		}
	}

	var savings float64
	if live.TotalSize > 0 {
		savings = float64(live.TotalSize-transferSize) / float64(live.TotalSize) * 100.0
	}

	return &FileDelta{
		Path:           live.Path,
		Status:         StatusModified,
		TotalSize:      live.TotalSize,
		TransferSize:   transferSize,
		ChangedChunks:  changed,
		SavingsPercent: savings,
	}
}

// ComputeDelta reads the live file and classifies it against cached.
func ComputeDelta(filePath, rel string, cached *FileSignature) (*FileDelta, error) {
	live, err := GenerateSignature(filePath, rel)
	if err != nil {
		return nil, err
	}
	return CompareSignatures(live, cached), nil
}

// DeletedDelta builds the synthetic delta for a cached path missing on disk.
func DeletedDelta(rel string) *FileDelta {
	return &FileDelta{Path: rel, Status: StatusDeleted, SavingsPercent: 100.0}
}

// Chunk is one extracted byte range, keyed by its ordinal index.
type Chunk struct {
	Index int
	Data  []byte
}

// ExtractChangedChunks reads only the listed chunk indices from the file.
// This is the data a partial-chunk wire transfer would ship; the current
// orchestrator still re-sends whole files.
func ExtractChangedChunks(filePath string, indices []int) ([]Chunk, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	chunks := make([]Chunk, 0, len(indices))
	for _, idx := range indices {
		buf := make([]byte, ChunkSize)
		n, err := file.ReadAt(buf, int64(idx)*ChunkSize)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read chunk %d of %s: %w", idx, filePath, err)
		}
		if n == 0 {
			continue
		}
		chunks = append(chunks, Chunk{Index: idx, Data: buf[:n]})
	}
	return chunks, nil
}

// TransferStats aggregates an analysis pass.
type TransferStats struct {
	TotalFiles     int     `json:"total_files"`
	NewFiles       int     `json:"new_files"`
	ModifiedFiles  int     `json:"modified_files"`
	UnchangedFiles int     `json:"unchanged_files"`
	DeletedFiles   int     `json:"deleted_files"`
	TotalSize      int64   `json:"total_size"`
	TransferSize   int64   `json:"transfer_size"`
	SavingsBytes   int64   `json:"savings_bytes"`
	SavingsPercent float64 `json:"savings_percent"`
}

// ComputeStats totals the transfer cost of a delta set.
func ComputeStats(deltas []*FileDelta) TransferStats {
	var stats TransferStats
	stats.TotalFiles = len(deltas)

	for _, d := range deltas {
		switch d.Status {
		case StatusNew, StatusSmallFile:
			stats.NewFiles++
			stats.TotalSize += d.TotalSize
			stats.TransferSize += d.TransferSize
		case StatusModified:
			stats.ModifiedFiles++
			stats.TotalSize += d.TotalSize
			stats.TransferSize += d.TransferSize
		case StatusUnchanged:
			stats.UnchangedFiles++
			stats.TotalSize += d.TotalSize
		case StatusDeleted:
			stats.DeletedFiles++
		}
	}

	stats.SavingsBytes = stats.TotalSize - stats.TransferSize
	if stats.TotalSize > 0 {
		stats.SavingsPercent = float64(stats.SavingsBytes) / float64(stats.TotalSize) * 100.0
	}
	return stats
}
