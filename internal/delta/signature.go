package delta

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// ChunkSize is the unit of change detection (64 KiB).
	ChunkSize = 65536

	// MinDeltaFileSize is the threshold below which chunked comparison is not
	// worth the overhead and files transfer entirely (256 KiB).
	MinDeltaFileSize = 256 * 1024
)

// ChunkHash identifies one fixed-size chunk of a file. Chunk index i always
// covers bytes [i*ChunkSize, min((i+1)*ChunkSize, total)).
type ChunkHash struct {
	Index  int    `json:"index"`
	Offset int64  `json:"offset"`
	Size   int    `json:"size"`
	Hash   string `json:"hash"`
}

// FileSignature is the cached fingerprint of a file: whole-file hash plus
// ordered chunk hashes.
type FileSignature struct {
	Path        string      `json:"path"`
	TotalSize   int64       `json:"total_size"`
	FullHash    string      `json:"full_hash"`
	ChunkSize   int         `json:"chunk_size"`
	ChunkHashes []ChunkHash `json:"chunk_hashes"`
	ModifiedAt  time.Time   `json:"modified_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

// GenerateSignature reads the file once, hashing the whole content and each
// 64 KiB chunk. rel is the forward-slash relative path recorded in the cache.
func GenerateSignature(filePath, rel string) (*FileSignature, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	fullHash := sha256.New()
	buf := make([]byte, ChunkSize)

	var chunks []ChunkHash
	var offset int64
	index := 0

	for {
		n, err := io.ReadFull(file, buf)
		if n > 0 {
			fullHash.Write(buf[:n])
			sum := sha256.Sum256(buf[:n])
			chunks = append(chunks, ChunkHash{
				Index:  index,
				Offset: offset,
				Size:   n,
				Hash:   fmt.Sprintf("%x", sum),
			})
			offset += int64(n)
			index++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filePath, err)
		}
	}

	return &FileSignature{
		Path:        rel,
		TotalSize:   info.Size(),
		FullHash:    fmt.Sprintf("%x", fullHash.Sum(nil)),
		ChunkSize:   ChunkSize,
		ChunkHashes: chunks,
		ModifiedAt:  info.ModTime().UTC(),
		CreatedAt:   time.Now().UTC(),
	}, nil
}
