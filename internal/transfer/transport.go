package transfer

import (
	"context"
	"io"
)

// Dialer opens independent protocol sessions. Each upload worker dials its
// own session so one stuck connection cannot block the others; the concrete
// FTP/FTPS/SFTP dialers live in the transport layer outside this engine.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one authenticated session on the remote endpoint.
type Conn interface {
	// Mkdir creates a single remote directory. Callers treat failures as
	// non-fatal: "already exists" is the common case and is swallowed.
	Mkdir(path string) error

	// Create opens the remote path for writing from offset zero, truncating
	// any existing object.
	Create(path string) (io.WriteCloser, error)

	// Append opens the remote path for writing at its current end
	// (FTP APPE, SFTP open+seek-to-end).
	Append(path string) (io.WriteCloser, error)

	// Size returns the remote object's size, or 0 when it does not exist.
	Size(path string) (int64, error)

	Close() error
}

// ResumeLedger is the slice of the resume session the orchestrator consults.
// *resume.TransferSession satisfies it.
type ResumeLedger interface {
	// Offset returns the recorded byte offset for a resumable path, 0 otherwise.
	Offset(path string) int64
	UpdateProgress(path string, transferred int64)
	MarkCompleted(path string)
	MarkFailed(path string)
}
