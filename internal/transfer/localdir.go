package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploysync/deploysync/internal/utils"
)

// LocalDirDialer mirrors uploads into a local directory. It backs the
// `--protocol local` dev path and the engine tests; production FTP/FTPS/SFTP
// dialers are supplied by the transport layer.
type LocalDirDialer struct {
	Root string
}

func NewLocalDirDialer(root string) *LocalDirDialer {
	return &LocalDirDialer{Root: root}
}

func (d *LocalDirDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(d.Root); err != nil {
		return nil, err
	}
	return &localDirConn{root: d.Root}, nil
}

type localDirConn struct {
	root string
}

func (c *localDirConn) abs(remotePath string) string {
	rel := strings.TrimPrefix(remotePath, "/")
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

func (c *localDirConn) Mkdir(path string) error {
	return os.Mkdir(c.abs(path), 0o755)
}

func (c *localDirConn) Create(path string) (io.WriteCloser, error) {
	if err := utils.EnsureParent(c.abs(path)); err != nil {
		return nil, err
	}
	return os.Create(c.abs(path))
}

func (c *localDirConn) Append(path string) (io.WriteCloser, error) {
	return os.OpenFile(c.abs(path), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

func (c *localDirConn) Size(path string) (int64, error) {
	info, err := os.Stat(c.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

func (c *localDirConn) Close() error {
	return nil
}
