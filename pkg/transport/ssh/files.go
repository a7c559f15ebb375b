package ssh

import (
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/pkg/sftp"

	"github.com/droverhq/drover/pkg/transport"
)

// ReadFile returns the content of a remote file via SFTP.
func (c *Channel) ReadFile(ctx context.Context, path string) ([]byte, error) {
	sftpClient, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, &transport.Error{Op: "read-file", Host: c.config.Host, Err: err, IsTemporary: true}
	}
	defer sftpClient.Close()

	if err := ctx.Err(); err != nil {
		return nil, &transport.Error{Op: "read-file", Host: c.config.Host, Err: err, IsTemporary: true}
	}

	f, err := sftpClient.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fs.ErrNotExist
		}
		return nil, &transport.Error{Op: "read-file", Host: c.config.Host, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &transport.Error{Op: "read-file", Host: c.config.Host, Err: err}
	}
	return data, nil
}

// WriteFile replaces the content of a remote file via SFTP.
func (c *Channel) WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error {
	sftpClient, err := sftp.NewClient(c.client)
	if err != nil {
		return &transport.Error{Op: "write-file", Host: c.config.Host, Err: err, IsTemporary: true}
	}
	defer sftpClient.Close()

	if err := ctx.Err(); err != nil {
		return &transport.Error{Op: "write-file", Host: c.config.Host, Err: err, IsTemporary: true}
	}

	f, err := sftpClient.Create(path)
	if err != nil {
		return &transport.Error{Op: "write-file", Host: c.config.Host, Err: err}
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return &transport.Error{Op: "write-file", Host: c.config.Host, Err: err}
	}
	if err := f.Close(); err != nil {
		return &transport.Error{Op: "write-file", Host: c.config.Host, Err: err}
	}

	if err := sftpClient.Chmod(path, mode); err != nil {
		return &transport.Error{Op: "write-file", Host: c.config.Host, Err: err}
	}
	return nil
}
