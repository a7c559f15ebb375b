// Package local provides an in-process execution channel for hosts managed
// on the control machine itself.
package local

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/droverhq/drover/pkg/transport"
)

// Channel executes commands and file operations directly on the local
// machine.
type Channel struct{}

// New returns a local execution channel.
func New() *Channel { return &Channel{} }

// Run executes cmd through the system shell.
func (c *Channel) Run(ctx context.Context, cmd string) (transport.ExecResult, error) {
	start := time.Now()

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	result := transport.ExecResult{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return result, &transport.Error{Op: "run", Err: err, IsTemporary: true}
	}

	return result, nil
}

// ReadFile returns the content of a local file.
func (c *Channel) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &transport.Error{Op: "read-file", Err: err}
	}
	return data, nil
}

// WriteFile replaces the content of a local file.
func (c *Channel) WriteFile(_ context.Context, path string, data []byte, mode fs.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return &transport.Error{Op: "write-file", Err: err}
	}
	return nil
}

// Close is a no-op for local channels.
func (c *Channel) Close() error { return nil }
