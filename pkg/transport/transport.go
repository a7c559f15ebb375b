// Package transport defines the execution channel abstraction used to apply
// modules against a host, either in-process or over SSH.
package transport

import (
	"context"
	"io/fs"
	"time"
)

// Channel is an authenticated remote-execution channel for a single host.
// Implementations must be safe for sequential use; drover never runs two
// operations on the same channel concurrently.
type Channel interface {
	// Run executes a shell command on the host. A non-zero exit status is
	// reported through ExecResult.ExitCode, not through err; err is reserved
	// for failures to run the command at all (lost connection, session
	// setup, context expiry).
	Run(ctx context.Context, cmd string) (ExecResult, error)

	// ReadFile returns the content of a file on the host. A missing file is
	// reported with an error satisfying errors.Is(err, fs.ErrNotExist).
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the content of a file on the host, creating it if
	// necessary.
	WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error

	// Close releases the channel and its underlying connection.
	Close() error
}

// ExecResult is the outcome of a single command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Ok reports whether the command exited zero.
func (r ExecResult) Ok() bool { return r.ExitCode == 0 }

// Error classifies a transport-level failure.
type Error struct {
	// Op is the operation that failed (e.g. "dial", "run", "read-file").
	Op string

	// Host is the host the operation targeted.
	Host string

	// Err is the underlying error.
	Err error

	// IsTemporary marks errors that could succeed on a later attempt.
	IsTemporary bool

	// IsAuthError marks authentication rejections.
	IsAuthError bool
}

func (e *Error) Error() string {
	if e.Host != "" {
		return e.Op + " " + e.Host + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Temporary() bool { return e.IsTemporary }
