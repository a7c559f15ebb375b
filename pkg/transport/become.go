package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"
)

// becomeChannel decorates a Channel with sudo privilege elevation. Commands
// are wrapped in `sudo -n`; file writes go through a staging path because
// SFTP sessions run as the login user.
type becomeChannel struct {
	ch Channel
}

// WithBecome wraps ch so every operation runs with elevated privileges.
// The remote user must hold passwordless sudo.
func WithBecome(ch Channel) Channel {
	return &becomeChannel{ch: ch}
}

func (b *becomeChannel) Run(ctx context.Context, cmd string) (ExecResult, error) {
	return b.ch.Run(ctx, "sudo -n /bin/sh -c "+quote(cmd))
}

func (b *becomeChannel) ReadFile(ctx context.Context, path string) ([]byte, error) {
	probe, err := b.ch.Run(ctx, "sudo -n test -e "+quote(path))
	if err != nil {
		return nil, err
	}
	if !probe.Ok() {
		return nil, fs.ErrNotExist
	}

	// base64 keeps the exact bytes; Run trims surrounding whitespace, which
	// would corrupt content comparisons on files with trailing newlines.
	res, err := b.ch.Run(ctx, "sudo -n cat -- "+quote(path)+" | base64")
	if err != nil {
		return nil, err
	}
	if !res.Ok() {
		return nil, &Error{Op: "read-file", Err: fmt.Errorf("sudo cat %s exited %d: %s", path, res.ExitCode, res.Stderr)}
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(res.Stdout), ""))
	if err != nil {
		return nil, &Error{Op: "read-file", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return data, nil
}

func (b *becomeChannel) WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error {
	staging := "/tmp/.drover-" + uuid.New().String()
	if err := b.ch.WriteFile(ctx, staging, data, 0o600); err != nil {
		return err
	}

	install := fmt.Sprintf("mv %s %s && chmod %04o %s", quote(staging), quote(path), mode.Perm(), quote(path))
	res, err := b.Run(ctx, install)
	if err != nil {
		_, _ = b.ch.Run(ctx, "rm -f "+quote(staging))
		return err
	}
	if !res.Ok() {
		_, _ = b.ch.Run(ctx, "rm -f "+quote(staging))
		return &Error{Op: "write-file", Err: fmt.Errorf("install %s exited %d: %s", path, res.ExitCode, res.Stderr)}
	}
	return nil
}

func (b *becomeChannel) Close() error { return b.ch.Close() }

// quote single-quotes s for the remote shell.
func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
