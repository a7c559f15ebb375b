// Package ssh implements the transport channel over an SSH connection, with
// SFTP for file content operations.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/droverhq/drover/pkg/transport"
)

// Channel is an SSH-backed execution channel for one host.
type Channel struct {
	config *Config
	client *ssh.Client
}

// Dial establishes an authenticated SSH connection to the configured host.
func Dial(ctx context.Context, config *Config) (*Channel, error) {
	if err := config.Validate(); err != nil {
		return nil, &transport.Error{Op: "dial", Host: config.Host, Err: err}
	}

	clientConfig, err := config.buildClientConfig()
	if err != nil {
		return nil, &transport.Error{Op: "dial", Host: config.Host, Err: err, IsAuthError: true}
	}

	connCh := make(chan *ssh.Client, 1)
	errCh := make(chan error, 1)

	go func() {
		client, dialErr := ssh.Dial("tcp", config.Address(), clientConfig)
		if dialErr != nil {
			errCh <- dialErr
			return
		}
		connCh <- client
	}()

	select {
	case <-ctx.Done():
		return nil, &transport.Error{Op: "dial", Host: config.Host, Err: ctx.Err(), IsTemporary: true}
	case dialErr := <-errCh:
		return nil, &transport.Error{
			Op:          "dial",
			Host:        config.Host,
			Err:         dialErr,
			IsTemporary: true,
			IsAuthError: strings.Contains(dialErr.Error(), "unable to authenticate"),
		}
	case client := <-connCh:
		return &Channel{config: config, client: client}, nil
	}
}

// Run executes cmd in a fresh session on the remote host.
func (c *Channel) Run(ctx context.Context, cmd string) (transport.ExecResult, error) {
	start := time.Now()

	session, err := c.client.NewSession()
	if err != nil {
		return transport.ExecResult{}, &transport.Error{
			Op:          "run",
			Host:        c.config.Host,
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		// Best-effort kill; many servers ignore signals on exec sessions,
		// closing the session tears the command down regardless.
		_ = session.Signal(ssh.SIGTERM)
		runErr = ctx.Err()
	case runErr = <-done:
	}

	result := transport.ExecResult{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, &transport.Error{Op: "run", Host: c.config.Host, Err: runErr, IsTemporary: true}
	}

	return result, nil
}

// Close terminates the SSH connection.
func (c *Channel) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil {
		return &transport.Error{Op: "close", Host: c.config.Host, Err: err}
	}
	return nil
}
