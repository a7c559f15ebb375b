package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"text/template"
	"time"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

type fileWriteParams struct {
	// Path is the destination file on the host.
	Path string `yaml:"path" validate:"required"`

	// Content is the literal content to write. It may use the template
	// functions `timestamp` and `host`.
	Content string `yaml:"content"`

	// Mode is the octal file mode (default 0644).
	Mode string `yaml:"mode,omitempty" validate:"omitempty,len=4"`
}

// FileWrite writes literal content to a destination path, touching the file
// only when its current content differs.
type FileWrite struct {
	path    string
	content []byte
	mode    fs.FileMode
}

func buildFileWrite(task playbook.Task, host string) (*FileWrite, error) {
	var p fileWriteParams
	if err := decodeParams(task, &p); err != nil {
		return nil, err
	}

	mode := fs.FileMode(0o644)
	if p.Mode != "" {
		parsed, err := strconv.ParseUint(p.Mode, 8, 32)
		if err != nil {
			return nil, &ParamError{Module: task.Module, Err: fmt.Errorf("invalid mode %q: %w", p.Mode, err)}
		}
		mode = fs.FileMode(parsed)
	}

	content, err := renderContent(p.Content, host)
	if err != nil {
		return nil, &ParamError{Module: task.Module, Err: err}
	}

	return &FileWrite{path: p.Path, content: content, mode: mode}, nil
}

// renderContent expands the content template once per task, so Diff and
// Apply agree on the exact bytes within a run.
func renderContent(content, host string) ([]byte, error) {
	tmpl, err := template.New("content").Funcs(template.FuncMap{
		"timestamp": func() string { return time.Now().Format(time.RFC1123) },
		"host":      func() string { return host },
	}).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, fmt.Errorf("failed to render content: %w", err)
	}
	return buf.Bytes(), nil
}

// Type implements Module.
func (m *FileWrite) Type() playbook.ModuleType { return playbook.ModuleFileWrite }

// Diff compares the destination's current content against the desired
// content. A missing file counts as a pending change.
func (m *FileWrite) Diff(ctx context.Context, ch transport.Channel) (Action, error) {
	current, err := ch.ReadFile(ctx, m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Action{Changed: true, Reason: "create " + m.path}, nil
		}
		return Action{}, err
	}
	if bytes.Equal(current, m.content) {
		return Action{Changed: false, Reason: m.path + " up to date"}, nil
	}
	return Action{Changed: true, Reason: "update " + m.path}, nil
}

// Apply writes the desired content.
func (m *FileWrite) Apply(ctx context.Context, ch transport.Channel, _ Action) error {
	return ch.WriteFile(ctx, m.path, m.content, m.mode)
}
