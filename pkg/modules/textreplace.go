package modules

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

type textReplaceParams struct {
	// Path is the file to edit.
	Path string `yaml:"path" validate:"required"`

	// Pattern is a regular expression selecting the line to replace.
	Pattern string `yaml:"pattern" validate:"required"`

	// Line is the full replacement line.
	Line string `yaml:"line" validate:"required"`
}

// TextReplace replaces the first line matching a pattern wholesale. A line
// already equal to the replacement counts as converged even when the
// pattern no longer matches it, so a replaced file stays ok on re-runs. A
// pattern that matches nothing (and no converged line exists) is a
// NoMatchError.
type TextReplace struct {
	path    string
	pattern *regexp.Regexp
	line    string

	// newContent is the rewritten file computed by Diff.
	newContent []byte
	mode       fs.FileMode
}

func buildTextReplace(task playbook.Task) (*TextReplace, error) {
	var p textReplaceParams
	if err := decodeParams(task, &p); err != nil {
		return nil, err
	}
	pattern, err := regexp.Compile(p.Pattern)
	if err != nil {
		return nil, &ParamError{Module: task.Module, Err: fmt.Errorf("invalid pattern: %w", err)}
	}
	return &TextReplace{path: p.Path, pattern: pattern, line: p.Line, mode: 0o644}, nil
}

// Type implements Module.
func (m *TextReplace) Type() playbook.ModuleType { return playbook.ModuleTextReplace }

// Diff locates the target line and computes the rewritten file.
func (m *TextReplace) Diff(ctx context.Context, ch transport.Channel) (Action, error) {
	current, err := ch.ReadFile(ctx, m.path)
	if err != nil {
		return Action{}, err
	}

	lines := strings.Split(string(current), "\n")
	for i, line := range lines {
		if line == m.line {
			return Action{Changed: false, Reason: m.path + " already replaced"}, nil
		}
		if m.pattern.MatchString(line) {
			lines[i] = m.line
			m.newContent = []byte(strings.Join(lines, "\n"))
			return Action{Changed: true, Reason: fmt.Sprintf("replace line %d of %s", i+1, m.path)}, nil
		}
	}

	return Action{}, &NoMatchError{Path: m.path, Pattern: m.pattern.String()}
}

// Apply writes the rewritten file computed by Diff.
func (m *TextReplace) Apply(ctx context.Context, ch transport.Channel, _ Action) error {
	return ch.WriteFile(ctx, m.path, m.newContent, m.mode)
}
