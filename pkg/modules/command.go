package modules

import (
	"context"
	"fmt"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

type commandParams struct {
	// Cmd is the shell command to run.
	Cmd string `yaml:"cmd" validate:"required"`
}

// Command runs an arbitrary shell command. The module cannot introspect
// whether the command had an effect, so it always reports changed. This is
// a known limitation of command-style tasks.
type Command struct {
	cmd string
}

func buildCommand(task playbook.Task) (*Command, error) {
	var p commandParams
	if err := decodeParams(task, &p); err != nil {
		return nil, err
	}
	return &Command{cmd: p.Cmd}, nil
}

// Type implements Module.
func (m *Command) Type() playbook.ModuleType { return playbook.ModuleCommand }

// Diff always reports a pending change; commands carry no idempotence
// information.
func (m *Command) Diff(_ context.Context, _ transport.Channel) (Action, error) {
	return Action{Changed: true, Reason: "run: " + m.cmd}, nil
}

// Apply runs the command and fails on a non-zero exit.
func (m *Command) Apply(ctx context.Context, ch transport.Channel, _ Action) error {
	res, err := ch.Run(ctx, m.cmd)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("command exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	}
	return nil
}
