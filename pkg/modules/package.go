package modules

import (
	"context"
	"fmt"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

type packageParams struct {
	// Name is the package to ensure present.
	Name string `yaml:"name" validate:"required"`
}

// Package ensures a named package is installed via the system package
// manager. Installed packages are left untouched, so repeated applies
// converge to ok.
type Package struct {
	name string
}

func buildPackage(task playbook.Task) (*Package, error) {
	var p packageParams
	if err := decodeParams(task, &p); err != nil {
		return nil, err
	}
	return &Package{name: p.Name}, nil
}

// Type implements Module.
func (m *Package) Type() playbook.ModuleType { return playbook.ModulePackage }

// Diff probes the package database for the package's installed version.
func (m *Package) Diff(ctx context.Context, ch transport.Channel) (Action, error) {
	res, err := ch.Run(ctx, "dpkg-query -W -f='${Version}' "+shellQuote(m.name))
	if err != nil {
		return Action{}, err
	}
	if res.Ok() {
		return Action{Changed: false, Reason: fmt.Sprintf("%s %s already installed", m.name, res.Stdout)}, nil
	}
	return Action{Changed: true, Reason: "install " + m.name}, nil
}

// Apply installs the package.
func (m *Package) Apply(ctx context.Context, ch transport.Channel, _ Action) error {
	cmd := "DEBIAN_FRONTEND=noninteractive apt-get install -y " + shellQuote(m.name)
	res, err := ch.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("apt-get install %s exited %d: %s", m.name, res.ExitCode, firstLine(res.Stderr))
	}
	return nil
}
