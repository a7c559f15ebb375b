package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

type serviceParams struct {
	// Name is the systemd unit to manage.
	Name string `yaml:"name" validate:"required"`

	// State is the desired run state (running or stopped).
	State string `yaml:"state,omitempty" validate:"omitempty,oneof=running stopped"`

	// Enabled controls whether the unit starts at boot. Nil leaves the
	// enablement untouched.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// Service ensures a systemd unit is in the requested run and enablement
// state, reporting changed only when a state transition was needed.
type Service struct {
	name    string
	state   string
	enabled *bool

	// Transitions computed by Diff for Apply to perform.
	needState  bool
	needEnable bool
}

func buildService(task playbook.Task) (*Service, error) {
	var p serviceParams
	if err := decodeParams(task, &p); err != nil {
		return nil, err
	}
	if p.State == "" && p.Enabled == nil {
		return nil, &ParamError{Module: task.Module, Err: fmt.Errorf("state or enabled is required")}
	}
	return &Service{name: p.Name, state: p.State, enabled: p.Enabled}, nil
}

// Type implements Module.
func (m *Service) Type() playbook.ModuleType { return playbook.ModuleService }

// Diff probes systemctl for the unit's current state and records which
// transitions Apply must perform.
func (m *Service) Diff(ctx context.Context, ch transport.Channel) (Action, error) {
	var reasons []string

	if m.state != "" {
		res, err := ch.Run(ctx, "systemctl is-active "+shellQuote(m.name))
		if err != nil {
			return Action{}, err
		}
		active := res.Ok()
		wantActive := m.state == "running"
		if active != wantActive {
			m.needState = true
			if wantActive {
				reasons = append(reasons, "start "+m.name)
			} else {
				reasons = append(reasons, "stop "+m.name)
			}
		}
	}

	if m.enabled != nil {
		res, err := ch.Run(ctx, "systemctl is-enabled "+shellQuote(m.name))
		if err != nil {
			return Action{}, err
		}
		enabled := res.Ok() && strings.TrimSpace(res.Stdout) == "enabled"
		if enabled != *m.enabled {
			m.needEnable = true
			if *m.enabled {
				reasons = append(reasons, "enable "+m.name)
			} else {
				reasons = append(reasons, "disable "+m.name)
			}
		}
	}

	if len(reasons) == 0 {
		return Action{Changed: false, Reason: m.name + " already in desired state"}, nil
	}
	return Action{Changed: true, Reason: strings.Join(reasons, ", ")}, nil
}

// Apply performs the transitions recorded by Diff.
func (m *Service) Apply(ctx context.Context, ch transport.Channel, _ Action) error {
	if m.needState {
		verb := "start"
		if m.state == "stopped" {
			verb = "stop"
		}
		if err := m.systemctl(ctx, ch, verb); err != nil {
			return err
		}
	}
	if m.needEnable {
		verb := "enable"
		if m.enabled != nil && !*m.enabled {
			verb = "disable"
		}
		if err := m.systemctl(ctx, ch, verb); err != nil {
			return err
		}
	}
	return nil
}

func (m *Service) systemctl(ctx context.Context, ch transport.Channel, verb string) error {
	res, err := ch.Run(ctx, "systemctl "+verb+" "+shellQuote(m.name))
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("systemctl %s %s exited %d: %s", verb, m.name, res.ExitCode, firstLine(res.Stderr))
	}
	return nil
}
