// Package modules implements the idempotent task modules drover can apply
// to a host: package, command, file-write, service and text-replace.
//
// Every module variant is a typed struct exposing the same capability pair:
// Diff computes the action needed to converge the host to the desired state,
// Apply performs it. A module whose Diff reports no change is never applied,
// which is what makes repeated runs converge instead of duplicating effects.
package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

// Action describes what Apply must do to converge the module's target.
type Action struct {
	// Changed is false when the host already matches the desired state.
	Changed bool

	// Reason is a human-readable summary of the pending (or absent) change.
	Reason string
}

// Module is the capability interface shared by all module variants.
type Module interface {
	// Type returns the module's declared type.
	Type() playbook.ModuleType

	// Diff inspects the host and returns the action needed to converge it.
	Diff(ctx context.Context, ch transport.Channel) (Action, error)

	// Apply performs the action computed by Diff. It is only called when
	// the action reports a change.
	Apply(ctx context.Context, ch transport.Channel, action Action) error
}

var validate = validator.New()

// Build decodes a task's parameters into the typed module for its declared
// type. host is the inventory name of the target, available to content
// templates. Schema violations are reported as *ParamError.
func Build(task playbook.Task, host string) (Module, error) {
	switch task.Module {
	case playbook.ModulePackage:
		return buildPackage(task)
	case playbook.ModuleCommand:
		return buildCommand(task)
	case playbook.ModuleFileWrite:
		return buildFileWrite(task, host)
	case playbook.ModuleService:
		return buildService(task)
	case playbook.ModuleTextReplace:
		return buildTextReplace(task)
	default:
		return nil, &ParamError{Module: task.Module, Err: fmt.Errorf("unknown module type")}
	}
}

// decodeParams decodes the raw parameter node into out and enforces the
// module's required-field schema.
func decodeParams(task playbook.Task, out any) error {
	if !task.Params.IsZero() {
		if err := task.Params.Decode(out); err != nil {
			return &ParamError{Module: task.Module, Err: err}
		}
	}
	if err := validate.Struct(out); err != nil {
		return &ParamError{Module: task.Module, Err: err}
	}
	return nil
}

// shellQuote single-quotes s for safe interpolation into a shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// firstLine trims output to its first line for compact error messages.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
