// Package playbook loads the declarative play applied to a host group: an
// ordered task sequence plus the handlers tasks may notify.
package playbook

import (
	"gopkg.in/yaml.v3"
)

// ModuleType enumerates the supported task modules.
type ModuleType string

const (
	// ModulePackage ensures a package is installed.
	ModulePackage ModuleType = "package"

	// ModuleCommand runs an arbitrary command. Always reported as changed;
	// the module has no way to introspect idempotence.
	ModuleCommand ModuleType = "command"

	// ModuleFileWrite writes literal content to a destination path.
	ModuleFileWrite ModuleType = "file-write"

	// ModuleService ensures a service is running and/or enabled.
	ModuleService ModuleType = "service"

	// ModuleTextReplace replaces the first line matching a pattern.
	ModuleTextReplace ModuleType = "text-replace"
)

// Task is one declarative operation in a play.
type Task struct {
	// Name labels the task in reports and logs.
	Name string `yaml:"name" validate:"required"`

	// Module selects the operation type.
	Module ModuleType `yaml:"module" validate:"required,oneof=package command file-write service text-replace"`

	// Params holds the module-specific parameters, decoded lazily into the
	// module's typed parameter struct.
	Params yaml.Node `yaml:"params"`

	// Notify names a handler to fire if this task reports changed.
	Notify string `yaml:"notify,omitempty"`
}

// Handler is a task that fires at most once per host per run, after the
// host's task sequence completes, when notified by a changed task.
type Handler struct {
	// Name is the notify target.
	Name string

	// Task is the handler body.
	Task Task
}

// Play targets a host group with an ordered task sequence.
type Play struct {
	// Name labels the play.
	Name string `yaml:"name" validate:"required"`

	// Targets is the inventory group the play applies to.
	Targets string `yaml:"targets" validate:"required"`

	// Become elevates privileges (sudo) for every task on the host.
	Become bool `yaml:"become,omitempty"`

	// Tasks is the ordered task sequence.
	Tasks []Task `yaml:"tasks" validate:"required,min=1,dive"`

	// Handlers maps notify targets to handler bodies.
	Handlers map[string]Task `yaml:"handlers,omitempty" validate:"omitempty,dive"`
}

// Handler resolves a notify target to its handler.
func (p *Play) Handler(name string) (Handler, bool) {
	task, ok := p.Handlers[name]
	if !ok {
		return Handler{}, false
	}
	return Handler{Name: name, Task: task}, true
}
