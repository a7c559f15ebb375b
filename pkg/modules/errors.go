package modules

import (
	"fmt"

	"github.com/droverhq/drover/pkg/playbook"
)

// ParamError reports a task whose parameters violate the module's
// required-field schema. It is fatal for the host's remaining tasks.
type ParamError struct {
	Module playbook.ModuleType
	Err    error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s params: %v", e.Module, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// NoMatchError reports a text-replace pattern that matched no line in the
// target file.
type NoMatchError struct {
	Path    string
	Pattern string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("pattern %q matched no line in %s", e.Pattern, e.Path)
}
