package run

import (
	"errors"
	"fmt"

	"github.com/droverhq/drover/pkg/modules"
	"github.com/droverhq/drover/pkg/transport"
)

// Kind classifies a failure for reporting and exit behavior.
type Kind string

const (
	// KindParse is a malformed inventory or play. Fatal before any host runs.
	KindParse Kind = "parse"

	// KindConnection is an unreachable or auth-rejected host. Per-host; the
	// rest of the run continues.
	KindConnection Kind = "connection"

	// KindModuleParam is a task whose params violate the module schema.
	// Fatal for the host's remaining tasks.
	KindModuleParam Kind = "module-param"

	// KindExecution is a module-specific failure (package not found, command
	// exited non-zero). Fatal for the host's remaining tasks.
	KindExecution Kind = "execution"

	// KindNoMatch is a text-replace pattern that matched nothing.
	KindNoMatch Kind = "no-match"
)

// ParseError marks inventory/play loading or resolution failures.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps a loader error into the parse class.
func NewParseError(err error) *ParseError { return &ParseError{Err: err} }

// IsParseError reports whether err is a parse-class failure.
func IsParseError(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// Classify maps an error from any layer onto the failure taxonomy.
func Classify(err error) Kind {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	var paramErr *modules.ParamError
	if errors.As(err, &paramErr) {
		return KindModuleParam
	}

	var noMatch *modules.NoMatchError
	if errors.As(err, &noMatch) {
		return KindNoMatch
	}

	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		if transportErr.Op == "dial" || transportErr.IsAuthError {
			return KindConnection
		}
		return KindExecution
	}

	return KindExecution
}
