package run

import (
	"time"

	"github.com/droverhq/drover/pkg/playbook"
)

// TaskStatus is the outcome of applying one task to one host.
type TaskStatus string

const (
	// StatusChanged means the task converged the host with an effect.
	StatusChanged TaskStatus = "changed"

	// StatusOK means the host already matched the desired state.
	StatusOK TaskStatus = "ok"

	// StatusFailed means the task could not be applied.
	StatusFailed TaskStatus = "failed"

	// StatusSkipped means an earlier failure halted the host's sequence.
	StatusSkipped TaskStatus = "skipped"
)

// HostState is the per-host execution state machine.
type HostState string

const (
	// HostPending means the host has not started yet.
	HostPending HostState = "pending"

	// HostRunning means the host's task sequence is executing.
	HostRunning HostState = "running"

	// HostCompleted means every task (and pending handler) succeeded.
	HostCompleted HostState = "completed"

	// HostFailed means connection or a task failed on the host.
	HostFailed HostState = "failed"
)

// TaskResult records the outcome of one (host, task) application.
type TaskResult struct {
	Task     string              `json:"task"`
	Module   playbook.ModuleType `json:"module"`
	Status   TaskStatus          `json:"status"`
	Reason   string              `json:"reason,omitempty"`
	Error    string              `json:"error,omitempty"`
	Kind     Kind                `json:"error_kind,omitempty"`
	Handler  bool                `json:"handler,omitempty"`
	Duration time.Duration       `json:"duration"`

	// Err is the underlying failure, kept for programmatic inspection.
	Err error `json:"-"`
}

// HostReport aggregates a host's results.
type HostReport struct {
	Host    string       `json:"host"`
	State   HostState    `json:"state"`
	Results []TaskResult `json:"results"`

	// Error is set when the host failed before any task ran (connection).
	Error string `json:"error,omitempty"`
	Kind  Kind   `json:"error_kind,omitempty"`

	Err error `json:"-"`
}

// Changed counts the host's changed results.
func (h *HostReport) Changed() int {
	n := 0
	for _, r := range h.Results {
		if r.Status == StatusChanged {
			n++
		}
	}
	return n
}

// Report is the full outcome of one play run.
type Report struct {
	ID        string        `json:"id"`
	Play      string        `json:"play"`
	DryRun    bool          `json:"dry_run,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Hosts     []HostReport  `json:"hosts"`
}

// Failed reports whether any host failed to complete.
func (r *Report) Failed() bool {
	for _, h := range r.Hosts {
		if h.State != HostCompleted {
			return true
		}
	}
	return false
}

// FailedHosts returns the names of hosts that did not complete.
func (r *Report) FailedHosts() []string {
	var names []string
	for _, h := range r.Hosts {
		if h.State != HostCompleted {
			names = append(names, h.Host)
		}
	}
	return names
}
