package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/droverhq/drover/pkg/inventory"
	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

// fakeChannel scripts command responses per host and backs file operations
// with an in-memory map. Each host gets its own instance, so no locking.
type fakeChannel struct {
	respond func(cmd string) (transport.ExecResult, error)
	files   map[string][]byte

	runs   []string
	writes []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		respond: func(string) (transport.ExecResult, error) { return transport.ExecResult{}, nil },
		files:   make(map[string][]byte),
	}
}

func (c *fakeChannel) Run(_ context.Context, cmd string) (transport.ExecResult, error) {
	c.runs = append(c.runs, cmd)
	return c.respond(cmd)
}

func (c *fakeChannel) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, ok := c.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (c *fakeChannel) WriteFile(_ context.Context, path string, data []byte, _ fs.FileMode) error {
	c.files[path] = data
	c.writes = append(c.writes, path)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

// testHarness wires a two-host inventory to per-host fake channels.
type testHarness struct {
	inv      *inventory.Inventory
	channels map[string]*fakeChannel
}

func newTestHarness(t *testing.T, hosts ...string) *testHarness {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("groups:\n  web:\n    hosts:\n")
	for _, h := range hosts {
		fmt.Fprintf(&sb, "      - name: %s\n        connection: local\n", h)
	}
	inv, err := inventory.Parse([]byte(sb.String()))
	if err != nil {
		t.Fatalf("failed to build inventory: %v", err)
	}

	channels := make(map[string]*fakeChannel, len(hosts))
	for _, h := range hosts {
		channels[h] = newFakeChannel()
	}
	return &testHarness{inv: inv, channels: channels}
}

func (h *testHarness) dialer(_ context.Context, host inventory.Host) (transport.Channel, error) {
	ch, ok := h.channels[host.Name]
	if !ok {
		return nil, fmt.Errorf("no channel for host %q", host.Name)
	}
	return ch, nil
}

func parsePlay(t *testing.T, src string) *playbook.Play {
	t.Helper()
	play, err := playbook.Parse([]byte(src))
	if err != nil {
		t.Fatalf("failed to parse play: %v", err)
	}
	return play
}

func hostReport(t *testing.T, report *Report, name string) HostReport {
	t.Helper()
	for _, h := range report.Hosts {
		if h.Host == name {
			return h
		}
	}
	t.Fatalf("no report for host %q", name)
	return HostReport{}
}

func TestHandlerFiresOnceAfterTasks(t *testing.T) {
	play := parsePlay(t, `
name: dedup
targets: web
tasks:
  - name: write a
    module: file-write
    params: {path: /etc/a, content: a}
    notify: restart
  - name: write b
    module: file-write
    params: {path: /etc/b, content: b}
    notify: restart
  - name: write c
    module: file-write
    params: {path: /etc/c, content: c}
    notify: restart
handlers:
  restart:
    name: restart
    module: command
    params: {cmd: systemctl restart demo}
`)

	h := newTestHarness(t, "alpha")
	runner, err := New(h.inv, play, Options{Dialer: h.dialer})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	report := runner.Run(context.Background())
	hr := hostReport(t, report, "alpha")
	if hr.State != HostCompleted {
		t.Fatalf("host state = %s, want %s (error: %s)", hr.State, HostCompleted, hr.Error)
	}

	// Three notifying tasks, one handler execution, after all tasks.
	if len(hr.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(hr.Results))
	}
	last := hr.Results[3]
	if !last.Handler || last.Task != "restart" || last.Status != StatusChanged {
		t.Fatalf("last result = %+v, want changed handler restart", last)
	}

	ch := h.channels["alpha"]
	if len(ch.runs) != 1 || ch.runs[0] != "systemctl restart demo" {
		t.Fatalf("handler commands = %v, want exactly one restart", ch.runs)
	}
	if len(ch.writes) != 3 {
		t.Fatalf("got %d writes, want 3", len(ch.writes))
	}
}

func TestFailFastSkipsRemainingTasks(t *testing.T) {
	play := parsePlay(t, `
name: failfast
targets: web
tasks:
  - name: step one
    module: command
    params: {cmd: step-one}
    notify: restart
  - name: step two
    module: command
    params: {cmd: step-two}
  - name: step three
    module: command
    params: {cmd: step-three}
handlers:
  restart:
    name: restart
    module: command
    params: {cmd: restart-demo}
`)

	h := newTestHarness(t, "alpha", "beta")
	h.channels["alpha"].respond = func(cmd string) (transport.ExecResult, error) {
		if cmd == "step-two" {
			return transport.ExecResult{ExitCode: 1, Stderr: "boom"}, nil
		}
		return transport.ExecResult{}, nil
	}

	runner, err := New(h.inv, play, Options{Dialer: h.dialer})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	report := runner.Run(context.Background())

	alpha := hostReport(t, report, "alpha")
	if alpha.State != HostFailed {
		t.Fatalf("alpha state = %s, want %s", alpha.State, HostFailed)
	}
	wantStatuses := []TaskStatus{StatusChanged, StatusFailed, StatusSkipped}
	if len(alpha.Results) != len(wantStatuses) {
		t.Fatalf("alpha has %d results, want %d: %+v", len(alpha.Results), len(wantStatuses), alpha.Results)
	}
	for i, want := range wantStatuses {
		if alpha.Results[i].Status != want {
			t.Fatalf("alpha result %d status = %s, want %s", i, alpha.Results[i].Status, want)
		}
	}
	// The notified handler never fires on a failed host.
	for _, cmd := range h.channels["alpha"].runs {
		if cmd == "restart-demo" {
			t.Fatal("handler fired on failed host")
		}
	}

	// The other host is unaffected and drains its handler.
	beta := hostReport(t, report, "beta")
	if beta.State != HostCompleted {
		t.Fatalf("beta state = %s, want %s", beta.State, HostCompleted)
	}
	if len(beta.Results) != 4 || !beta.Results[3].Handler {
		t.Fatalf("beta results = %+v, want 3 tasks plus handler", beta.Results)
	}

	if !report.Failed() {
		t.Fatal("report should be failed")
	}
	if got := report.FailedHosts(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("failed hosts = %v, want [alpha]", got)
	}
}

func TestConnectionFailureIsolatedToHost(t *testing.T) {
	play := parsePlay(t, `
name: connfail
targets: web
tasks:
  - name: touch marker
    module: file-write
    params: {path: /etc/marker, content: x}
`)

	h := newTestHarness(t, "alpha", "beta")
	dialer := func(ctx context.Context, host inventory.Host) (transport.Channel, error) {
		if host.Name == "alpha" {
			return nil, &transport.Error{Op: "dial", Host: host.Name, Err: errors.New("connection refused")}
		}
		return h.dialer(ctx, host)
	}

	runner, err := New(h.inv, play, Options{Dialer: dialer})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	report := runner.Run(context.Background())

	alpha := hostReport(t, report, "alpha")
	if alpha.State != HostFailed {
		t.Fatalf("alpha state = %s, want %s", alpha.State, HostFailed)
	}
	if alpha.Kind != KindConnection {
		t.Fatalf("alpha error kind = %s, want %s", alpha.Kind, KindConnection)
	}
	if len(alpha.Results) != 0 {
		t.Fatalf("alpha ran %d tasks despite connection failure", len(alpha.Results))
	}

	beta := hostReport(t, report, "beta")
	if beta.State != HostCompleted {
		t.Fatalf("beta state = %s, want %s", beta.State, HostCompleted)
	}
	if _, ok := h.channels["beta"].files["/etc/marker"]; !ok {
		t.Fatal("beta marker file missing")
	}
}

func TestDryRunNeverApplies(t *testing.T) {
	play := parsePlay(t, `
name: plan
targets: web
tasks:
  - name: write motd
    module: file-write
    params: {path: /etc/motd, content: hello}
  - name: run script
    module: command
    params: {cmd: do-something}
`)

	h := newTestHarness(t, "alpha")
	runner, err := New(h.inv, play, Options{Dialer: h.dialer, DryRun: true})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	report := runner.Run(context.Background())

	if !report.DryRun {
		t.Fatal("report should carry the dry-run flag")
	}
	hr := hostReport(t, report, "alpha")
	if hr.State != HostCompleted {
		t.Fatalf("host state = %s, want %s", hr.State, HostCompleted)
	}
	for i, r := range hr.Results {
		if r.Status != StatusChanged {
			t.Fatalf("result %d status = %s, want %s", i, r.Status, StatusChanged)
		}
	}

	ch := h.channels["alpha"]
	if len(ch.writes) != 0 {
		t.Fatalf("dry run wrote files: %v", ch.writes)
	}
	if len(ch.runs) != 0 {
		t.Fatalf("dry run executed commands: %v", ch.runs)
	}
}

func TestParamFailureReported(t *testing.T) {
	play := parsePlay(t, `
name: badparams
targets: web
tasks:
  - name: broken replace
    module: text-replace
    params: {path: /etc/x, pattern: '[', line: y}
`)

	h := newTestHarness(t, "alpha")
	runner, err := New(h.inv, play, Options{Dialer: h.dialer})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	report := runner.Run(context.Background())

	hr := hostReport(t, report, "alpha")
	if hr.State != HostFailed {
		t.Fatalf("host state = %s, want %s", hr.State, HostFailed)
	}
	if got := hr.Results[0].Kind; got != KindModuleParam {
		t.Fatalf("error kind = %s, want %s", got, KindModuleParam)
	}
}

func TestUnknownTargetGroup(t *testing.T) {
	play := parsePlay(t, `
name: orphan
targets: nosuchgroup
tasks:
  - name: noop
    module: command
    params: {cmd: "true"}
`)

	h := newTestHarness(t, "alpha")
	_, err := New(h.inv, play, Options{Dialer: h.dialer})
	if err == nil {
		t.Fatal("expected error for unknown target group")
	}
	if !IsParseError(err) {
		t.Fatalf("expected parse-class error, got %v", err)
	}
}
