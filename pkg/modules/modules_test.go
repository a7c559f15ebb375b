package modules

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

// fakeChannel scripts command responses and backs file operations with an
// in-memory map.
type fakeChannel struct {
	respond func(cmd string) transport.ExecResult
	files   map[string][]byte

	runs   []string
	writes []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		respond: func(string) transport.ExecResult { return transport.ExecResult{} },
		files:   make(map[string][]byte),
	}
}

func (c *fakeChannel) Run(_ context.Context, cmd string) (transport.ExecResult, error) {
	c.runs = append(c.runs, cmd)
	return c.respond(cmd), nil
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

func makeTask(t *testing.T, module playbook.ModuleType, params string) playbook.Task {
	t.Helper()
	task := playbook.Task{Name: "test task", Module: module}
	if params != "" {
		if err := yaml.Unmarshal([]byte(params), &task.Params); err != nil {
			t.Fatalf("failed to build params: %v", err)
		}
	}
	return task
}

// applyOnce runs the diff/apply cycle the way the runner does.
func applyOnce(t *testing.T, mod Module, ch transport.Channel) Action {
	t.Helper()
	action, err := mod.Diff(context.Background(), ch)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if action.Changed {
		if err := mod.Apply(context.Background(), ch, action); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}
	return action
}

func TestPackageChangedThenOk(t *testing.T) {
	installed := false
	ch := newFakeChannel()
	ch.respond = func(cmd string) transport.ExecResult {
		switch {
		case strings.HasPrefix(cmd, "dpkg-query"):
			if installed {
				return transport.ExecResult{Stdout: "2.4.58"}
			}
			return transport.ExecResult{ExitCode: 1}
		case strings.Contains(cmd, "apt-get install"):
			installed = true
			return transport.ExecResult{}
		default:
			t.Fatalf("unexpected command: %s", cmd)
			return transport.ExecResult{}
		}
	}

	mod, err := Build(makeTask(t, playbook.ModulePackage, "name: apache2"), "web1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if action := applyOnce(t, mod, ch); !action.Changed {
		t.Fatal("first apply should report changed")
	}

	mod, _ = Build(makeTask(t, playbook.ModulePackage, "name: apache2"), "web1")
	if action := applyOnce(t, mod, ch); action.Changed {
		t.Fatal("second apply should report ok")
	}
}

func TestPackageInstallFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.respond = func(cmd string) transport.ExecResult {
		if strings.HasPrefix(cmd, "dpkg-query") {
			return transport.ExecResult{ExitCode: 1}
		}
		return transport.ExecResult{ExitCode: 100, Stderr: "E: Unable to locate package nosuchpkg"}
	}

	mod, err := Build(makeTask(t, playbook.ModulePackage, "name: nosuchpkg"), "web1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	action, err := mod.Diff(context.Background(), ch)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if err := mod.Apply(context.Background(), ch, action); err == nil {
		t.Fatal("expected install failure")
	}
}

func TestCommandAlwaysChanged(t *testing.T) {
	ch := newFakeChannel()

	for i := 0; i < 2; i++ {
		mod, err := Build(makeTask(t, playbook.ModuleCommand, "cmd: systemctl restart apache2"), "web1")
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if action := applyOnce(t, mod, ch); !action.Changed {
			t.Fatalf("run %d: command module must always report changed", i+1)
		}
	}

	if len(ch.runs) != 2 {
		t.Fatalf("expected 2 command executions, got %d", len(ch.runs))
	}
}

func TestFileWriteIdempotence(t *testing.T) {
	ch := newFakeChannel()
	params := "path: /etc/motd\ncontent: hello\n"

	mod, err := Build(makeTask(t, playbook.ModuleFileWrite, params), "web1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if action := applyOnce(t, mod, ch); !action.Changed {
		t.Fatal("first write should report changed")
	}
	if len(ch.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(ch.writes))
	}

	mod, _ = Build(makeTask(t, playbook.ModuleFileWrite, params), "web1")
	if action := applyOnce(t, mod, ch); action.Changed {
		t.Fatal("identical content should report ok")
	}
	if len(ch.writes) != 1 {
		t.Fatal("identical content must not be written again")
	}
}

func TestFileWriteTemplate(t *testing.T) {
	ch := newFakeChannel()
	params := "path: /var/www/html/index.html\ncontent: 'host {{ host }} at {{ timestamp }}'\n"

	mod, err := Build(makeTask(t, playbook.ModuleFileWrite, params), "web1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	applyOnce(t, mod, ch)

	content := string(ch.files["/var/www/html/index.html"])
	if !strings.HasPrefix(content, "host web1 at ") {
		t.Fatalf("unexpected rendered content: %q", content)
	}
	if strings.Contains(content, "{{") {
		t.Fatalf("template not rendered: %q", content)
	}
}

func TestServiceTransitions(t *testing.T) {
	tests := []struct {
		name        string
		params      string
		active      bool
		enabled     bool
		wantChanged bool
		wantApply   []string
	}{
		{
			name:        "start stopped service",
			params:      "name: apache2\nstate: running",
			active:      false,
			wantChanged: true,
			wantApply:   []string{"systemctl start 'apache2'"},
		},
		{
			name:        "already running",
			params:      "name: apache2\nstate: running",
			active:      true,
			wantChanged: false,
		},
		{
			name:        "enable and start",
			params:      "name: apache2\nstate: running\nenabled: true",
			active:      false,
			enabled:     false,
			wantChanged: true,
			wantApply:   []string{"systemctl start 'apache2'", "systemctl enable 'apache2'"},
		},
		{
			name:        "stop running service",
			params:      "name: apache2\nstate: stopped",
			active:      true,
			wantChanged: true,
			wantApply:   []string{"systemctl stop 'apache2'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newFakeChannel()
			ch.respond = func(cmd string) transport.ExecResult {
				switch {
				case strings.HasPrefix(cmd, "systemctl is-active"):
					if tt.active {
						return transport.ExecResult{Stdout: "active"}
					}
					return transport.ExecResult{ExitCode: 3, Stdout: "inactive"}
				case strings.HasPrefix(cmd, "systemctl is-enabled"):
					if tt.enabled {
						return transport.ExecResult{Stdout: "enabled"}
					}
					return transport.ExecResult{ExitCode: 1, Stdout: "disabled"}
				default:
					return transport.ExecResult{}
				}
			}

			mod, err := Build(makeTask(t, playbook.ModuleService, tt.params), "web1")
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}

			action := applyOnce(t, mod, ch)
			if action.Changed != tt.wantChanged {
				t.Fatalf("changed = %v, want %v", action.Changed, tt.wantChanged)
			}

			var applied []string
			for _, cmd := range ch.runs {
				if !strings.HasPrefix(cmd, "systemctl is-") {
					applied = append(applied, cmd)
				}
			}
			if len(applied) != len(tt.wantApply) {
				t.Fatalf("applied %v, want %v", applied, tt.wantApply)
			}
			for i := range applied {
				if applied[i] != tt.wantApply[i] {
					t.Fatalf("applied[%d] = %q, want %q", i, applied[i], tt.wantApply[i])
				}
			}
		})
	}
}

func TestTextReplace(t *testing.T) {
	const conf = "ServerRoot /etc/apache2\n\tOptions Indexes FollowSymLinks\nTimeout 300\n"
	params := "path: /etc/apache2/apache2.conf\npattern: '^\\s*Options Indexes FollowSymLinks$'\nline: \"\\tOptions FollowSymLinks\"\n"

	ch := newFakeChannel()
	ch.files["/etc/apache2/apache2.conf"] = []byte(conf)

	mod, err := Build(makeTask(t, playbook.ModuleTextReplace, params), "web1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if action := applyOnce(t, mod, ch); !action.Changed {
		t.Fatal("first replace should report changed")
	}

	got := string(ch.files["/etc/apache2/apache2.conf"])
	want := "ServerRoot /etc/apache2\n\tOptions FollowSymLinks\nTimeout 300\n"
	if got != want {
		t.Fatalf("rewritten file = %q, want %q", got, want)
	}

	// The replacement line no longer matches the pattern, but it equals the
	// desired line, so a re-run converges to ok instead of NoMatchError.
	mod, _ = Build(makeTask(t, playbook.ModuleTextReplace, params), "web1")
	if action := applyOnce(t, mod, ch); action.Changed {
		t.Fatal("second run should report ok")
	}
}

func TestTextReplaceNoMatch(t *testing.T) {
	ch := newFakeChannel()
	ch.files["/etc/example.conf"] = []byte("nothing relevant here\n")

	mod, err := Build(makeTask(t, playbook.ModuleTextReplace,
		"path: /etc/example.conf\npattern: '^Options'\nline: Options None"), "web1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	_, err = mod.Diff(context.Background(), ch)
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
}

func TestBuildParamErrors(t *testing.T) {
	tests := []struct {
		name   string
		module playbook.ModuleType
		params string
	}{
		{"package missing name", playbook.ModulePackage, ""},
		{"command missing cmd", playbook.ModuleCommand, ""},
		{"file-write missing path", playbook.ModuleFileWrite, "content: hello"},
		{"file-write bad mode", playbook.ModuleFileWrite, "path: /tmp/x\nmode: \"9999\""},
		{"service missing desired state", playbook.ModuleService, "name: apache2"},
		{"text-replace bad pattern", playbook.ModuleTextReplace, "path: /tmp/x\npattern: '['\nline: y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(makeTask(t, tt.module, tt.params), "web1")
			var paramErr *ParamError
			if !errors.As(err, &paramErr) {
				t.Fatalf("expected ParamError, got %v", err)
			}
		})
	}
}
