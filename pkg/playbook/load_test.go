package playbook

import (
	"strings"
	"testing"
)

const validPlay = `
name: webserver
targets: web
become: true
tasks:
  - name: install apache
    module: package
    params: {name: apache2}
  - name: write index
    module: file-write
    params: {path: /var/www/html/index.html, content: hi}
    notify: restart apache
handlers:
  restart apache:
    name: restart apache
    module: command
    params: {cmd: systemctl restart apache2}
`

func TestParse(t *testing.T) {
	play, err := Parse([]byte(validPlay))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if play.Name != "webserver" || play.Targets != "web" || !play.Become {
		t.Fatalf("header = %q/%q become=%v", play.Name, play.Targets, play.Become)
	}
	if len(play.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(play.Tasks))
	}
	if play.Tasks[0].Module != ModulePackage {
		t.Fatalf("task 0 module = %s, want %s", play.Tasks[0].Module, ModulePackage)
	}

	handler, ok := play.Handler("restart apache")
	if !ok {
		t.Fatal("handler not resolvable")
	}
	if handler.Name != "restart apache" || handler.Task.Module != ModuleCommand {
		t.Fatalf("handler = %+v", handler)
	}
	if _, ok := play.Handler("nope"); ok {
		t.Fatal("unknown handler resolved")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "not yaml",
			src:     "{{{",
			wantErr: "malformed play",
		},
		{
			name: "missing name",
			src: `
targets: web
tasks:
  - name: t
    module: command
    params: {cmd: "true"}
`,
			wantErr: "invalid play",
		},
		{
			name: "no tasks",
			src: `
name: empty
targets: web
tasks: []
`,
			wantErr: "invalid play",
		},
		{
			name: "unknown module",
			src: `
name: bad
targets: web
tasks:
  - name: t
    module: reboot
`,
			wantErr: "invalid play",
		},
		{
			name: "dangling notify",
			src: `
name: bad
targets: web
tasks:
  - name: t
    module: command
    params: {cmd: "true"}
    notify: restart
`,
			wantErr: `task 1 ("t") notifies unknown handler "restart"`,
		},
		{
			name: "handler notifies handler",
			src: `
name: bad
targets: web
tasks:
  - name: t
    module: command
    params: {cmd: "true"}
    notify: a
handlers:
  a:
    name: a
    module: command
    params: {cmd: "true"}
    notify: b
  b:
    name: b
    module: command
    params: {cmd: "true"}
`,
			wantErr: `handler "a" must not notify another handler`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
