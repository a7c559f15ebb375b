package run

import (
	"errors"
	"fmt"
	"testing"

	"github.com/droverhq/drover/pkg/modules"
	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/transport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "parse error",
			err:  NewParseError(errors.New("bad yaml")),
			want: KindParse,
		},
		{
			name: "wrapped parse error",
			err:  fmt.Errorf("loading: %w", NewParseError(errors.New("bad yaml"))),
			want: KindParse,
		},
		{
			name: "module params",
			err:  &modules.ParamError{Module: playbook.ModulePackage, Err: errors.New("name required")},
			want: KindModuleParam,
		},
		{
			name: "no match",
			err:  &modules.NoMatchError{Path: "/etc/x", Pattern: "^Options"},
			want: KindNoMatch,
		},
		{
			name: "dial failure",
			err:  &transport.Error{Op: "dial", Host: "web1", Err: errors.New("refused")},
			want: KindConnection,
		},
		{
			name: "auth failure",
			err:  &transport.Error{Op: "run", Host: "web1", Err: errors.New("denied"), IsAuthError: true},
			want: KindConnection,
		},
		{
			name: "remote exec failure",
			err:  &transport.Error{Op: "run", Host: "web1", Err: errors.New("session closed")},
			want: KindExecution,
		},
		{
			name: "plain error",
			err:  errors.New("something broke"),
			want: KindExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsParseError(t *testing.T) {
	if !IsParseError(NewParseError(errors.New("x"))) {
		t.Fatal("direct parse error not detected")
	}
	if !IsParseError(fmt.Errorf("wrap: %w", NewParseError(errors.New("x")))) {
		t.Fatal("wrapped parse error not detected")
	}
	if IsParseError(errors.New("x")) {
		t.Fatal("plain error misdetected as parse error")
	}
}
