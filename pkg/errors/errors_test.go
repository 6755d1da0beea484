package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"linkvm/pkg/source"
)

func TestDisplayErrorsWithSource(t *testing.T) {
	src := source.NewMemory("main.mjs.toml", []byte("file = \"/main.mjs\"\nroot = [\n"))
	errs := []LinkvmError{
		&FormatError{Position: Position{Line: 2, Column: 8}, Msg: "bad value"},
		(&ReferenceError{Position: Position{File: "/main.mjs"}, Msg: "Unable to load module /gone.mjs"}).
			CausedBy(fmt.Errorf("/gone.mjs: %w", ErrModuleNotFound)),
	}

	var buf bytes.Buffer
	DisplayErrorsWithSource(&buf, src, errs)
	out := buf.String()

	for _, want := range []string{
		"Format Error at main.mjs.toml:2:8: bad value\n  root = [\n         ^\n",
		"Reference Error at /main.mjs: Unable to load module /gone.mjs\n",
		"  caused by: /gone.mjs: module not found\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&TypeError{Msg: "x is not an object"}, "TypeError: x is not an object"},
		{&TypeError{Position: Position{File: "/a.mjs", Line: 1, Column: 2}, Msg: "m"}, "TypeError at /a.mjs:1:2: m"},
		{&ReferenceError{Msg: "m"}, "ReferenceError at <unknown>: m"},
		{&FormatError{Msg: "bad magic"}, "Format Error: bad magic"},
		{&FormatError{Position: Position{File: "u.lvmc"}, Msg: "bad magic"}, "Format Error in u.lvmc: bad magic"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
	if !Is((&FormatError{}).CausedBy(ErrChecksumMismatch), ErrChecksumMismatch) {
		t.Error("FormatError should unwrap to its cause")
	}
}
