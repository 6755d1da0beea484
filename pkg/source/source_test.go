package source

import "testing"

func TestFileLines(t *testing.T) {
	f := FromFile("/mods/lib/math.mjs.toml", []byte("file = \"x\"  \r\nroot = 1\n"))
	if f.Name != "math.mjs.toml" || f.DisplayPath() != "/mods/lib/math.mjs.toml" {
		t.Errorf("Unexpected names %q %q", f.Name, f.DisplayPath())
	}
	if line, ok := f.Line(1); !ok || line != `file = "x"` {
		t.Errorf("Line(1) = %q, %v", line, ok)
	}
	if _, ok := f.Line(0); ok {
		t.Error("Line(0) should be out of range")
	}
	if _, ok := f.Line(4); ok {
		t.Error("Line(4) should be out of range")
	}
	if m := NewMemory("<stdin>", nil); m.DisplayPath() != "<stdin>" {
		t.Errorf("memory source display path %q", m.DisplayPath())
	}
}
