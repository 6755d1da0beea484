// Package source keeps the text of unit manifests so diagnostics can quote
// the offending line.
package source

import (
	"path/filepath"
	"strings"
)

// File is a manifest source with its display name.
type File struct {
	Name    string // Display name, e.g. "math.mjs.toml" or "<stdin>"
	Path    string // Full file path, empty for in-memory sources
	Content string
	lines   []string
}

// NewFile creates a source file
func NewFile(name, path string, content []byte) *File {
	return &File{Name: name, Path: path, Content: string(content)}
}

// FromFile creates a File named after the base of filePath
func FromFile(filePath string, content []byte) *File {
	return NewFile(filepath.Base(filePath), filePath, content)
}

// NewMemory creates a source for data that did not come from disk
func NewMemory(name string, content []byte) *File {
	return NewFile(name, "", content)
}

// Lines returns the source split into lines (cached)
func (f *File) Lines() []string {
	if f.lines == nil {
		f.lines = strings.Split(f.Content, "\n")
	}
	return f.lines
}

// Line returns the 1-based line n without its trailing whitespace.
func (f *File) Line(n int) (string, bool) {
	lines := f.Lines()
	if n < 1 || n > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[n-1], "\r\n\t "), true
}

// DisplayPath returns the best path for display (prefers Path, falls back to Name)
func (f *File) DisplayPath() string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}
