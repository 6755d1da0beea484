package errors

import "fmt"

// Position identifies a location inside a compiled unit's source file.
// Line and column are 1-based; a zero Line means the location is unknown.
type Position struct {
	File   string // Source file name or URL of the unit
	Line   int    // 1-based line number
	Column int    // 1-based column number
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		if p.File == "" {
			return "<unknown>"
		}
		return p.File
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}
