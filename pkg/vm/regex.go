package vm

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// RegExpMatchTimeout bounds a single match; regexp2 backtracks.
var RegExpMatchTimeout = time.Duration(getEnvInt("LINKVM_REGEXP_TIMEOUT_MS", 2000)) * time.Millisecond

// RegExpObject is a JavaScript RegExp backed by regexp2 in ECMAScript mode.
// A pattern that fails to compile still yields an object; Valid reports the
// error and matching always fails.
type RegExpObject struct {
	hdr       cellHeader
	source    string
	flags     string
	re        *regexp2.Regexp
	err       error
	lastIndex int
}

func (r *RegExpObject) header() *cellHeader {
	if r == nil {
		return nil
	}
	return &r.hdr
}

func (r *RegExpObject) markChildren(*MarkStack) {}

// NewRegExp compiles pattern with JavaScript flags.
func (h *Heap) NewRegExp(pattern, flags string) *RegExpObject {
	r := &RegExpObject{source: pattern, flags: flags}
	r.re, r.err = regexp2.Compile(pattern, regexpOptions(flags))
	if r.re != nil {
		r.re.MatchTimeout = RegExpMatchTimeout
	}
	return Allocate(h, r)
}

func regexpOptions(flags string) regexp2.RegexOptions {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if strings.ContainsRune(flags, 'i') {
		opts |= regexp2.IgnoreCase
	}
	if strings.ContainsRune(flags, 'm') {
		opts |= regexp2.Multiline
	}
	if strings.ContainsRune(flags, 's') {
		opts |= regexp2.Singleline
	}
	return opts
}

func (r *RegExpObject) Source() string { return r.source }
func (r *RegExpObject) Flags() string  { return r.flags }
func (r *RegExpObject) Global() bool   { return strings.ContainsRune(r.flags, 'g') }
func (r *RegExpObject) Sticky() bool   { return strings.ContainsRune(r.flags, 'y') }
func (r *RegExpObject) Valid() error   { return r.err }
func (r *RegExpObject) LastIndex() int { return r.lastIndex }

// Test runs the expression against s. Global and sticky expressions start at
// and advance lastIndex the way RegExp.prototype.test does.
func (r *RegExpObject) Test(s string) (bool, error) {
	m, err := r.Exec(s)
	return m != nil, err
}

// Exec returns the captured groups of the next match, or nil.
func (r *RegExpObject) Exec(s string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	start := 0
	stateful := r.Global() || r.Sticky()
	if stateful {
		start = r.lastIndex
		if start > len([]rune(s)) {
			r.lastIndex = 0
			return nil, nil
		}
	}
	m, err := r.re.FindStringMatchStartingAt(s, start)
	if err != nil {
		return nil, err
	}
	if m == nil || (r.Sticky() && m.Index != start) {
		if stateful {
			r.lastIndex = 0
		}
		return nil, nil
	}
	if stateful {
		r.lastIndex = m.Index + m.Length
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.String()
	}
	return out, nil
}
