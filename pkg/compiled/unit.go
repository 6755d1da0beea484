// Package compiled defines the immutable, statically compiled representation of
// a script or module: positional tables of strings, regular expressions, lookups,
// object-literal classes, functions, blocks, imports, exports, template objects,
// translations and bindings.
//
// A Unit is produced once (by the compiler front-end, a Builder, a manifest or
// the on-disk cache) and never mutated afterwards. Every cross-reference inside a
// Unit is an index, usually into Strings.
package compiled

import "strings"

// Flags is the unit flags bitset.
type Flags uint32

const (
	IsESModule Flags = 1 << iota
	IsSharedLibrary
	FunctionSignaturesIgnored
	NativeMethodsAcceptThisObject
	ValueTypesCopied
	ValueTypesAddressable
	ComponentsBound
)

// ListPropertyAssignBehavior controls how assignments to list properties behave.
type ListPropertyAssignBehavior uint8

const (
	ListAppend ListPropertyAssignBehavior = iota
	ListReplace
	ListReplaceIfNotDefault
)

func (b ListPropertyAssignBehavior) String() string {
	switch b {
	case ListAppend:
		return "Append"
	case ListReplace:
		return "Replace"
	case ListReplaceIfNotDefault:
		return "ReplaceIfNotDefault"
	default:
		return "invalid"
	}
}

// Location is a source location of a table entry.
type Location struct {
	Line   uint32
	Column uint32
}

// RegExpFlags mirrors the JavaScript regular expression flags.
type RegExpFlags uint8

const (
	RegExpGlobal RegExpFlags = 1 << iota
	RegExpIgnoreCase
	RegExpMultiline
	RegExpUnicode
	RegExpSticky
	RegExpDotAll
)

// String renders the flags in canonical JavaScript order.
func (f RegExpFlags) String() string {
	var b strings.Builder
	if f&RegExpDotAll != 0 {
		b.WriteByte('s')
	}
	if f&RegExpGlobal != 0 {
		b.WriteByte('g')
	}
	if f&RegExpIgnoreCase != 0 {
		b.WriteByte('i')
	}
	if f&RegExpMultiline != 0 {
		b.WriteByte('m')
	}
	if f&RegExpUnicode != 0 {
		b.WriteByte('u')
	}
	if f&RegExpSticky != 0 {
		b.WriteByte('y')
	}
	return b.String()
}

// ParseRegExpFlags is the inverse of RegExpFlags.String. Unknown letters are ignored.
func ParseRegExpFlags(s string) RegExpFlags {
	var f RegExpFlags
	for _, c := range s {
		switch c {
		case 'g':
			f |= RegExpGlobal
		case 'i':
			f |= RegExpIgnoreCase
		case 'm':
			f |= RegExpMultiline
		case 'u':
			f |= RegExpUnicode
		case 'y':
			f |= RegExpSticky
		case 's':
			f |= RegExpDotAll
		}
	}
	return f
}

type RegExp struct {
	StringIndex uint32
	Flags       RegExpFlags
}

// LookupType tags how a call-site lookup resolves.
type LookupType uint8

const (
	LookupGetter LookupType = iota
	LookupSetter
	LookupGlobalGetter
	LookupContextPropertyGetter
)

func (t LookupType) String() string {
	switch t {
	case LookupGetter:
		return "getter"
	case LookupSetter:
		return "setter"
	case LookupGlobalGetter:
		return "global-getter"
	case LookupContextPropertyGetter:
		return "context-property-getter"
	default:
		return "invalid"
	}
}

type Lookup struct {
	Type      LookupType
	NameIndex uint32
	ForCall   bool
}

type JSClassMember struct {
	NameIndex  uint32
	IsAccessor bool
}

// JSClass describes the shape of an object literal.
type JSClass struct {
	Members []JSClassMember
}

type Function struct {
	NameIndex uint32
	Formals   []uint32
	Locals    []uint32
	Location  Location
}

// Block is a lexical scope; Locals are declared in order.
type Block struct {
	Locals []uint32
}

type ImportEntry struct {
	ModuleRequest uint32
	ImportName    uint32
	LocalName     uint32
	Location      Location
}

// ExportEntry is shared by the local, indirect and star export tables.
// Local entries use LocalName; indirect entries use ModuleRequest and
// ImportName; star entries use ModuleRequest only.
type ExportEntry struct {
	ExportName    uint32
	ModuleRequest uint32
	ImportName    uint32
	LocalName     uint32
	Location      Location
}

// TemplateObject holds the cooked and raw strings of a tagged template.
type TemplateObject struct {
	Strings    []uint32
	RawStrings []uint32
}

func (t TemplateObject) Size() int { return len(t.Strings) }

type Translation struct {
	StringIndex  uint32
	CommentIndex uint32
	ContextIndex uint32
	Number       int32
}

type BindingType uint8

const (
	BindingInvalid BindingType = iota
	BindingBoolean
	BindingNumber
	BindingString
	BindingNull
	BindingScript
	BindingTranslation
	BindingTranslationByID
)

// Binding is a statically known property value. StringIndex is used by
// string and script bindings, TranslationIndex by the translation kinds.
type Binding struct {
	Type             BindingType
	StringIndex      uint32
	TranslationIndex uint32
	Number           float64
	Bool             bool
}

// Initializer seeds a root function local with a constant binding before the
// root function runs.
type Initializer struct {
	LocalName uint32
	Binding   uint32
}

// Object is a declared object of a component tree.
type Object struct {
	IDNameIndex             uint32
	ID                      int32
	NamedObjectsInComponent []uint32
}

// Unit is the immutable compiled artifact.
type Unit struct {
	Flags                      Flags
	ListPropertyAssignBehavior ListPropertyAssignBehavior
	SourceFileIndex            uint32
	TranslationContextIndex    uint32 // 0 when no pragma declared a context
	SourceTimeStamp            int64  // milliseconds since epoch, 0 when unknown
	IndexOfRootFunction        int32  // -1 when the unit has no root function
	DependencyChecksum         [32]byte

	Strings               []string
	RegExps               []RegExp
	Lookups               []Lookup
	JSClasses             []JSClass
	Functions             []Function
	Blocks                []Block
	ModuleRequests        []uint32
	ImportEntries         []ImportEntry
	LocalExportEntries    []ExportEntry
	IndirectExportEntries []ExportEntry
	StarExportEntries     []ExportEntry
	TemplateObjects       []TemplateObject
	Translations          []Translation
	Bindings              []Binding
	Objects               []Object
	Initializers          []Initializer
}

// StringAt returns the string at index i, or "" when i is out of range.
func (u *Unit) StringAt(i uint32) string {
	if int(i) >= len(u.Strings) {
		return ""
	}
	return u.Strings[i]
}

func (u *Unit) StringCount() int { return len(u.Strings) }

func (u *Unit) IsESModule() bool      { return u.Flags&IsESModule != 0 }
func (u *Unit) IsSharedLibrary() bool { return u.Flags&IsSharedLibrary != 0 }
func (u *Unit) HasFlag(f Flags) bool  { return u.Flags&f == f }

// FileName is the source file recorded for the unit.
func (u *Unit) FileName() string {
	return u.StringAt(u.SourceFileIndex)
}

// HasRootFunction reports whether the unit has an executable root function.
func (u *Unit) HasRootFunction() bool {
	return u.IndexOfRootFunction >= 0 && int(u.IndexOfRootFunction) < len(u.Functions)
}

// ModuleRequestURLs returns the statically declared module requests in order.
func (u *Unit) ModuleRequestURLs() []string {
	requests := make([]string, 0, len(u.ModuleRequests))
	for _, idx := range u.ModuleRequests {
		requests = append(requests, u.StringAt(idx))
	}
	return requests
}
