package compiled

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"linkvm/pkg/errors"
)

// Manifest is a human-writable TOML description of a unit. Names replace the
// string indices of the binary tables; ParseManifest interns them through a
// Builder so the resulting Unit is indistinguishable from a compiled one.
type Manifest struct {
	File                 string               `toml:"file"`
	Module               bool                 `toml:"module"`
	Flags                []string             `toml:"flags"`
	ListPropertyBehavior string               `toml:"list_property_behavior"`
	TranslationContext   string               `toml:"translation_context"`
	Root                 string               `toml:"root"`
	Functions            []manifestFunction   `toml:"function"`
	Blocks               []manifestBlock      `toml:"block"`
	RegExps              []manifestRegExp     `toml:"regexp"`
	Lookups              []manifestLookup     `toml:"lookup"`
	Classes              []manifestClass      `toml:"class"`
	Imports              []manifestImport     `toml:"import"`
	Exports              []manifestExport     `toml:"export"`
	Templates            []manifestTemplate   `toml:"template"`
	Translations         []manifestTranslator `toml:"translation"`
	Objects              []manifestObject     `toml:"object"`

	// Values holds constant initial values for the root function's locals.
	// They compile to initializers, in name order.
	Values map[string]any `toml:"values"`
}

type manifestFunction struct {
	Name    string   `toml:"name"`
	Formals []string `toml:"formals"`
	Locals  []string `toml:"locals"`
	Line    uint32   `toml:"line"`
	Column  uint32   `toml:"column"`
}

type manifestBlock struct {
	Locals []string `toml:"locals"`
}

type manifestRegExp struct {
	Pattern string `toml:"pattern"`
	Flags   string `toml:"flags"`
}

type manifestLookup struct {
	Type    string `toml:"type"`
	Name    string `toml:"name"`
	ForCall bool   `toml:"for_call"`
}

type manifestClass struct {
	Members   []string `toml:"members"`
	Accessors []string `toml:"accessors"`
}

type manifestImport struct {
	From   string `toml:"from"`
	Name   string `toml:"name"`
	Local  string `toml:"local"`
	Line   uint32 `toml:"line"`
	Column uint32 `toml:"column"`
}

type manifestExport struct {
	Name   string `toml:"name"`
	Local  string `toml:"local"`
	From   string `toml:"from"`
	Import string `toml:"import"`
	Star   bool   `toml:"star"`
	Line   uint32 `toml:"line"`
	Column uint32 `toml:"column"`
}

type manifestTemplate struct {
	Cooked []string `toml:"cooked"`
	Raw    []string `toml:"raw"`
}

type manifestTranslator struct {
	Text    string `toml:"text"`
	Comment string `toml:"comment"`
	Context string `toml:"context"`
	Number  int32  `toml:"number"`
}

type manifestObject struct {
	IDName string `toml:"id_name"`
	ID     int32  `toml:"id"`
	Named  []int  `toml:"named"`
}

var flagNames = map[string]Flags{
	"es-module":                         IsESModule,
	"shared-library":                    IsSharedLibrary,
	"function-signatures-ignored":       FunctionSignaturesIgnored,
	"native-methods-accept-this-object": NativeMethodsAcceptThisObject,
	"value-types-copied":                ValueTypesCopied,
	"value-types-addressable":           ValueTypesAddressable,
	"components-bound":                  ComponentsBound,
}

var lookupNames = map[string]LookupType{
	"getter":                  LookupGetter,
	"setter":                  LookupSetter,
	"global-getter":           LookupGlobalGetter,
	"context-property-getter": LookupContextPropertyGetter,
}

// ParseManifest decodes a TOML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			line, column := decodeErr.Position()
			return nil, &errors.FormatError{
				Position: errors.Position{Line: line, Column: column},
				Msg:      "decode manifest: " + decodeErr.Error(),
			}
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Unit assembles the compiled unit described by the manifest.
func (m *Manifest) Unit() (*Unit, error) {
	b := NewBuilder(m.File)
	if m.Module {
		b.SetFlags(IsESModule)
	}
	for _, name := range m.Flags {
		f, ok := flagNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown unit flag %q", name)
		}
		b.SetFlags(f)
	}
	switch strings.ToLower(m.ListPropertyBehavior) {
	case "", "append":
		b.SetListPropertyAssignBehavior(ListAppend)
	case "replace":
		b.SetListPropertyAssignBehavior(ListReplace)
	case "replaceifnotdefault", "replace-if-not-default":
		b.SetListPropertyAssignBehavior(ListReplaceIfNotDefault)
	default:
		return nil, fmt.Errorf("unknown list property behavior %q", m.ListPropertyBehavior)
	}
	if m.TranslationContext != "" {
		b.SetTranslationContext(m.TranslationContext)
	}

	root := -1
	for _, fn := range m.Functions {
		idx := b.AddFunction(fn.Name, fn.Formals, fn.Locals, Location{Line: fn.Line, Column: fn.Column})
		if fn.Name == m.Root {
			root = idx
		}
	}
	if m.Root != "" {
		if root < 0 {
			return nil, fmt.Errorf("root function %q is not declared", m.Root)
		}
		b.SetRootFunction(root)
	}

	for _, blk := range m.Blocks {
		b.AddBlock(blk.Locals)
	}
	for _, re := range m.RegExps {
		b.AddRegExp(re.Pattern, ParseRegExpFlags(re.Flags))
	}
	for _, l := range m.Lookups {
		t, ok := lookupNames[l.Type]
		if !ok {
			return nil, fmt.Errorf("unknown lookup type %q", l.Type)
		}
		b.AddLookup(t, l.Name, l.ForCall)
	}
	for _, c := range m.Classes {
		accessors := make(map[string]bool, len(c.Accessors))
		for _, a := range c.Accessors {
			accessors[a] = true
		}
		b.AddJSClass(c.Members, accessors)
	}
	for _, imp := range m.Imports {
		local := imp.Local
		if local == "" {
			local = imp.Name
		}
		b.AddImport(imp.From, imp.Name, local, Location{Line: imp.Line, Column: imp.Column})
	}
	for _, exp := range m.Exports {
		loc := Location{Line: exp.Line, Column: exp.Column}
		switch {
		case exp.Star:
			if exp.From == "" {
				return nil, fmt.Errorf("star export without module request")
			}
			b.AddStarExport(exp.From, loc)
		case exp.From != "":
			importName := exp.Import
			if importName == "" {
				importName = exp.Name
			}
			b.AddIndirectExport(exp.Name, exp.From, importName, loc)
		default:
			local := exp.Local
			if local == "" {
				local = exp.Name
			}
			b.AddLocalExport(exp.Name, local, loc)
		}
	}
	for _, t := range m.Templates {
		if len(t.Cooked) != len(t.Raw) {
			return nil, fmt.Errorf("template object has %d cooked and %d raw strings", len(t.Cooked), len(t.Raw))
		}
		b.AddTemplateObject(t.Cooked, t.Raw)
	}
	for _, t := range m.Translations {
		b.AddTranslation(t.Text, t.Comment, t.Context, t.Number)
	}
	for _, o := range m.Objects {
		b.AddObject(o.IDName, o.ID)
	}
	for i, o := range m.Objects {
		for _, child := range o.Named {
			if child < 0 || child >= len(m.Objects) {
				return nil, fmt.Errorf("object %d names unknown object %d", i, child)
			}
			b.AddNamedObjectToComponent(i, child)
		}
	}
	names := make([]string, 0, len(m.Values))
	for name := range m.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		binding, err := valueBinding(b, m.Values[name])
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", name, err)
		}
		b.AddInitializer(name, binding)
	}
	return b.Build(), nil
}

func valueBinding(b *Builder, v any) (Binding, error) {
	switch v := v.(type) {
	case bool:
		return Binding{Type: BindingBoolean, Bool: v}, nil
	case int64:
		return Binding{Type: BindingNumber, Number: float64(v)}, nil
	case float64:
		return Binding{Type: BindingNumber, Number: v}, nil
	case string:
		return Binding{Type: BindingString, StringIndex: b.String(v)}, nil
	default:
		return Binding{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// LoadManifest parses data and builds its unit in one step.
func LoadManifest(data []byte) (*Unit, *Manifest, error) {
	m, err := ParseManifest(data)
	if err != nil {
		return nil, nil, err
	}
	u, err := m.Unit()
	if err != nil {
		return nil, nil, err
	}
	return u, m, nil
}
