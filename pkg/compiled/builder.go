package compiled

import "sort"

// Builder assembles a Unit. Strings are interned: adding the same string twice
// yields the same index, and index 0 is always the empty string.
type Builder struct {
	unit    Unit
	strings map[string]uint32
}

// NewBuilder creates a builder for a unit whose source file is fileName.
func NewBuilder(fileName string) *Builder {
	b := &Builder{strings: make(map[string]uint32)}
	b.String("")
	b.unit.SourceFileIndex = b.String(fileName)
	b.unit.IndexOfRootFunction = -1
	return b
}

// String interns s and returns its index.
func (b *Builder) String(s string) uint32 {
	if idx, ok := b.strings[s]; ok {
		return idx
	}
	idx := uint32(len(b.unit.Strings))
	b.unit.Strings = append(b.unit.Strings, s)
	b.strings[s] = idx
	return idx
}

func (b *Builder) strs(names []string) []uint32 {
	out := make([]uint32, len(names))
	for i, n := range names {
		out[i] = b.String(n)
	}
	return out
}

func (b *Builder) SetFlags(f Flags) *Builder {
	b.unit.Flags |= f
	return b
}

func (b *Builder) SetListPropertyAssignBehavior(lb ListPropertyAssignBehavior) *Builder {
	b.unit.ListPropertyAssignBehavior = lb
	return b
}

func (b *Builder) SetSourceTimeStamp(ms int64) *Builder {
	b.unit.SourceTimeStamp = ms
	return b
}

// SetTranslationContext records a pragma-declared default translation context.
func (b *Builder) SetTranslationContext(ctx string) *Builder {
	b.unit.TranslationContextIndex = b.String(ctx)
	return b
}

func (b *Builder) SetDependencyChecksum(sum [32]byte) *Builder {
	b.unit.DependencyChecksum = sum
	return b
}

func (b *Builder) AddRegExp(pattern string, flags RegExpFlags) int {
	b.unit.RegExps = append(b.unit.RegExps, RegExp{StringIndex: b.String(pattern), Flags: flags})
	return len(b.unit.RegExps) - 1
}

func (b *Builder) AddLookup(t LookupType, name string, forCall bool) int {
	b.unit.Lookups = append(b.unit.Lookups, Lookup{Type: t, NameIndex: b.String(name), ForCall: forCall})
	return len(b.unit.Lookups) - 1
}

// AddJSClass adds an object-literal shape. Member names prefixed with "get " or
// "set " are not special; use accessors to flag accessor members.
func (b *Builder) AddJSClass(members []string, accessors map[string]bool) int {
	cls := JSClass{Members: make([]JSClassMember, len(members))}
	for i, m := range members {
		cls.Members[i] = JSClassMember{NameIndex: b.String(m), IsAccessor: accessors[m]}
	}
	b.unit.JSClasses = append(b.unit.JSClasses, cls)
	return len(b.unit.JSClasses) - 1
}

func (b *Builder) AddFunction(name string, formals, locals []string, loc Location) int {
	b.unit.Functions = append(b.unit.Functions, Function{
		NameIndex: b.String(name),
		Formals:   b.strs(formals),
		Locals:    b.strs(locals),
		Location:  loc,
	})
	return len(b.unit.Functions) - 1
}

// SetRootFunction marks function index as the unit's entry point.
func (b *Builder) SetRootFunction(index int) *Builder {
	b.unit.IndexOfRootFunction = int32(index)
	return b
}

func (b *Builder) AddBlock(locals []string) int {
	b.unit.Blocks = append(b.unit.Blocks, Block{Locals: b.strs(locals)})
	return len(b.unit.Blocks) - 1
}

// AddModuleRequest declares a static dependency; duplicates are ignored.
func (b *Builder) AddModuleRequest(url string) uint32 {
	idx := b.String(url)
	for _, r := range b.unit.ModuleRequests {
		if r == idx {
			return idx
		}
	}
	b.unit.ModuleRequests = append(b.unit.ModuleRequests, idx)
	return idx
}

// AddImport records `import { importName as localName } from url`.
func (b *Builder) AddImport(url, importName, localName string, loc Location) {
	b.unit.ImportEntries = append(b.unit.ImportEntries, ImportEntry{
		ModuleRequest: b.AddModuleRequest(url),
		ImportName:    b.String(importName),
		LocalName:     b.String(localName),
		Location:      loc,
	})
}

// AddLocalExport records `export { localName as exportName }`.
func (b *Builder) AddLocalExport(exportName, localName string, loc Location) {
	b.unit.LocalExportEntries = append(b.unit.LocalExportEntries, ExportEntry{
		ExportName: b.String(exportName),
		LocalName:  b.String(localName),
		Location:   loc,
	})
}

// AddIndirectExport records `export { importName as exportName } from url`.
func (b *Builder) AddIndirectExport(exportName, url, importName string, loc Location) {
	b.unit.IndirectExportEntries = append(b.unit.IndirectExportEntries, ExportEntry{
		ExportName:    b.String(exportName),
		ModuleRequest: b.AddModuleRequest(url),
		ImportName:    b.String(importName),
		Location:      loc,
	})
}

// AddStarExport records `export * from url`.
func (b *Builder) AddStarExport(url string, loc Location) {
	b.unit.StarExportEntries = append(b.unit.StarExportEntries, ExportEntry{
		ModuleRequest: b.AddModuleRequest(url),
		Location:      loc,
	})
}

func (b *Builder) AddTemplateObject(cooked, raw []string) int {
	b.unit.TemplateObjects = append(b.unit.TemplateObjects, TemplateObject{
		Strings:    b.strs(cooked),
		RawStrings: b.strs(raw),
	})
	return len(b.unit.TemplateObjects) - 1
}

func (b *Builder) AddTranslation(text, comment, context string, number int32) int {
	b.unit.Translations = append(b.unit.Translations, Translation{
		StringIndex:  b.String(text),
		CommentIndex: b.String(comment),
		ContextIndex: b.String(context),
		Number:       number,
	})
	return len(b.unit.Translations) - 1
}

func (b *Builder) AddBinding(binding Binding) int {
	b.unit.Bindings = append(b.unit.Bindings, binding)
	return len(b.unit.Bindings) - 1
}

// AddStringBinding is a convenience for BindingString and BindingScript.
func (b *Builder) AddStringBinding(t BindingType, s string) int {
	return b.AddBinding(Binding{Type: t, StringIndex: b.String(s)})
}

// AddInitializer seeds root local name with binding.
func (b *Builder) AddInitializer(local string, binding Binding) int {
	b.unit.Initializers = append(b.unit.Initializers, Initializer{
		LocalName: b.String(local),
		Binding:   uint32(b.AddBinding(binding)),
	})
	return len(b.unit.Initializers) - 1
}

// AddObject declares an object. An empty idName leaves the object unnamed.
func (b *Builder) AddObject(idName string, id int32) int {
	b.unit.Objects = append(b.unit.Objects, Object{IDNameIndex: b.String(idName), ID: id})
	return len(b.unit.Objects) - 1
}

// AddNamedObjectToComponent lists object as a named child of component root.
func (b *Builder) AddNamedObjectToComponent(root, object int) {
	o := &b.unit.Objects[root]
	o.NamedObjectsInComponent = append(o.NamedObjectsInComponent, uint32(object))
}

// Build returns the finished unit with the three export tables sorted by
// export name. The builder must not be used afterwards.
func (b *Builder) Build() *Unit {
	u := b.unit
	SortExportTable(&u, u.LocalExportEntries)
	SortExportTable(&u, u.IndirectExportEntries)
	SortExportTable(&u, u.StarExportEntries)
	return &u
}

// SortExportTable orders entries by the string value of their export name.
func SortExportTable(u *Unit, entries []ExportEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return u.StringAt(entries[i].ExportName) < u.StringAt(entries[j].ExportName)
	})
}
