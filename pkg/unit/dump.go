package unit

import (
	"fmt"
	"io"

	"github.com/mr-tron/base58"
)

// Dump writes a human readable listing of the unit's tables to w.
func (u *ExecutableUnit) Dump(w io.Writer) {
	d := u.data
	fmt.Fprintf(w, "unit %s (%s)\n", u.url, d.FileName())
	fmt.Fprintf(w, "  flags: %#x  es-module: %v  list-assign: %s\n", uint32(d.Flags), d.IsESModule(), d.ListPropertyAssignBehavior)
	fmt.Fprintf(w, "  checksum: %s\n", base58.Encode(d.DependencyChecksum[:]))
	if d.SourceTimeStamp != 0 {
		fmt.Fprintf(w, "  source timestamp: %d\n", d.SourceTimeStamp)
	}

	fmt.Fprintf(w, "  strings: %d\n", len(d.Strings))
	for i, s := range d.Strings {
		fmt.Fprintf(w, "    [%d] %q\n", i, s)
	}

	if len(d.RegExps) > 0 {
		fmt.Fprintf(w, "  regexps: %d\n", len(d.RegExps))
		for i, re := range d.RegExps {
			fmt.Fprintf(w, "    [%d] /%s/%s\n", i, d.StringAt(re.StringIndex), re.Flags)
		}
	}
	if len(d.Lookups) > 0 {
		fmt.Fprintf(w, "  lookups: %d\n", len(d.Lookups))
		for i, l := range d.Lookups {
			line := fmt.Sprintf("    [%d] %s %s", i, l.Type, d.StringAt(l.NameIndex))
			if rl := u.RuntimeLookup(i); rl != nil {
				line += " " + rl.State().String()
			}
			fmt.Fprintln(w, line)
		}
	}
	if len(d.JSClasses) > 0 {
		fmt.Fprintf(w, "  classes: %d\n", len(d.JSClasses))
		for i, c := range d.JSClasses {
			fmt.Fprintf(w, "    [%d] %d members\n", i, len(c.Members))
		}
	}

	fmt.Fprintf(w, "  functions: %d (native %d)\n", len(d.Functions), u.NativeFunctionCount())
	for i, f := range d.Functions {
		marker := ""
		if i == int(d.IndexOfRootFunction) {
			marker = " (root)"
		}
		if rf := u.RuntimeFunction(i); rf != nil && rf.IsNative() {
			marker += " native"
		}
		fmt.Fprintf(w, "    [%d] %s/%d locals=%d line %d%s\n", i, d.StringAt(f.NameIndex), len(f.Formals), len(f.Locals), f.Location.Line, marker)
	}
	if len(d.Blocks) > 0 {
		fmt.Fprintf(w, "  blocks: %d\n", len(d.Blocks))
	}

	if len(d.ModuleRequests) > 0 {
		fmt.Fprintf(w, "  module requests:\n")
		for _, r := range d.ModuleRequestURLs() {
			fmt.Fprintf(w, "    %s\n", r)
		}
	}
	for _, e := range d.ImportEntries {
		fmt.Fprintf(w, "  import %s as %s from %s\n", d.StringAt(e.ImportName), d.StringAt(e.LocalName), d.StringAt(e.ModuleRequest))
	}
	for _, e := range d.LocalExportEntries {
		fmt.Fprintf(w, "  export %s as %s\n", d.StringAt(e.LocalName), d.StringAt(e.ExportName))
	}
	for _, e := range d.IndirectExportEntries {
		fmt.Fprintf(w, "  export %s as %s from %s\n", d.StringAt(e.ImportName), d.StringAt(e.ExportName), d.StringAt(e.ModuleRequest))
	}
	for _, e := range d.StarExportEntries {
		fmt.Fprintf(w, "  export * from %s\n", d.StringAt(e.ModuleRequest))
	}
	if len(d.TemplateObjects) > 0 {
		fmt.Fprintf(w, "  template objects: %d\n", len(d.TemplateObjects))
	}
	if len(d.Translations) > 0 {
		fmt.Fprintf(w, "  translations: %d\n", len(d.Translations))
	}
	if len(d.Bindings) > 0 {
		fmt.Fprintf(w, "  bindings:\n")
		for i := range d.Bindings {
			fmt.Fprintf(w, "    [%d] %s\n", i, u.BindingValueAsScriptString(i))
		}
	}
	for _, init := range d.Initializers {
		fmt.Fprintf(w, "  init %s = %s\n", d.StringAt(init.LocalName), u.BindingValueAsScriptString(int(init.Binding)))
	}
}
