package unit

import (
	"strconv"
	"strings"

	"linkvm/pkg/compiled"
)

// TranslationIndex selects a translation record; ByID requests id-based lookup.
type TranslationIndex struct {
	Index int
	ByID  bool
}

// Translate renders translation record idx through the engine's translator.
// By-id lookups use only the record's string and plural number.
func (u *ExecutableUnit) Translate(idx TranslationIndex) string {
	if idx.Index < 0 || idx.Index >= len(u.data.Translations) {
		return ""
	}
	t := u.data.Translations[idx.Index]
	text := u.data.StringAt(t.StringIndex)
	tr := u.engine.Translator()
	if tr == nil {
		return text
	}
	if idx.ByID {
		return tr.TranslateID(text, int(t.Number))
	}
	return tr.Translate(u.TranslationContext(t), text, u.data.StringAt(t.CommentIndex), int(t.Number))
}

// TranslationContext picks the context of a record: its own, then the unit's
// declared default, then one derived from the file name.
func (u *ExecutableUnit) TranslationContext(t compiled.Translation) string {
	if t.ContextIndex != 0 {
		return u.data.StringAt(t.ContextIndex)
	}
	if u.data.TranslationContextIndex != 0 {
		return u.data.StringAt(u.data.TranslationContextIndex)
	}
	return contextFromPath(u.FileName())
}

// contextFromPath strips the directory and a four character suffix (".qml",
// ".mjs") from path. A path without a slash has no context.
func contextFromPath(path string) string {
	slash := strings.LastIndexByte(path, '/')
	if slash < 0 {
		return ""
	}
	base := path[slash+1:]
	if len(base) < 4 {
		return base
	}
	return base[:len(base)-4]
}

// BindingValueAsString renders binding i the way it would be shown to a user.
func (u *ExecutableUnit) BindingValueAsString(i int) string {
	if i < 0 || i >= len(u.data.Bindings) {
		return ""
	}
	b := u.data.Bindings[i]
	switch b.Type {
	case compiled.BindingScript, compiled.BindingString:
		return u.data.StringAt(b.StringIndex)
	case compiled.BindingNull:
		return "null"
	case compiled.BindingBoolean:
		return strconv.FormatBool(b.Bool)
	case compiled.BindingNumber:
		return strconv.FormatFloat(b.Number, 'g', -1, 64)
	case compiled.BindingTranslation:
		return u.Translate(TranslationIndex{Index: int(b.TranslationIndex)})
	case compiled.BindingTranslationByID:
		return u.Translate(TranslationIndex{Index: int(b.TranslationIndex), ByID: true})
	}
	return ""
}

// BindingValueAsScriptString is BindingValueAsString with string bindings
// quoted as script literals.
func (u *ExecutableUnit) BindingValueAsScriptString(i int) string {
	if i >= 0 && i < len(u.data.Bindings) && u.data.Bindings[i].Type == compiled.BindingString {
		return strconv.Quote(u.data.StringAt(u.data.Bindings[i].StringIndex))
	}
	return u.BindingValueAsString(i)
}
