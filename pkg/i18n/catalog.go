// Package i18n provides the host translation facility backed by x/text
// message catalogs. Messages use "%n" as the placeholder for the plural
// count; entries without a translation fall back to their source text.
package i18n

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const keySeparator = "\x04"

// Catalog translates messages for one language. It is safe for concurrent use.
type Catalog struct {
	tag     language.Tag
	builder *catalog.Builder
	known   map[string]bool // key -> whether the message consumes the count
	printer *message.Printer
	mutex   sync.Mutex
}

// New creates an empty catalog for lang, a BCP 47 tag.
func New(lang string) (*Catalog, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}
	return &Catalog{
		tag:     tag,
		builder: catalog.NewBuilder(catalog.Fallback(tag)),
		known:   make(map[string]bool),
	}, nil
}

// Language returns the catalog's language tag.
func (c *Catalog) Language() language.Tag { return c.tag }

func contextKey(context, source, comment string) string {
	key := context + keySeparator + source
	if comment != "" {
		key += keySeparator + comment
	}
	return key
}

func idKey(id string) string { return "id" + keySeparator + id }

// format turns a "%n" message into a printf format over the count.
func format(msg string) string {
	msg = strings.ReplaceAll(msg, "%", "%%")
	return strings.ReplaceAll(msg, "%%n", "%[1]d")
}

func (c *Catalog) set(key string, counted bool, msg catalog.Message) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.builder.Set(c.tag, key, msg); err != nil {
		return err
	}
	c.known[key] = counted
	c.printer = nil
	return nil
}

// Set adds a translation of source in context. A non-empty comment
// disambiguates identical sources.
func (c *Catalog) Set(context, source, comment, translation string) error {
	return c.set(contextKey(context, source, comment), strings.Contains(translation, "%n"), catalog.String(format(translation)))
}

// SetPlural adds a translation with distinct singular and plural forms.
func (c *Catalog) SetPlural(context, source, comment, one, other string) error {
	return c.set(contextKey(context, source, comment), true,
		plural.Selectf(1, "%d", plural.One, format(one), plural.Other, format(other)))
}

// SetID adds a translation looked up by message id.
func (c *Catalog) SetID(id, translation string) error {
	return c.set(idKey(id), strings.Contains(translation, "%n"), catalog.String(format(translation)))
}

// SetIDPlural adds an id-based translation with plural forms.
func (c *Catalog) SetIDPlural(id, one, other string) error {
	return c.set(idKey(id), true, plural.Selectf(1, "%d", plural.One, format(one), plural.Other, format(other)))
}

// lookup renders key with count n, reporting whether a translation exists.
func (c *Catalog) lookup(key string, n int) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	counted, ok := c.known[key]
	if !ok {
		return "", false
	}
	if c.printer == nil {
		c.printer = message.NewPrinter(c.tag, message.Catalog(c.builder))
	}
	if !counted {
		return c.printer.Sprintf(key), true
	}
	if n < 0 {
		n = 0
	}
	return c.printer.Sprintf(key, n), true
}

// Translate looks up source in context. Missing translations fall back to
// the source with %n replaced when n >= 0.
func (c *Catalog) Translate(context, source, comment string, n int) string {
	if s, ok := c.lookup(contextKey(context, source, comment), n); ok {
		return s
	}
	if comment != "" {
		if s, ok := c.lookup(contextKey(context, source, ""), n); ok {
			return s
		}
	}
	return fallback(source, n)
}

// TranslateID looks up a message by id, falling back to the id itself.
func (c *Catalog) TranslateID(id string, n int) string {
	if s, ok := c.lookup(idKey(id), n); ok {
		return s
	}
	return fallback(id, n)
}

func fallback(source string, n int) string {
	if n < 0 {
		return source
	}
	return strings.ReplaceAll(source, "%n", strconv.Itoa(n))
}

// Len is the number of translations in the catalog.
func (c *Catalog) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.known)
}

// File is the TOML form of a catalog.
type File struct {
	Language string        `toml:"language"`
	Messages []FileMessage `toml:"message"`
}

// FileMessage is one catalog entry. Either Source (with optional Context
// and Comment) or ID selects the message; Translation or One/Other give the
// text.
type FileMessage struct {
	ID          string `toml:"id"`
	Context     string `toml:"context"`
	Source      string `toml:"source"`
	Comment     string `toml:"comment"`
	Translation string `toml:"translation"`
	One         string `toml:"one"`
	Other       string `toml:"other"`
}

// Load decodes a TOML catalog file. lang overrides the file's language when
// non-empty.
func Load(data []byte, lang string) (*Catalog, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if lang == "" {
		lang = f.Language
	}
	if lang == "" {
		lang = "en"
	}
	c, err := New(lang)
	if err != nil {
		return nil, err
	}
	for i, m := range f.Messages {
		if err := c.add(m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return c, nil
}

func (c *Catalog) add(m FileMessage) error {
	hasPlural := m.One != "" || m.Other != ""
	switch {
	case m.ID != "" && hasPlural:
		return c.SetIDPlural(m.ID, m.One, m.Other)
	case m.ID != "":
		return c.SetID(m.ID, m.Translation)
	case m.Source == "":
		return fmt.Errorf("entry has neither id nor source")
	case hasPlural:
		return c.SetPlural(m.Context, m.Source, m.Comment, m.One, m.Other)
	default:
		return c.Set(m.Context, m.Source, m.Comment, m.Translation)
	}
}
