package i18n

import (
	"testing"

	"linkvm/pkg/unit"
)

var _ unit.Translator = (*Catalog)(nil)

const germanCatalog = `
language = "de"

[[message]]
context = "main"
source = "Hello"
translation = "Hallo"

[[message]]
context = "main"
source = "Open"
comment = "verb"
translation = "Öffnen"

[[message]]
context = "main"
source = "%n file(s)"
one = "%n Datei"
other = "%n Dateien"

[[message]]
id = "app.quit"
translation = "Beenden (100%)"
`

func TestCatalogTranslate(t *testing.T) {
	c, err := Load([]byte(germanCatalog), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Language().String() != "de" || c.Len() != 4 {
		t.Fatalf("Unexpected catalog %s with %d entries", c.Language(), c.Len())
	}

	tests := []struct {
		name                     string
		context, source, comment string
		n                        int
		expected                 string
	}{
		{"plain", "main", "Hello", "", -1, "Hallo"},
		{"other context", "dialog", "Hello", "", -1, "Hello"},
		{"comment", "main", "Open", "verb", -1, "Öffnen"},
		{"comment fallback", "main", "Hello", "greeting", -1, "Hallo"},
		{"singular", "main", "%n file(s)", "", 1, "1 Datei"},
		{"plural", "main", "%n file(s)", "", 3, "3 Dateien"},
		{"missing with count", "main", "%n item(s)", "", 2, "2 item(s)"},
		{"missing without count", "main", "%n item(s)", "", -1, "%n item(s)"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := c.Translate(test.context, test.source, test.comment, test.n); got != test.expected {
				t.Errorf("Translate = %q, want %q", got, test.expected)
			}
		})
	}
}

func TestCatalogTranslateID(t *testing.T) {
	c, err := Load([]byte(germanCatalog), "")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.TranslateID("app.quit", -1); got != "Beenden (100%)" {
		t.Errorf("TranslateID = %q", got)
	}
	if got := c.TranslateID("app.unknown", -1); got != "app.unknown" {
		t.Errorf("Missing id = %q, want the id itself", got)
	}
}

func TestCatalogSetAfterUse(t *testing.T) {
	c, err := New("en")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Translate("", "Bye", "", -1); got != "Bye" {
		t.Errorf("empty catalog = %q", got)
	}
	if err := c.Set("", "Bye", "", "Goodbye"); err != nil {
		t.Fatal(err)
	}
	if got := c.Translate("", "Bye", "", -1); got != "Goodbye" {
		t.Errorf("after Set = %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load([]byte("language = "), ""); err == nil {
		t.Error("Expected a decode error")
	}
	if _, err := Load([]byte(`language = "not a tag!"`), ""); err == nil {
		t.Error("Expected a language error")
	}
	if _, err := Load([]byte("[[message]]\ntranslation = \"x\"\n"), "en"); err == nil {
		t.Error("Expected an error for an entry without id or source")
	}
}
