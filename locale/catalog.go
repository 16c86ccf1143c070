// Package locale provides translated message catalogs and locale-aware
// formatting of numbers, currency amounts and dates.
//
// Catalogs are read from gettext PO files named <locale>.po.  Messages are
// addressed by context and id; the "status" context holds order status labels
// and the "subject" context holds document subject templates.  Lookups fall
// back from the requested locale through its more general forms to the
// catalog's default locale.
package locale

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/robfig/gettext/po"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// Logger receives catalog diagnostics.
var Logger zerolog.Logger = log.With().Str("component", "locale").Logger()

//go:embed messages/*.po
var embedded embed.FS

// Message contexts with a fixed meaning.
const (
	ContextStatus  = "status"
	ContextSubject = "subject"
)

type msgKey struct {
	ctxt, id string
}

// Catalog holds the messages of several locales.  It is safe for concurrent
// use; Add may be called while lookups are in flight.
type Catalog struct {
	defaultTag language.Tag
	mu         sync.RWMutex
	locales    map[string]map[msgKey]string // by canonical tag
}

// NewCatalog returns an empty catalog that falls back to defaultLocale.
func NewCatalog(defaultLocale string) *Catalog {
	var tag, err = language.Parse(defaultLocale)
	if err != nil {
		tag = language.English
	}
	return &Catalog{
		defaultTag: tag,
		locales:    make(map[string]map[msgKey]string),
	}
}

// Embedded returns a catalog holding the built-in en, vi, fr and de messages.
func Embedded(defaultLocale string) (*Catalog, error) {
	var c = NewCatalog(defaultLocale)
	if err := c.LoadFS(embedded, "messages"); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFS adds every <locale>.po file in dir.
func (c *Catalog) LoadFS(fsys fs.FS, dir string) error {
	var entries, err = fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		var name = entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".po") {
			continue
		}
		f, err := fsys.Open(path.Join(dir, name))
		if err != nil {
			return err
		}
		err = c.Add(strings.TrimSuffix(name, ".po"), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Add parses a PO file and merges its messages into the given locale.
// Messages already present are replaced.
func (c *Catalog) Add(locale string, r io.Reader) error {
	var tag, err = language.Parse(locale)
	if err != nil {
		return err
	}
	file, err := po.Parse(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var msgs, ok = c.locales[tag.String()]
	if !ok {
		msgs = make(map[msgKey]string)
		c.locales[tag.String()] = msgs
	}
	var n int
	for _, msg := range file.Messages {
		if msg.Id == "" || len(msg.Str) == 0 || msg.Str[0] == "" {
			continue
		}
		msgs[msgKey{msg.Ctxt, msg.Id}] = msg.Str[0]
		n++
	}
	Logger.Debug().Str("locale", tag.String()).Int("messages", n).Msg("loaded catalog")
	return nil
}

// Locales returns the loaded locales, sorted.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names = make([]string, 0, len(c.locales))
	for name := range c.locales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the catalog's default locale.
func (c *Catalog) Default() string {
	return c.defaultTag.String()
}

// Lookup returns the message for (ctxt, id) in the closest available locale.
func (c *Catalog) Lookup(locale, ctxt, id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, tag := range c.chain(locale) {
		if str, ok := c.locales[tag.String()][msgKey{ctxt, id}]; ok {
			return str, true
		}
	}
	return "", false
}

// Text returns the message for (ctxt, id), or id itself when no locale in the
// fallback chain has it.
func (c *Catalog) Text(locale, ctxt, id string) string {
	if str, ok := c.Lookup(locale, ctxt, id); ok {
		return str
	}
	Logger.Debug().Str("locale", locale).Str("ctxt", ctxt).Str("id", id).Msg("missing message")
	return id
}

// Translations returns every context-free message visible from locale, with
// more specific locales taking precedence.
func (c *Catalog) Translations(locale string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var chain = c.chain(locale)
	var result = make(map[string]string)
	for i := len(chain) - 1; i >= 0; i-- {
		for key, str := range c.locales[chain[i].String()] {
			if key.ctxt == "" {
				result[key.id] = str
			}
		}
	}
	return result
}

// StatusLabel returns the localized label for an order status code.  Unknown
// codes are humanized ("out_for_delivery" becomes "Out for delivery") rather
// than shown verbatim.
func (c *Catalog) StatusLabel(status, locale string) string {
	if str, ok := c.Lookup(locale, ContextStatus, status); ok {
		return str
	}
	return Humanize(status)
}

// Humanize turns an identifier such as "out_for_delivery" into a sentence-case
// label.
func Humanize(code string) string {
	var words = strings.FieldsFunc(code, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(words) == 0 {
		return ""
	}
	var s = strings.ToLower(strings.Join(words, " "))
	var first, size = utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// chain returns the lookup order for locale: the locale, its more general
// forms, then the default locale and its general forms.
func (c *Catalog) chain(locale string) []language.Tag {
	var result []language.Tag
	if tag, err := language.Parse(locale); err == nil {
		result = fallbacks(tag)
	}
	return append(result, fallbacks(c.defaultTag)...)
}

// Tag parses locale, falling back to def when it is empty or malformed.
func Tag(locale string, def language.Tag) language.Tag {
	if tag, err := language.Parse(locale); err == nil && locale != "" {
		return tag
	}
	return def
}

// fallbacks returns the tags that can be substituted for a tag, ordered by
// increasing generality.
func fallbacks(tag language.Tag) []language.Tag {
	var result []language.Tag
	var lang, script, region = tag.Raw()
	// The language package returns ZZ for an unspecified region, similar quirk for script.
	if region.String() != "ZZ" {
		t, _ := language.Compose(lang, script, region)
		result = append(result, t)
	}
	if script.String() != "Zzzz" {
		t, _ := language.Compose(lang, script)
		result = append(result, t)
	}
	t, _ := language.Compose(lang)
	return append(result, t)
}
