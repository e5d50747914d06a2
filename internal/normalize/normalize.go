package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"screentime/internal/config"
)

const (
	CategorySystem = "System"
	CategoryOther  = "Other"
)

var reCaseBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// Entry is one row of an ordered lookup table.
type Entry struct {
	From string
	To   string
}

// Tables holds the normalization lookups. Titles is ordered: the first
// entry whose prefix matches wins.
type Tables struct {
	Apps         map[string]string
	Titles       []Entry
	Categories   map[string]string
	SystemPrefix string
	SystemTitles []string
	PrefixLength int
}

// Normalizer maps raw identifiers and titles to canonical names and
// categories. It is immutable after construction.
type Normalizer struct {
	apps         map[string]string
	titles       []Entry
	titleExact   map[string]string
	categories   map[string]string
	systemPrefix string
	systemTitles map[string]struct{}
	prefixLen    int
}

func New(t Tables) *Normalizer {
	n := &Normalizer{
		apps:         make(map[string]string, len(t.Apps)),
		titles:       append([]Entry(nil), t.Titles...),
		titleExact:   make(map[string]string, len(t.Titles)),
		categories:   make(map[string]string, len(t.Categories)),
		systemPrefix: t.SystemPrefix,
		systemTitles: make(map[string]struct{}, len(t.SystemTitles)),
		prefixLen:    t.PrefixLength,
	}
	if n.prefixLen <= 0 {
		n.prefixLen = 15
	}
	for k, v := range t.Apps {
		n.apps[k] = v
	}
	for _, e := range n.titles {
		if _, ok := n.titleExact[e.From]; !ok {
			n.titleExact[e.From] = e.To
		}
	}
	for k, v := range t.Categories {
		n.categories[k] = v
	}
	for _, s := range t.SystemTitles {
		n.systemTitles[s] = struct{}{}
	}
	return n
}

// FromConfig builds a Normalizer from the default tables extended by cfg.
func FromConfig(cfg config.NormalizeConfig) *Normalizer {
	var base Tables
	if !cfg.SkipDefaults {
		base = DefaultTables()
	} else {
		base = Tables{Apps: map[string]string{}, Categories: map[string]string{}}
	}
	for _, p := range cfg.Apps {
		base.Apps[p.Key] = p.Value
	}
	if len(cfg.Titles) > 0 {
		user := make([]Entry, 0, len(cfg.Titles)+len(base.Titles))
		for _, p := range cfg.Titles {
			user = append(user, Entry{From: p.Key, To: p.Value})
		}
		base.Titles = append(user, base.Titles...)
	}
	for _, p := range cfg.Categories {
		base.Categories[p.Key] = p.Value
	}
	if cfg.SystemPrefix != "" {
		base.SystemPrefix = cfg.SystemPrefix
	}
	if len(cfg.SystemTitles) > 0 {
		base.SystemTitles = cfg.SystemTitles
	}
	if cfg.PrefixLength > 0 {
		base.PrefixLength = cfg.PrefixLength
	}
	return New(base)
}

// ResolveTitle returns the display title for a source identifier. Unknown
// reverse-domain identifiers are derived from their last segment, so
// "com.example.MyCoolApp" becomes "My Cool App".
func (n *Normalizer) ResolveTitle(identifier string) string {
	if title, ok := n.apps[identifier]; ok {
		return title
	}
	if !strings.Contains(identifier, ".") {
		return identifier
	}
	name := identifier[strings.LastIndex(identifier, ".")+1:]
	if name == "" {
		return identifier
	}
	name = reCaseBoundary.ReplaceAllString(name, "$1 $2")
	return titleCase(name)
}

// NormalizeTitle shortens long store titles. Devices truncate titles, so a
// miss falls back to matching the first PrefixLength characters of each
// table entry, in table order. A key shorter than that matches as a whole
// prefix.
func (n *Normalizer) NormalizeTitle(raw string) string {
	if short, ok := n.titleExact[raw]; ok {
		return short
	}
	for _, e := range n.titles {
		if e.From == "" {
			continue
		}
		if strings.HasPrefix(raw, firstRunes(e.From, n.prefixLen)) {
			return e.To
		}
	}
	return raw
}

// CategoryOf never fails; unknown titles are CategoryOther.
func (n *Normalizer) CategoryOf(title string) string {
	if c, ok := n.categories[title]; ok {
		return c
	}
	if n.systemPrefix != "" && strings.HasPrefix(title, n.systemPrefix) {
		return CategorySystem
	}
	if _, ok := n.systemTitles[title]; ok {
		return CategorySystem
	}
	return CategoryOther
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// titleCase upper-cases the first letter of every letter run and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
