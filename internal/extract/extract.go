// Package extract pulls text fragments matching a key out of an HTML page.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTags is the element allow-list scanned for fragments.
var DefaultTags = []string{"h1", "h2", "h3", "p", "span", "a"}

const (
	// DefaultMinLen is the loose lower bound: fragments of 3 or more runes.
	DefaultMinLen = 3
	// DefaultMaxLen is the exclusive upper bound on fragment length.
	DefaultMaxLen = 150
)

// Options controls which fragments are accepted.
type Options struct {
	Tags   []string
	MinLen int
	MaxLen int
	// KeyLengthFloor raises the lower bound to the key's own length.
	// Ad hoc checks set it; scheduled scans leave it off.
	KeyLengthFloor bool
}

// DefaultOptions returns the loose matching options.
func DefaultOptions() Options {
	return Options{Tags: DefaultTags, MinLen: DefaultMinLen, MaxLen: DefaultMaxLen}
}

// Strict returns a copy of o with KeyLengthFloor set.
func (o Options) Strict() Options {
	o.KeyLengthFloor = true
	return o
}

func (o Options) withDefaults() Options {
	if len(o.Tags) == 0 {
		o.Tags = DefaultTags
	}
	if o.MaxLen <= 0 {
		o.MaxLen = DefaultMaxLen
	}
	return o
}

// minLen returns the effective inclusive lower bound for key.
func (o Options) minLen(key string) int {
	lo := o.MinLen
	if o.KeyLengthFloor {
		if n := utf8.RuneCountInString(key); n > lo {
			lo = n
		}
	}
	return lo
}

// Extract returns, in document order, the trimmed text of every allow-listed
// element whose text contains key (case-insensitively) and whose rune length
// lies in [min, MaxLen). Duplicates are kept. Malformed markup is tolerated;
// an error is returned only when html cannot be read at all.
func Extract(html, key string, opts Options) ([]string, error) {
	opts = opts.withDefaults()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	m := newMatcher(key, opts)
	fragments := []string{}
	doc.Find(strings.Join(opts.Tags, ", ")).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); m.accept(text) {
			fragments = append(fragments, text)
		}
	})
	return fragments, nil
}

// Matches reports whether fragment satisfies the rule Extract applies.
func Matches(fragment, key string, opts Options) bool {
	return newMatcher(key, opts.withDefaults()).accept(fragment)
}

type matcher struct {
	lower  cases.Caser
	key    string
	lo, hi int
}

func newMatcher(key string, opts Options) *matcher {
	lower := cases.Lower(language.Und)
	return &matcher{lower: lower, key: lower.String(key), lo: opts.minLen(key), hi: opts.MaxLen}
}

func (m *matcher) accept(text string) bool {
	if text == "" {
		return false
	}
	if n := utf8.RuneCountInString(text); n < m.lo || n >= m.hi {
		return false
	}
	return strings.Contains(m.lower.String(text), m.key)
}
