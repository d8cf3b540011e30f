// Package location finds mentions of a target region in free text and tag lists.
package location

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"tagfinder/pkg/tumblr"
)

// SourceTags is the source reported for a match found in a tag list
const SourceTags = "tags"

// DefaultGazetteer covers California and the Bay Area. Order matters: within
// one field the first listed term that matches wins.
var DefaultGazetteer = []string{
	"california", "ca", "cali", "norcal", "socal", "bay area", "silicon valley",
	"east bay", "south bay", "peninsula",
	"san francisco", "sf", "oakland", "berkeley", "san jose", "los angeles",
	"san diego", "sacramento", "palo alto", "mountain view", "fremont",
	"santa clara", "cupertino", "menlo park", "redwood city", "sunnyvale",
	"santa monica", "venice beach", "pasadena",
}

// Field is one named piece of text to search. Callers pass fields in priority order.
type Field struct {
	Name string
	Text string
}

// Match is a location hit: the gazetteer term and where it was found
type Match struct {
	Term   string
	Source string
}

// RE2 has no lookaround and its \b is ASCII-only, so the boundary is spelled
// out: the neighbour must be absent or not a Unicode letter, digit or '_'.
const (
	notWord      = `(?:^|[^\p{L}\p{N}_])`
	notWordAfter = `(?:[^\p{L}\p{N}_]|$)`
)

type term struct {
	text string
	re   *regexp.Regexp
}

// Matcher tests text against a gazetteer using whole-word matching
type Matcher struct {
	terms []term
}

// NewMatcher compiles the gazetteer. Terms are lower-cased; blanks and
// duplicates are dropped.
func NewMatcher(gazetteer []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool, len(gazetteer))
	for _, t := range gazetteer {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		m.terms = append(m.terms, term{
			text: t,
			re:   regexp.MustCompile(notWord + regexp.QuoteMeta(t) + notWordAfter),
		})
	}
	return m
}

// Terms returns the normalised gazetteer
func (m *Matcher) Terms() []string {
	out := make([]string, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.text
	}
	return out
}

// Match checks fields in order, then tags. Field order beats gazetteer order;
// for tags, gazetteer order beats tag order.
func (m *Matcher) Match(fields []Field, tags []string) (Match, bool) {
	for _, f := range fields {
		if t, ok := m.find(f.Text); ok {
			return Match{Term: t, Source: f.Name}, true
		}
	}

	if len(tags) == 0 {
		return Match{}, false
	}
	lowered := make([]string, len(tags))
	for i, tag := range tags {
		lowered[i] = strings.ToLower(tag)
	}
	for _, t := range m.terms {
		for _, tag := range lowered {
			if t.re.MatchString(tag) {
				return Match{Term: t.text, Source: SourceTags}, true
			}
		}
	}
	return Match{}, false
}

// MatchProfile checks a blog's url, title and description, then its tags
func (m *Matcher) MatchProfile(info tumblr.BlogInfo) (Match, bool) {
	return m.Match([]Field{
		{Name: "url", Text: info.URL},
		{Name: "title", Text: info.Title},
		{Name: "description", Text: info.Description},
	}, info.Tags)
}

// MatchPost checks a post's content fields with markup removed. Sources are
// reported as post_<field>, e.g. post_body.
func (m *Matcher) MatchPost(post tumblr.Post) (Match, bool) {
	for _, f := range post.Content() {
		if t, ok := m.find(StripMarkup(f.Text)); ok {
			return Match{Term: t, Source: "post_" + f.Name}, true
		}
	}
	return Match{}, false
}

func (m *Matcher) find(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, t := range m.terms {
		if t.re.MatchString(lower) {
			return t.text, true
		}
	}
	return "", false
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripMarkup returns the visible text of an HTML fragment. Top-level
// elements are joined with a space so "<p>in</p><p>sf</p>" reads "in sf".
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return tagPattern.ReplaceAllString(s, " ")
	}
	var parts []string
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}
