package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tagfinder/pkg/tumblr"
)

func strp(s string) *string { return &s }

func TestEveryTermMatchesAsWholeWord(t *testing.T) {
	m := NewMatcher(DefaultGazetteer)

	for _, term := range DefaultGazetteer {
		t.Run(term, func(t *testing.T) {
			// a matcher holding only this term, so earlier terms cannot shadow it
			single := NewMatcher([]string{term})

			got, ok := single.Match([]Field{{Name: "description", Text: "Moved to " + term + " last year!"}}, nil)
			require.True(t, ok)
			assert.Equal(t, Match{Term: term, Source: "description"}, got)

			_, ok = single.Match([]Field{{Name: "description", Text: "x" + term + "y"}}, nil)
			assert.False(t, ok, "%q must not match inside a longer word", term)

			_, ok = m.Match([]Field{{Name: "title", Text: term}}, nil)
			assert.True(t, ok)
		})
	}
}

func TestSubstringDoesNotMatch(t *testing.T) {
	m := NewMatcher([]string{"ca", "sf"})

	_, ok := m.Match([]Field{{Name: "title", Text: "I love cats and sfx makeup"}}, []string{"cats", "scarf"})
	assert.False(t, ok)
}

func TestAccentedLettersAreWordCharacters(t *testing.T) {
	m := NewMatcher([]string{"ca", "sf"})

	_, ok := m.Match([]Field{{Name: "title", Text: "éca ñsf caé sfñ"}}, []string{"éca", "sf2"})
	assert.False(t, ok)

	got, ok := m.Match([]Field{{Name: "title", Text: "café in sf, ça va"}}, nil)
	require.True(t, ok)
	assert.Equal(t, Match{Term: "sf", Source: "title"}, got)

	got, ok = m.Match(nil, []string{"la vie en ca."})
	require.True(t, ok)
	assert.Equal(t, "ca", got.Term)
}

func TestFieldOrderBeatsGazetteerOrder(t *testing.T) {
	m := NewMatcher([]string{"california", "sf"})

	got, ok := m.Match([]Field{
		{Name: "url", Text: "https://sf-art.tumblr.com"},
		{Name: "description", Text: "california dreaming"},
	}, nil)
	require.True(t, ok)
	assert.Equal(t, Match{Term: "sf", Source: "url"}, got)

	// within one field the gazetteer order decides
	got, _ = m.Match([]Field{{Name: "title", Text: "sf, california"}}, nil)
	assert.Equal(t, "california", got.Term)
}

func TestTagsAreCheckedLast(t *testing.T) {
	m := NewMatcher([]string{"oakland", "bay area"})

	got, ok := m.Match([]Field{{Name: "title", Text: "no place here"}, {Name: "description", Text: ""}},
		[]string{"Bay Area Artists", "Oakland"})
	require.True(t, ok)
	assert.Equal(t, Match{Term: "oakland", Source: SourceTags}, got)

	_, ok = m.Match(nil, nil)
	assert.False(t, ok)
}

func TestCaseInsensitive(t *testing.T) {
	m := NewMatcher([]string{"San Francisco"})
	assert.Equal(t, []string{"san francisco"}, m.Terms())

	got, ok := m.Match([]Field{{Name: "title", Text: "SAN FRANCISCO zines"}}, nil)
	require.True(t, ok)
	assert.Equal(t, "san francisco", got.Term)
}

func TestMatchPost(t *testing.T) {
	m := NewMatcher([]string{"california", "sf"})

	got, ok := m.MatchPost(tumblr.Post{BlogName: "x", Body: strp("Living in SF now")})
	require.True(t, ok)
	assert.Equal(t, Match{Term: "sf", Source: "post_body"}, got)

	got, ok = m.MatchPost(tumblr.Post{
		BlogName: "x",
		Caption:  strp("<p>shot in <a href=\"https://example.com/sf\">my studio</a></p>"),
		Answer:   strp("<b>California</b> born"),
	})
	require.True(t, ok)
	assert.Equal(t, Match{Term: "california", Source: "post_answer"}, got, "markup attributes are not searched")

	_, ok = m.MatchPost(tumblr.Post{BlogName: "x", Question: strp("")})
	assert.False(t, ok)
}

func TestMatchProfile(t *testing.T) {
	m := NewMatcher(DefaultGazetteer)

	got, ok := m.MatchProfile(tumblr.BlogInfo{
		Name:        "alpha",
		URL:         "https://alpha.tumblr.com/",
		Title:       "Alpha",
		Description: "drawings from the east bay",
	})
	require.True(t, ok)
	assert.Equal(t, Match{Term: "east bay", Source: "description"}, got)
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "plain text", StripMarkup("plain text"))
	assert.Equal(t, "in sf", StripMarkup("<p>in</p><p>sf</p>"))
	assert.Equal(t, "Tom & Jerry", StripMarkup("<p>Tom &amp; Jerry</p>"))
}
