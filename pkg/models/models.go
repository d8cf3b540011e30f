package models

import (
	"sort"
	"strings"
)

// LastPostDateLayout is the date format used for Profile.LastPostDate
const LastPostDateLayout = "2006-01-02"

// Profile is a qualified blog as it appears in exports and progress files
type Profile struct {
	BlogName            string   `json:"blog_name"`
	BlogURL             string   `json:"blog_url"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	FollowerCount       int      `json:"follower_count"`
	TotalPosts          int      `json:"total_posts"`
	LastPostDate        string   `json:"last_post_date"`
	LocationMatchTerm   string   `json:"location_match_term"`
	LocationMatchSource string   `json:"location_match_source"`
	BlogTags            []string `json:"blog_tags"`
	ThemeMatched        string   `json:"theme_matched"`
}

// ThemeSet is the set of themes a blog was discovered under
type ThemeSet map[string]struct{}

func NewThemeSet(themes ...string) ThemeSet {
	s := make(ThemeSet, len(themes))
	for _, t := range themes {
		s[t] = struct{}{}
	}
	return s
}

func (s ThemeSet) Add(theme string) { s[theme] = struct{}{} }

func (s ThemeSet) Has(theme string) bool {
	_, ok := s[theme]
	return ok
}

// Sorted returns the themes in lexical order
func (s ThemeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Joined renders the set the way exports store it: sorted, ", "-separated
func (s ThemeSet) Joined() string {
	return strings.Join(s.Sorted(), ", ")
}
