package tumblr

import (
	"time"

	apierrors "tagfinder/pkg/errors"
)

// Post is one entry from the tagged endpoint. Content fields are optional
// and depend on the post type.
type Post struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	BlogName  string    `json:"blog_name"`
	Blog      *PostBlog `json:"blog,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Body      *string   `json:"body,omitempty"`
	Caption   *string   `json:"caption,omitempty"`
	Question  *string   `json:"question,omitempty"`
	Answer    *string   `json:"answer,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

type PostBlog struct {
	Name string `json:"name"`
}

// ContentField is a named piece of post text
type ContentField struct {
	Name string
	Text string
}

// Author returns the blog that published the post
func (p Post) Author() string {
	if p.BlogName != "" {
		return p.BlogName
	}
	if p.Blog != nil {
		return p.Blog.Name
	}
	return ""
}

// Content returns the non-empty text fields in body, caption, question, answer order
func (p Post) Content() []ContentField {
	var out []ContentField
	for _, f := range []struct {
		name string
		val  *string
	}{
		{"body", p.Body},
		{"caption", p.Caption},
		{"question", p.Question},
		{"answer", p.Answer},
	} {
		if f.val != nil && *f.val != "" {
			out = append(out, ContentField{Name: f.name, Text: *f.val})
		}
	}
	return out
}

func (p Post) Validate() error {
	if p.Author() == "" {
		return apierrors.New(apierrors.ErrorTypeMalformed, 0, "post %d has no blog name", p.ID)
	}
	return nil
}

// BlogInfo is the profile returned by the blog info endpoint
type BlogInfo struct {
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Posts          int      `json:"posts"`
	TotalFollowers *int     `json:"total_followers,omitempty"`
	Followers      *int     `json:"followers,omitempty"`
	Updated        *int64   `json:"updated,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// FollowerCount prefers total_followers and falls back to followers
func (b BlogInfo) FollowerCount() int {
	switch {
	case b.TotalFollowers != nil:
		return *b.TotalFollowers
	case b.Followers != nil:
		return *b.Followers
	default:
		return 0
	}
}

// LastUpdated returns the last activity time, or false when the blog has none
func (b BlogInfo) LastUpdated() (time.Time, bool) {
	if b.Updated == nil || *b.Updated <= 0 {
		return time.Time{}, false
	}
	return time.Unix(*b.Updated, 0), true
}

func (b BlogInfo) Validate() error {
	if b.Name == "" {
		return apierrors.New(apierrors.ErrorTypeMalformed, 0, "blog info has no name")
	}
	return nil
}
