package tumblr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	BaseURL = "https://api.tumblr.com"

	TaggedEndpoint   = "/v2/tagged"
	BlogInfoEndpoint = "/v2/blog/%s/info"

	// MaxPageSize is the largest limit the tagged endpoint accepts
	MaxPageSize = 20
)

// TaggedURL builds a tagged-search URL. before <= 0 starts from the newest post.
func TaggedURL(base, tag string, before int64, limit int, apiKey string) string {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	params := url.Values{}
	params.Set("tag", tag)
	params.Set("limit", strconv.Itoa(limit))
	if before > 0 {
		params.Set("before", strconv.FormatInt(before, 10))
	}
	if apiKey != "" {
		params.Set("api_key", apiKey)
	}

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), TaggedEndpoint, params.Encode())
}

// BlogInfoURL builds the blog info URL for a blog name or hostname
func BlogInfoURL(base, blog, apiKey string) string {
	u := fmt.Sprintf("%s"+BlogInfoEndpoint, strings.TrimRight(base, "/"), url.PathEscape(BlogIdentifier(blog)))
	if apiKey == "" {
		return u
	}
	return u + "?" + url.Values{"api_key": {apiKey}}.Encode()
}

// BlogIdentifier turns a bare blog name into its tumblr.com hostname.
// Names that already contain a dot are treated as hostnames.
func BlogIdentifier(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".tumblr.com"
}
