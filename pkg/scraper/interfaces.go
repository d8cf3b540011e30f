package scraper

import (
	"context"

	"tagfinder/pkg/tumblr"
)

// TumblrClient is the part of the API a run uses
type TumblrClient interface {
	Tagged(ctx context.Context, tag string, before int64, limit int) ([]tumblr.Post, error)
	BlogInfo(ctx context.Context, blog string) (*tumblr.BlogInfo, error)
}
