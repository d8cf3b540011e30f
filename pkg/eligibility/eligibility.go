// Package eligibility decides whether a blog is popular and active enough to keep.
package eligibility

import (
	"time"

	"tagfinder/pkg/tumblr"
)

// Filter holds the qualification thresholds. Now defaults to time.Now.
type Filter struct {
	MinFollowers    int
	MaxInactiveDays int
	Now             func() time.Time
}

// Check reports whether info passes both thresholds. The last activity time
// is returned whenever the blog has one, including when it is too old.
func (f Filter) Check(info tumblr.BlogInfo) (bool, *time.Time) {
	if info.FollowerCount() < f.MinFollowers {
		return false, nil
	}

	last, ok := info.LastUpdated()
	if !ok {
		return false, nil
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	// whole days, truncated
	days := int(now().Sub(last).Hours() / 24)
	if days > f.MaxInactiveDays {
		return false, &last
	}
	return true, &last
}
