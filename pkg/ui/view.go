package ui

import (
	"tagfinder/pkg/finder"
	"tagfinder/pkg/ratelimit"
)

// RunView is what a search run reports to: the plain ProgressDisplay or the
// full-screen dashboard
type RunView interface {
	finder.Observer
	RateEvent(e ratelimit.Event)
	Finish(summary finder.RunSummary)
}
