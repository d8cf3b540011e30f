package crawl

// State is where a theme search ended up
type State int

const (
	Fetching State = iota
	Exhausted
	BudgetStopped
	ErrorStopped
	Cancelled
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Exhausted:
		return "exhausted"
	case BudgetStopped:
		return "budget_stopped"
	case ErrorStopped:
		return "error_stopped"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Evidence is a location term found in one of a blog's posts
type Evidence struct {
	Term   string
	Source string
}

// Candidate is a blog seen during a theme search
type Candidate struct {
	BlogID   string
	Evidence map[Evidence]struct{}
}

func (c *Candidate) Add(e Evidence) {
	c.Evidence[e] = struct{}{}
}

func (c *Candidate) HasEvidence() bool {
	return len(c.Evidence) > 0
}

// AnyEvidence returns one member of the evidence set. Which one is not
// defined when there are several.
func (c *Candidate) AnyEvidence() (Evidence, bool) {
	for e := range c.Evidence {
		return e, true
	}
	return Evidence{}, false
}

// Result is everything one theme search produced
type Result struct {
	Theme      string
	Candidates map[string]*Candidate
	// Order lists blog ids in first-seen order.
	Order     []string
	State     State
	Posts     int
	Pages     int
	Malformed int
	// Err is the upstream error that ended an ErrorStopped search.
	Err error
}

func newResult(theme string) Result {
	return Result{Theme: theme, Candidates: make(map[string]*Candidate), State: Fetching}
}

func (r *Result) candidate(blog string) *Candidate {
	c, ok := r.Candidates[blog]
	if !ok {
		c = &Candidate{BlogID: blog, Evidence: make(map[Evidence]struct{})}
		r.Candidates[blog] = c
		r.Order = append(r.Order, blog)
	}
	return c
}

func (r Result) stop(s State) Result {
	r.State = s
	return r
}

// WithLocation counts candidates that carry post evidence
func (r Result) WithLocation() int {
	n := 0
	for _, c := range r.Candidates {
		if c.HasEvidence() {
			n++
		}
	}
	return n
}

// Partial reports whether the search ended before running out of posts
func (r Result) Partial() bool {
	return r.State != Exhausted
}
