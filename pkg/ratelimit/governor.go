package ratelimit

import (
	"context"
	"sync"
	"time"

	"tagfinder/pkg/logger"
)

const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour
)

// Governor gates every outbound API call against a call budget.
//
// BeforeCall may block. It returns false when the budget is spent for the
// rest of the run; callers must then stop issuing calls. RecordCall is called
// exactly once per governed call, after the call was attempted.
type Governor interface {
	BeforeCall(ctx context.Context) (bool, error)
	RecordCall()
	Status() Status
}

// Limits configures a WindowGovernor
type Limits struct {
	Hourly       int
	Daily        int
	SafetyMargin int
	WaitBuffer   time.Duration
}

// DefaultLimits matches the published Tumblr API quotas
func DefaultLimits() Limits {
	return Limits{
		Hourly:       1000,
		Daily:        5000,
		SafetyMargin: 10,
		WaitBuffer:   10 * time.Second,
	}
}

// Status is a snapshot of both windows. It is persisted with run progress.
type Status struct {
	HourlyCalls int       `json:"hourly_calls"`
	HourlyLimit int       `json:"hourly_limit"`
	DailyCalls  int       `json:"daily_calls"`
	DailyLimit  int       `json:"daily_limit"`
	TotalCalls  int       `json:"total_calls"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// HourlyRemaining is zero for an unlimited governor
func (s Status) HourlyRemaining() int {
	return remaining(s.HourlyLimit, s.HourlyCalls)
}

func (s Status) DailyRemaining() int {
	return remaining(s.DailyLimit, s.DailyCalls)
}

// HourResetAt is when the current hour window rolls over
func (s Status) HourResetAt() time.Time {
	return s.HourStart.Add(HourWindow)
}

// DayResetAt is when the current day window rolls over
func (s Status) DayResetAt() time.Time {
	return s.DayStart.Add(DayWindow)
}

func remaining(limit, calls int) int {
	if limit <= 0 || calls >= limit {
		return 0
	}
	return limit - calls
}

// EventKind identifies a governor state change worth surfacing to the operator
type EventKind int

const (
	EventHourPause EventKind = iota
	EventHourResume
	EventDayExhausted
)

// Event describes a pause or a stop
type Event struct {
	Kind  EventKind
	Calls int
	Limit int
	Wait  time.Duration
	Until time.Time
}

// WindowGovernor enforces an hourly and a daily budget. Approaching the
// hourly budget pauses the caller until the hour rolls over; approaching the
// daily budget denies the call outright.
type WindowGovernor struct {
	mu     sync.Mutex
	limits Limits
	clock  Clock
	log    logger.Logger
	notify func(Event)

	hourCalls  int
	dayCalls   int
	totalCalls int
	hourStart  time.Time
	dayStart   time.Time
}

// NewWindowGovernor creates a governor whose windows start now. A nil clock
// means the wall clock.
func NewWindowGovernor(limits Limits, clock Clock, log logger.Logger) *WindowGovernor {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	now := clock.Now()
	return &WindowGovernor{
		limits:    limits,
		clock:     clock,
		log:       log.WithField("component", "governor"),
		hourStart: now,
		dayStart:  now,
	}
}

// OnEvent registers a callback for pauses and stops. Call before use.
func (g *WindowGovernor) OnEvent(fn func(Event)) {
	g.notify = fn
}

func (g *WindowGovernor) BeforeCall(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.Lock()
	now := g.clock.Now()
	g.rollover(now)

	if g.hourCalls >= g.limits.Hourly-g.limits.SafetyMargin {
		left := HourWindow - now.Sub(g.hourStart)
		if left > 0 {
			wait := left + g.limits.WaitBuffer
			calls := g.hourCalls
			g.mu.Unlock()

			logger.LogRateLimit(g.log, "hour", calls, g.limits.Hourly, wait)
			g.emit(Event{Kind: EventHourPause, Calls: calls, Limit: g.limits.Hourly, Wait: wait, Until: now.Add(wait)})

			if err := g.clock.Sleep(ctx, wait); err != nil {
				return false, err
			}
			g.mu.Lock()
		}
		g.hourCalls = 0
		g.hourStart = g.clock.Now()
		g.log.Info("Hourly window reset, resuming")
		g.emit(Event{Kind: EventHourResume, Limit: g.limits.Hourly})
	}

	if g.dayCalls >= g.limits.Daily-g.limits.SafetyMargin {
		calls := g.dayCalls
		g.mu.Unlock()
		g.log.WithFields(map[string]interface{}{
			"calls": calls,
			"limit": g.limits.Daily,
		}).Warn("Reached daily limit, stopping for today")
		g.emit(Event{Kind: EventDayExhausted, Calls: calls, Limit: g.limits.Daily})
		return false, nil
	}

	g.mu.Unlock()
	return true, nil
}

// rollover resets any window whose length has elapsed. Caller holds mu.
func (g *WindowGovernor) rollover(now time.Time) {
	if now.Sub(g.hourStart) >= HourWindow {
		g.log.WithField("calls", g.hourCalls).Info("Hour window completed")
		g.hourCalls = 0
		g.hourStart = now
	}
	if now.Sub(g.dayStart) >= DayWindow {
		g.log.WithField("calls", g.dayCalls).Info("Day window completed")
		g.dayCalls = 0
		g.dayStart = now
	}
}

func (g *WindowGovernor) RecordCall() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hourCalls++
	g.dayCalls++
	g.totalCalls++
}

func (g *WindowGovernor) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		HourlyCalls: g.hourCalls,
		HourlyLimit: g.limits.Hourly,
		DailyCalls:  g.dayCalls,
		DailyLimit:  g.limits.Daily,
		TotalCalls:  g.totalCalls,
		HourStart:   g.hourStart,
		DayStart:    g.dayStart,
	}
}

// Restore loads counters and window starts from a saved status. Counters only
// move up. A window count is taken only together with its start; a status
// without one (an unthrottled run) contributes its total alone. Elapsed
// windows roll over on the next BeforeCall as usual.
func (g *WindowGovernor) Restore(s Status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalCalls = max(g.totalCalls, s.TotalCalls)
	if !s.HourStart.IsZero() {
		g.hourCalls = max(g.hourCalls, s.HourlyCalls)
		g.hourStart = s.HourStart
	}
	if !s.DayStart.IsZero() {
		g.dayCalls = max(g.dayCalls, s.DailyCalls)
		g.dayStart = s.DayStart
	}
}

func (g *WindowGovernor) emit(e Event) {
	if g.notify != nil {
		g.notify(e)
	}
}

// NopGovernor never throttles; it only counts calls.
type NopGovernor struct {
	mu    sync.Mutex
	total int
}

func (n *NopGovernor) BeforeCall(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (n *NopGovernor) RecordCall() {
	n.mu.Lock()
	n.total++
	n.mu.Unlock()
}

// Status reports the total only. Unthrottled calls belong to no window.
func (n *NopGovernor) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{TotalCalls: n.total}
}

// Restore carries the saved total forward so the run summary stays cumulative.
func (n *NopGovernor) Restore(s Status) {
	n.mu.Lock()
	n.total = max(n.total, s.TotalCalls)
	n.mu.Unlock()
}
