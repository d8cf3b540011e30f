// Package ratelimit keeps tagfinder inside the Tumblr API call budget.
//
// WindowGovernor tracks calls in a rolling hour and day window. When the
// hourly budget is nearly spent it sleeps until the hour rolls over; when the
// daily budget is nearly spent it refuses further calls so the run can save
// progress and stop. NopGovernor is the unthrottled variant.
//
// Pacer adds a fixed courtesy delay between consecutive calls, and
// SlidingWindow is an optional per-minute burst guard inside the API client.
package ratelimit
