// Package retry runs an operation again with backoff while it keeps failing.
//
// It is used for export sinks that talk to a database which may still be
// starting up. Tumblr API calls are never retried within a run; a resumed
// run is the retry for those.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return pool.Ping(ctx)
//	}, retry.DefaultConfig())
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    500 * time.Millisecond,
//			MaxDelay:     10 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		Logger: logger.GetLogger(),
//	}
package retry
