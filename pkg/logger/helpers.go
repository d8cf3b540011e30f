package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a finished upstream API call
func LogRequest(l Logger, method, endpoint string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("API request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("API request client error", fields)
	default:
		l.DebugWithFields("API request completed", fields)
	}
}

// LogRateLimit logs a governor pause
func LogRateLimit(l Logger, window string, calls, limit int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"window": window,
		"calls":  calls,
		"limit":  limit,
		"wait":   wait.Round(time.Second).String(),
	}).Warn("Approaching rate limit, pausing until the window rolls over")
}

// LogThemeProgress logs crawl progress for a single theme
func LogThemeProgress(l Logger, theme string, posts, blogs, withLocation int) {
	l.WithFields(map[string]interface{}{
		"theme":         theme,
		"posts":         posts,
		"blogs":         blogs,
		"with_location": withLocation,
	}).Info("Theme crawl progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, cfg map[string]interface{}) {
	l.WithField("component", component).WithFields(cfg).Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs end-of-run counters
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields(fmt.Sprintf("%s finished", operation), fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
