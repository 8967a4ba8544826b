package limiter

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithPrefix sets the storage key prefix (default "quota:"). All instances
// sharing a budget must use the same prefix.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.prefix = prefix
	}
}

// WithTimeout bounds each store round trip (default 5s). The deadline is
// applied on top of whatever deadline the caller's context already carries.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Limiter) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// WithRecorder injects a metrics backend.
func WithRecorder(recorder MetricsRecorder) Option {
	return func(l *Limiter) {
		if recorder != nil {
			l.recorder = recorder
		}
	}
}

// WithLogger injects a structured logger (default zap.NewNop).
func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source. Tests use this to drive window
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}
