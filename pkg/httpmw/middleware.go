// Package httpmw adapts limiter decisions to HTTP. It is a thin translation
// layer: denials become 429 responses with a JSON body and a Retry-After
// header, failures map to the configured fail-open or fail-closed policy.
package httpmw

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"modelquota/pkg/limiter"
)

// IdentityFunc extracts the user and resource class a request is charged
// against. Returning an empty user ID yields a 400.
type IdentityFunc func(r *http.Request) (userID string, class limiter.ResourceClass)

// DeniedBody is the JSON payload of a 429 response.
type DeniedBody struct {
	Remaining       int64 `json:"remaining"`
	TimeRemainingMs int64 `json:"timeRemainingMs"`
}

// Option configures the middleware.
type Option func(*rateLimit)

// WithFailOpen lets traffic through when the limiter errors. The default is
// fail-closed (503): protecting the backend beats availability for
// budget-guarded resources.
func WithFailOpen() Option {
	return func(m *rateLimit) {
		m.failOpen = true
	}
}

// WithLogger injects a structured logger (default zap.NewNop).
func WithLogger(log *zap.Logger) Option {
	return func(m *rateLimit) {
		if log != nil {
			m.log = log
		}
	}
}

type rateLimit struct {
	limiter  *limiter.Limiter
	identify IdentityFunc
	failOpen bool
	log      *zap.Logger
}

// RateLimit wraps a handler with an Admit check. The budgeted action runs
// only after admission, so every served request is charged exactly once.
func RateLimit(l *limiter.Limiter, identify IdentityFunc, opts ...Option) func(http.Handler) http.Handler {
	m := &rateLimit{limiter: l, identify: identify, log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, class := m.identify(r)
			dec, err := m.limiter.Admit(r.Context(), userID, class)
			if err != nil {
				m.fail(w, r, next, err)
				return
			}
			if !dec.Allowed {
				writeDenied(w, dec)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *rateLimit) fail(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
	if errors.Is(err, limiter.ErrInvalidInput) {
		http.Error(w, "missing user or resource class", http.StatusBadRequest)
		return
	}
	if m.failOpen {
		m.log.Warn("limiter unavailable, failing open", zap.Error(err))
		next.ServeHTTP(w, r)
		return
	}
	m.log.Error("limiter unavailable, failing closed", zap.Error(err))
	http.Error(w, "quota check unavailable", http.StatusServiceUnavailable)
}

func writeDenied(w http.ResponseWriter, dec limiter.Decision) {
	retrySeconds := int64(dec.RetryAfter.Seconds())
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(retrySeconds, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(DeniedBody{
		Remaining:       dec.Remaining,
		TimeRemainingMs: dec.RetryAfter.Milliseconds(),
	})
}

// ResetHandler exposes the administrative reset as an HTTP handler. The
// identity function decides where user and class come from (header, query,
// route parameter).
func ResetHandler(l *limiter.Limiter, identify IdentityFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, class := identify(r)
		if err := l.Reset(r.Context(), userID, class); err != nil {
			if errors.Is(err, limiter.ErrInvalidInput) {
				http.Error(w, "missing user or resource class", http.StatusBadRequest)
				return
			}
			http.Error(w, "reset failed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
