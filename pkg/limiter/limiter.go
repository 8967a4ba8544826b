package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPrefix  = "quota:"
	defaultTimeout = 5 * time.Second
)

// Limiter admits or rejects requests against a shared sliding-window budget.
// It holds no mutable state of its own; every decision is computed from the
// injected Store, so any number of instances across any number of processes
// can share one budget.
type Limiter struct {
	store    Store
	tiers    TierResolver
	cfg      *Config
	prefix   string
	timeout  time.Duration
	recorder MetricsRecorder
	log      *zap.Logger
	now      func() time.Time
}

// New constructs a Limiter over the given store, tier resolver and
// configuration. A nil resolver treats every user as free tier; a nil config
// gets package defaults.
func New(store Store, tiers TierResolver, cfg *Config, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("limiter: store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := &Limiter{
		store:    store,
		tiers:    tiers,
		cfg:      cfg,
		prefix:   defaultPrefix,
		timeout:  defaultTimeout,
		recorder: &NoOpMetricsRecorder{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Admit checks the budget for (userID, class) and, when there is room,
// consumes one unit of it. The returned Decision carries the budget left
// after this call, or the time until reset on denial.
func (l *Limiter) Admit(ctx context.Context, userID string, class ResourceClass) (Decision, error) {
	return l.decide(ctx, userID, class, true)
}

// Peek runs the same accounting as Admit without consuming budget. It is
// safe to call arbitrarily often; no call path mutates the store.
func (l *Limiter) Peek(ctx context.Context, userID string, class ResourceClass) (Decision, error) {
	return l.decide(ctx, userID, class, false)
}

// Reset deletes the window record for (userID, class) outright. Manual
// override only; it is not part of the admission path.
func (l *Limiter) Reset(ctx context.Context, userID string, class ResourceClass) error {
	if userID == "" || class == "" {
		return fmt.Errorf("%w: user %q class %q", ErrInvalidInput, userID, class)
	}
	opCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.Remove(opCtx, storageKey(l.prefix, userID, class))
}

func (l *Limiter) decide(ctx context.Context, userID string, class ResourceClass, consume bool) (Decision, error) {
	op := "peek"
	if consume {
		op = "admit"
	}
	start := l.now()
	dec, err := l.check(ctx, userID, class, consume)
	l.recorder.Observe("quota.latency", l.now().Sub(start).Seconds(), map[string]string{"op": op})
	l.recorder.Add("quota."+op, 1, map[string]string{
		"class":   class.LookupName(),
		"outcome": outcome(dec, err),
	})
	return dec, err
}

func (l *Limiter) check(ctx context.Context, userID string, class ResourceClass, consume bool) (Decision, error) {
	if userID == "" || class == "" {
		return Decision{}, fmt.Errorf("%w: user %q class %q", ErrInvalidInput, userID, class)
	}
	if !l.cfg.Enabled {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	premium := false
	if l.tiers != nil {
		var err error
		premium, err = l.tiers.IsPremium(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("limiter: tier lookup: %w", err)
		}
	}
	tier := TierFree
	if premium {
		tier = TierPremium
	}

	window, err := l.cfg.window(class)
	if err != nil {
		return Decision{}, err
	}
	limit, err := l.cfg.ceiling(class, tier)
	if err != nil {
		return Decision{}, err
	}

	key := storageKey(l.prefix, userID, class)
	remaining, resetAt, err := l.budget(ctx, key, limit, window)
	if err != nil {
		return Decision{}, err
	}

	if remaining == 0 {
		l.log.Debug("quota exhausted",
			zap.String("user", userID),
			zap.String("class", class.LookupName()),
			zap.String("tier", tier.String()),
			zap.Time("reset_at", resetAt))
		var retryAfter time.Duration
		if !resetAt.IsZero() {
			// A zero resetAt means the ceiling itself is zero: there
			// is no window whose lapse would ever free up budget.
			retryAfter = resetAt.Sub(l.now())
		}
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetAt:    resetAt,
		}, nil
	}

	if consume {
		if err := l.record(ctx, key, window); err != nil {
			return Decision{}, err
		}
		remaining--
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// budget reads window state and computes the remaining budget and, when the
// budget is exhausted, the reset time. It never mutates the store: an
// absent or lapsed window reports the full limit and leaves clearing to the
// next record call.
func (l *Limiter) budget(ctx context.Context, key string, limit int64, window time.Duration) (int64, time.Time, error) {
	opCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	earliest, count, err := l.store.Window(opCtx, key)
	if err != nil {
		return 0, time.Time{}, err
	}
	if earliest.IsZero() {
		return limit, time.Time{}, nil
	}
	windowEnd := earliest.Add(window)
	if !l.now().Before(windowEnd) {
		return limit, time.Time{}, nil
	}
	remaining := limit - count
	if remaining <= 0 {
		return 0, windowEnd, nil
	}
	return remaining, time.Time{}, nil
}

// record writes one usage event. The earliest timestamp is re-derived here
// rather than reused from budget: time has passed since that read and the
// window may have lapsed in between, in which case the record is atomically
// replaced instead of appended to.
func (l *Limiter) record(ctx context.Context, key string, window time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	earliest, _, err := l.store.Window(opCtx, key)
	if err != nil {
		return err
	}
	now := l.now()
	if earliest.IsZero() || now.Sub(earliest) >= window {
		l.log.Debug("starting fresh window", zap.String("key", key))
		return l.store.Restart(opCtx, key, now, ceilSeconds(window))
	}
	return l.store.Append(opCtx, key, now)
}

// ceilSeconds rounds a duration up to whole seconds for the store-side TTL.
func ceilSeconds(d time.Duration) time.Duration {
	rounded := d.Truncate(time.Second)
	if rounded < d {
		rounded += time.Second
	}
	return rounded
}

func outcome(dec Decision, err error) string {
	switch {
	case err != nil:
		return "error"
	case dec.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}
