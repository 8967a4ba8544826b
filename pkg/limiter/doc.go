// Package limiter provides local and distributed per-user, per-resource-class
// rate limiting based on a sliding window of event timestamps.
//
// The primary entry points are Admit and Peek:
//
//	dec, err := l.Admit(ctx, userID, class)
//	dec, err := l.Peek(ctx, userID, class)
//
// The returned Decision contains whether the request is allowed, how much
// budget remains, and timing hints for callers that want to set rate-limit
// headers (for example, Retry-After).
//
// # Overview
//
// Each (user, resource class) pair has a window record: the set of timestamps
// of its admitted requests, all falling inside one window starting at the
// earliest timestamp in the record. A request is admitted while the record
// holds fewer events than the user's ceiling; once the earliest event is a
// full window old, the next admitted request atomically replaces the whole
// record with a fresh one-event window. Unlike a token bucket, the budget
// does not trickle back — it comes back all at once when the window lapses,
// which matches per-model usage quotas ("N requests per H hours") rather
// than throughput shaping.
//
// # Core Types
//
// ResourceClass names the budget bucket, typically a model name. Family
// variants collapse to one bucket ("gpt-4-turbo" and "gpt-4" share a budget);
// unknown classes get their own bucket with default ceilings.
//
// Tier is the free/premium classification of a user, resolved per request
// through the injected TierResolver. Ceilings default to 15 (free) and
// 30 (premium) and can be overridden per class through Config.
//
// Config carries the enable flag, window sizes and ceilings. It is built
// once at process start — usually with LoadConfig over os.Environ() — and
// injected; the limiter never reads ambient environment state itself.
//
// # Backends
//
// The limiter talks to storage through the Store interface, which needs
// exactly four capabilities: fetch earliest-event-plus-cardinality in one
// round trip, append an event, atomically reset to a one-event record with a
// TTL, and delete. Two implementations ship:
//
//   - MemoryStore: an in-process store backed by a Go map. Useful for unit
//     tests, local development and single-instance deployments. Its state is
//     local to the process, so it does not enforce a global budget across
//     replicas.
//
//   - RedisStore: a distributed store backed by Redis sorted sets. The
//     reset branch runs DEL+ZADD+EXPIRE inside one MULTI/EXEC, which makes
//     it safe for many application instances to share one budget per user.
//
// # Concurrency
//
// The Limiter itself holds no mutable state; all shared state lives in the
// store. Within one request there is a read-then-write gap between the
// budget check and the event write. The design accepts a bounded overshoot
// (at most one extra admitted request per concurrent race) instead of paying
// for cross-call locking: the append branch is commutative across callers,
// and the reset branch is atomic. The budget is advisory, not a security
// boundary.
//
// # Context and Error Policy
//
// Every operation takes a context.Context and additionally bounds each store
// round trip with the WithTimeout deadline. The limiter never retries and
// never downgrades a failure into an allow: store and tier-lookup errors are
// returned to the caller, who decides between failing open (maximize
// availability) and failing closed (protect the backend). Sentinel errors
// ErrInvalidInput, ErrBadConfig and ErrStoreUnavailable support errors.Is.
//
// # Decision Semantics
//
//   - Allowed reports whether the request is permitted.
//   - Remaining is the budget left after the decision is applied, or -1 when
//     the limiter is disabled by configuration.
//   - RetryAfter and ResetAt are set only on denial and report when the
//     current window lapses.
//
// Peek runs the same accounting as Admit but never writes, so it can be
// called arbitrarily often to pre-flight routing decisions without consuming
// budget. One documented consequence: after a window lapses, Peek keeps
// reporting a full budget off the stale record until the next Admit replaces
// it. That is by construction — only the write path clears state.
//
// # Storage Details
//
// Records are stored under keys of the form
//
//	"{prefix}{userID}:{CLASS_LOOKUP_NAME}"
//
// with a default prefix of "quota:". Each event is both member and score
// (millisecond epoch) in a sorted set, so two events in the same millisecond
// collapse into one; each still counts once toward cardinality and the loss
// of one accounting unit is accepted. Keys expire after one window so
// abandoned records do not leak.
//
// # Configuration
//
// Limiter is configured using the Functional Options pattern:
//
//	l, _ := limiter.New(store, tiers, cfg,
//		limiter.WithPrefix("myapp:quota:"),
//		limiter.WithTimeout(2*time.Second),
//		limiter.WithRecorder(myMetrics),
//		limiter.WithLogger(log),
//	)
//
// Budget settings come from environment-style keys (see LoadConfig):
// QUOTA_ENABLED, QUOTA_WINDOW_MINUTES, QUOTA_WINDOW_MINUTES_<CLASS>,
// QUOTA_LIMIT_<CLASS>_FREE and QUOTA_LIMIT_<CLASS>_PREMIUM. A malformed or
// negative value is a configuration error, never a silent fallback.
package limiter
