package limiter

import (
	"context"
	"time"
)

// Tier classifies a user for limit resolution.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
)

func (t Tier) String() string {
	if t == TierPremium {
		return "premium"
	}
	return "free"
}

// ResourceClass names the budget bucket a request is charged against,
// typically a model name. Unknown classes are valid and get their own
// bucket with default ceilings; only the empty class is rejected.
type ResourceClass string

const (
	ClassGPT4    ResourceClass = "gpt-4"
	ClassGPT35   ResourceClass = "gpt-3.5-turbo"
	ClassClaude3 ResourceClass = "claude-3"
	ClassTools   ResourceClass = "tools"
)

// Decision reports the outcome of an admission check.
//
// Remaining is the budget left after the decision is applied. It is -1 when
// the limiter is disabled by configuration. RetryAfter and ResetAt are set
// only on denial and report how long until the current window lapses.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	ResetAt    time.Time
}

// TierResolver reports whether a user is on the premium tier.
type TierResolver interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// TierResolverFunc adapts a function to the TierResolver interface.
type TierResolverFunc func(ctx context.Context, userID string) (bool, error)

func (f TierResolverFunc) IsPremium(ctx context.Context, userID string) (bool, error) {
	return f(ctx, userID)
}

// StaticTierResolver resolves premium membership from a fixed set of user IDs.
type StaticTierResolver map[string]struct{}

// NewStaticTierResolver builds a resolver from a list of premium user IDs.
func NewStaticTierResolver(userIDs []string) StaticTierResolver {
	set := make(StaticTierResolver, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	return set
}

func (s StaticTierResolver) IsPremium(ctx context.Context, userID string) (bool, error) {
	_, ok := s[userID]
	return ok, nil
}

// Store is the sorted-set capability the limiter needs from its backing
// storage. Every member of a window record is an event timestamp scored by
// itself; Window must fetch the earliest member and the cardinality in a
// single round trip, and Restart must execute its delete+insert+expire
// sequence atomically.
type Store interface {
	// Window returns the earliest event timestamp in the record and the
	// number of events it holds. A zero earliest means the record is
	// absent or empty.
	Window(ctx context.Context, key string) (earliest time.Time, count int64, err error)

	// Append inserts one event into an existing record.
	Append(ctx context.Context, key string, at time.Time) error

	// Restart atomically replaces the record with a single event at the
	// given time and bounds its lifetime to ttl.
	Restart(ctx context.Context, key string, at time.Time, ttl time.Duration) error

	// Remove deletes the record outright.
	Remove(ctx context.Context, key string) error
}
