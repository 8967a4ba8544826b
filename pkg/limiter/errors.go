package limiter

import "errors"

// ErrInvalidInput indicates an empty user ID or resource class. The request
// is rejected before any store access.
var ErrInvalidInput = errors.New("limiter: invalid input")

// ErrBadConfig indicates a negative or unparsable configured value. It is
// fatal for the admission attempt and is never downgraded to an allow.
var ErrBadConfig = errors.New("limiter: invalid configuration")

// ErrStoreUnavailable wraps network or store failures. The limiter does not
// retry; callers map it to their fail-open or fail-closed policy.
var ErrStoreUnavailable = errors.New("limiter: store unavailable")
