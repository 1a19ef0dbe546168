package cache

import "errors"

// ErrCacheMiss means the key is absent or expired. Callers treat it as a
// normal outcome, not a failure.
var ErrCacheMiss = errors.New("cache miss")
