package middleware

import "errors"

// ErrRateLimitExceeded indicates a run has used up its tool call budget.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")
