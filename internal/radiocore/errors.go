package radiocore

import "errors"

// Validation errors for PreloadConnParamUpdates (RadioTask.c's
// preloadConnParamUpdates negative return codes).
var (
	radioErrTooManyPairs    = errors.New("radiocore: too many param pairs")
	radioErrBadInterval     = errors.New("radiocore: interval out of range")
	radioErrBadDeltaInstant = errors.New("radiocore: delta instant out of range")
)
