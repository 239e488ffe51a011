package alerting

import "errors"

var (
	// ErrMalformedRecord marks input cost records that cannot be aggregated.
	ErrMalformedRecord = errors.New("malformed cost record")
	// ErrInvalidThreshold marks a threshold that cannot be evaluated.
	ErrInvalidThreshold = errors.New("invalid threshold")
)
