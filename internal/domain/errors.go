package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidBrief    = errors.New("invalid brief")
	ErrStaleClaim      = errors.New("stale claim")
	ErrRendererFailure = errors.New("renderer failure")
)

// nonRetryableError marks a renderer failure that must not be retried, e.g.
// an invalid payload rejected by the provider.
type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string { return e.err.Error() }

func (e nonRetryableError) Unwrap() error { return e.err }

// NonRetryable wraps err so the dispatcher fails the job terminally instead
// of requeueing it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return nonRetryableError{err: err}
}

// IsNonRetryable reports whether err carries the non-retryable marker.
func IsNonRetryable(err error) bool {
	var marker nonRetryableError
	return errors.As(err, &marker)
}
