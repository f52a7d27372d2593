package clients

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds exponential backoff by attempt count.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultRetry is used by hosted classifiers and detectors.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retryable reports whether a failed request may succeed on a later attempt.
// Client errors are final except 408 and 429; cancellation is final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests {
			return true
		}
		return se.Code < 400 || se.Code >= 500
	}
	return true
}

// Do runs op until it succeeds, fails permanently, the attempts run out or ctx is done.
// notify is called before each wait; it may be nil.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, notify func(err error, wait time.Duration)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		eb.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		eb.MaxInterval = p.Max
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	wrapped := func() error {
		err := op(ctx)
		if err == nil || Retryable(err) {
			return err
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.RetryNotify(wrapped, b, notify)
}
