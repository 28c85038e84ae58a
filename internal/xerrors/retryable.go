package xerrors

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyspandb/keyspan-go-sdk/internal/backoff"
)

var errDeadlineExceededStd = context.DeadlineExceeded

type retryableError struct {
	name        string
	err         error
	backoffType backoff.Type
}

func (re *retryableError) Name() string {
	return "retryable/" + re.name
}

func (re *retryableError) BackoffType() backoff.Type {
	return re.backoffType
}

func (re *retryableError) Error() string {
	return fmt.Sprintf("%s (source error = %q)", re.Name(), re.err.Error())
}

func (re *retryableError) Unwrap() error {
	return re.err
}

type RetryableErrorOption func(re *retryableError)

func WithBackoff(t backoff.Type) RetryableErrorOption {
	return func(re *retryableError) {
		re.backoffType = t
	}
}

func WithName(name string) RetryableErrorOption {
	return func(re *retryableError) {
		re.name = name
	}
}

// Retryable marks err as retryable for the retry loops.
func Retryable(err error, opts ...RetryableErrorOption) error {
	re := &retryableError{
		err:         err,
		name:        "CUSTOM",
		backoffType: backoff.TypeFastBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(re)
		}
	}

	return re
}

// RetryableError return retryable error if err is retriable error, else nil
func RetryableError(err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return re
	}

	return nil
}
