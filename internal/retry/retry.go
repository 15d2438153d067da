// Package retry provides a bounded fixed-interval retry loop and error
// classification for transport failures.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrorKind classifies an error for retry decisions.
type ErrorKind int

const (
	Retriable    ErrorKind = iota // transient, worth retrying
	NonRetriable                  // permanent, fail immediately
	Unknown                       // unclassified, treat as retriable
)

func (k ErrorKind) String() string {
	switch k {
	case Retriable:
		return "RETRIABLE"
	case NonRetriable:
		return "NON_RETRIABLE"
	default:
		return "UNKNOWN"
	}
}

// nonRetriableKeywords in error text indicate permanent failures.
var nonRetriableKeywords = []string{
	"permission denied",
	"forbidden",
	"invalid",
	"not found",
	"unauthorized",
}

// retriableKeywords in error text indicate transient failures.
var retriableKeywords = []string{
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"connection",
	"temporary",
	"unavailable",
}

// Classify determines whether an error is worth retrying based on sentinel
// context errors and the error text.
func Classify(err error) ErrorKind {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Retriable
	}

	lower := strings.ToLower(err.Error())

	// Non-retriable keywords take priority.
	for _, kw := range nonRetriableKeywords {
		if strings.Contains(lower, kw) {
			return NonRetriable
		}
	}
	for _, kw := range retriableKeywords {
		if strings.Contains(lower, kw) {
			return Retriable
		}
	}
	return Unknown
}

// PermanentError marks an error that must not be retried regardless of its
// text.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops immediately. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries the permanent marker.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Do runs fn up to attempts times with a fixed interval between tries.
// It returns nil on the first success, stops early when ctx is done or fn
// returns a Permanent error, and otherwise returns the last error.
func Do(ctx context.Context, attempts int, interval time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if IsPermanent(last) {
			return last
		}
	}
	return last
}
