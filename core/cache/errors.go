package cache

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that the store could not be reached or did not answer in time.
// It is fatal for the current request only.
var ErrUnavailable = errors.New("cache unavailable")

// OpError describes a failed store operation. It matches ErrUnavailable and the driver error.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *OpError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Code is picked up by handler summaries as err_code.
func (e *OpError) Code() string {
	return "cache_unavailable"
}
