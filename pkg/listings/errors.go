package listings

import (
	"errors"
	"fmt"
	"net/http"
)

// Class partitions upstream failures by how callers should react.
type Class int

const (
	// ClassTransient failures (timeouts, resets, decompression failures, 5xx) may be
	// retried.
	ClassTransient Class = iota
	// ClassNotFound means the listing no longer exists upstream.
	ClassNotFound
	// ClassBadRequest means the criteria were rejected; retrying cannot succeed.
	ClassBadRequest
)

// SourceError is a typed failure from the upstream listing source.
type SourceError struct {
	Op         string
	StatusCode int
	Class      Class
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("listings: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("listings: %s failed: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable upstream failure. Unclassified errors
// are treated as transient.
func IsTransient(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Class == ClassTransient
	}
	return true
}

// IsNotFound reports whether err means the requested listing does not exist upstream.
func IsNotFound(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Class == ClassNotFound
}

func classifyStatus(status int) Class {
	switch {
	case status == http.StatusNotFound:
		return ClassNotFound
	case status >= 400 && status < 500:
		return ClassBadRequest
	default:
		return ClassTransient
	}
}

func statusError(op string, status int) *SourceError {
	return &SourceError{
		Op:         op,
		StatusCode: status,
		Class:      classifyStatus(status),
		Err:        fmt.Errorf("unexpected status %d", status),
	}
}

func transportError(op string, err error) *SourceError {
	return &SourceError{
		Op:    op,
		Class: ClassTransient,
		Err:   err,
	}
}
