package model

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a transfer is stopped by the user. It is not
// treated as a failure: the partial file stays on disk and remains resumable.
var ErrCancelled = errors.New("download cancelled")

// ValidationError reports a bad descriptor or candidate path. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NetworkError wraps a transport or HTTP-status failure. Retryable failures
// (timeouts, resets, 5xx) are absorbed by the backoff loop; auth and
// not-found failures surface immediately.
type NetworkError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StorageError reports insufficient space, permission problems or write
// failures. Never retried automatically.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IntegrityError reports a size, header or checksum mismatch for a local
// file. The downloader allows one cleanup-and-retry cycle before treating it
// as terminal.
type IntegrityError struct {
	Path   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %s", e.Path, e.Reason)
}

// retryable reports whether err may be absorbed by the backoff loop.
func retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Retryable
	}
	return false
}
