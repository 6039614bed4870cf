package vfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the provider error taxonomy. Providers translate
// their native failures into exactly one of these (wrapped with context via
// %w) so that callers can branch on class instead of backend details.
var (
	// ErrNotFound indicates the path does not exist. Not retried.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the path is not accessible. Not retried.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConnectivity indicates a transport-level failure on a remote
	// session. Retryable after reconnection.
	ErrConnectivity = errors.New("connectivity error")
	// ErrAuthentication indicates the remote host rejected the supplied
	// credentials. Never retried automatically.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNameCollision indicates the destination name already exists.
	// Resolved by the overwrite policy, not a failure by itself.
	ErrNameCollision = errors.New("name collision")
	// ErrCancelled indicates the operation was cancelled by the caller.
	ErrCancelled = errors.New("cancelled")
	// ErrSkippedDirectory indicates a directory source was skipped because
	// the request was not recursive.
	ErrSkippedDirectory = errors.New("directory skipped (not recursive)")
)

// Class buckets an error for retry strategy decisions.
type Class int

const (
	// ClassNone is a nil error.
	ClassNone Class = iota
	// ClassFatal errors are final: NotFound, PermissionDenied, collisions
	// and anything unclassified.
	ClassFatal
	// ClassConnectivity errors are retryable with backoff after the
	// session recovers.
	ClassConnectivity
	// ClassAuth errors need new credentials; never auto-retried.
	ClassAuth
	// ClassCancelled errors come from caller cancellation and stop
	// everything immediately.
	ClassCancelled
)

// Classify maps an error onto its retry class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled):
		return ClassCancelled
	case errors.Is(err, ErrConnectivity) || errors.Is(err, context.DeadlineExceeded):
		return ClassConnectivity
	case errors.Is(err, ErrAuthentication):
		return ClassAuth
	default:
		return ClassFatal
	}
}

// IsRetryable reports whether the error class is eligible for bounded
// automatic retry.
func IsRetryable(err error) bool {
	return Classify(err) == ClassConnectivity
}

// IsTransportError recognizes network-level failure text from the ssh/sftp
// stack and the OS dialer. Used by providers when no typed error is
// available from the transport.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	indicators := []string{
		"connection reset",
		"connection refused",
		"connection lost",
		"broken pipe",
		"i/o timeout",
		"use of closed network connection",
		"handshake failed",
		"unexpected eof",
		"eof",
		"network is unreachable",
		"no route to host",
	}
	for _, s := range indicators {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WrapUnknown wraps an unexpected provider error, always preserving the
// underlying cause. Errors already carrying a taxonomy sentinel pass through
// unchanged.
func WrapUnknown(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if Classify(err) != ClassFatal {
		return err
	}
	for _, sentinel := range []error{ErrNotFound, ErrPermissionDenied, ErrNameCollision, ErrSkippedDirectory} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%s %s: unknown failure: %w", op, path, err)
}
