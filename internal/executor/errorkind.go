package executor

import (
	"context"
	"errors"
)

// ErrorKind is the closed taxonomy node handlers and the scheduler classify
// every failure into, generalizing ExecutionError's transient/permanent
// Classification (errors.go) into the engine's externally-visible vocabulary.
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindPermission  ErrorKind = "permission"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindRateLimit   ErrorKind = "rate_limit"
	ErrorKindServerError ErrorKind = "server_error"
	ErrorKindSafetyBlock ErrorKind = "safety_block"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// retryableKinds are the ErrorKinds the scheduler will retry, subject to the
// node's own retry budget.
var retryableKinds = map[ErrorKind]bool{
	ErrorKindRateLimit:   true,
	ErrorKindServerError: true,
	ErrorKindTimeout:     true,
}

// SafetyBlockError is returned by a SafetyChecker when a pre/post-check
// rejects a payload outright (as opposed to redacting it).
type SafetyBlockError struct {
	NodeID string
	Reason string
}

func (e *SafetyBlockError) Error() string {
	return "safety block on node " + e.NodeID + ": " + e.Reason
}

// ClassifyErrorKind maps an error onto the closed ErrorKind taxonomy,
// reusing ClassifyError's transient/permanent signal detection and adding
// the engine-specific cancelled/safety_block cases.
func ClassifyErrorKind(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	var safetyErr *SafetyBlockError
	if errors.As(err, &safetyErr) {
		return ErrorKindSafetyBlock
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorKindRateLimit
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	switch ClassifyError(err) {
	case ErrorClassificationTransient:
		return ErrorKindServerError
	case ErrorClassificationPermanent:
		return ErrorKindValidation
	default:
		return ErrorKindUnknown
	}
}

// IsRetryableError reports whether the scheduler should retry a node whose
// handler returned err, subject to the node's own retry budget.
func IsRetryableError(err error) bool {
	return retryableKinds[ClassifyErrorKind(err)]
}
