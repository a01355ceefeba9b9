package common

import (
	"errors"
	"fmt"
)

// Error categories. Every error produced by safetx matches exactly one of
// them with errors.Is so callers can decide whether to retry, re-poll or
// report back to the user.
var (
	// ErrValidation is the caller's fault and is never retried automatically.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization is fatal to the current operation.
	ErrAuthorization = errors.New("authorization error")
	// ErrState means a precondition is not satisfied yet.
	ErrState = errors.New("state error")
	// ErrTransport wraps node or relay failures. Read-only calls are safe to
	// retry, raw transaction submission is not.
	ErrTransport = errors.New("transport error")
	// ErrTimeout means a wait ran out. The transaction may still land so
	// callers must re-poll instead of resubmitting.
	ErrTimeout = errors.New("timeout")
	// ErrDeployment is an on-chain failure while deploying a Safe.
	ErrDeployment = errors.New("deployment error")
	// ErrExecution is an on-chain revert of a Safe transaction.
	ErrExecution = errors.New("execution error")
)

var (
	ErrInvalidAddress   = newKindError(ErrValidation, "invalid address")
	ErrUnresolvedName   = newKindError(ErrValidation, "unresolved name")
	ErrInvalidAmount    = newKindError(ErrValidation, "invalid amount")
	ErrUnsupportedToken = newKindError(ErrValidation, "unsupported token")
	ErrEmptyBatch       = newKindError(ErrValidation, "no transactions to batch")
	ErrInvalidOwners    = newKindError(ErrValidation, "invalid owners or threshold")
	ErrNotASafeAccount  = newKindError(ErrValidation, "not a safe account")

	ErrUnauthorizedSigner = newKindError(ErrAuthorization, "signer is not an owner")
	ErrDuplicateSignature = newKindError(ErrAuthorization, "signer already signed")
	ErrInvalidSignature   = newKindError(ErrAuthorization, "invalid signature")

	ErrBatchInProgress        = newKindError(ErrState, "batch in progress")
	ErrInsufficientSignatures = newKindError(ErrState, "insufficient signatures")
	ErrInvalidState           = newKindError(ErrState, "invalid transaction state")
	ErrNotConnected           = newKindError(ErrState, "no safe connected")
	ErrNoRelay                = newKindError(ErrState, "no relay service configured")
)

// kindError is a specific error that also matches its category.
type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// TransportError carries the underlying node or relay failure.
type TransportError struct {
	Op  string
	Err error
}

func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Category returns the category sentinel matched by err, or nil when err
// is not a safetx error.
func Category(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrAuthorization,
		ErrState,
		ErrTimeout,
		ErrTransport,
		ErrDeployment,
		ErrExecution,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
