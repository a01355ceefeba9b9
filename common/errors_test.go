package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindErrorsMatchTheirCategory(t *testing.T) {
	cases := map[error]error{
		ErrInvalidAddress:         ErrValidation,
		ErrUnresolvedName:         ErrValidation,
		ErrUnsupportedToken:       ErrValidation,
		ErrInvalidOwners:          ErrValidation,
		ErrUnauthorizedSigner:     ErrAuthorization,
		ErrInvalidSignature:       ErrAuthorization,
		ErrBatchInProgress:        ErrState,
		ErrInsufficientSignatures: ErrState,
		ErrNoRelay:                ErrState,
	}
	for err, kind := range cases {
		wrapped := fmt.Errorf("context: %w", err)
		require.ErrorIs(t, wrapped, kind, err.Error())
		require.ErrorIs(t, wrapped, err)
		require.Equal(t, kind, Category(wrapped))
	}
	require.False(t, errors.Is(ErrNoRelay, ErrValidation))
}

func TestTransportError(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewTransportError("eth_call", cause)
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "eth_call: context deadline exceeded", err.Error())
	require.Equal(t, ErrTransport, Category(err))

	// wrapping twice keeps the innermost operation
	require.Same(t, err, NewTransportError("relay", err))
	require.Nil(t, NewTransportError("eth_call", nil))

	timeout := fmt.Errorf("%w: not mined", ErrTimeout)
	require.Equal(t, timeout, NewTransportError("eth_getTransactionReceipt", timeout))
}

func TestCategoryOfForeignError(t *testing.T) {
	require.Nil(t, Category(errors.New("boom")))
	// a timed out deployment is reported as a timeout so callers re-poll
	require.Equal(t, ErrTimeout, Category(fmt.Errorf("%w: %w", ErrDeployment, ErrTimeout)))
}
