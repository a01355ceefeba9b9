// Package relay talks to a Safe transaction service: the off-chain
// store where owners propose Safe transactions and attach confirmations
// until one of them executes it.
package relay

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotFound = errors.New("transaction not found on relay")

// Proposal is a Safe transaction together with the first owner signature.
type Proposal struct {
	Safe           common.Address
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      uint8
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          uint64
	SafeTxHash     common.Hash
	Sender         common.Address
	Signature      []byte
	Origin         string
}

type Confirmation struct {
	Owner     common.Address
	Signature []byte
}

type TransactionStatus struct {
	SafeTxHash            common.Hash
	Nonce                 uint64
	ConfirmationsRequired int
	Confirmations         []Confirmation
	IsExecuted            bool
	// IsSuccessful is nil until the transaction is executed.
	IsSuccessful    *bool
	TransactionHash common.Hash
}

// Succeeded reports whether the transaction was executed without revert.
func (s *TransactionStatus) Succeeded() bool {
	return s.IsExecuted && s.IsSuccessful != nil && *s.IsSuccessful
}

type Client interface {
	Propose(ctx context.Context, p Proposal) error
	Confirm(ctx context.Context, safeTxHash common.Hash, signature []byte) error
	Transaction(ctx context.Context, safeTxHash common.Hash) (*TransactionStatus, error)
	// WaitExecuted polls until the transaction is executed or timeout
	// elapses, in which case the error matches common.ErrTimeout.
	WaitExecuted(ctx context.Context, safeTxHash common.Hash, timeout time.Duration) (*TransactionStatus, error)
}
