package msig

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	safetxcommon "github.com/tranvictor/safetx/common"
)

type Operation uint8

const (
	Call         Operation = 0
	DelegateCall Operation = 1
)

func (o Operation) String() string {
	switch o {
	case Call:
		return "call"
	case DelegateCall:
		return "delegatecall"
	}
	return fmt.Sprintf("operation(%d)", uint8(o))
}

type State int

const (
	AwaitingSignatures State = iota
	Submitted
	Executed
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingSignatures:
		return "awaiting signatures"
	case Submitted:
		return "submitted"
	case Executed:
		return "executed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Executed || s == Failed
}

// Transaction is a Safe transaction aggregating one or more prepared
// calls. The Safe tx fields are fixed once batched, only the signature
// set and the lifecycle state change afterwards.
type Transaction struct {
	Safe           common.Address
	ChainID        *big.Int
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          uint64
	Threshold      int

	calls  []safetxcommon.PreparedTx
	owners map[common.Address]bool

	mu         sync.Mutex
	hash       common.Hash
	signatures map[common.Address][]byte
	relayed    map[common.Address]bool
	proposed   bool
	state      State
	// submitting is set while a Submit call owns the transaction, before
	// its state moves to Submitted.
	submitting bool
	execTxHash common.Hash
	receipt    *types.Receipt
	failure    string
}

func newTransaction(account *Account, chainID *big.Int, to common.Address, value *big.Int, data []byte, op Operation, nonce uint64, calls []safetxcommon.PreparedTx) (*Transaction, error) {
	tx := &Transaction{
		Safe:       account.Address,
		ChainID:    new(big.Int).Set(chainID),
		To:         to,
		Value:      new(big.Int).Set(value),
		Data:       common.CopyBytes(data),
		Operation:  op,
		SafeTxGas:  big.NewInt(0),
		BaseGas:    big.NewInt(0),
		GasPrice:   big.NewInt(0),
		Nonce:      nonce,
		Threshold:  account.Threshold,
		calls:      append([]safetxcommon.PreparedTx{}, calls...),
		owners:     map[common.Address]bool{},
		signatures: map[common.Address][]byte{},
		relayed:    map[common.Address]bool{},
		state:      AwaitingSignatures,
	}
	for _, o := range account.Owners {
		tx.owners[o] = true
	}
	hash, err := tx.ComputeHash()
	if err != nil {
		return nil, err
	}
	tx.hash = hash
	return tx, nil
}

// ComputeHash recomputes the EIP-712 Safe transaction hash from the
// transaction fields.
func (tx *Transaction) ComputeHash() (common.Hash, error) {
	return SafeTxHash(tx.ChainID, tx.Safe, SafeTxData{
		To:             tx.To,
		Value:          tx.Value,
		Data:           tx.Data,
		Operation:      tx.Operation,
		SafeTxGas:      tx.SafeTxGas,
		BaseGas:        tx.BaseGas,
		GasPrice:       tx.GasPrice,
		GasToken:       tx.GasToken,
		RefundReceiver: tx.RefundReceiver,
		Nonce:          tx.Nonce,
	})
}

func (tx *Transaction) Hash() common.Hash {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.hash
}

// Calls are the prepared transactions in the order they execute.
func (tx *Transaction) Calls() []safetxcommon.PreparedTx {
	return append([]safetxcommon.PreparedTx{}, tx.calls...)
}

func (tx *Transaction) IsOwner(addr common.Address) bool {
	return tx.owners[addr]
}

func (tx *Transaction) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

func (tx *Transaction) Signatures() map[common.Address][]byte {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	result := map[common.Address][]byte{}
	for k, v := range tx.signatures {
		result[k] = common.CopyBytes(v)
	}
	return result
}

func (tx *Transaction) SignatureCount() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.signatures)
}

func (tx *Transaction) HasSigned(owner common.Address) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	_, ok := tx.signatures[owner]
	return ok
}

// Receipt is set once the transaction is executed or failed on-chain.
func (tx *Transaction) Receipt() *types.Receipt {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.receipt
}

// ExecTxHash is the hash of the on-chain transaction executing the Safe
// transaction, zero until it is known.
func (tx *Transaction) ExecTxHash() common.Hash {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.execTxHash
}

func (tx *Transaction) FailureReason() string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.failure
}

func (tx *Transaction) Proposed() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.proposed
}

// The *Locked methods must be called with tx.mu held.

func (tx *Transaction) statusLocked() string {
	if tx.submitting {
		return "being submitted"
	}
	return tx.state.String()
}

// openLocked reports whether tx still accepts signatures, proposals and
// discarding.
func (tx *Transaction) openLocked() bool {
	return tx.state == AwaitingSignatures && !tx.submitting
}

func (tx *Transaction) checkSignableLocked(owner common.Address) error {
	if !tx.openLocked() {
		return fmt.Errorf("%w: can't sign a transaction that is %s", safetxcommon.ErrInvalidState, tx.statusLocked())
	}
	if !tx.owners[owner] {
		return fmt.Errorf("%w: %s", safetxcommon.ErrUnauthorizedSigner, owner.Hex())
	}
	if _, ok := tx.signatures[owner]; ok {
		return fmt.Errorf("%w: %s", safetxcommon.ErrDuplicateSignature, owner.Hex())
	}
	return nil
}

func (tx *Transaction) addSignatureLocked(owner common.Address, sig []byte) error {
	if err := tx.checkSignableLocked(owner); err != nil {
		return err
	}
	tx.signatures[owner] = common.CopyBytes(sig)
	signaturesTotal.Inc()
	return nil
}

// claim reserves tx for one submission. Only one caller can hold the
// claim, every other Submit fails with ErrInvalidState until it is
// released or the transaction leaves AwaitingSignatures.
func (tx *Transaction) claim() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.openLocked() {
		return fmt.Errorf("%w: can't submit a transaction that is %s", safetxcommon.ErrInvalidState, tx.statusLocked())
	}
	if len(tx.signatures) < tx.Threshold {
		return fmt.Errorf("%w: %d of %d", safetxcommon.ErrInsufficientSignatures, len(tx.signatures), tx.Threshold)
	}
	tx.submitting = true
	return nil
}

// release gives the claim back when nothing was broadcast.
func (tx *Transaction) release() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.submitting = false
}

// markSubmitted moves a claimed tx to Submitted. execTxHash is zero when
// someone else executes it.
func (tx *Transaction) markSubmitted(execTxHash common.Hash) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.state = Submitted
	tx.submitting = false
	tx.execTxHash = execTxHash
}

// sortedSignaturesLocked returns the signing owners ascending and the
// concatenation of their signatures in that order.
func (tx *Transaction) sortedSignaturesLocked() ([]common.Address, []byte) {
	owners := make([]common.Address, 0, len(tx.signatures))
	for o := range tx.signatures {
		owners = append(owners, o)
	}
	safetxcommon.SortAddresses(owners)
	packed := make([]byte, 0, 65*len(owners))
	for _, o := range owners {
		packed = append(packed, tx.signatures[o]...)
	}
	return owners, packed
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("safe tx %s (nonce %d, %d calls, %s)", tx.Hash().Hex(), tx.Nonce, len(tx.calls), tx.State())
}
