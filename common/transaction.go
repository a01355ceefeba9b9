package common

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// UnsignedTransaction is a single call to be executed by a Safe. It is
// immutable once constructed: the constructor and accessors copy.
type UnsignedTransaction struct {
	to       common.Address
	data     []byte
	value    *big.Int
	gasLimit uint64
}

func NewUnsignedTransaction(to common.Address, data []byte, value *big.Int, gasLimit uint64) UnsignedTransaction {
	v := big.NewInt(0)
	if value != nil {
		v.Set(value)
	}
	return UnsignedTransaction{
		to:       to,
		data:     common.CopyBytes(data),
		value:    v,
		gasLimit: gasLimit,
	}
}

func (t UnsignedTransaction) To() common.Address {
	return t.to
}

func (t UnsignedTransaction) Data() []byte {
	return common.CopyBytes(t.data)
}

func (t UnsignedTransaction) Value() *big.Int {
	if t.value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(t.value)
}

// GasLimit is an optional hint, 0 means estimate.
func (t UnsignedTransaction) GasLimit() uint64 {
	return t.gasLimit
}

func (t UnsignedTransaction) HasCallData() bool {
	return len(t.data) > 0
}

// PreparedTx pairs a human readable description with the call it describes.
type PreparedTx struct {
	Description string
	Tx          UnsignedTransaction
}

// RawTxToHash returns valid hex data of a transaction to
// transaction hash
func RawTxToHash(data string) string {
	return crypto.Keccak256Hash(hexutil.MustDecode(data)).Hex()
}

// BuildExactTx builds a legacy transaction, the only kind the submission
// path produces since gas is priced with a static multiplier.
func BuildExactTx(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
}
