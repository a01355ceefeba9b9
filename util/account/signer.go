package account

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer holds the key of one address. SignHash returns the 65 bytes
// [R || S || V] secp256k1 signature with V in {0, 1}.
type Signer interface {
	Address() common.Address
	SignHash(hash common.Hash) ([]byte, error)
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}
