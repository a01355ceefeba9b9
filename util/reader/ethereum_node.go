package reader

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EthereumNode is a single JSON-RPC endpoint. EthReader fans every read
// out to all of its nodes.
type EthereumNode interface {
	NodeName() string
	NodeURL() string
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error)
	GetCode(ctx context.Context, address common.Address) (code []byte, err error)
	GetBalance(ctx context.Context, address common.Address) (balance *big.Int, err error)
	GetPendingNonce(ctx context.Context, address common.Address) (nonce uint64, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error)
	GetGasPriceSuggestion(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	StorageAt(ctx context.Context, caddr common.Address, slot common.Hash) ([]byte, error)
}
