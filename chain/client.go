// Package chain is the narrow view of an EVM node the rest of safetx
// depends on. Every failure talking to a node is a *common.TransportError,
// a receipt that does not show up in time is common.ErrTimeout.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvictor/safetx/common"
)

type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, addr ethcommon.Address) (*big.Int, error)
	Code(ctx context.Context, addr ethcommon.Address) ([]byte, error)
	StorageAt(ctx context.Context, addr ethcommon.Address, slot ethcommon.Hash) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	PendingNonce(ctx context.Context, addr ethcommon.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitForReceipt(ctx context.Context, hash ethcommon.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Call packs method with args, calls caddr and unpacks the outputs.
func Call(
	ctx context.Context,
	c Client,
	caddr ethcommon.Address,
	contractABI *abi.ABI,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack %s: %w", method, err)
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &caddr, Data: data})
	if err != nil {
		return nil, err
	}
	result, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, common.NewTransportError(method, fmt.Errorf("unexpected response from %s: %w", caddr.Hex(), err))
	}
	if len(result) == 0 {
		return nil, common.NewTransportError(method, fmt.Errorf("empty response from %s", caddr.Hex()))
	}
	return result, nil
}

// CallAddress reads a single address output.
func CallAddress(ctx context.Context, c Client, caddr ethcommon.Address, contractABI *abi.ABI, method string, args ...interface{}) (ethcommon.Address, error) {
	out, err := Call(ctx, c, caddr, contractABI, method, args...)
	if err != nil {
		return ethcommon.Address{}, err
	}
	addr, ok := out[0].(ethcommon.Address)
	if !ok {
		return ethcommon.Address{}, common.NewTransportError(method, fmt.Errorf("unexpected output type %T", out[0]))
	}
	return addr, nil
}

// CallBigInt reads a single uint256 output.
func CallBigInt(ctx context.Context, c Client, caddr ethcommon.Address, contractABI *abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := Call(ctx, c, caddr, contractABI, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, common.NewTransportError(method, fmt.Errorf("unexpected output type %T", out[0]))
	}
	return v, nil
}
