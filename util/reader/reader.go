package reader

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNoNodes = errors.New("no nodes configured")

// EthReader reads from every node it knows in parallel and returns the
// first successful answer. It only fails when all nodes fail.
type EthReader struct {
	nodes map[string]EthereumNode
}

func NewEthReaderGeneric(nodes map[string]string) *EthReader {
	ns := map[string]EthereumNode{}
	for name, c := range nodes {
		ns[name] = NewOneNodeReader(name, c)
	}
	return &EthReader{nodes: ns}
}

// NewEthReaderWithNodes is used when the caller already has node
// implementations, mostly tests.
func NewEthReaderWithNodes(nodes ...EthereumNode) *EthReader {
	ns := map[string]EthereumNode{}
	for _, n := range nodes {
		ns[n.NodeName()] = n
	}
	return &EthReader{nodes: ns}
}

func (er *EthReader) Nodes() map[string]EthereumNode {
	return er.nodes
}

func wrapError(e error, name string) error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, e)
}

type nodeResult[T any] struct {
	Value T
	Error error
}

func readFromAny[T any](ctx context.Context, er *EthReader, read func(context.Context, EthereumNode) (T, error)) (T, error) {
	var zero T
	if len(er.nodes) == 0 {
		return zero, ErrNoNodes
	}
	resCh := make(chan nodeResult[T], len(er.nodes))
	for i := range er.nodes {
		n := er.nodes[i]
		go func() {
			v, err := read(ctx, n)
			resCh <- nodeResult[T]{
				Value: v,
				Error: wrapError(err, n.NodeName()),
			}
		}()
	}
	errs := []error{}
	for i := 0; i < len(er.nodes); i++ {
		result := <-resCh
		if result.Error == nil {
			return result.Value, nil
		}
		errs = append(errs, result.Error)
	}
	return zero, fmt.Errorf("couldn't read from any nodes: %w", errors.Join(errs...))
}

func (er *EthReader) ChainID(ctx context.Context) (*big.Int, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) (*big.Int, error) {
		return n.ChainID(ctx)
	})
}

func (er *EthReader) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) (uint64, error) {
		return n.EstimateGas(ctx, msg)
	})
}

func (er *EthReader) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) ([]byte, error) {
		return n.GetCode(ctx, address)
	})
}

func (er *EthReader) GetGasPriceWeiSuggestion(ctx context.Context) (*big.Int, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) (*big.Int, error) {
		return n.GetGasPriceSuggestion(ctx)
	})
}

func (er *EthReader) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) (*big.Int, error) {
		return n.GetBalance(ctx, address)
	})
}

func (er *EthReader) GetPendingNonce(ctx context.Context, address common.Address) (uint64, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) (uint64, error) {
		return n.GetPendingNonce(ctx, address)
	})
}

// TransactionReceipt returns an error matching ethereum.NotFound when no
// node has the receipt yet.
func (er *EthReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) (*types.Receipt, error) {
		return n.TransactionReceipt(ctx, txHash)
	})
}

func (er *EthReader) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) ([]byte, error) {
		return n.CallContract(ctx, msg)
	})
}

func (er *EthReader) StorageAt(ctx context.Context, caddr common.Address, slot common.Hash) ([]byte, error) {
	return readFromAny(ctx, er, func(ctx context.Context, n EthereumNode) ([]byte, error) {
		return n.StorageAt(ctx, caddr, slot)
	})
}

func (er *EthReader) ReadContractToBytes(
	ctx context.Context,
	caddr common.Address,
	abi *abi.ABI,
	method string,
	args ...interface{},
) ([]byte, error) {
	data, err := abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack %s: %w", method, err)
	}
	return er.CallContract(ctx, ethereum.CallMsg{To: &caddr, Data: data})
}

func (er *EthReader) ReadContractWithABI(
	ctx context.Context,
	result interface{},
	caddr common.Address,
	abi *abi.ABI,
	method string,
	args ...interface{},
) error {
	responseBytes, err := er.ReadContractToBytes(ctx, caddr, abi, method, args...)
	if err != nil {
		return err
	}
	return abi.UnpackIntoInterface(result, method, responseBytes)
}
