package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
	"github.com/tranvictor/safetx/util/broadcaster"
	"github.com/tranvictor/safetx/util/monitor"
	"github.com/tranvictor/safetx/util/reader"
)

// NodeClient talks to a set of JSON-RPC nodes of the same chain. Reads go
// to every node and the first answer wins, raw transactions are
// broadcasted to all of them.
type NodeClient struct {
	reader      *reader.EthReader
	broadcaster *broadcaster.Broadcaster
	monitor     *monitor.TxMonitor
	l           *zap.Logger

	mu      sync.Mutex
	chainID *big.Int
}

func NewNodeClient(nodes map[string]string, l *zap.Logger) *NodeClient {
	l = logger.OrNop(l).With(zap.String("component", "chain"))
	r := reader.NewEthReaderGeneric(nodes)
	return &NodeClient{
		reader:      r,
		broadcaster: broadcaster.NewGenericBroadcaster(nodes, l),
		monitor:     monitor.NewGenericTxMonitor(r, l),
		l:           l,
	}
}

func (c *NodeClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	id, err := c.reader.ChainID(ctx)
	if err != nil {
		return nil, common.NewTransportError("eth_chainId", err)
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

func (c *NodeClient) Balance(ctx context.Context, addr ethcommon.Address) (*big.Int, error) {
	b, err := c.reader.GetBalance(ctx, addr)
	return b, common.NewTransportError("eth_getBalance", err)
}

func (c *NodeClient) Code(ctx context.Context, addr ethcommon.Address) ([]byte, error) {
	code, err := c.reader.GetCode(ctx, addr)
	return code, common.NewTransportError("eth_getCode", err)
}

func (c *NodeClient) StorageAt(ctx context.Context, addr ethcommon.Address, slot ethcommon.Hash) ([]byte, error) {
	v, err := c.reader.StorageAt(ctx, addr, slot)
	return v, common.NewTransportError("eth_getStorageAt", err)
}

func (c *NodeClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := c.reader.CallContract(ctx, msg)
	return out, common.NewTransportError("eth_call", err)
}

func (c *NodeClient) PendingNonce(ctx context.Context, addr ethcommon.Address) (uint64, error) {
	n, err := c.reader.GetPendingNonce(ctx, addr)
	return n, common.NewTransportError("eth_getTransactionCount", err)
}

func (c *NodeClient) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.reader.GetGasPriceWeiSuggestion(ctx)
	return p, common.NewTransportError("eth_gasPrice", err)
}

func (c *NodeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	g, err := c.reader.EstimateGas(ctx, msg)
	return g, common.NewTransportError("eth_estimateGas", err)
}

func (c *NodeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	hash, ok, err := c.broadcaster.BroadcastTx(ctx, tx)
	if !ok {
		if err == nil {
			err = fmt.Errorf("tx %s was not accepted by any node", hash)
		}
		return common.NewTransportError("eth_sendRawTransaction", err)
	}
	c.l.Debug("broadcasted tx", zap.String("tx", hash))
	return nil
}

func (c *NodeClient) WaitForReceipt(ctx context.Context, hash ethcommon.Hash, timeout time.Duration) (*types.Receipt, error) {
	receipt, err := c.monitor.WaitForReceipt(ctx, hash, timeout)
	return receipt, common.NewTransportError("eth_getTransactionReceipt", err)
}
