// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	safetxcommon "github.com/tranvictor/safetx/common"
)

// ContractFunc answers eth_call to one address.
type ContractFunc func(msg ethereum.CallMsg) ([]byte, error)

// TxFunc executes a mined transaction sent to one address and returns
// its logs. Returning an error marks the receipt as reverted.
type TxFunc func(from common.Address, tx *types.Transaction) ([]*types.Log, error)

type Client struct {
	mu sync.Mutex

	chainID   *big.Int
	gasPrice  *big.Int
	balances  map[common.Address]*big.Int
	code      map[common.Address][]byte
	storage   map[common.Address]map[common.Hash][]byte
	contracts map[common.Address]ContractFunc
	handlers  map[common.Address]TxFunc
	nonces    map[common.Address]uint64
	receipts  map[common.Hash]*types.Receipt
	sent      []*types.Transaction
	calls     int
	block     int64

	// Err makes every call fail with a transport error.
	Err error
	// Hold keeps sent txs unmined so WaitForReceipt times out.
	Hold bool
}

func New(chainID int64) *Client {
	return &Client{
		chainID:   big.NewInt(chainID),
		gasPrice:  big.NewInt(10_000_000_000),
		balances:  map[common.Address]*big.Int{},
		code:      map[common.Address][]byte{},
		storage:   map[common.Address]map[common.Hash][]byte{},
		contracts: map[common.Address]ContractFunc{},
		handlers:  map[common.Address]TxFunc{},
		nonces:    map[common.Address]uint64{},
		receipts:  map[common.Hash]*types.Receipt{},
		block:     100,
	}
}

func (c *Client) SetBalance(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Set(wei)
}

func (c *Client) SetCode(addr common.Address, code []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code[addr] = common.CopyBytes(code)
}

func (c *Client) SetStorage(addr common.Address, slot common.Hash, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storage[addr] == nil {
		c.storage[addr] = map[common.Hash][]byte{}
	}
	c.storage[addr][slot] = common.CopyBytes(value)
}

func (c *Client) SetGasPrice(wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gasPrice = new(big.Int).Set(wei)
}

// HandleCalls registers fn as the eth_call implementation of addr.
func (c *Client) HandleCalls(addr common.Address, fn ContractFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = fn
}

// HandleTxs registers fn as the executor of txs sent to addr.
func (c *Client) HandleTxs(addr common.Address, fn TxFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[addr] = fn
}

// Sent returns the transactions accepted so far.
func (c *Client) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction{}, c.sent...)
}

// Calls counts every request the client served.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Mine stores a receipt for hash, used together with Hold.
func (c *Client) Mine(hash common.Hash, status uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	c.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: big.NewInt(c.block),
	}
}

func (c *Client) begin(op string) error {
	c.calls++
	if c.Err != nil {
		return safetxcommon.NewTransportError(op, c.Err)
	}
	return nil
}

func (c *Client) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_chainId"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Client) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_getBalance"); err != nil {
		return nil, err
	}
	if b, ok := c.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Client) Code(_ context.Context, addr common.Address) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_getCode"); err != nil {
		return nil, err
	}
	return common.CopyBytes(c.code[addr]), nil
}

func (c *Client) StorageAt(_ context.Context, addr common.Address, slot common.Hash) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_getStorageAt"); err != nil {
		return nil, err
	}
	if v, ok := c.storage[addr][slot]; ok {
		return common.LeftPadBytes(v, 32), nil
	}
	return make([]byte, 32), nil
}

func (c *Client) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	if err := c.begin("eth_call"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if msg.To == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("eth_call without target")
	}
	fn, ok := c.contracts[*msg.To]
	c.mu.Unlock()
	if !ok {
		// calling an address without code returns empty data
		return []byte{}, nil
	}
	return fn(msg)
}

func (c *Client) PendingNonce(_ context.Context, addr common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_getTransactionCount"); err != nil {
		return 0, err
	}
	return c.nonces[addr], nil
}

func (c *Client) GasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_gasPrice"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *Client) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_estimateGas"); err != nil {
		return 0, err
	}
	return 100_000, nil
}

// SendTransaction checks the sender's nonce, executes the tx with the
// handler registered for its target and mines it immediately unless Hold
// is set.
func (c *Client) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	if err := c.begin("eth_sendRawTransaction"); err != nil {
		c.mu.Unlock()
		return err
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		c.mu.Unlock()
		return safetxcommon.NewTransportError("eth_sendRawTransaction", fmt.Errorf("invalid sender: %w", err))
	}
	if tx.Nonce() != c.nonces[from] {
		c.mu.Unlock()
		return safetxcommon.NewTransportError("eth_sendRawTransaction",
			fmt.Errorf("nonce mismatch: expected %d, got %d", c.nonces[from], tx.Nonce()))
	}
	c.nonces[from]++
	c.sent = append(c.sent, tx)
	hold := c.Hold
	var handler TxFunc
	if tx.To() != nil {
		handler = c.handlers[*tx.To()]
	}
	c.mu.Unlock()

	if hold {
		return nil
	}
	status := types.ReceiptStatusSuccessful
	var logs []*types.Log
	if handler != nil {
		logs, err = handler(from, tx)
		if err != nil {
			status = types.ReceiptStatusFailed
			logs = nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	for _, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = uint64(c.block)
	}
	c.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(c.block),
		GasUsed:     tx.Gas(),
		Logs:        logs,
	}
	return nil
}

func (c *Client) WaitForReceipt(_ context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	if r, ok := c.receipts[hash]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: tx %s not mined after %s", safetxcommon.ErrTimeout, hash.Hex(), timeout)
}
