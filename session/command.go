package session

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/msig"
)

// Command is one typed operation a caller asks the session to perform.
type Command interface {
	Name() string
}

// TransferNative queues a transfer of the chain's native asset.
type TransferNative struct {
	Receiver string
	Amount   decimal.Decimal
}

// TransferToken queues an ERC20 transfer of a token known to the network
// registry.
type TransferToken struct {
	Symbol   string
	Receiver string
	Amount   decimal.Decimal
}

// QueryBalance reads the balance of Owner, the connected Safe when empty.
// An empty Symbol means the native asset.
type QueryBalance struct {
	Owner  string
	Symbol string
}

// ExecuteQueued batches the queue, signs with every local owner and
// submits once the threshold is met. Otherwise the transaction is proposed
// to the relay for the remaining owners.
type ExecuteQueued struct {
	Timeout time.Duration
}

// AwaitInFlight waits again for a transaction whose submission timed out.
type AwaitInFlight struct {
	Timeout time.Duration
}

// ListQueued reports the queued transfers without consuming them.
type ListQueued struct{}

func (TransferNative) Name() string { return "transfer_native" }
func (TransferToken) Name() string  { return "transfer_token" }
func (QueryBalance) Name() string   { return "query_balance" }
func (ExecuteQueued) Name() string  { return "execute_queued" }
func (AwaitInFlight) Name() string  { return "await_in_flight" }
func (ListQueued) Name() string     { return "list_queued" }

// Result is what a command reports back to its caller. Only the fields
// relevant to the command are set.
type Result struct {
	Message     string
	Owner       common.Address
	Balance     decimal.Decimal
	Queued      []safetxcommon.PreparedTx
	Transaction *msig.Transaction
	Receipt     *types.Receipt
}
