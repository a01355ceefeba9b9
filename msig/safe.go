package msig

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tranvictor/safetx/chain"
	safetxcommon "github.com/tranvictor/safetx/common"
)

// SafeContract reads the on-chain state of one Safe proxy.
type SafeContract struct {
	Address common.Address
	client  chain.Client
	Abi     *abi.ABI
}

func NewSafeContract(address common.Address, client chain.Client) *SafeContract {
	return &SafeContract{
		Address: address,
		client:  client,
		Abi:     GetSafeABI(),
	}
}

func (self *SafeContract) Owners(ctx context.Context) ([]common.Address, error) {
	out, err := chain.Call(ctx, self.client, self.Address, self.Abi, "getOwners")
	if err != nil {
		return nil, err
	}
	owners, ok := out[0].([]common.Address)
	if !ok {
		return nil, safetxcommon.NewTransportError("getOwners", fmt.Errorf("unexpected output type %T", out[0]))
	}
	return owners, nil
}

func (self *SafeContract) Threshold(ctx context.Context) (int, error) {
	t, err := chain.CallBigInt(ctx, self.client, self.Address, self.Abi, "getThreshold")
	if err != nil {
		return 0, err
	}
	if !t.IsInt64() {
		return 0, fmt.Errorf("%w: threshold %s out of range", safetxcommon.ErrInvalidOwners, t)
	}
	return int(t.Int64()), nil
}

func (self *SafeContract) Nonce(ctx context.Context) (uint64, error) {
	n, err := chain.CallBigInt(ctx, self.client, self.Address, self.Abi, "nonce")
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, safetxcommon.NewTransportError("nonce", fmt.Errorf("nonce %s out of range", n))
	}
	return n.Uint64(), nil
}

// MasterCopy is the singleton the proxy delegates to, stored in slot 0.
func (self *SafeContract) MasterCopy(ctx context.Context) (common.Address, error) {
	slot, err := self.client.StorageAt(ctx, self.Address, common.Hash{})
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(slot), nil
}

func (self *SafeContract) Code(ctx context.Context) ([]byte, error) {
	return self.client.Code(ctx, self.Address)
}

// ExecTransactionData encodes execTransaction for tx with the packed
// owner signatures.
func (self *SafeContract) ExecTransactionData(tx *Transaction, signatures []byte) ([]byte, error) {
	return self.Abi.Pack(
		"execTransaction",
		tx.To,
		orZero(tx.Value),
		tx.Data,
		uint8(tx.Operation),
		orZero(tx.SafeTxGas),
		orZero(tx.BaseGas),
		orZero(tx.GasPrice),
		tx.GasToken,
		tx.RefundReceiver,
		signatures,
	)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
