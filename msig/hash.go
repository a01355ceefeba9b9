package msig

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SafeTxData are the fields covered by the Safe transaction hash.
type SafeTxData struct {
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
}

var safeTxTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"SafeTx": {
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "operation", Type: "uint8"},
		{Name: "safeTxGas", Type: "uint256"},
		{Name: "baseGas", Type: "uint256"},
		{Name: "gasPrice", Type: "uint256"},
		{Name: "gasToken", Type: "address"},
		{Name: "refundReceiver", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

// SafeTxTypedData is the EIP-712 document owners sign for d, as Safe
// v1.3.0 defines it.
func SafeTxTypedData(chainID *big.Int, safe common.Address, d SafeTxData) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       safeTxTypes,
		PrimaryType: "SafeTx",
		Domain: apitypes.TypedDataDomain{
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: safe.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"to":             d.To.Hex(),
			"value":          orZero(d.Value).String(),
			"data":           hexutil.Bytes(d.Data),
			"operation":      fmt.Sprintf("%d", uint8(d.Operation)),
			"safeTxGas":      orZero(d.SafeTxGas).String(),
			"baseGas":        orZero(d.BaseGas).String(),
			"gasPrice":       orZero(d.GasPrice).String(),
			"gasToken":       d.GasToken.Hex(),
			"refundReceiver": d.RefundReceiver.Hex(),
			"nonce":          fmt.Sprintf("%d", d.Nonce),
		},
	}
}

// SafeTxHash is keccak256(0x19 0x01 || domainSeparator || hashStruct(SafeTx)).
func SafeTxHash(chainID *big.Int, safe common.Address, d SafeTxData) (common.Hash, error) {
	if chainID == nil {
		return common.Hash{}, fmt.Errorf("chain id is required to hash a safe tx")
	}
	hash, _, err := apitypes.TypedDataAndHash(SafeTxTypedData(chainID, safe, d))
	if err != nil {
		return common.Hash{}, fmt.Errorf("couldn't hash safe tx: %w", err)
	}
	return common.BytesToHash(hash), nil
}
