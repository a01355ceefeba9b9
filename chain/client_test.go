package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/chain"
	"github.com/tranvictor/safetx/chain/chaintest"
	"github.com/tranvictor/safetx/common"
)

var (
	registry = ethcommon.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	resolved = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestCallAddress(t *testing.T) {
	c := chaintest.New(1)
	registryABI := common.GetENSRegistryABI()
	c.HandleCalls(registry, func(msg ethereum.CallMsg) ([]byte, error) {
		return registryABI.Methods["resolver"].Outputs.Pack(resolved)
	})

	addr, err := chain.CallAddress(context.Background(), c, registry, registryABI, "resolver", [32]byte{1})
	require.NoError(t, err)
	require.Equal(t, resolved, addr)
}

func TestCallOnEmptyAccountIsTransportError(t *testing.T) {
	c := chaintest.New(1)
	_, err := chain.CallAddress(context.Background(), c, registry, common.GetENSRegistryABI(), "resolver", [32]byte{1})
	require.ErrorIs(t, err, common.ErrTransport)
}

func TestNodeFailureIsTransportError(t *testing.T) {
	c := chaintest.New(1)
	c.Err = errors.New("connection reset")
	_, err := chain.CallBigInt(context.Background(), c, registry, common.GetERC20ABI(), "balanceOf", resolved)
	require.ErrorIs(t, err, common.ErrTransport)

	var te *common.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "eth_call", te.Op)
}
