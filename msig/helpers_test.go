package msig_test

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/chain/chaintest"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/msig"
	"github.com/tranvictor/safetx/msig/msigtest"
	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/relay"
	"github.com/tranvictor/safetx/util/account"
)

var (
	safeAddress = common.HexToAddress("0x5afE3855358E112B5647B952709E6165e1c1eEEe")
	receiver    = common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045")
)

type fixture struct {
	chain   *chaintest.Client
	network *networks.NetworkInfo
	safe    *msigtest.Safe
	owners  []*account.KeySigner
	manager *msig.Manager
}

// newSigners returns n fresh signers sorted by address.
func newSigners(t *testing.T, n int) []*account.KeySigner {
	t.Helper()
	result := []*account.KeySigner{}
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		result = append(result, account.NewKeySigner(key))
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Address().Bytes(), result[j].Address().Bytes()) < 0
	})
	return result
}

func addresses(signers []*account.KeySigner) []common.Address {
	result := []common.Address{}
	for _, s := range signers {
		result = append(result, s.Address())
	}
	return result
}

func mainnet(t *testing.T) *networks.NetworkInfo {
	t.Helper()
	n, err := networks.GetNetwork("mainnet")
	require.NoError(t, err)
	return n
}

// newFixture deploys a fake Safe with nOwners owners and connects a
// manager to it. relayClient may be nil.
func newFixture(t *testing.T, nOwners, threshold int, relayClient relay.Client) *fixture {
	t.Helper()
	network := mainnet(t)
	c := chaintest.New(int64(network.GetChainID()))
	owners := newSigners(t, nOwners)
	safe := msigtest.NewSafe(c, network, safeAddress, addresses(owners), threshold)
	m := msig.NewManager(c, relayClient, network, msig.Config{}, nil)
	_, err := m.Connect(context.Background(), safeAddress)
	require.NoError(t, err)
	return &fixture{
		chain:   c,
		network: network,
		safe:    safe,
		owners:  owners,
		manager: m,
	}
}

func nativeTransfer(to common.Address, wei int64) safetxcommon.PreparedTx {
	return safetxcommon.PreparedTx{
		Description: "native transfer",
		Tx:          safetxcommon.NewUnsignedTransaction(to, nil, big.NewInt(wei), 0),
	}
}

func tokenTransfer(t *testing.T, token, to common.Address, amount int64) safetxcommon.PreparedTx {
	t.Helper()
	data, err := safetxcommon.PackERC20Data("transfer", to, big.NewInt(amount))
	require.NoError(t, err)
	return safetxcommon.PreparedTx{
		Description: "token transfer",
		Tx:          safetxcommon.NewUnsignedTransaction(token, data, big.NewInt(0), 0),
	}
}
