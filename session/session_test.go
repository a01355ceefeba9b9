package session_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sort"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/chain/chaintest"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/msig"
	"github.com/tranvictor/safetx/msig/msigtest"
	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/relay"
	"github.com/tranvictor/safetx/relay/relaytest"
	"github.com/tranvictor/safetx/resolver"
	"github.com/tranvictor/safetx/session"
	"github.com/tranvictor/safetx/util/account"
)

var (
	safeAddress = common.HexToAddress("0x5afE3855358E112B5647B952709E6165e1c1eEEe")
	alice       = common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045")
	beef        = common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	ensResolver = common.HexToAddress("0x231b0Ee14048e9dCcD1d247744d114a4EB5E8E63")
)

type env struct {
	chain   *chaintest.Client
	network *networks.NetworkInfo
	safe    *msigtest.Safe
	usdc    common.Address
	owners  []account.Signer
	session *session.Session
}

func newSigners(t *testing.T, n int) []account.Signer {
	t.Helper()
	result := []account.Signer{}
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

func installENS(t *testing.T, c *chaintest.Client, registry common.Address) {
	t.Helper()
	aliceNode := resolver.Namehash("alice.eth")
	registryABI := safetxcommon.GetENSRegistryABI()
	resolverABI := safetxcommon.GetENSResolverABI()
	c.HandleCalls(registry, func(msg ethereum.CallMsg) ([]byte, error) {
		args, err := registryABI.Methods["resolver"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		if args[0].([32]byte) == aliceNode {
			return registryABI.Methods["resolver"].Outputs.Pack(ensResolver)
		}
		return registryABI.Methods["resolver"].Outputs.Pack(common.Address{})
	})
	c.HandleCalls(ensResolver, func(msg ethereum.CallMsg) ([]byte, error) {
		return resolverABI.Methods["addr"].Outputs.Pack(alice)
	})
}

func installToken(c *chaintest.Client, token common.Address, decimals uint8, balance *big.Int) {
	erc20 := safetxcommon.GetERC20ABI()
	c.HandleCalls(token, func(msg ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.Equal(msg.Data[:4], erc20.Methods["decimals"].ID):
			return erc20.Methods["decimals"].Outputs.Pack(decimals)
		case bytes.Equal(msg.Data[:4], erc20.Methods["balanceOf"].ID):
			return erc20.Methods["balanceOf"].Outputs.Pack(balance)
		}
		return nil, errors.New("execution reverted")
	})
}

// newEnv connects a session to a nOwners Safe. The first localOwners
// owners are given to the session as signers.
func newEnv(t *testing.T, nOwners, threshold, localOwners int, relayClient relay.Client) *env {
	t.Helper()
	network, err := networks.GetNetwork("mainnet")
	require.NoError(t, err)
	c := chaintest.New(int64(network.GetChainID()))
	installENS(t, c, network.GetENSRegistry())
	usdc, err := network.TokenAddress("usdc")
	require.NoError(t, err)
	installToken(c, usdc, 6, big.NewInt(2_500_000))

	owners := newSigners(t, nOwners)
	ownerAddrs := []common.Address{}
	for _, o := range owners {
		ownerAddrs = append(ownerAddrs, o.Address())
	}
	safe := msigtest.NewSafe(c, network, safeAddress, ownerAddrs, threshold)

	m := msig.NewManager(c, relayClient, network, msig.Config{}, nil)
	_, err = m.Connect(context.Background(), safeAddress)
	require.NoError(t, err)

	return &env{
		chain:   c,
		network: network,
		safe:    safe,
		usdc:    usdc,
		owners:  owners,
		session: session.New(c, m, owners[:localOwners], nil),
	}
}

func TestTransferTokenToName(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	res, err := e.session.Execute(context.Background(), session.TransferToken{
		Symbol:   "usdc",
		Receiver: "alice.eth",
		Amount:   decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	require.Equal(t, "Transaction to send 10 USDC has been prepared", res.Message)

	queued := e.session.Queue().PeekAll()
	require.Len(t, queued, 1)
	require.Equal(t, "Transfer 10 USDC to alice.eth("+alice.Hex()+")", queued[0].Description)
	require.Equal(t, e.usdc, queued[0].Tx.To())

	expected, err := safetxcommon.PackERC20Data("transfer", alice, big.NewInt(10_000_000))
	require.NoError(t, err)
	require.Equal(t, expected, queued[0].Tx.Data())
}

func TestTransferNative(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	_, err := e.session.Execute(context.Background(), session.TransferNative{
		Receiver: beef.Hex(),
		Amount:   decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)

	queued := e.session.Queue().PeekAll()
	require.Len(t, queued, 1)
	require.Equal(t, "Transfer 0.5 ETH to "+beef.Hex(), queued[0].Description)
	require.Equal(t, big.NewInt(500_000_000_000_000_000), queued[0].Tx.Value())

	// the native symbol through the token command is a native transfer
	_, err = e.session.Execute(context.Background(), session.TransferToken{
		Symbol:   "eth",
		Receiver: beef.Hex(),
		Amount:   decimal.RequireFromString("1"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, e.session.Queue().Len())
	require.False(t, e.session.Queue().PeekAll()[1].Tx.HasCallData())
}

func TestUnresolvedNameMutatesNothing(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	sent := len(e.chain.Sent())

	_, err := e.session.Execute(context.Background(), session.TransferToken{
		Symbol:   "usdc",
		Receiver: "doesnotexist123456.eth",
		Amount:   decimal.RequireFromString("10"),
	})
	require.ErrorIs(t, err, safetxcommon.ErrUnresolvedName)
	require.Equal(t, 0, e.session.Queue().Len())
	require.Len(t, e.chain.Sent(), sent)
	require.Nil(t, e.session.Manager().InFlight())
}

func TestTransferValidation(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	ctx := context.Background()

	_, err := e.session.Execute(ctx, session.TransferToken{Symbol: "doge", Receiver: beef.Hex(), Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, safetxcommon.ErrUnsupportedToken)

	_, err = e.session.Execute(ctx, session.TransferNative{Receiver: "bob", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, safetxcommon.ErrInvalidAddress)

	_, err = e.session.Execute(ctx, session.TransferToken{Symbol: "usdc", Receiver: beef.Hex(), Amount: decimal.RequireFromString("0.0000001")})
	require.ErrorIs(t, err, safetxcommon.ErrInvalidAmount)

	require.Equal(t, 0, e.session.Queue().Len())
}

func TestQueryBalance(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	e.chain.SetBalance(safeAddress, big.NewInt(1_500_000_000_000_000_000))
	ctx := context.Background()

	res, err := e.session.Execute(ctx, session.QueryBalance{})
	require.NoError(t, err)
	require.Equal(t, safeAddress, res.Owner)
	require.Equal(t, "1.5", res.Balance.String())

	res, err = e.session.Execute(ctx, session.QueryBalance{Owner: "alice.eth", Symbol: "USDC"})
	require.NoError(t, err)
	require.Equal(t, alice, res.Owner)
	require.Equal(t, "2.5", res.Balance.String())
	require.Contains(t, res.Message, "2.5 USDC")
}

func TestExecuteQueuedOneOfOne(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	ctx := context.Background()

	_, err := e.session.Execute(ctx, session.TransferToken{
		Symbol:   "USDC",
		Receiver: beef.Hex(),
		Amount:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	res, err := e.session.Execute(ctx, session.ExecuteQueued{Timeout: time.Minute})
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, res.Receipt.Status)
	require.Equal(t, msig.Executed, res.Transaction.State())
	require.Equal(t, 1, res.Transaction.SignatureCount())
	require.Equal(t, 0, e.session.Queue().Len())

	executed := e.safe.Executed()
	require.Len(t, executed, 1)
	require.Equal(t, e.usdc, executed[0][0].To())
}

func TestExecuteQueuedEmpty(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	_, err := e.session.Execute(context.Background(), session.ExecuteQueued{})
	require.ErrorIs(t, err, safetxcommon.ErrEmptyBatch)
}

func TestExecuteQueuedWithoutEnoughOwnersKeepsQueue(t *testing.T) {
	e := newEnv(t, 3, 2, 1, nil)
	_, err := e.session.Execute(context.Background(), session.TransferNative{Receiver: beef.Hex(), Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	_, err = e.session.Execute(context.Background(), session.ExecuteQueued{})
	require.ErrorIs(t, err, safetxcommon.ErrInsufficientSignatures)
	require.Equal(t, 1, e.session.Queue().Len())
	require.Nil(t, e.session.Manager().InFlight())
}

func TestExecuteQueuedProposesToRelay(t *testing.T) {
	r := relaytest.New(2)
	e := newEnv(t, 3, 2, 1, r)
	ctx := context.Background()
	_, err := e.session.Execute(ctx, session.TransferNative{Receiver: beef.Hex(), Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = e.session.Execute(ctx, session.TransferNative{Receiver: "alice.eth", Amount: decimal.NewFromInt(2)})
	require.NoError(t, err)

	res, err := e.session.Execute(ctx, session.ExecuteQueued{Timeout: time.Minute})
	require.NoError(t, err)
	tx := res.Transaction
	require.Equal(t, msig.AwaitingSignatures, tx.State())
	require.True(t, tx.Proposed())
	require.Equal(t, msig.DelegateCall, tx.Operation)
	require.Contains(t, res.Message, "1 of 2")

	// a second batch must wait for this one
	_, err = e.session.Execute(ctx, session.TransferNative{Receiver: beef.Hex(), Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)
	_, err = e.session.Execute(ctx, session.ExecuteQueued{})
	require.ErrorIs(t, err, safetxcommon.ErrBatchInProgress)
	require.Equal(t, 1, e.session.Queue().Len())

	res, err = e.session.Execute(ctx, session.AwaitInFlight{Timeout: time.Minute})
	require.NoError(t, err)
	require.Contains(t, res.Message, "1 of 2")

	// another owner confirms on the relay, the local owner then executes
	sig, err := msig.SignSafeTx(e.owners[2], tx.Hash())
	require.NoError(t, err)
	r.AddConfirmation(tx.Hash(), e.owners[2].Address(), sig)
	require.Empty(t, e.chain.Sent())

	res, err = e.session.Execute(ctx, session.AwaitInFlight{Timeout: time.Minute})
	require.NoError(t, err)
	require.Equal(t, msig.Executed, res.Transaction.State())
	require.Len(t, e.chain.Sent(), 1)
	require.Len(t, e.safe.Executed(), 1)
	require.Len(t, e.safe.Executed()[0], 2)
}

func TestListQueued(t *testing.T) {
	e := newEnv(t, 1, 1, 1, nil)
	ctx := context.Background()
	for _, amount := range []int64{1, 2} {
		_, err := e.session.Execute(ctx, session.TransferNative{Receiver: beef.Hex(), Amount: decimal.NewFromInt(amount)})
		require.NoError(t, err)
	}
	res, err := e.session.Execute(ctx, session.ListQueued{})
	require.NoError(t, err)
	require.Len(t, res.Queued, 2)
	require.Equal(t, "Transfer 1 ETH to "+beef.Hex(), res.Queued[0].Description)
	require.Equal(t, "Transfer 2 ETH to "+beef.Hex(), res.Queued[1].Description)
	require.Equal(t, 2, e.session.Queue().Len())
}
