package broadcaster_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/util/broadcaster"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSender) CallContext(_ context.Context, _ interface{}, method string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, method)
	return r.err
}

func sampleTx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &ethcommon.Address{},
		Value:    big.NewInt(1),
	})
}

func TestBroadcastSucceedsWhenOneNodeAccepts(t *testing.T) {
	good := &recordingSender{}
	bad := &recordingSender{err: errors.New("nonce too low")}
	b := broadcaster.NewBroadcasterWithClients(map[string]broadcaster.RawSender{
		"good": good,
		"bad":  bad,
	}, nil)

	tx := sampleTx()
	hash, ok, err := b.BroadcastTx(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tx.Hash().Hex(), hash)
	require.Equal(t, []string{"eth_sendRawTransaction"}, good.calls)
}

func TestBroadcastFailsWhenAllNodesReject(t *testing.T) {
	b := broadcaster.NewBroadcasterWithClients(map[string]broadcaster.RawSender{
		"a": &recordingSender{err: errors.New("rejected")},
	}, nil)
	_, ok, err := b.BroadcastTx(context.Background(), sampleTx())
	require.Error(t, err)
	require.False(t, ok)
}

func TestBroadcastWithoutNodes(t *testing.T) {
	b := broadcaster.NewBroadcasterWithClients(map[string]broadcaster.RawSender{}, nil)
	_, ok, err := b.BroadcastTx(context.Background(), sampleTx())
	require.ErrorIs(t, err, broadcaster.ErrNoNodes)
	require.False(t, ok)
}
