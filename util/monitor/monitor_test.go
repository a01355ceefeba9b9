package monitor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/util/monitor"
)

type countingReader struct {
	minedAfter int32
	calls      atomic.Int32
}

func (c *countingReader) TransactionReceipt(context.Context, ethcommon.Hash) (*types.Receipt, error) {
	n := c.calls.Add(1)
	if c.minedAfter > 0 && n >= c.minedAfter {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
	}
	return nil, ethereum.NotFound
}

func TestWaitForReceiptReturnsWhenMined(t *testing.T) {
	r := &countingReader{minedAfter: 3}
	m := monitor.NewGenericTxMonitor(r, nil).WithInterval(time.Millisecond)

	receipt, err := m.WaitForReceipt(context.Background(), ethcommon.Hash{1}, time.Second)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	require.EqualValues(t, 3, r.calls.Load())
}

func TestWaitForReceiptTimesOut(t *testing.T) {
	m := monitor.NewGenericTxMonitor(&countingReader{}, nil).WithInterval(time.Millisecond)

	_, err := m.WaitForReceipt(context.Background(), ethcommon.Hash{1}, 20*time.Millisecond)
	require.ErrorIs(t, err, common.ErrTimeout)
}

func TestWaitForReceiptCancelled(t *testing.T) {
	m := monitor.NewGenericTxMonitor(&countingReader{}, nil).WithInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.WaitForReceipt(ctx, ethcommon.Hash{1}, time.Minute)
	require.ErrorIs(t, err, common.ErrTransport)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, common.ErrTimeout)
}
