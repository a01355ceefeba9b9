package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
)

const DefaultPollInterval = 5 * time.Second

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
}

type TxMonitor struct {
	reader   ReceiptReader
	interval time.Duration
	l        *zap.Logger
}

func NewGenericTxMonitor(r ReceiptReader, l *zap.Logger) *TxMonitor {
	return &TxMonitor{
		reader:   r,
		interval: DefaultPollInterval,
		l:        logger.OrNop(l),
	}
}

// WithInterval returns a copy polling at the given interval.
func (m *TxMonitor) WithInterval(d time.Duration) *TxMonitor {
	cp := *m
	cp.interval = d
	return &cp
}

// WaitForReceipt polls until the tx is mined, the timeout elapses or ctx
// is done. A mined tx is returned whatever its status: reverted txs are the
// caller's business. The timeout error matches common.ErrTimeout, a done
// ctx gives a common.ErrTransport.
func (m *TxMonitor) WaitForReceipt(ctx context.Context, tx ethcommon.Hash, timeout time.Duration) (*types.Receipt, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		receipt, err := m.reader.TransactionReceipt(ctx, tx)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			// pending
		default:
			m.l.Debug("couldn't read receipt, retrying", zap.Stringer("tx", tx), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, common.NewTransportError("eth_getTransactionReceipt", ctx.Err())
		case <-deadline.C:
			return nil, fmt.Errorf("%w: tx %s not mined after %s", common.ErrTimeout, tx.Hex(), timeout)
		case <-ticker.C:
		}
	}
}
