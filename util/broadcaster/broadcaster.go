package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
)

const TIMEOUT time.Duration = 4 * time.Second

var ErrNoNodes = errors.New("no nodes to broadcast to")

// RawSender is the part of *rpc.Client the broadcaster needs.
type RawSender interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Broadcaster takes a signed tx and try to broadcast it to all
// nodes that it manages as fast as possible. It reports whether the tx
// reached at least 1 node.
type Broadcaster struct {
	clients map[string]RawSender
	l       *zap.Logger
}

func (b *Broadcaster) GetNodes() map[string]RawSender {
	return b.clients
}

func (b *Broadcaster) broadcast(ctx context.Context, client RawSender, data string) error {
	return client.CallContext(ctx, nil, "eth_sendRawTransaction", data)
}

func (b *Broadcaster) BroadcastTx(ctx context.Context, tx *types.Transaction) (string, bool, error) {
	data, err := tx.MarshalBinary()
	if err != nil {
		return "", false, fmt.Errorf("tx is not valid, couldn't use rlp to encode it: %w", err)
	}
	return b.Broadcast(ctx, hexutil.Encode(data))
}

// data must be hex encoded of the signed tx
func (b *Broadcaster) Broadcast(ctx context.Context, data string) (string, bool, error) {
	hash := common.RawTxToHash(data)
	if len(b.clients) == 0 {
		return hash, false, ErrNoNodes
	}
	timeout, cancel := context.WithTimeout(ctx, TIMEOUT)
	defer cancel()
	parallelTasks := []func() error{}
	for name := range b.clients {
		name, cli := name, b.clients[name]
		parallelTasks = append(parallelTasks, func() error {
			if err := b.broadcast(timeout, cli, data); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	err, numErrs := common.RunParallel(parallelTasks...)
	if numErrs == len(b.clients) {
		return hash, false, err
	}
	if err != nil {
		b.l.Debug("some nodes rejected the tx", zap.String("tx", hash), zap.Error(err))
	}
	return hash, true, nil
}

func NewBroadcasterWithClients(clients map[string]RawSender, l *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients: clients,
		l:       logger.OrNop(l),
	}
}

func NewGenericBroadcaster(nodes map[string]string, l *zap.Logger) *Broadcaster {
	l = logger.OrNop(l)
	clients := map[string]RawSender{}
	for name, c := range nodes {
		client, err := rpc.Dial(c)
		if err != nil {
			l.Warn("couldn't connect to node", zap.String("node", name), zap.Error(err))
		} else {
			clients[name] = client
		}
	}
	return NewBroadcasterWithClients(clients, l)
}
