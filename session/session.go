// Package session owns the state of one run: the prepared queue, the
// connected Safe and the local signers. Callers drive it with typed
// commands.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/chain"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
	"github.com/tranvictor/safetx/msig"
	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/queue"
	"github.com/tranvictor/safetx/resolver"
	"github.com/tranvictor/safetx/txbuilder"
	"github.com/tranvictor/safetx/util/account"
)

type Session struct {
	ID uuid.UUID

	network  *networks.NetworkInfo
	queue    *queue.Queue
	manager  *msig.Manager
	builder  *txbuilder.Builder
	resolver *resolver.Resolver
	signers  []account.Signer
	l        *zap.Logger
}

// New creates a session over an already constructed manager. The first
// signer pays for transactions sent directly on-chain.
func New(client chain.Client, manager *msig.Manager, signers []account.Signer, l *zap.Logger) *Session {
	id := uuid.New()
	l = logger.OrNop(l).With(zap.String("session", id.String()))
	network := manager.Network()
	return &Session{
		ID:       id,
		network:  network,
		queue:    queue.New(),
		manager:  manager,
		builder:  txbuilder.New(client, l),
		resolver: resolver.New(client, network.GetENSRegistry(), l),
		signers:  signers,
		l:        l,
	}
}

func (s *Session) Queue() *queue.Queue {
	return s.queue
}

func (s *Session) Manager() *msig.Manager {
	return s.manager
}

func (s *Session) Resolver() *resolver.Resolver {
	return s.resolver
}

// Execute runs cmd. A failing command leaves the session as it was before
// the command, except for transactions already sent on-chain. The result
// may be non-nil on error to carry the transaction that failed.
func (s *Session) Execute(ctx context.Context, cmd Command) (*Result, error) {
	l := s.l.With(zap.String("command", cmd.Name()))
	l.Debug("executing command")
	var (
		result *Result
		err    error
	)
	switch c := cmd.(type) {
	case TransferNative:
		result, err = s.transferNative(ctx, c)
	case TransferToken:
		result, err = s.transferToken(ctx, c)
	case QueryBalance:
		result, err = s.queryBalance(ctx, c)
	case ExecuteQueued:
		result, err = s.executeQueued(ctx, c)
	case AwaitInFlight:
		result, err = s.awaitInFlight(ctx, c)
	case ListQueued:
		result = s.listQueued()
	default:
		err = fmt.Errorf("%w: unknown command %T", safetxcommon.ErrValidation, cmd)
	}
	if err != nil {
		l.Warn("command failed", zap.Error(err))
	}
	return result, err
}

func (s *Session) transferNative(ctx context.Context, c TransferNative) (*Result, error) {
	desc, to, err := s.resolver.Describe(ctx, c.Receiver)
	if err != nil {
		return nil, err
	}
	tx, err := s.builder.BuildNativeTransfer(to, c.Amount)
	if err != nil {
		return nil, err
	}
	symbol := s.network.GetNativeTokenSymbol()
	s.queue.Push(fmt.Sprintf("Transfer %s %s to %s", c.Amount, symbol, desc), tx)
	return &Result{
		Message: fmt.Sprintf("Transaction to send %s %s has been prepared", c.Amount, symbol),
		Queued:  s.queue.PeekAll(),
	}, nil
}

func (s *Session) transferToken(ctx context.Context, c TransferToken) (*Result, error) {
	if s.network.IsNativeSymbol(c.Symbol) {
		return s.transferNative(ctx, TransferNative{Receiver: c.Receiver, Amount: c.Amount})
	}
	token, err := s.network.TokenAddress(c.Symbol)
	if err != nil {
		return nil, err
	}
	desc, to, err := s.resolver.Describe(ctx, c.Receiver)
	if err != nil {
		return nil, err
	}
	tx, err := s.builder.BuildTokenTransfer(ctx, token, to, c.Amount)
	if err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
	s.queue.Push(fmt.Sprintf("Transfer %s %s to %s", c.Amount, symbol, desc), tx)
	return &Result{
		Message: fmt.Sprintf("Transaction to send %s %s has been prepared", c.Amount, symbol),
		Queued:  s.queue.PeekAll(),
	}, nil
}

func (s *Session) queryBalance(ctx context.Context, c QueryBalance) (*Result, error) {
	var owner common.Address
	if strings.TrimSpace(c.Owner) == "" {
		acc := s.manager.Account()
		if acc == nil {
			return nil, fmt.Errorf("%w: no owner given", safetxcommon.ErrNotConnected)
		}
		owner = acc.Address
	} else {
		var err error
		if owner, err = s.resolver.Resolve(ctx, c.Owner); err != nil {
			return nil, err
		}
	}

	symbol := s.network.GetNativeTokenSymbol()
	if c.Symbol != "" && !s.network.IsNativeSymbol(c.Symbol) {
		token, err := s.network.TokenAddress(c.Symbol)
		if err != nil {
			return nil, err
		}
		balance, err := s.builder.TokenBalance(ctx, token, owner)
		if err != nil {
			return nil, err
		}
		symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
		return &Result{
			Message: fmt.Sprintf("%s holds %s %s", owner.Hex(), balance, symbol),
			Owner:   owner,
			Balance: balance,
		}, nil
	}
	balance, err := s.builder.NativeBalance(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &Result{
		Message: fmt.Sprintf("%s holds %s %s", owner.Hex(), balance, symbol),
		Owner:   owner,
		Balance: balance,
	}, nil
}

func (s *Session) listQueued() *Result {
	items := s.queue.PeekAll()
	return &Result{
		Message: fmt.Sprintf("%d transaction(s) queued", len(items)),
		Queued:  items,
	}
}

// ownerSigners returns the local signers owning the connected Safe.
func (s *Session) ownerSigners(acc *msig.Account) []account.Signer {
	result := []account.Signer{}
	for _, signer := range s.signers {
		if acc.IsOwner(signer.Address()) {
			result = append(result, signer)
		}
	}
	return result
}

func (s *Session) executeQueued(ctx context.Context, c ExecuteQueued) (*Result, error) {
	acc := s.manager.Account()
	if acc == nil {
		return nil, safetxcommon.ErrNotConnected
	}
	signers := s.ownerSigners(acc)
	if len(signers) < acc.Threshold && !s.manager.HasRelay() {
		// nothing could ever gather the missing signatures, keep the queue
		return nil, fmt.Errorf(
			"%w: %d local owner(s) for a threshold of %d and no relay",
			safetxcommon.ErrInsufficientSignatures, len(signers), acc.Threshold,
		)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("%w: no local signer owns %s", safetxcommon.ErrUnauthorizedSigner, acc.Address.Hex())
	}

	tx, err := s.manager.BatchQueue(ctx, s.queue)
	if err != nil {
		return nil, err
	}
	for _, signer := range signers {
		if tx.SignatureCount() >= acc.Threshold {
			break
		}
		if err := s.manager.Sign(tx, signer); err != nil {
			s.discard(tx)
			return nil, err
		}
	}

	if tx.SignatureCount() < acc.Threshold {
		if err := s.manager.Propose(ctx, tx); err != nil {
			s.discard(tx)
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf(
				"Safe transaction %s proposed with %d of %d signatures, waiting for the other owners",
				tx.Hash().Hex(), tx.SignatureCount(), acc.Threshold,
			),
			Transaction: tx,
		}, nil
	}

	receipt, err := s.manager.Submit(ctx, tx, s.submitter(signers), c.Timeout)
	if err != nil {
		if tx.State() == msig.AwaitingSignatures {
			s.discard(tx)
		}
		return &Result{Transaction: tx, Receipt: receipt}, err
	}
	return &Result{
		Message:     fmt.Sprintf("Safe transaction %s executed in %s", tx.Hash().Hex(), receipt.TxHash.Hex()),
		Transaction: tx,
		Receipt:     receipt,
	}, nil
}

// submitter prefers the first configured signer, which may not be an
// owner, to pay for execTransaction.
func (s *Session) submitter(owners []account.Signer) account.Signer {
	if len(s.signers) > 0 {
		return s.signers[0]
	}
	return owners[0]
}

// discard drops a transaction that never left the session and puts its
// calls back on the queue.
func (s *Session) discard(tx *msig.Transaction) {
	if err := s.manager.Discard(tx); err != nil {
		s.l.Warn("couldn't discard safe tx", zap.Stringer("safe_tx_hash", tx.Hash()), zap.Error(err))
		return
	}
	s.queue.Requeue(tx.Calls())
}

func (s *Session) awaitInFlight(ctx context.Context, c AwaitInFlight) (*Result, error) {
	tx := s.manager.InFlight()
	if tx == nil {
		return nil, fmt.Errorf("%w: nothing in flight", safetxcommon.ErrInvalidState)
	}
	if tx.State() == msig.AwaitingSignatures && s.manager.HasRelay() {
		if _, err := s.manager.SyncConfirmations(ctx, tx); err != nil {
			return nil, err
		}
		if tx.SignatureCount() < tx.Threshold {
			return &Result{
				Message:     fmt.Sprintf("%d of %d signatures collected", tx.SignatureCount(), tx.Threshold),
				Transaction: tx,
			}, nil
		}
		var submitter account.Signer
		if len(s.signers) > 0 {
			submitter = s.signers[0]
		}
		receipt, err := s.manager.Submit(ctx, tx, submitter, c.Timeout)
		if err != nil {
			return &Result{Transaction: tx, Receipt: receipt}, err
		}
		return &Result{
			Message:     fmt.Sprintf("Safe transaction %s executed", tx.Hash().Hex()),
			Transaction: tx,
			Receipt:     receipt,
		}, nil
	}
	receipt, err := s.manager.AwaitExecution(ctx, tx, c.Timeout)
	if err != nil {
		return &Result{Transaction: tx, Receipt: receipt}, err
	}
	return &Result{
		Message:     fmt.Sprintf("Safe transaction %s executed", tx.Hash().Hex()),
		Transaction: tx,
		Receipt:     receipt,
	}, nil
}
