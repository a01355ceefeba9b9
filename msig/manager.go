package msig

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/chain"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/relay"
	"github.com/tranvictor/safetx/util/account"
)

const (
	DefaultGasPriceMultiplier = 1.1
	DefaultReceiptTimeout     = 3 * time.Minute
)

type ManagerState int

const (
	Disconnected ManagerState = iota
	Deploying
	Connected
)

func (s ManagerState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Deploying:
		return "deploying"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("manager state(%d)", int(s))
}

type Config struct {
	// GasPriceMultiplier scales the node's suggested gas price of every
	// transaction the manager sends itself.
	GasPriceMultiplier float64
	// Origin is attached to relay proposals.
	Origin string
}

// Drainer is the part of the prepared queue batching needs.
type Drainer interface {
	DrainAll() []safetxcommon.PreparedTx
	Requeue(items []safetxcommon.PreparedTx)
}

// Manager owns the connection to one Safe and the at most one Safe
// transaction in flight for it.
type Manager struct {
	client  chain.Client
	relay   relay.Client
	network *networks.NetworkInfo
	cfg     Config
	l       *zap.Logger

	mu        sync.Mutex
	state     ManagerState
	account   *Account
	contract  *SafeContract
	nextNonce uint64
	inflight  *Transaction
}

// NewManager returns a disconnected manager. relayClient may be nil, in
// which case transactions are executed directly on-chain.
func NewManager(client chain.Client, relayClient relay.Client, network *networks.NetworkInfo, cfg Config, l *zap.Logger) *Manager {
	if cfg.GasPriceMultiplier <= 0 {
		cfg.GasPriceMultiplier = DefaultGasPriceMultiplier
	}
	return &Manager{
		client:  client,
		relay:   relayClient,
		network: network,
		cfg:     cfg,
		l:       logger.OrNop(l).With(zap.String("component", "msig"), zap.String("network", network.GetName())),
		state:   Disconnected,
	}
}

func (m *Manager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Account() *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

func (m *Manager) Network() *networks.NetworkInfo {
	return m.network
}

func (m *Manager) HasRelay() bool {
	return m.relay != nil
}

// InFlight returns the latest batched transaction, nil before the first
// batch.
func (m *Manager) InFlight() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}

func (m *Manager) busyLocked() bool {
	return m.inflight != nil && !m.inflight.State().Terminal()
}

// Connect attaches the manager to an existing Safe. The address must hold
// a proxy pointing to one of the network's Safe singletons.
func (m *Manager) Connect(ctx context.Context, address common.Address) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Deploying {
		return nil, fmt.Errorf("%w: a deployment is in progress", safetxcommon.ErrInvalidState)
	}
	if m.busyLocked() {
		return nil, fmt.Errorf("%w: %s", safetxcommon.ErrBatchInProgress, m.inflight.Hash().Hex())
	}
	acc, err := m.readAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	m.setConnectedLocked(acc)
	m.l.Info("connected to safe", zap.Stringer("safe", address), zap.Int("threshold", acc.Threshold), zap.Int("owners", len(acc.Owners)))
	return acc, nil
}

func (m *Manager) setConnectedLocked(acc *Account) {
	m.state = Connected
	m.account = acc
	m.contract = NewSafeContract(acc.Address, m.client)
	m.nextNonce = 0
	m.inflight = nil
}

func (m *Manager) readAccount(ctx context.Context, address common.Address) (*Account, error) {
	contract := NewSafeContract(address, m.client)
	code, err := contract.Code(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't read code of %s: %w", address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s has no code", safetxcommon.ErrNotASafeAccount, address.Hex())
	}
	masterCopy, err := contract.MasterCopy(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't read master copy of %s: %w", address.Hex(), err)
	}
	if !m.network.GetSafeContracts().IsKnownSingleton(masterCopy) {
		return nil, fmt.Errorf("%w: %s points to unknown master copy %s", safetxcommon.ErrNotASafeAccount, address.Hex(), masterCopy.Hex())
	}
	owners, err := contract.Owners(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't read owners of %s: %w", address.Hex(), err)
	}
	threshold, err := contract.Threshold(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't read threshold of %s: %w", address.Hex(), err)
	}
	if err := ValidateOwners(owners, threshold); err != nil {
		return nil, err
	}
	return &Account{
		Address:   address,
		Owners:    owners,
		Threshold: threshold,
		Network:   m.network,
	}, nil
}

func (m *Manager) canBatchLocked() error {
	if m.state != Connected {
		return safetxcommon.ErrNotConnected
	}
	if m.busyLocked() {
		return fmt.Errorf("%w: %s is %s", safetxcommon.ErrBatchInProgress, m.inflight.Hash().Hex(), m.inflight.State())
	}
	return nil
}

// Batch aggregates items into one Safe transaction. A single item is
// executed as a plain call, several items go through multi-send with a
// delegate call so they all succeed or all revert.
func (m *Manager) Batch(ctx context.Context, items []safetxcommon.PreparedTx) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.canBatchLocked(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, safetxcommon.ErrEmptyBatch
	}

	to, value, data, op, err := m.aggregate(items)
	if err != nil {
		return nil, err
	}
	onchainNonce, err := m.contract.Nonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't read nonce of %s: %w", m.account.Address.Hex(), err)
	}
	nonce := max(onchainNonce, m.nextNonce)

	chainID := new(big.Int).SetUint64(m.network.GetChainID())
	tx, err := newTransaction(m.account, chainID, to, value, data, op, nonce, items)
	if err != nil {
		return nil, err
	}
	m.nextNonce = nonce + 1
	m.inflight = tx
	batchesTotal.Inc()
	m.l.Info("batched safe tx",
		zap.Stringer("safe_tx_hash", tx.Hash()),
		zap.Uint64("nonce", nonce),
		zap.Int("calls", len(items)),
		zap.Stringer("operation", op),
	)
	return tx, nil
}

func (m *Manager) aggregate(items []safetxcommon.PreparedTx) (common.Address, *big.Int, []byte, Operation, error) {
	if len(items) == 1 {
		call := items[0].Tx
		return call.To(), call.Value(), call.Data(), Call, nil
	}
	multiSend := m.network.GetSafeContracts().MultiSendCallOnly
	calls := make([]safetxcommon.UnsignedTransaction, 0, len(items))
	for _, it := range items {
		calls = append(calls, it.Tx)
	}
	data, err := MultiSendCallData(calls)
	if err != nil {
		return common.Address{}, nil, nil, Call, err
	}
	return multiSend, big.NewInt(0), data, DelegateCall, nil
}

// BatchQueue drains q into one Safe transaction. The queue is left
// untouched when a batch is already in progress and refilled when
// batching fails after draining.
func (m *Manager) BatchQueue(ctx context.Context, q Drainer) (*Transaction, error) {
	m.mu.Lock()
	err := m.canBatchLocked()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	items := q.DrainAll()
	tx, err := m.Batch(ctx, items)
	if err != nil {
		q.Requeue(items)
		return nil, err
	}
	return tx, nil
}

// Sign adds signer's signature over the Safe transaction hash.
func (m *Manager) Sign(tx *Transaction, signer account.Signer) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	owner := signer.Address()
	if err := tx.checkSignableLocked(owner); err != nil {
		return err
	}
	sig, err := SignSafeTx(signer, tx.hash)
	if err != nil {
		return fmt.Errorf("couldn't sign safe tx with %s: %w", owner.Hex(), err)
	}
	if err := tx.addSignatureLocked(owner, sig); err != nil {
		return err
	}
	m.l.Debug("signed safe tx", zap.Stringer("safe_tx_hash", tx.hash), zap.Stringer("owner", owner))
	return nil
}

// AddSignature attaches a signature produced elsewhere, for example by a
// hardware wallet, after checking it was made by owner.
func (m *Manager) AddSignature(tx *Transaction, owner common.Address, sig []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	signer, err := RecoverSigner(tx.hash, sig)
	if err != nil {
		return err
	}
	if signer != owner {
		return fmt.Errorf("%w: signed by %s, not %s", safetxcommon.ErrInvalidSignature, signer.Hex(), owner.Hex())
	}
	return tx.addSignatureLocked(owner, sig)
}

// Submit executes tx once it has enough signatures. submitter signs and
// pays for execTransaction. With a relay the transaction is also recorded
// there first so the other owners see it, a relay failure does not stop
// the execution. A nil submitter means someone else executes it: the
// transaction is pushed to the relay and the call waits for the relay to
// report it executed. A timeout leaves tx Submitted so AwaitExecution can
// pick it up.
func (m *Manager) Submit(ctx context.Context, tx *Transaction, submitter account.Signer, timeout time.Duration) (*types.Receipt, error) {
	if err := tx.claim(); err != nil {
		return nil, err
	}
	if submitter == nil && m.relay == nil {
		tx.release()
		return nil, fmt.Errorf("%w: a submitter is required without relay", safetxcommon.ErrInvalidState)
	}

	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	if submitter == nil {
		return m.submitToRelay(ctx, tx, timeout)
	}
	if m.relay != nil {
		if err := m.pushToRelay(ctx, tx); err != nil {
			m.l.Warn("couldn't record safe tx on relay, executing anyway", zap.Stringer("safe_tx_hash", tx.Hash()), zap.Error(err))
		}
	}
	return m.submitOnChain(ctx, tx, submitter, timeout)
}

// Propose publishes tx on the relay so other owners can confirm it out of
// band. It needs at least one signature.
func (m *Manager) Propose(ctx context.Context, tx *Transaction) error {
	if m.relay == nil {
		return safetxcommon.ErrNoRelay
	}
	tx.mu.Lock()
	if !tx.openLocked() {
		status := tx.statusLocked()
		tx.mu.Unlock()
		return fmt.Errorf("%w: can't propose a transaction that is %s", safetxcommon.ErrInvalidState, status)
	}
	if len(tx.signatures) == 0 {
		tx.mu.Unlock()
		return fmt.Errorf("%w: proposing needs at least one signature", safetxcommon.ErrInsufficientSignatures)
	}
	tx.mu.Unlock()
	return m.pushToRelay(ctx, tx)
}

// pushToRelay proposes tx if needed and posts every signature the relay
// has not seen yet. It is safe to call again after a failure.
func (m *Manager) pushToRelay(ctx context.Context, tx *Transaction) error {
	tx.mu.Lock()
	owners, _ := tx.sortedSignaturesLocked()
	sigs := map[common.Address][]byte{}
	for _, o := range owners {
		sigs[o] = common.CopyBytes(tx.signatures[o])
	}
	proposed := tx.proposed
	relayed := map[common.Address]bool{}
	for o := range tx.relayed {
		relayed[o] = true
	}
	hash := tx.hash
	tx.mu.Unlock()

	if !proposed {
		sender := owners[0]
		err := m.relay.Propose(ctx, relay.Proposal{
			Safe:           tx.Safe,
			To:             tx.To,
			Value:          tx.Value,
			Data:           tx.Data,
			Operation:      uint8(tx.Operation),
			SafeTxGas:      tx.SafeTxGas,
			BaseGas:        tx.BaseGas,
			GasPrice:       tx.GasPrice,
			GasToken:       tx.GasToken,
			RefundReceiver: tx.RefundReceiver,
			Nonce:          tx.Nonce,
			SafeTxHash:     hash,
			Sender:         sender,
			Signature:      sigs[sender],
			Origin:         m.cfg.Origin,
		})
		if err != nil {
			return fmt.Errorf("couldn't propose %s: %w", hash.Hex(), err)
		}
		relayed[sender] = true
		tx.mu.Lock()
		tx.proposed = true
		tx.relayed[sender] = true
		tx.mu.Unlock()
		m.l.Info("proposed safe tx to relay", zap.Stringer("safe_tx_hash", hash), zap.Stringer("sender", sender))
	}

	for _, o := range owners {
		if relayed[o] {
			continue
		}
		if err := m.relay.Confirm(ctx, hash, sigs[o]); err != nil {
			return fmt.Errorf("couldn't post confirmation of %s: %w", o.Hex(), err)
		}
		tx.mu.Lock()
		tx.relayed[o] = true
		tx.mu.Unlock()
	}
	return nil
}

// SyncConfirmations pulls the confirmations other owners posted on the
// relay into tx. Signatures that don't recover to an owner are ignored.
// It returns how many new signatures were added.
func (m *Manager) SyncConfirmations(ctx context.Context, tx *Transaction) (int, error) {
	if m.relay == nil {
		return 0, safetxcommon.ErrNoRelay
	}
	status, err := m.relay.Transaction(ctx, tx.Hash())
	if err != nil {
		return 0, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.proposed = true
	added := 0
	for _, conf := range status.Confirmations {
		signer, err := RecoverSigner(tx.hash, conf.Signature)
		if err != nil || !tx.owners[signer] {
			m.l.Warn("ignoring relay confirmation", zap.Stringer("safe_tx_hash", tx.hash), zap.Stringer("owner", conf.Owner), zap.Error(err))
			continue
		}
		tx.relayed[signer] = true
		if _, ok := tx.signatures[signer]; ok || !tx.openLocked() {
			continue
		}
		if err := tx.addSignatureLocked(signer, conf.Signature); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// AwaitExecution waits again for a Submitted transaction, typically after
// Submit timed out.
func (m *Manager) AwaitExecution(ctx context.Context, tx *Transaction, timeout time.Duration) (*types.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	switch tx.State() {
	case Executed:
		return tx.Receipt(), nil
	case Submitted:
	default:
		return nil, fmt.Errorf("%w: %s is %s", safetxcommon.ErrInvalidState, tx.Hash().Hex(), tx.State())
	}
	if tx.ExecTxHash() != (common.Hash{}) {
		return m.awaitOnChain(ctx, tx, timeout)
	}
	if m.relay != nil {
		return m.awaitRelay(ctx, tx, timeout)
	}
	return nil, fmt.Errorf("%w: no way to track %s", safetxcommon.ErrInvalidState, tx.Hash().Hex())
}

// Discard abandons a transaction still collecting signatures so a new
// batch can be built. Its nonce is reused by the next batch.
func (m *Manager) Discard(tx *Transaction) error {
	tx.mu.Lock()
	if !tx.openLocked() {
		status := tx.statusLocked()
		tx.mu.Unlock()
		return fmt.Errorf("%w: can't discard a transaction that is %s", safetxcommon.ErrInvalidState, status)
	}
	tx.state = Failed
	tx.failure = "discarded"
	tx.mu.Unlock()
	m.rewindNonce(tx)
	m.l.Info("discarded safe tx", zap.Stringer("safe_tx_hash", tx.Hash()))
	return nil
}

func (m *Manager) rewindNonce(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextNonce == tx.Nonce+1 {
		m.nextNonce = tx.Nonce
	}
}

func (m *Manager) submitToRelay(ctx context.Context, tx *Transaction, timeout time.Duration) (*types.Receipt, error) {
	if err := m.pushToRelay(ctx, tx); err != nil {
		tx.release()
		submissionsTotal.WithLabelValues(routeRelay, "error").Inc()
		return nil, err
	}
	tx.markSubmitted(common.Hash{})
	return m.awaitRelay(ctx, tx, timeout)
}

func (m *Manager) awaitRelay(ctx context.Context, tx *Transaction, timeout time.Duration) (*types.Receipt, error) {
	status, err := m.relay.WaitExecuted(ctx, tx.Hash(), timeout)
	if err != nil {
		if errors.Is(err, safetxcommon.ErrTimeout) {
			submissionsTotal.WithLabelValues(routeRelay, "timeout").Inc()
		}
		return nil, err
	}
	var receipt *types.Receipt
	if status.TransactionHash != (common.Hash{}) {
		receipt, err = m.client.WaitForReceipt(ctx, status.TransactionHash, timeout)
		if err != nil {
			return nil, fmt.Errorf("%s was executed in %s but its receipt is unavailable: %w", tx.Hash().Hex(), status.TransactionHash.Hex(), err)
		}
	}
	return m.finish(tx, receipt, status.Succeeded(), routeRelay)
}

func (m *Manager) submitOnChain(ctx context.Context, tx *Transaction, submitter account.Signer, timeout time.Duration) (*types.Receipt, error) {
	tx.mu.Lock()
	_, packed := tx.sortedSignaturesLocked()
	tx.mu.Unlock()

	data, err := NewSafeContract(tx.Safe, m.client).ExecTransactionData(tx, packed)
	if err != nil {
		tx.release()
		return nil, fmt.Errorf("couldn't encode execTransaction: %w", err)
	}
	sent, err := m.signAndSend(ctx, submitter, tx.Safe, big.NewInt(0), data)
	if err != nil {
		tx.release()
		submissionsTotal.WithLabelValues(routeDirect, "error").Inc()
		return nil, fmt.Errorf("couldn't submit %s: %w", tx.Hash().Hex(), err)
	}
	tx.markSubmitted(sent.Hash())
	m.l.Info("sent execTransaction", zap.Stringer("safe_tx_hash", tx.Hash()), zap.Stringer("tx", sent.Hash()))
	return m.awaitOnChain(ctx, tx, timeout)
}

func (m *Manager) awaitOnChain(ctx context.Context, tx *Transaction, timeout time.Duration) (*types.Receipt, error) {
	receipt, err := m.client.WaitForReceipt(ctx, tx.ExecTxHash(), timeout)
	if err != nil {
		if errors.Is(err, safetxcommon.ErrTimeout) {
			submissionsTotal.WithLabelValues(routeDirect, "timeout").Inc()
		}
		return nil, err
	}
	ok := receipt.Status == types.ReceiptStatusSuccessful && !executionFailed(receipt, tx.Safe)
	return m.finish(tx, receipt, ok, routeDirect)
}

// executionFailed looks for the ExecutionFailure event Safe emits when the
// inner call reverts without reverting execTransaction.
func executionFailed(receipt *types.Receipt, safe common.Address) bool {
	failure := GetSafeABI().Events["ExecutionFailure"].ID
	for _, l := range receipt.Logs {
		if l.Address == safe && len(l.Topics) > 0 && l.Topics[0] == failure {
			return true
		}
	}
	return false
}

func (m *Manager) finish(tx *Transaction, receipt *types.Receipt, ok bool, route string) (*types.Receipt, error) {
	tx.mu.Lock()
	tx.receipt = receipt
	if receipt != nil {
		tx.execTxHash = receipt.TxHash
	}
	if ok {
		tx.state = Executed
	} else {
		tx.state = Failed
		tx.failure = "execution reverted"
	}
	hash := tx.hash
	tx.mu.Unlock()

	if !ok {
		// a reverted execTransaction does not consume the Safe nonce
		if receipt != nil && receipt.Status != types.ReceiptStatusSuccessful {
			m.rewindNonce(tx)
		}
		submissionsTotal.WithLabelValues(route, "failed").Inc()
		m.l.Warn("safe tx failed", zap.Stringer("safe_tx_hash", hash))
		return receipt, fmt.Errorf("%w: safe tx %s reverted", safetxcommon.ErrExecution, hash.Hex())
	}
	submissionsTotal.WithLabelValues(route, "executed").Inc()
	m.l.Info("safe tx executed", zap.Stringer("safe_tx_hash", hash))
	return receipt, nil
}

// signAndSend prices, signs and broadcasts a plain transaction from
// signer.
func (m *Manager) signAndSend(ctx context.Context, signer account.Signer, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	from := signer.Address()
	nonce, err := m.client.PendingNonce(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("couldn't get nonce of %s: %w", from.Hex(), err)
	}
	suggested, err := m.client.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get gas price: %w", err)
	}
	gasPrice := safetxcommon.ScaleGasPrice(suggested, m.cfg.GasPriceMultiplier)
	gas, err := m.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't estimate gas: %w", err)
	}
	gas = gas * 12 / 10

	chainID := new(big.Int).SetUint64(m.network.GetChainID())
	tx := safetxcommon.BuildExactTx(nonce, to, value, gas, gasPrice, data)
	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		return nil, err
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}
