package msig

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/util/account"
)

type DeployRequest struct {
	Owners    []common.Address
	Threshold int
	// SaltNonce feeds the proxy address derivation, a random one is used
	// when nil.
	SaltNonce *big.Int
	Timeout   time.Duration
}

// Deploy creates a new Safe proxy through the network's proxy factory,
// paid by deployer, and connects to it. Every on-chain failure matches
// common.ErrDeployment.
func (m *Manager) Deploy(ctx context.Context, deployer account.Signer, req DeployRequest) (*Account, error) {
	if err := ValidateOwners(req.Owners, req.Threshold); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.state == Deploying {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: a deployment is in progress", safetxcommon.ErrInvalidState)
	}
	if m.busyLocked() {
		hash := m.inflight.Hash()
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", safetxcommon.ErrBatchInProgress, hash.Hex())
	}
	previous := m.state
	m.state = Deploying
	m.mu.Unlock()

	acc, err := m.deploy(ctx, deployer, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = previous
		return nil, err
	}
	m.setConnectedLocked(acc)
	m.l.Info("deployed safe", zap.Stringer("safe", acc.Address), zap.Int("threshold", acc.Threshold), zap.Int("owners", len(acc.Owners)))
	return acc, nil
}

// SetupData encodes the initializer of a Safe without modules or payment.
func SetupData(owners []common.Address, threshold int, fallbackHandler common.Address) ([]byte, error) {
	return GetSafeABI().Pack(
		"setup",
		owners,
		big.NewInt(int64(threshold)),
		common.Address{},
		[]byte{},
		fallbackHandler,
		common.Address{},
		big.NewInt(0),
		common.Address{},
	)
}

func (m *Manager) deploy(ctx context.Context, deployer account.Signer, req DeployRequest) (*Account, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	contracts := m.network.GetSafeContracts()
	initializer, err := SetupData(req.Owners, req.Threshold, contracts.FallbackHandler)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode setup: %w", err)
	}
	salt := req.SaltNonce
	if salt == nil {
		id := uuid.New()
		salt = new(big.Int).SetBytes(id[:])
	}
	data, err := GetProxyFactoryABI().Pack("createProxyWithNonce", m.network.GetDeploymentSingleton(), initializer, salt)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode createProxyWithNonce: %w", err)
	}

	sent, err := m.signAndSend(ctx, deployer, contracts.ProxyFactory, big.NewInt(0), data)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't send deployment: %w", safetxcommon.ErrDeployment, err)
	}
	m.l.Info("sent safe deployment", zap.Stringer("tx", sent.Hash()), zap.Stringer("deployer", deployer.Address()))

	receipt, err := m.client.WaitForReceipt(ctx, sent.Hash(), timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", safetxcommon.ErrDeployment, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: deployment %s reverted", safetxcommon.ErrDeployment, sent.Hash().Hex())
	}
	proxy, err := proxyFromReceipt(receipt, contracts.ProxyFactory)
	if err != nil {
		return nil, err
	}
	acc, err := m.readAccount(ctx, proxy)
	if err != nil {
		return nil, fmt.Errorf("%w: deployed %s is not usable: %w", safetxcommon.ErrDeployment, proxy.Hex(), err)
	}
	return acc, nil
}

func proxyFromReceipt(receipt *types.Receipt, factory common.Address) (common.Address, error) {
	event := GetProxyFactoryABI().Events["ProxyCreation"]
	for _, l := range receipt.Logs {
		if l.Address != factory || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		out, err := GetProxyFactoryABI().Unpack("ProxyCreation", l.Data)
		if err != nil || len(out) == 0 {
			continue
		}
		if proxy, ok := out[0].(common.Address); ok && proxy != (common.Address{}) {
			return proxy, nil
		}
	}
	return common.Address{}, fmt.Errorf("%w: no ProxyCreation event in %s", safetxcommon.ErrDeployment, receipt.TxHash.Hex())
}
