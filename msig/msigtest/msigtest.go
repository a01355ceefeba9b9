// Package msigtest simulates Safe v1.3.0 proxies and the proxy factory on
// top of chaintest so manager flows run against real signatures.
package msigtest

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tranvictor/safetx/chain/chaintest"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/msig"
	"github.com/tranvictor/safetx/networks"
)

var proxyCode = []byte{0x60, 0x80, 0x60, 0x40}

// Safe is a fake Safe proxy. It verifies owner signatures in
// execTransaction exactly like the contract: concatenated 65 bytes
// signatures of distinct owners in ascending order.
type Safe struct {
	Address common.Address

	mu        sync.Mutex
	chain     *chaintest.Client
	network   *networks.NetworkInfo
	owners    []common.Address
	threshold int
	nonce     uint64
	executed  [][]safetxcommon.UnsignedTransaction
	// FailInner makes the next execution emit ExecutionFailure.
	FailInner bool
}

// NewSafe installs a Safe at addr pointing to the network's singleton.
func NewSafe(c *chaintest.Client, network *networks.NetworkInfo, addr common.Address, owners []common.Address, threshold int) *Safe {
	s := &Safe{
		Address:   addr,
		chain:     c,
		network:   network,
		owners:    append([]common.Address{}, owners...),
		threshold: threshold,
	}
	c.SetCode(addr, proxyCode)
	c.SetStorage(addr, common.Hash{}, network.GetSafeContracts().Singleton.Bytes())
	c.HandleCalls(addr, s.call)
	c.HandleTxs(addr, s.exec)
	return s
}

func (s *Safe) SetNonce(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = n
}

func (s *Safe) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// Executed returns the calls of every executed Safe transaction.
func (s *Safe) Executed() [][]safetxcommon.UnsignedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]safetxcommon.UnsignedTransaction{}, s.executed...)
}

func (s *Safe) call(msg ethereum.CallMsg) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	safeABI := msig.GetSafeABI()
	method, err := safeABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, errors.New("execution reverted")
	}
	switch method.Name {
	case "getOwners":
		return method.Outputs.Pack(s.owners)
	case "getThreshold":
		return method.Outputs.Pack(big.NewInt(int64(s.threshold)))
	case "nonce":
		return method.Outputs.Pack(new(big.Int).SetUint64(s.nonce))
	}
	return nil, errors.New("execution reverted")
}

func (s *Safe) exec(from common.Address, tx *types.Transaction) ([]*types.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	safeABI := msig.GetSafeABI()
	method, err := safeABI.MethodById(tx.Data()[:4])
	if err != nil || method.Name != "execTransaction" {
		return nil, errors.New("execution reverted")
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return nil, err
	}
	d := msig.SafeTxData{
		To:             args[0].(common.Address),
		Value:          args[1].(*big.Int),
		Data:           args[2].([]byte),
		Operation:      msig.Operation(args[3].(uint8)),
		SafeTxGas:      args[4].(*big.Int),
		BaseGas:        args[5].(*big.Int),
		GasPrice:       args[6].(*big.Int),
		GasToken:       args[7].(common.Address),
		RefundReceiver: args[8].(common.Address),
		Nonce:          s.nonce,
	}
	hash, err := msig.SafeTxHash(new(big.Int).SetUint64(s.network.GetChainID()), s.Address, d)
	if err != nil {
		return nil, err
	}
	if err := s.checkSignatures(hash, args[9].([]byte)); err != nil {
		return nil, err
	}

	calls, err := s.decodeCalls(d)
	if err != nil {
		return nil, err
	}
	s.nonce++
	event := "ExecutionSuccess"
	if s.FailInner {
		event = "ExecutionFailure"
		s.FailInner = false
	} else {
		s.executed = append(s.executed, calls)
	}
	data, err := safeABI.Events[event].Inputs.Pack(hash, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return []*types.Log{{
		Address: s.Address,
		Topics:  []common.Hash{safeABI.Events[event].ID},
		Data:    data,
	}}, nil
}

func (s *Safe) checkSignatures(hash common.Hash, sigs []byte) error {
	if len(sigs) < 65*s.threshold {
		return fmt.Errorf("GS020: signatures data too short")
	}
	var last common.Address
	for i := 0; i < s.threshold; i++ {
		signer, err := msig.RecoverSigner(hash, sigs[i*65:(i+1)*65])
		if err != nil {
			return fmt.Errorf("GS026: %w", err)
		}
		if bytes.Compare(signer.Bytes(), last.Bytes()) <= 0 || !s.isOwner(signer) {
			return fmt.Errorf("GS026: invalid owner provided")
		}
		last = signer
	}
	return nil
}

func (s *Safe) isOwner(addr common.Address) bool {
	for _, o := range s.owners {
		if o == addr {
			return true
		}
	}
	return false
}

func (s *Safe) decodeCalls(d msig.SafeTxData) ([]safetxcommon.UnsignedTransaction, error) {
	if d.Operation == msig.Call {
		return []safetxcommon.UnsignedTransaction{safetxcommon.NewUnsignedTransaction(d.To, d.Data, d.Value, 0)}, nil
	}
	if d.To != s.network.GetSafeContracts().MultiSendCallOnly {
		return nil, fmt.Errorf("delegate call to unexpected %s", d.To.Hex())
	}
	method, err := msig.GetMultiSendABI().MethodById(d.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(d.Data[4:])
	if err != nil {
		return nil, err
	}
	return msig.DecodeMultiSend(args[0].([]byte))
}

// Factory is a fake proxy factory deploying Safes on createProxyWithNonce.
type Factory struct {
	mu      sync.Mutex
	chain   *chaintest.Client
	network *networks.NetworkInfo
	safes   []*Safe
	// Revert makes every deployment revert.
	Revert bool
}

func NewFactory(c *chaintest.Client, network *networks.NetworkInfo) *Factory {
	f := &Factory{chain: c, network: network}
	c.HandleTxs(network.GetSafeContracts().ProxyFactory, f.exec)
	return f
}

func (f *Factory) Safes() []*Safe {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Safe{}, f.safes...)
}

func (f *Factory) exec(from common.Address, tx *types.Transaction) ([]*types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Revert {
		return nil, errors.New("execution reverted")
	}
	factoryABI := msig.GetProxyFactoryABI()
	method, err := factoryABI.MethodById(tx.Data()[:4])
	if err != nil || method.Name != "createProxyWithNonce" {
		return nil, errors.New("execution reverted")
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return nil, err
	}
	singleton := args[0].(common.Address)
	initializer := args[1].([]byte)
	salt := args[2].(*big.Int)

	setup, err := msig.GetSafeABI().MethodById(initializer[:4])
	if err != nil || setup.Name != "setup" {
		return nil, errors.New("execution reverted")
	}
	setupArgs, err := setup.Inputs.Unpack(initializer[4:])
	if err != nil {
		return nil, err
	}
	owners := setupArgs[0].([]common.Address)
	threshold := int(setupArgs[1].(*big.Int).Int64())

	factory := f.network.GetSafeContracts().ProxyFactory
	proxy := crypto.CreateAddress2(factory, common.BigToHash(salt), crypto.Keccak256(initializer))
	safe := NewSafe(f.chain, f.network, proxy, owners, threshold)
	f.chain.SetStorage(proxy, common.Hash{}, singleton.Bytes())
	f.safes = append(f.safes, safe)

	data, err := factoryABI.Events["ProxyCreation"].Inputs.Pack(proxy, singleton)
	if err != nil {
		return nil, err
	}
	return []*types.Log{{
		Address: factory,
		Topics:  []common.Hash{factoryABI.Events["ProxyCreation"].ID},
		Data:    data,
	}}, nil
}
