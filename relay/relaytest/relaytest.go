// Package relaytest provides an in-memory relay.Client for tests.
package relaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/relay"
)

// ExecuteFunc is called once a transaction gathers enough confirmations.
// It returns whether the execution succeeded and the on-chain tx hash.
type ExecuteFunc func(p relay.Proposal, confirmations []relay.Confirmation) (bool, common.Hash)

type Client struct {
	mu        sync.Mutex
	threshold int
	proposals map[common.Hash]relay.Proposal
	statuses  map[common.Hash]*relay.TransactionStatus

	// Err makes every call fail with a transport error.
	Err error
	// Execute, when set, runs as soon as a transaction reaches the
	// threshold. Otherwise transactions stay pending.
	Execute ExecuteFunc
}

func New(threshold int) *Client {
	return &Client{
		threshold: threshold,
		proposals: map[common.Hash]relay.Proposal{},
		statuses:  map[common.Hash]*relay.TransactionStatus{},
	}
}

func (c *Client) Proposals() []relay.Proposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := []relay.Proposal{}
	for _, p := range c.proposals {
		result = append(result, p)
	}
	return result
}

// AddConfirmation records an out-of-band confirmation from owner.
func (c *Client) AddConfirmation(hash common.Hash, owner common.Address, sig []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.statuses[hash]; ok {
		s.Confirmations = append(s.Confirmations, relay.Confirmation{Owner: owner, Signature: common.CopyBytes(sig)})
		c.maybeExecute(hash)
	}
}

func (c *Client) maybeExecute(hash common.Hash) {
	s := c.statuses[hash]
	if s.IsExecuted || c.Execute == nil || len(s.Confirmations) < c.threshold {
		return
	}
	ok, txHash := c.Execute(c.proposals[hash], s.Confirmations)
	s.IsExecuted = true
	s.IsSuccessful = &ok
	s.TransactionHash = txHash
}

func (c *Client) Propose(_ context.Context, p relay.Proposal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return safetxcommon.NewTransportError("relay propose", c.Err)
	}
	if _, ok := c.proposals[p.SafeTxHash]; ok {
		return safetxcommon.NewTransportError("relay propose", fmt.Errorf("HTTP error 422: already proposed"))
	}
	c.proposals[p.SafeTxHash] = p
	c.statuses[p.SafeTxHash] = &relay.TransactionStatus{
		SafeTxHash:            p.SafeTxHash,
		Nonce:                 p.Nonce,
		ConfirmationsRequired: c.threshold,
		Confirmations: []relay.Confirmation{
			{Owner: p.Sender, Signature: common.CopyBytes(p.Signature)},
		},
	}
	c.maybeExecute(p.SafeTxHash)
	return nil
}

// Confirm attributes the signature to the next owner in line, the fake
// does not recover signers.
func (c *Client) Confirm(_ context.Context, hash common.Hash, signature []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return safetxcommon.NewTransportError("relay confirm", c.Err)
	}
	s, ok := c.statuses[hash]
	if !ok {
		return safetxcommon.NewTransportError("relay confirm", relay.ErrNotFound)
	}
	s.Confirmations = append(s.Confirmations, relay.Confirmation{Signature: common.CopyBytes(signature)})
	c.maybeExecute(hash)
	return nil
}

func (c *Client) Transaction(_ context.Context, hash common.Hash) (*relay.TransactionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, safetxcommon.NewTransportError("relay get transaction", c.Err)
	}
	s, ok := c.statuses[hash]
	if !ok {
		return nil, safetxcommon.NewTransportError("relay get transaction", relay.ErrNotFound)
	}
	cp := *s
	cp.Confirmations = append([]relay.Confirmation{}, s.Confirmations...)
	return &cp, nil
}

func (c *Client) WaitExecuted(ctx context.Context, hash common.Hash, timeout time.Duration) (*relay.TransactionStatus, error) {
	s, err := c.Transaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !s.IsExecuted {
		return nil, fmt.Errorf("%w: safe tx %s not executed after %s", safetxcommon.ErrTimeout, hash.Hex(), timeout)
	}
	return s, nil
}
