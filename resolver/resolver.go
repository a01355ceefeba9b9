// Package resolver turns user supplied receivers (hex addresses or ENS
// names) into addresses.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/chain"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
)

const DefaultSuffix = ".eth"

type Resolver struct {
	client   chain.Client
	registry common.Address
	suffixes []string
	l        *zap.Logger
}

// New returns a resolver looking names up in the ENS registry at
// registry. A zero registry disables name lookups.
func New(client chain.Client, registry common.Address, l *zap.Logger) *Resolver {
	return &Resolver{
		client:   client,
		registry: registry,
		suffixes: []string{DefaultSuffix},
		l:        logger.OrNop(l).With(zap.String("component", "resolver")),
	}
}

// IsName reports whether raw ends with a reserved name service suffix.
func (r *Resolver) IsName(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range r.suffixes {
		if strings.HasSuffix(lower, s) && len(lower) > len(s) {
			return true
		}
	}
	return false
}

// Resolve parses raw as a hex address or looks it up as a name.
// Mixed case hex must carry a valid EIP-55 checksum.
func (r *Resolver) Resolve(ctx context.Context, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if safetxcommon.IsHexAddress(raw) {
		return parseHex(raw)
	}
	if r.IsName(raw) {
		return r.lookup(ctx, raw)
	}
	return common.Address{}, fmt.Errorf("%w: %q is neither an address nor a name", safetxcommon.ErrInvalidAddress, raw)
}

// Describe returns the text used in transaction descriptions: the name
// followed by its address for names, the checksummed address otherwise.
func (r *Resolver) Describe(ctx context.Context, raw string) (string, common.Address, error) {
	addr, err := r.Resolve(ctx, raw)
	if err != nil {
		return "", common.Address{}, err
	}
	if r.IsName(raw) {
		return fmt.Sprintf("%s(%s)", strings.ToLower(strings.TrimSpace(raw)), Display(addr)), addr, nil
	}
	return Display(addr), addr, nil
}

// Display is the canonical text form of addr. Resolve(Display(a)) == a.
func Display(addr common.Address) string {
	return addr.Hex()
}

func parseHex(raw string) (common.Address, error) {
	body := raw[2:]
	addr := common.HexToAddress(raw)
	mixed := body != strings.ToLower(body) && body != strings.ToUpper(body)
	if mixed && addr.Hex() != raw {
		return common.Address{}, fmt.Errorf("%w: bad checksum in %s", safetxcommon.ErrInvalidAddress, raw)
	}
	return addr, nil
}

func (r *Resolver) lookup(ctx context.Context, name string) (common.Address, error) {
	name = strings.ToLower(name)
	if r.registry == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s, no name service on this network", safetxcommon.ErrUnresolvedName, name)
	}
	node := Namehash(name)
	resolverAddr, err := chain.CallAddress(ctx, r.client, r.registry, safetxcommon.GetENSRegistryABI(), "resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("couldn't look up resolver of %s: %w", name, err)
	}
	if resolverAddr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s has no resolver", safetxcommon.ErrUnresolvedName, name)
	}
	addr, err := chain.CallAddress(ctx, r.client, resolverAddr, safetxcommon.GetENSResolverABI(), "addr", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("couldn't resolve %s: %w", name, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s resolves to nothing", safetxcommon.ErrUnresolvedName, name)
	}
	r.l.Debug("resolved name", zap.String("name", name), zap.Stringer("address", addr))
	return addr, nil
}

// Namehash is the ENS node of name. Labels are lower cased, full UTS-46
// normalization is not applied.
func Namehash(name string) [32]byte {
	var node [32]byte
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}
