package networks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sahilm/fuzzy"

	safetxcommon "github.com/tranvictor/safetx/common"
)

// SafeContracts are the addresses of the Safe deployment a network uses.
type SafeContracts struct {
	Singleton         common.Address
	SingletonL2       common.Address
	ProxyFactory      common.Address
	MultiSendCallOnly common.Address
	FallbackHandler   common.Address
}

// IsKnownSingleton reports whether addr is one of the master copies a Safe
// proxy on this network may point to.
func (s SafeContracts) IsKnownSingleton(addr common.Address) bool {
	if addr == (common.Address{}) {
		return false
	}
	return addr == s.Singleton || addr == s.SingletonL2
}

// NetworkInfo is the static descriptor of a supported chain. It is built
// once when the registry loads and never mutated afterwards.
type NetworkInfo struct {
	name             string
	alternativeNames []string
	chainID          uint64
	l2               bool
	nativeSymbol     string
	relayURL         string
	ensRegistry      common.Address
	nodes            map[string]string
	safe             SafeContracts
	tokens           map[string]common.Address
}

func (n *NetworkInfo) GetName() string {
	return n.name
}

func (n *NetworkInfo) GetAlternativeNames() []string {
	return append([]string{}, n.alternativeNames...)
}

func (n *NetworkInfo) GetChainID() uint64 {
	return n.chainID
}

// IsL2 reports whether new Safes on this network use the L2 singleton.
func (n *NetworkInfo) IsL2() bool {
	return n.l2
}

// GetDeploymentSingleton returns the master copy new Safes are deployed
// with.
func (n *NetworkInfo) GetDeploymentSingleton() common.Address {
	if n.l2 {
		return n.safe.SingletonL2
	}
	return n.safe.Singleton
}

func (n *NetworkInfo) GetNativeTokenSymbol() string {
	return n.nativeSymbol
}

func (n *NetworkInfo) GetNativeTokenDecimal() int32 {
	return safetxcommon.NativeDecimals
}

// GetRelayURL returns the base URL of the Safe transaction service, empty
// when the network has none.
func (n *NetworkInfo) GetRelayURL() string {
	return n.relayURL
}

// GetENSRegistry returns the zero address when the network has no name
// service.
func (n *NetworkInfo) GetENSRegistry() common.Address {
	return n.ensRegistry
}

func (n *NetworkInfo) GetDefaultNodes() map[string]string {
	result := map[string]string{}
	for k, v := range n.nodes {
		result[k] = v
	}
	return result
}

func (n *NetworkInfo) GetSafeContracts() SafeContracts {
	return n.safe
}

// TokenSymbols returns the supported token symbols in lower case, sorted.
func (n *NetworkInfo) TokenSymbols() []string {
	result := make([]string, 0, len(n.tokens))
	for s := range n.tokens {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// TokenAddress looks up a token by its symbol, case insensitively. Unknown
// symbols fail with ErrUnsupportedToken and the closest known symbol when
// there is one.
func (n *NetworkInfo) TokenAddress(symbol string) (common.Address, error) {
	key := strings.ToLower(strings.TrimSpace(symbol))
	if addr, found := n.tokens[key]; found {
		return addr, nil
	}
	symbols := n.TokenSymbols()
	matches := fuzzy.Find(key, symbols)
	if len(matches) > 0 {
		return common.Address{}, fmt.Errorf(
			"%w: %s on %s, did you mean %s?",
			safetxcommon.ErrUnsupportedToken, symbol, n.name, matches[0].Str,
		)
	}
	return common.Address{}, fmt.Errorf(
		"%w: %s on %s, supported tokens: %s",
		safetxcommon.ErrUnsupportedToken, symbol, n.name, strings.Join(symbols, ", "),
	)
}

// IsNativeSymbol reports whether symbol names the chain's native asset.
func (n *NetworkInfo) IsNativeSymbol(symbol string) bool {
	return strings.EqualFold(strings.TrimSpace(symbol), n.nativeSymbol)
}

func (n *NetworkInfo) String() string {
	return fmt.Sprintf("%s (%d)", n.name, n.chainID)
}
