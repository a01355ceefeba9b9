package networks

import (
	_ "embed"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var builtinNetworks []byte

var ErrNetworkNotFound = fmt.Errorf("network not found")

var globalSupportedNetworks = newSupportedNetworks()

type safeConfig struct {
	Singleton         string `yaml:"singleton"`
	SingletonL2       string `yaml:"singleton_l2"`
	ProxyFactory      string `yaml:"proxy_factory"`
	MultiSendCallOnly string `yaml:"multisend_call_only"`
	FallbackHandler   string `yaml:"fallback_handler"`
}

type networkConfig struct {
	Name             string            `yaml:"name"`
	AlternativeNames []string          `yaml:"alternative_names"`
	ChainID          uint64            `yaml:"chain_id"`
	L2               bool              `yaml:"l2"`
	NativeToken      string            `yaml:"native_token"`
	RelayURL         string            `yaml:"relay_url"`
	ENSRegistry      string            `yaml:"ens_registry"`
	Nodes            map[string]string `yaml:"nodes"`
	Safe             safeConfig        `yaml:"safe"`
	Tokens           map[string]string `yaml:"tokens"`
}

type networksFile struct {
	Networks []networkConfig `yaml:"networks"`
}

func parseAddress(field, value string, required bool) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s is required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: %q is not an address", field, value)
	}
	return common.HexToAddress(value), nil
}

func newNetworkInfo(c networkConfig) (*NetworkInfo, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("network name is required")
	}
	if c.ChainID == 0 {
		return nil, fmt.Errorf("network %s: chain_id is required", c.Name)
	}
	result := &NetworkInfo{
		name:             strings.ToLower(c.Name),
		alternativeNames: c.AlternativeNames,
		chainID:          c.ChainID,
		l2:               c.L2,
		nativeSymbol:     c.NativeToken,
		relayURL:         strings.TrimSpace(c.RelayURL),
		nodes:            map[string]string{},
		tokens:           map[string]common.Address{},
	}
	if result.nativeSymbol == "" {
		result.nativeSymbol = "ETH"
	}
	for k, v := range c.Nodes {
		result.nodes[k] = v
	}

	var err error
	if result.ensRegistry, err = parseAddress("ens_registry", c.ENSRegistry, false); err != nil {
		return nil, fmt.Errorf("network %s: %w", c.Name, err)
	}
	fields := []struct {
		name   string
		value  string
		target *common.Address
	}{
		{"safe.singleton", c.Safe.Singleton, &result.safe.Singleton},
		{"safe.singleton_l2", c.Safe.SingletonL2, &result.safe.SingletonL2},
		{"safe.proxy_factory", c.Safe.ProxyFactory, &result.safe.ProxyFactory},
		{"safe.multisend_call_only", c.Safe.MultiSendCallOnly, &result.safe.MultiSendCallOnly},
		{"safe.fallback_handler", c.Safe.FallbackHandler, &result.safe.FallbackHandler},
	}
	for _, f := range fields {
		if *f.target, err = parseAddress(f.name, f.value, f.name != "safe.singleton_l2"); err != nil {
			return nil, fmt.Errorf("network %s: %w", c.Name, err)
		}
	}
	if c.L2 && result.safe.SingletonL2 == (common.Address{}) {
		return nil, fmt.Errorf("network %s: safe.singleton_l2 is required on an l2 network", c.Name)
	}
	for symbol, addr := range c.Tokens {
		a, err := parseAddress("tokens."+symbol, addr, true)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", c.Name, err)
		}
		result.tokens[strings.ToLower(symbol)] = a
	}
	return result, nil
}

// ParseNetworks decodes a YAML document with a top level `networks` list.
func ParseNetworks(content []byte) ([]*NetworkInfo, error) {
	file := networksFile{}
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal networks: %w", err)
	}
	result := []*NetworkInfo{}
	for _, c := range file.Networks {
		n, err := newNetworkInfo(c)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

type networks struct {
	networks     map[string]*NetworkInfo
	networksByID map[uint64]*NetworkInfo
}

func (n *networks) add(network *NetworkInfo) {
	n.networks[network.GetName()] = network
	n.networksByID[network.GetChainID()] = network
	for _, an := range network.GetAlternativeNames() {
		n.networks[strings.ToLower(an)] = network
	}
}

func (n *networks) getSupportedNetworkNames() []string {
	res := []string{}
	for _, network := range n.networksByID {
		res = append(res, network.GetName())
	}
	return res
}

func (n *networks) getNetworkByID(id uint64) (*NetworkInfo, error) {
	res, found := n.networksByID[id]
	if !found {
		return nil, fmt.Errorf("network id %d: %w", id, ErrNetworkNotFound)
	}
	return res, nil
}

func (n *networks) getNetwork(name string) (*NetworkInfo, error) {
	res, found := n.networks[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return nil, fmt.Errorf("network name '%s': %w", name, ErrNetworkNotFound)
	}
	return res, nil
}

func newSupportedNetworks() *networks {
	result := &networks{
		map[string]*NetworkInfo{},
		map[uint64]*NetworkInfo{},
	}
	builtin, err := ParseNetworks(builtinNetworks)
	if err != nil {
		panic(fmt.Errorf("built-in networks are invalid: %w", err))
	}
	for _, n := range builtin {
		result.add(n)
	}

	// custom networks from ~/.safetx/networks/*.yaml override built-in ones
	custom, err := loadCustomNetworks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to load custom networks: %s. Ignore and continue with built-in networks.\n", err)
		return result
	}
	for _, n := range custom {
		result.add(n)
	}
	return result
}

func loadCustomNetworks() ([]*NetworkInfo, error) {
	usr, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(usr.HomeDir, ".safetx", "networks", "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob yaml files in ~/.safetx/networks: %w", err)
	}

	result := []*NetworkInfo{}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file, err)
		}
		parsed, err := ParseNetworks(content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse networks from file %s: %s. Ignore and continue with other custom networks.\n", file, err)
			continue
		}
		result = append(result, parsed...)
	}
	return result, nil
}

func GetSupportedNetworks() []*NetworkInfo {
	res := []*NetworkInfo{}
	for _, n := range globalSupportedNetworks.networksByID {
		res = append(res, n)
	}
	return res
}

func GetNetwork(name string) (*NetworkInfo, error) {
	return globalSupportedNetworks.getNetwork(name)
}

func GetNetworkByID(id uint64) (*NetworkInfo, error) {
	return globalSupportedNetworks.getNetworkByID(id)
}

func GetSupportedNetworkNames() []string {
	return globalSupportedNetworks.getSupportedNetworkNames()
}
