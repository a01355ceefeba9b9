package common

import (
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20abi string = `[
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const ensregistryabi string = `[
{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const ensresolverabi string = `[
{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	erc20ABI       = mustParseABI(erc20abi)
	ensRegistryABI = mustParseABI(ensregistryabi)
	ensResolverABI = mustParseABI(ensresolverabi)
)

func mustParseABI(s string) *abi.ABI {
	result, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return &result
}

func GetERC20ABI() *abi.ABI {
	return erc20ABI
}

func GetENSRegistryABI() *abi.ABI {
	return ensRegistryABI
}

func GetENSResolverABI() *abi.ABI {
	return ensResolverABI
}

func PackERC20Data(function string, params ...interface{}) ([]byte, error) {
	return GetERC20ABI().Pack(function, params...)
}

// IsHexAddress reports whether s has the shape of a 0x prefixed 20 bytes
// hex address. It does not check the checksum.
func IsHexAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// SortAddresses sorts addresses ascending by their byte value, the order
// Safe expects concatenated owner signatures in.
func SortAddresses(addrs []common.Address) {
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return a.Cmp(b)
	})
}
