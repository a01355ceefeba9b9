package msig

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/networks"
)

// Account is a connected Safe as it was read from chain.
type Account struct {
	Address   common.Address
	Owners    []common.Address
	Threshold int
	Network   *networks.NetworkInfo
}

func (a *Account) IsOwner(addr common.Address) bool {
	for _, o := range a.Owners {
		if o == addr {
			return true
		}
	}
	return false
}

func (a *Account) String() string {
	return fmt.Sprintf("%s (%d of %d on %s)", a.Address.Hex(), a.Threshold, len(a.Owners), a.Network.GetName())
}

// ValidateOwners checks owners are non-empty, unique and non-zero and
// that 1 <= threshold <= len(owners).
func ValidateOwners(owners []common.Address, threshold int) error {
	if len(owners) == 0 {
		return fmt.Errorf("%w: no owners", safetxcommon.ErrInvalidOwners)
	}
	seen := map[common.Address]bool{}
	for _, o := range owners {
		if o == (common.Address{}) {
			return fmt.Errorf("%w: zero address owner", safetxcommon.ErrInvalidOwners)
		}
		if seen[o] {
			return fmt.Errorf("%w: duplicated owner %s", safetxcommon.ErrInvalidOwners, o.Hex())
		}
		seen[o] = true
	}
	if threshold < 1 || threshold > len(owners) {
		return fmt.Errorf("%w: threshold %d with %d owners", safetxcommon.ErrInvalidOwners, threshold, len(owners))
	}
	return nil
}
