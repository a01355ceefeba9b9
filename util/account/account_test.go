package account_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/util/account"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestPrivateKeyAccountSignsRecoverableHash(t *testing.T) {
	acc, err := account.NewPrivateKeyAccount(testKey)
	require.NoError(t, err)
	require.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", acc.AddressHex())

	hash := crypto.Keccak256Hash([]byte("safetx"))
	sig, err := acc.SignHash(hash)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	require.NoError(t, err)
	require.Equal(t, acc.Address(), crypto.PubkeyToAddress(*pub))
}

func TestPrivateKeyAccountSignsTx(t *testing.T) {
	acc, err := account.NewPrivateKeyAccount(testKey[2:])
	require.NoError(t, err)

	to := common.HexToAddress("0x01")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: &to})
	signed, err := acc.SignTx(tx, big.NewInt(1))
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), signed)
	require.NoError(t, err)
	require.Equal(t, acc.Address(), from)
}

func TestInvalidPrivateKey(t *testing.T) {
	_, err := account.NewPrivateKeyAccount("0xzz")
	require.Error(t, err)
}
