package msig_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/msig"
)

func TestEncodeMultiSendLayout(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	packed := msig.EncodeMultiSend([]safetxcommon.UnsignedTransaction{
		safetxcommon.NewUnsignedTransaction(to, []byte{0xde, 0xad}, big.NewInt(5), 0),
	})

	require.Len(t, packed, 1+20+32+32+2)
	require.Equal(t, byte(0), packed[0])
	require.Equal(t, to.Bytes(), packed[1:21])
	require.Equal(t, byte(5), packed[52])
	require.Equal(t, byte(2), packed[84])
	require.Equal(t, []byte{0xde, 0xad}, packed[85:])
}

func TestMultiSendKeepsOrder(t *testing.T) {
	calls := []safetxcommon.UnsignedTransaction{}
	for i := int64(1); i <= 3; i++ {
		calls = append(calls, safetxcommon.NewUnsignedTransaction(
			common.BigToAddress(big.NewInt(i)),
			make([]byte, i*7),
			big.NewInt(i),
			0,
		))
	}
	decoded, err := msig.DecodeMultiSend(msig.EncodeMultiSend(calls))
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i := range calls {
		require.Equal(t, calls[i].To(), decoded[i].To())
		require.Equal(t, calls[i].Value(), decoded[i].Value())
		require.Equal(t, calls[i].Data(), decoded[i].Data())
	}
}

func TestDecodeMultiSendRejectsTruncatedInput(t *testing.T) {
	packed := msig.EncodeMultiSend([]safetxcommon.UnsignedTransaction{
		safetxcommon.NewUnsignedTransaction(common.Address{1}, []byte{1, 2, 3}, big.NewInt(0), 0),
	})
	_, err := msig.DecodeMultiSend(packed[:len(packed)-1])
	require.Error(t, err)
	_, err = msig.DecodeMultiSend(packed[:40])
	require.Error(t, err)
}
