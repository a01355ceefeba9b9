package cmd

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/config"
	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/relay"
	"github.com/tranvictor/safetx/ui"
)

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":          "0",
		"1234567":    "1,234,567",
		"1234567.89": "1,234,567.89",
		"0.000001":   "0.000001",
		"-0.5":       "-0.5",
		"-1234.5":    "-1,234.5",
	}
	for in, want := range cases {
		require.Equal(t, want, formatAmount(decimal.RequireFromString(in)), in)
	}
}

func TestMergeFlagsOnlyAppliesChangedFlags(t *testing.T) {
	defer func(network string, timeout time.Duration) {
		config.Network = network
		config.ReceiptTimeout = timeout
	}(config.Network, config.ReceiptTimeout)

	config.Network = "sepolia"
	config.ReceiptTimeout = time.Minute
	env := config.Env{Network: "mainnet", ReceiptTimeout: 3 * time.Minute, GasPriceMultiplier: 1.1}

	merged := mergeFlags(func(string) bool { return false }, env)
	require.Equal(t, env, merged)

	merged = mergeFlags(func(name string) bool { return name == "network" || name == "timeout" }, env)
	require.Equal(t, "sepolia", merged.Network)
	require.Equal(t, time.Minute, merged.ReceiptTimeout)
	require.Equal(t, 1.1, merged.GasPriceMultiplier)
}

func TestParseTransfers(t *testing.T) {
	transfers, err := parseTransfers([]string{"10", "usdc", "alice.eth", "0.5", "eth", "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"})
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	require.Equal(t, "usdc", transfers[0].Symbol)
	require.True(t, transfers[0].Amount.Equal(decimal.NewFromInt(10)))
	require.Equal(t, "alice.eth", transfers[0].Receiver)
	require.True(t, transfers[1].Amount.Equal(decimal.RequireFromString("0.5")))

	_, err = parseTransfers([]string{"10", "usdc"})
	require.ErrorIs(t, err, safetxcommon.ErrValidation)

	_, err = parseTransfers([]string{"ten", "usdc", "alice.eth"})
	require.ErrorIs(t, err, safetxcommon.ErrValidation)
}

func TestParseSafeTxHash(t *testing.T) {
	for _, raw := range []string{"", "0x1234", "not a hash", common.HexToHash("0x01").Hex() + "00"} {
		_, err := parseSafeTxHash(raw)
		require.ErrorIs(t, err, safetxcommon.ErrValidation, raw)
	}

	hash := common.HexToHash("0x01")
	got, err := parseSafeTxHash(hash.Hex())
	require.NoError(t, err)
	require.Equal(t, hash, got)
}

func TestNetworkRowsSortedByChainID(t *testing.T) {
	rows := networkRows(networks.GetSupportedNetworks())
	require.NotEmpty(t, rows)
	require.Equal(t, "mainnet", rows[0][0])
	require.Equal(t, "1", rows[0][1])
	require.Contains(t, rows[0][3], "USDC")
}

func TestPrintStatus(t *testing.T) {
	ok := true
	u := ui.NewRecordingUI()
	printStatus(u, &relay.TransactionStatus{
		SafeTxHash:            common.HexToHash("0x01"),
		Nonce:                 4,
		ConfirmationsRequired: 2,
		Confirmations: []relay.Confirmation{
			{Owner: common.HexToAddress("0x1")},
			{Owner: common.HexToAddress("0x2")},
		},
		IsExecuted:      true,
		IsSuccessful:    &ok,
		TransactionHash: common.HexToHash("0x02"),
	})
	require.True(t, u.HasMessage("Confirmations: 2 of 2"))
	require.True(t, u.HasMessage("Status: executed"))
	require.True(t, u.HasMessage("Tx: "+common.HexToHash("0x02").Hex()))

	require.Equal(t, "awaiting execution", statusText(&relay.TransactionStatus{}).Text)
	failed := false
	require.Equal(t, "failed", statusText(&relay.TransactionStatus{IsExecuted: true, IsSuccessful: &failed}).Text)
}
