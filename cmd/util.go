package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tranvictor/safetx/chain"
	"github.com/tranvictor/safetx/config"
	"github.com/tranvictor/safetx/logger"
	"github.com/tranvictor/safetx/msig"
	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/relay"
	"github.com/tranvictor/safetx/resolver"
	"github.com/tranvictor/safetx/ui"
	"github.com/tranvictor/safetx/util/account"
)

// settings is the effective configuration, the environment with flags
// applied over it.
var settings config.Env

func loadConfig(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	env, err := config.Parse()
	if err != nil {
		return err
	}
	settings = mergeFlags(cmd.Flags().Changed, env)
	return nil
}

func mergeFlags(changed func(string) bool, env config.Env) config.Env {
	if changed("network") {
		env.Network = config.Network
	}
	if changed("node") {
		env.NodeURL = config.NodeURL
	}
	if changed("key") {
		env.SignerKey = config.SignerKey
	}
	if changed("safe") {
		env.SafeAddress = config.SafeAddress
	}
	if changed("relay") {
		env.RelayURL = config.RelayURL
	}
	if changed("no-relay") {
		env.NoRelay = config.NoRelay
	}
	if changed("gas-price-multiplier") && config.GasPriceMultiplier > 0 {
		env.GasPriceMultiplier = config.GasPriceMultiplier
	}
	if changed("timeout") && config.ReceiptTimeout > 0 {
		env.ReceiptTimeout = config.ReceiptTimeout
	}
	if changed("debug") {
		env.Debug = config.Debug
	}
	return env
}

func keystores() []string {
	if len(config.Keystores) > 0 {
		return config.Keystores
	}
	if settings.Keystore != "" {
		return []string{settings.Keystore}
	}
	return nil
}

// app is everything a command needs, built from settings.
type app struct {
	ui       ui.UI
	l        *zap.Logger
	network  *networks.NetworkInfo
	client   chain.Client
	relay    relay.Client
	resolver *resolver.Resolver
	manager  *msig.Manager
	relayURL string
}

func newApp() (*app, error) {
	l, err := logger.New(settings.Debug)
	if err != nil {
		return nil, err
	}
	network, err := networks.GetNetwork(settings.Network)
	if err != nil {
		return nil, fmt.Errorf("%w, supported networks: %s", err, strings.Join(networks.GetSupportedNetworkNames(), ", "))
	}
	nodes := network.GetDefaultNodes()
	if settings.NodeURL != "" {
		nodes["custom"] = settings.NodeURL
	}
	client := chain.NewNodeClient(nodes, l)

	var relayClient relay.Client
	relayURL := settings.RelayURL
	if relayURL == "" {
		relayURL = network.GetRelayURL()
	}
	if !settings.NoRelay && relayURL != "" {
		relayClient = relay.NewHTTPClient(relayURL, l).WithPollInterval(settings.RelayPollInterval)
	}

	manager := msig.NewManager(client, relayClient, network, msig.Config{
		GasPriceMultiplier: settings.GasPriceMultiplier,
		Origin:             settings.Origin,
	}, l)
	return &app{
		ui:       ui.NewTerminalUI(),
		l:        l,
		network:  network,
		client:   client,
		relay:    relayClient,
		resolver: resolver.New(client, network.GetENSRegistry(), l),
		manager:  manager,
		relayURL: relayURL,
	}, nil
}

// signers unlocks every configured key, prompting for keystore
// passphrases.
func (a *app) signers() ([]account.Signer, error) {
	result := []account.Signer{}
	if settings.SignerKey != "" {
		acc, err := account.NewPrivateKeyAccount(settings.SignerKey)
		if err != nil {
			return nil, fmt.Errorf("couldn't load signer key: %w", err)
		}
		result = append(result, acc)
	}
	for _, file := range keystores() {
		pw, err := account.PromptPassword(fmt.Sprintf("Passphrase of %s: ", file))
		if err != nil {
			return nil, err
		}
		acc, err := account.NewKeystoreAccount(file, pw)
		if err != nil {
			return nil, fmt.Errorf("couldn't unlock %s: %w", file, err)
		}
		result = append(result, acc)
	}
	return result, nil
}

// connect attaches the manager to raw, falling back to the configured
// Safe.
func (a *app) connect(ctx context.Context, raw string) (*msig.Account, error) {
	if raw == "" {
		raw = settings.SafeAddress
	}
	if raw == "" {
		return nil, fmt.Errorf("no Safe given, use --safe or SAFETX_SAFE_ADDRESS")
	}
	addr, err := a.resolver.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	stop := a.ui.Spinner(fmt.Sprintf("Reading Safe %s on %s...", addr.Hex(), a.network.GetName()))
	acc, err := a.manager.Connect(ctx, addr)
	stop()
	return acc, err
}

// yesOrConfirm asks prompt unless --yes was given.
func yesOrConfirm(a *app, prompt string) bool {
	if config.Yes {
		return true
	}
	return a.ui.Confirm(prompt, false)
}

func (a *app) close() {
	_ = a.l.Sync()
}

func printAccount(u ui.UI, acc *msig.Account) {
	owners := make([]string, 0, len(acc.Owners))
	for _, o := range acc.Owners {
		owners = append(owners, o.Hex())
	}
	u.KeyValue([][2]string{
		{"Safe", u.Style(ui.StyledText{Text: acc.Address.Hex(), Severity: ui.SeverityCritical})},
		{"Network", acc.Network.String()},
		{"Threshold", fmt.Sprintf("%d of %d", acc.Threshold, len(acc.Owners))},
		{"Owners", strings.Join(owners, "\n"+strings.Repeat(" ", len("Threshold")+2))},
	})
}

func printTransaction(u ui.UI, tx *msig.Transaction) {
	u.Section("Safe transaction")
	u.KeyValue([][2]string{
		{"Safe tx hash", u.Style(ui.StyledText{Text: tx.Hash().Hex(), Severity: ui.SeverityCritical})},
		{"Nonce", fmt.Sprintf("%d", tx.Nonce)},
		{"To", tx.To.Hex()},
		{"Operation", tx.Operation.String()},
		{"Signatures", fmt.Sprintf("%d of %d", tx.SignatureCount(), tx.Threshold)},
		{"State", tx.State().String()},
	})
	rows := [][]string{}
	for i, c := range tx.Calls() {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), c.Description})
	}
	u.Table([]string{"#", "Call"}, rows)
}

func printReceipt(u ui.UI, receipt *types.Receipt) {
	if receipt == nil {
		return
	}
	status := ui.StyledText{Text: "success", Severity: ui.SeveritySuccess}
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = ui.StyledText{Text: "reverted", Severity: ui.SeverityError}
	}
	u.KeyValue([][2]string{
		{"Tx", receipt.TxHash.Hex()},
		{"Block", receipt.BlockNumber.String()},
		{"Status", u.Style(status)},
	})
}

// formatAmount renders d with thousands separators (#,###.##).
func formatAmount(d decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	intPart := p.Sprintf("%v", d.IntPart())
	if d.Equal(decimal.New(d.IntPart(), 0)) {
		return intPart
	}
	parts := strings.Split(d.String(), ".")
	if len(parts) != 2 {
		return intPart
	}
	if d.IsNegative() && d.IntPart() == 0 {
		intPart = "-0"
	}
	return intPart + "." + parts[1]
}
