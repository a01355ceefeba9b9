package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/msig"
)

var (
	DeployOwners    []string
	DeployThreshold int
	DeploySalt      string
)

var safeCmd = &cobra.Command{
	Use:   "safe",
	Short: "Inspect or deploy Safes",
}

var safeInfoCmd = &cobra.Command{
	Use:   "info [safe]",
	Short: "Show owners, threshold and balance of a Safe",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := context.Background()

		raw := ""
		if len(args) > 0 {
			raw = args[0]
		}
		acc, err := a.connect(ctx, raw)
		if err != nil {
			return err
		}
		printAccount(a.ui, acc)
		balance, err := a.client.Balance(ctx, acc.Address)
		if err != nil {
			return err
		}
		a.ui.KeyValue([][2]string{
			{"Balance", fmt.Sprintf("%s %s", formatAmount(safetxcommon.BaseUnitsToDecimal(balance, a.network.GetNativeTokenDecimal())), a.network.GetNativeTokenSymbol())},
			{"Relay", relayDescription(a)},
		})
		return nil
	},
}

func relayDescription(a *app) string {
	if a.relay == nil {
		return "none, transactions are executed directly"
	}
	return a.relayURL
}

var safeDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a new Safe through the network's proxy factory",
	Long: `The first configured signer pays for the deployment.

	safetx safe deploy --owner alice.eth --owner 0x... --threshold 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := context.Background()

		owners := []common.Address{}
		for _, raw := range DeployOwners {
			addr, err := a.resolver.Resolve(ctx, raw)
			if err != nil {
				return err
			}
			owners = append(owners, addr)
		}
		if err := msig.ValidateOwners(owners, DeployThreshold); err != nil {
			return err
		}
		var salt *big.Int
		if DeploySalt != "" {
			var ok bool
			if salt, ok = new(big.Int).SetString(DeploySalt, 0); !ok {
				return fmt.Errorf("invalid salt %q", DeploySalt)
			}
		}
		signers, err := a.signers()
		if err != nil {
			return err
		}
		if len(signers) == 0 {
			return fmt.Errorf("no signer configured to pay for the deployment")
		}

		if !yesOrConfirm(a, fmt.Sprintf("Deploy a %d of %d Safe on %s paid by %s?", DeployThreshold, len(owners), a.network.GetName(), signers[0].Address().Hex())) {
			a.ui.Warn("Aborted.")
			return nil
		}
		stop := a.ui.Spinner("Deploying...")
		acc, err := a.manager.Deploy(ctx, signers[0], msig.DeployRequest{
			Owners:    owners,
			Threshold: DeployThreshold,
			SaltNonce: salt,
			Timeout:   settings.ReceiptTimeout,
		})
		stop()
		if err != nil {
			return err
		}
		a.ui.Success("Safe deployed")
		printAccount(a.ui, acc)
		return nil
	},
}

func init() {
	safeDeployCmd.Flags().StringSliceVarP(&DeployOwners, "owner", "o", nil, "owner address or name, repeatable")
	safeDeployCmd.Flags().IntVarP(&DeployThreshold, "threshold", "t", 1, "confirmations required to execute")
	safeDeployCmd.Flags().StringVar(&DeploySalt, "salt", "", "salt nonce of the proxy address, random when empty")
	safeDeployCmd.MarkFlagRequired("owner")

	safeCmd.AddCommand(safeInfoCmd)
	safeCmd.AddCommand(safeDeployCmd)
	rootCmd.AddCommand(safeCmd)
}
