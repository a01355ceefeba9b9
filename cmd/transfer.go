package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/session"
)

// parseTransfers reads args as repeated <amount> <symbol> <receiver>
// triples.
func parseTransfers(args []string) ([]session.TransferToken, error) {
	if len(args) == 0 || len(args)%3 != 0 {
		return nil, fmt.Errorf("%w: expected <amount> <symbol> <receiver> triples, got %d args", safetxcommon.ErrValidation, len(args))
	}
	result := []session.TransferToken{}
	for i := 0; i < len(args); i += 3 {
		amount, err := safetxcommon.ParseQuantity(args[i])
		if err != nil {
			return nil, err
		}
		result = append(result, session.TransferToken{
			Amount:   amount,
			Symbol:   args[i+1],
			Receiver: args[i+2],
		})
	}
	return result, nil
}

var transferCmd = &cobra.Command{
	Use:   "transfer <amount> <symbol> <receiver> [<amount> <symbol> <receiver>...]",
	Short: "Send native coins or tokens from the Safe in one transaction",
	Long: `Every transfer is queued, then all of them are batched into one Safe
transaction. The receiver can be an address or an ENS name.

	safetx transfer 10 usdc alice.eth 0.5 eth 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transfers, err := parseTransfers(args)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		acc, err := a.connect(ctx, "")
		if err != nil {
			return err
		}
		printAccount(a.ui, acc)
		signers, err := a.signers()
		if err != nil {
			return err
		}
		if len(signers) == 0 {
			return fmt.Errorf("no signer configured, use --key or --keystore")
		}
		s := session.New(a.client, a.manager, signers, a.l)

		for _, t := range transfers {
			res, err := s.Execute(ctx, t)
			if err != nil {
				return fmt.Errorf("couldn't prepare transfer of %s %s to %s: %w", t.Amount, t.Symbol, t.Receiver, err)
			}
			a.ui.Info(res.Message)
		}

		a.ui.Section("Queued transfers")
		queued, err := s.Execute(ctx, session.ListQueued{})
		if err != nil {
			return err
		}
		rows := [][]string{}
		for i, item := range queued.Queued {
			rows = append(rows, []string{fmt.Sprintf("%d", i+1), item.Description})
		}
		a.ui.Table([]string{"#", "Transfer"}, rows)
		if !yesOrConfirm(a, "Sign and submit?") {
			a.ui.Warn("Aborted, nothing was signed.")
			return nil
		}

		stop := a.ui.Spinner("Signing and submitting...")
		res, err := s.Execute(ctx, session.ExecuteQueued{Timeout: settings.ReceiptTimeout})
		stop()
		if res != nil && res.Transaction != nil {
			printTransaction(a.ui, res.Transaction)
			printReceipt(a.ui, res.Receipt)
		}
		if errors.Is(err, safetxcommon.ErrTimeout) && res != nil && res.Transaction != nil {
			a.ui.Warn("Not executed yet. Check later with `safetx tx status %s`.", res.Transaction.Hash().Hex())
			return nil
		}
		if err != nil {
			return err
		}
		a.ui.Success(res.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
}
