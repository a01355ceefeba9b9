package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/relay"
	"github.com/tranvictor/safetx/ui"
)

func parseSafeTxHash(raw string) (common.Hash, error) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q is not a 32 bytes hex hash", safetxcommon.ErrValidation, raw)
	}
	return common.BytesToHash(b), nil
}

func statusText(s *relay.TransactionStatus) ui.StyledText {
	switch {
	case !s.IsExecuted:
		return ui.StyledText{Text: "awaiting execution", Severity: ui.SeverityWarn}
	case s.Succeeded():
		return ui.StyledText{Text: "executed", Severity: ui.SeveritySuccess}
	default:
		return ui.StyledText{Text: "failed", Severity: ui.SeverityError}
	}
}

func printStatus(u ui.UI, s *relay.TransactionStatus) {
	rows := [][2]string{
		{"Safe tx hash", s.SafeTxHash.Hex()},
		{"Nonce", fmt.Sprintf("%d", s.Nonce)},
		{"Confirmations", fmt.Sprintf("%d of %d", len(s.Confirmations), s.ConfirmationsRequired)},
		{"Status", u.Style(statusText(s))},
	}
	if s.TransactionHash != (common.Hash{}) {
		rows = append(rows, [2]string{"Tx", s.TransactionHash.Hex()})
	}
	u.KeyValue(rows)
	owners := [][]string{}
	for _, c := range s.Confirmations {
		owners = append(owners, []string{c.Owner.Hex()})
	}
	u.Table([]string{"Confirmed by"}, owners)
}

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect Safe transactions known to the relay",
}

var txStatusCmd = &cobra.Command{
	Use:   "status <safe tx hash>",
	Short: "Show confirmations and execution status of a Safe transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := parseSafeTxHash(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if a.relay == nil {
			return safetxcommon.ErrNoRelay
		}
		wait, _ := cmd.Flags().GetBool("wait")
		ctx := context.Background()
		var status *relay.TransactionStatus
		if wait {
			stop := a.ui.Spinner("Waiting for execution...")
			status, err = a.relay.WaitExecuted(ctx, hash, settings.ReceiptTimeout)
			stop()
		} else {
			status, err = a.relay.Transaction(ctx, hash)
		}
		if err != nil {
			return err
		}
		printStatus(a.ui, status)
		return nil
	},
}

func init() {
	txStatusCmd.Flags().Bool("wait", false, "poll the relay until the transaction is executed or --timeout elapses")
	txCmd.AddCommand(txStatusCmd)
	rootCmd.AddCommand(txCmd)
}
