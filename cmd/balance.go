package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tranvictor/safetx/resolver"
	"github.com/tranvictor/safetx/session"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [symbol...]",
	Short: "Show balances of the Safe, or of --owner",
	Long: `Without symbols it shows the native balance.

	safetx balance eth usdc
	safetx balance usdc --owner alice.eth`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := context.Background()

		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			if _, err := a.connect(ctx, ""); err != nil {
				return err
			}
		}
		symbols := args
		if len(symbols) == 0 {
			symbols = []string{a.network.GetNativeTokenSymbol()}
		}
		s := session.New(a.client, a.manager, nil, a.l)
		rows := [][]string{}
		for _, symbol := range symbols {
			res, err := s.Execute(ctx, session.QueryBalance{Owner: owner, Symbol: symbol})
			if err != nil {
				return fmt.Errorf("couldn't read %s balance: %w", symbol, err)
			}
			if len(rows) == 0 {
				a.ui.KeyValue([][2]string{{"Owner", resolver.Display(res.Owner)}})
			}
			rows = append(rows, []string{strings.ToUpper(symbol), formatAmount(res.Balance)})
		}
		a.ui.Table([]string{"Token", "Balance"}, rows)
		return nil
	},
}

func init() {
	balanceCmd.Flags().String("owner", "", "address or name to read balances of, the Safe when empty")
	rootCmd.AddCommand(balanceCmd)
}
