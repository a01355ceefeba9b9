package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tranvictor/safetx/networks"
	"github.com/tranvictor/safetx/ui"
)

func networkRows(list []*networks.NetworkInfo) [][]string {
	sort.Slice(list, func(i, j int) bool {
		return list[i].GetChainID() < list[j].GetChainID()
	})
	rows := [][]string{}
	for _, n := range list {
		relayURL := n.GetRelayURL()
		if relayURL == "" {
			relayURL = "-"
		}
		rows = append(rows, []string{
			n.GetName(),
			fmt.Sprintf("%d", n.GetChainID()),
			n.GetNativeTokenSymbol(),
			strings.ToUpper(strings.Join(n.TokenSymbols(), ", ")),
			relayURL,
		})
	}
	return rows
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List supported networks, their tokens and relays",
	Long: `Built-in networks can be overridden or extended with yaml files in
~/.safetx/networks/, using the same format as the built-in list.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		u := ui.NewTerminalUI()
		u.Table(
			[]string{"Network", "Chain ID", "Native", "Tokens", "Relay"},
			networkRows(networks.GetSupportedNetworks()),
		)
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}
