// Copyright © 2018 Victor Tran
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tranvictor/safetx/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "safetx",
	Short: "Queue, sign and execute transfers from a Safe multisig",
	Long: `safetx turns transfer instructions into Safe transactions.

Every transfer given to one command is queued, batched into a single Safe
transaction (through MultiSend when there are several), signed with every
local owner key and executed once the Safe threshold is met. When the
network has a Safe Transaction Service the transaction is proposed there so
the remaining owners can confirm it from their own wallets.

Configuration is read from the environment and from a .env file in the
working directory or next to the binary:

	SAFETX_NETWORK               network name or alias (default mainnet)
	SAFETX_NODE_URL              extra node used besides the built-in ones
	SAFETX_SIGNER_KEY            hex private key of a local signer
	SAFETX_KEYSTORE              keystore file of a local signer
	SAFETX_SAFE_ADDRESS          the Safe to operate on
	SAFETX_RELAY_URL             overrides the network's transaction service
	SAFETX_NO_RELAY              execute directly on-chain
	SAFETX_GAS_PRICE_MULTIPLIER  applied to the node's gas price (default 1.1)
	SAFETX_RECEIPT_TIMEOUT       how long to wait for execution (default 3m)

Flags override the environment.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&config.Network, "network", "k", "", "network name or chain alias, see `safetx networks`")
	flags.StringVar(&config.NodeURL, "node", "", "additional node RPC url")
	flags.StringVar(&config.SignerKey, "key", "", "hex private key of a local signer")
	flags.StringSliceVar(&config.Keystores, "keystore", nil, "keystore files of local signers, repeatable")
	flags.StringVarP(&config.SafeAddress, "safe", "s", "", "Safe address or name")
	flags.StringVar(&config.RelayURL, "relay", "", "Safe Transaction Service url")
	flags.BoolVar(&config.NoRelay, "no-relay", false, "execute directly on-chain even when a transaction service exists")
	flags.Float64Var(&config.GasPriceMultiplier, "gas-price-multiplier", 0, "multiplier applied to the suggested gas price")
	flags.DurationVar(&config.ReceiptTimeout, "timeout", 0, "how long to wait for execution")
	flags.BoolVar(&config.Debug, "debug", false, "verbose logging")
	flags.BoolVarP(&config.Yes, "yes", "y", false, "don't ask for confirmation")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
