package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/veristake/veristake/ledger"
)

type accountArguments struct {
	RpcUrl  string
	Address string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Validate an address and query its ledger balance",
	Long:  ``,
	Run:   accountRun,
}

func init() {
	accountCmd.Flags().StringVarP(&accountArgs.RpcUrl, "rpc", "r", "http://127.0.0.1:8000", "ledger rpc url")
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address")
}

func accountRun(cmd *cobra.Command, args []string) {
	if !ledger.IsValidAddress(accountArgs.Address) {
		fmt.Printf("invalid address:%v\n", accountArgs.Address)
		return
	}
	cli := ledger.NewHTTPClient(ledger.Options{
		URL:          accountArgs.RpcUrl,
		PollInterval: 3 * time.Second,
		MaxRetries:   3,
		Timeout:      30 * time.Second,
	}, ledger.NewMockSigner(), log.NewLogger(os.Stdout))
	balance, err := cli.GetBalance(context.Background(), accountArgs.Address)
	if err != nil {
		fmt.Printf("query balance err:%v\n", err)
		return
	}
	fmt.Printf("address:%v balance:%v\n", accountArgs.Address, balance)
}
