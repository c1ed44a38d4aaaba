package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type stakeArguments struct {
	Url     string
	ClaimId string
	Staker  string
	Side    string
	Stake   float64
}

var stakeArgs stakeArguments

var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Place a verification stake on a claim",
	Long:  ``,
	Run:   stakeRun,
}

func init() {
	urlFlag(stakeCmd, &stakeArgs.Url)
	stakeCmd.Flags().StringVarP(&stakeArgs.ClaimId, "claim", "i", "", "claim id")
	stakeCmd.Flags().StringVarP(&stakeArgs.Staker, "staker", "a", "", "staker address")
	stakeCmd.Flags().StringVarP(&stakeArgs.Side, "side", "t", "support", "support or oppose")
	stakeCmd.Flags().Float64VarP(&stakeArgs.Stake, "stake", "s", 1, "stake amount in units")
}

func stakeRun(cmd *cobra.Command, args []string) {
	out, err := callService(stakeArgs.Url, "/placeStake", map[string]interface{}{
		"claimId": stakeArgs.ClaimId,
		"staker":  stakeArgs.Staker,
		"side":    stakeArgs.Side,
		"stake":   stakeArgs.Stake,
	})
	if err != nil {
		fmt.Printf("request err:%v\n", err)
		return
	}
	fmt.Printf("%v\n", string(out))
}
