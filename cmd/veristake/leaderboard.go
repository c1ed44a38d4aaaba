package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type leaderboardArguments struct {
	Url      string
	Category string
	Period   string
}

var leaderboardArgs leaderboardArguments

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Fetch a leaderboard",
	Long:  ``,
	Run:   leaderboardRun,
}

func init() {
	urlFlag(leaderboardCmd, &leaderboardArgs.Url)
	leaderboardCmd.Flags().StringVarP(&leaderboardArgs.Category, "category", "c", "earnings", "leaderboard category")
	leaderboardCmd.Flags().StringVarP(&leaderboardArgs.Period, "period", "p", "all-time", "all-time, weekly or monthly")
}

func leaderboardRun(cmd *cobra.Command, args []string) {
	out, err := callService(leaderboardArgs.Url, "/getLeaderboard", map[string]interface{}{
		"category": leaderboardArgs.Category,
		"period":   leaderboardArgs.Period,
	})
	if err != nil {
		fmt.Printf("request err:%v\n", err)
		return
	}
	fmt.Printf("%v\n", string(out))
}
