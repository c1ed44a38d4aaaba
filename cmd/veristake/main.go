package main

import (
	"fmt"
	"os"
)

func main() {
	serveCmd.AddCommand(initCmd)
	serveCmd.AddCommand(versionCmd)
	serveCmd.AddCommand(accountCmd)
	serveCmd.AddCommand(claimCmd)
	serveCmd.AddCommand(stakeCmd)
	serveCmd.AddCommand(leaderboardCmd)
	if err := serveCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
