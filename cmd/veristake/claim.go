package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// callService POSTs a JSON body to a running service and returns the raw
// response body.
func callService(url, path string, body interface{}) ([]byte, error) {
	dat, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(url+path, "application/json", bytes.NewReader(dat))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(out))
	}
	return out, nil
}

type claimArguments struct {
	Url      string
	Author   string
	Content  string
	Stake    float64
	ClaimId  string
	Page     int
	PageSize int
}

var claimArgs claimArguments

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Create a claim, or list claims when no content is given",
	Long:  ``,
	Run:   claimRun,
}

func init() {
	urlFlag(claimCmd, &claimArgs.Url)
	claimCmd.Flags().StringVarP(&claimArgs.Author, "author", "a", "", "author address")
	claimCmd.Flags().StringVarP(&claimArgs.Content, "content", "c", "", "claim content")
	claimCmd.Flags().Float64VarP(&claimArgs.Stake, "stake", "s", 1, "stake amount in units")
	claimCmd.Flags().StringVarP(&claimArgs.ClaimId, "claim", "i", "", "claim id to fetch")
	claimCmd.Flags().IntVarP(&claimArgs.Page, "page", "p", 0, "page")
	claimCmd.Flags().IntVarP(&claimArgs.PageSize, "pagesize", "z", 20, "page size")
}

func claimRun(cmd *cobra.Command, args []string) {
	var (
		out []byte
		err error
	)
	switch {
	case claimArgs.ClaimId != "":
		out, err = callService(claimArgs.Url, "/getClaim", map[string]interface{}{
			"claimId": claimArgs.ClaimId,
		})
	case claimArgs.Content != "":
		out, err = callService(claimArgs.Url, "/createClaim", map[string]interface{}{
			"author":  claimArgs.Author,
			"content": claimArgs.Content,
			"stake":   claimArgs.Stake,
		})
	default:
		out, err = callService(claimArgs.Url, "/getClaims", map[string]interface{}{
			"author":   claimArgs.Author,
			"page":     claimArgs.Page,
			"pageSize": claimArgs.PageSize,
		})
	}
	if err != nil {
		fmt.Printf("request err:%v\n", err)
		return
	}
	fmt.Printf("%v\n", string(out))
}
