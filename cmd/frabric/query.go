package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

var queryUrl string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query committed frabric state",
}

func init() {
	urlFlag(queryCmd, &queryUrl)
	queryCmd.AddCommand(
		addressQueryCmd("participant [address]", "/participants/", 1),
		indexQueryCmd("proposal [id]", "/proposals/"),
		addressQueryCmd("crowdfund [address] [contributor]", "/crowdfunds/", 1, 2),
		addressQueryCmd("thread [address]", "/threads/", 1),
		addressQueryCmd("bond [governor]", "/bonds/", 1),
		addressQueryCmd("balance [token] [holder]", "/balances/", 2),
		indexQueryCmd("distribution [id]", "/distributions/"),
		addressQueryCmd("nonce [address]", "/nonce/", 1),
	)
}

// abciQuery runs path against the node and decodes the JSON result into out.
func abciQuery(ctx context.Context, cli *http.HTTP, path string, data []byte, out any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %s failed with code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

func printQuery(path string, data []byte) error {
	cli, err := http.New(queryUrl, "/websocket")
	if err != nil {
		return err
	}
	var v json.RawMessage
	if err = abciQuery(context.Background(), cli, path, data, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// addressQueryCmd builds a query whose data is its address arguments
// concatenated.
func addressQueryCmd(use, path string, nargs ...int) *cobra.Command {
	minArgs, maxArgs := nargs[0], nargs[len(nargs)-1]
	return &cobra.Command{
		Use:   use,
		Short: "Query " + path,
		Args:  cobra.RangeArgs(minArgs, maxArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := parseAddresses(args)
			if err != nil {
				return err
			}
			var data []byte
			for _, a := range addrs {
				data = append(data, a.Bytes()...)
			}
			return printQuery(path, data)
		},
	}
}

func indexQueryCmd(use, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Query " + path,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0])
			if err != nil {
				return err
			}
			return printQuery(path, binary.BigEndian.AppendUint64(nil, id))
		},
	}
}
