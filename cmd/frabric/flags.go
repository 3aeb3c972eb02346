package main

import (
	"github.com/calehh/frabric-app/config"
	"github.com/spf13/cobra"
)

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.PersistentFlags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "frabric node rpc url")
}

func keyFlag(cmd *cobra.Command, path *string) {
	cmd.PersistentFlags().StringVarP(path, "key", "k", "./config/"+config.DefaultKeyFile, "private key path")
}

func homeFlag(cmd *cobra.Command, home *string) {
	cmd.Flags().StringVarP(home, FlagHome, "d", "", "home directory, default $HOME/.frabric")
}
