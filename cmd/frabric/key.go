package main

import (
	"fmt"

	"github.com/calehh/frabric-app/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

type keyArguments struct {
	Key string
}

var keyArgs keyArguments

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage secp256k1 account keys",
}

var keyNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a key and write it to --key",
	Args:  cobra.NoArgs,
	RunE:  keyNewRun,
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the address and public key of --key",
	Args:  cobra.NoArgs,
	RunE:  keyShowRun,
}

func init() {
	keyFlag(keyNewCmd, &keyArgs.Key)
	keyFlag(keyShowCmd, &keyArgs.Key)
	keyCmd.AddCommand(keyNewCmd)
	keyCmd.AddCommand(keyShowCmd)
}

func keyNewRun(cmd *cobra.Command, args []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err = key.Save(keyArgs.Key); err != nil {
		return err
	}
	fmt.Println("address:", key.Address().Hex())
	return nil
}

func keyShowRun(cmd *cobra.Command, args []string) error {
	key, err := crypto.LoadKeyFile(keyArgs.Key)
	if err != nil {
		return err
	}
	fmt.Println("address:", key.Address().Hex())
	fmt.Println("pubkey:", hexutil.Encode(key.PublicKey()))
	return nil
}
