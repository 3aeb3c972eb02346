package main

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/frabric-app/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var merkleCmd = &cobra.Command{
	Use:   "merkle",
	Short: "Build participant batches for Participants proposals",
}

var merkleRootCmd = &cobra.Command{
	Use:   "root [address...]",
	Short: "Print the Merkle root of a participant batch",
	Args:  cobra.MinimumNArgs(1),
	RunE:  merkleRootRun,
}

var merkleProofCmd = &cobra.Command{
	Use:   "proof [participant] [address...]",
	Short: "Print the proof of participant within the batch",
	Args:  cobra.MinimumNArgs(2),
	RunE:  merkleProofRun,
}

func init() {
	merkleCmd.AddCommand(merkleRootCmd)
	merkleCmd.AddCommand(merkleProofCmd)
}

func parseAddresses(args []string) ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(args))
	for _, s := range args {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func merkleRootRun(cmd *cobra.Command, args []string) error {
	addrs, err := parseAddresses(args)
	if err != nil {
		return err
	}
	fmt.Println(crypto.NewParticipantTree(addrs).Root().Hex())
	return nil
}

func merkleProofRun(cmd *cobra.Command, args []string) error {
	participant, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	addrs, err := parseAddresses(args[1:])
	if err != nil {
		return err
	}
	tree := crypto.NewParticipantTree(addrs)
	proof, err := tree.Proof(crypto.ParticipantLeaf(participant))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(struct {
		Root  common.Hash   `json:"root"`
		Proof []common.Hash `json:"proof"`
	}{tree.Root(), proof}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
