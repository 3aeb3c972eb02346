package main

import (
	"fmt"

	"github.com/calehh/frabric-app/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

type kycSignArguments struct {
	Key         string
	ChainID     uint64
	Frabric     string
	Participant string
	KYCHash     string
}

var kycSignArgs kycSignArguments

var kycSignCmd = &cobra.Command{
	Use:   "kyc-sign",
	Short: "Sign a KYC attestation for a participant as a KYC agent",
	Args:  cobra.NoArgs,
	RunE:  kycSignRun,
}

func init() {
	keyFlag(kycSignCmd, &kycSignArgs.Key)
	kycSignCmd.Flags().Uint64Var(&kycSignArgs.ChainID, "kyc-chain-id", 1, "numeric chain id of the genesis app_state")
	kycSignCmd.Flags().StringVar(&kycSignArgs.Frabric, "frabric", "", "frabric address of the genesis app_state")
	kycSignCmd.Flags().StringVarP(&kycSignArgs.Participant, "participant", "p", "", "participant address")
	kycSignCmd.Flags().StringVar(&kycSignArgs.KYCHash, "kyc-hash", "", "32 byte KYC commitment")
	kycSignCmd.MarkFlagRequired("frabric")
	kycSignCmd.MarkFlagRequired("participant")
}

func kycSignRun(cmd *cobra.Command, args []string) error {
	frabric, err := parseAddress(kycSignArgs.Frabric)
	if err != nil {
		return err
	}
	participant, err := parseAddress(kycSignArgs.Participant)
	if err != nil {
		return err
	}
	key, err := crypto.LoadKeyFile(kycSignArgs.Key)
	if err != nil {
		return err
	}
	verifier := crypto.NewKYCVerifier(crypto.KYCDomain{ChainID: kycSignArgs.ChainID, VerifyingContract: frabric})
	kycHash := common.HexToHash(kycSignArgs.KYCHash)
	sig, err := verifier.SignKYC(key.PrivateKey(), participant, kycHash)
	if err != nil {
		return err
	}
	fmt.Println("signer:", key.Address().Hex())
	fmt.Println("kyc_hash:", kycHash.Hex())
	fmt.Println("signature:", hexutil.Encode(sig))
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
