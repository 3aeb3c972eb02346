package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	KeyState             = "s"
	KeyConfig            = "cfg"
	KeyNonce             = "n%x"
	KeyParticipant       = "pt%x"
	KeyBatch             = "pb%v"
	KeyVetoer            = "vt%x"
	KeyBond              = "b%x"
	KeyProposalBody      = "p%v"
	KeyProposalIndex     = "pi"
	KeyVote              = "v%v/%x"
	KeyBalance           = "t%x/%x"
	KeySupply            = "ts%x"
	KeyRestricted        = "r%x"
	KeyCheckpointCount   = "k%x/%x"
	KeyCheckpoint        = "k%x/%x/%v"
	KeyWhitelist         = "w%x"
	KeyThread            = "th%x"
	KeyThreadIndex       = "thi"
	KeyCrowdfund         = "c%x"
	KeyDistributionBody  = "d%v"
	KeyDistributionIndex = "di"
)

func key(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// ModuleAddress derives the account that holds funds on behalf of a core
// component, e.g. bond collateral.
func ModuleAddress(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("frabric:" + name))[12:])
}

var BondEscrow = ModuleAddress("bond")
