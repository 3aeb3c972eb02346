package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type ParticipantType uint8

const (
	ParticipantNone ParticipantType = iota
	ParticipantRemoved
	ParticipantGenesis
	ParticipantKYC
	ParticipantGovernor
	ParticipantIndividual
	ParticipantCorporation
)

var participantTypeNames = map[ParticipantType]string{
	ParticipantNone:        "none",
	ParticipantRemoved:     "removed",
	ParticipantGenesis:     "genesis",
	ParticipantKYC:         "kyc",
	ParticipantGovernor:    "governor",
	ParticipantIndividual:  "individual",
	ParticipantCorporation: "corporation",
}

func (t ParticipantType) String() string {
	if s, ok := participantTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("participant(%d)", uint8(t))
}

func ParseParticipantType(s string) (ParticipantType, error) {
	for t, name := range participantTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ParticipantNone, fmt.Errorf("unknown participant type %q", s)
}

// Batched reports whether admission of this type goes through a Merkle root
// and per-address KYC approval.
func (t ParticipantType) Batched() bool {
	return t == ParticipantIndividual || t == ParticipantCorporation || t == ParticipantGovernor
}

type GovernorStatus uint8

const (
	GovernorNone GovernorStatus = iota
	GovernorUnverified
	GovernorActive
	GovernorRemoved
)

func (s GovernorStatus) String() string {
	switch s {
	case GovernorNone:
		return "none"
	case GovernorUnverified:
		return "unverified"
	case GovernorActive:
		return "active"
	case GovernorRemoved:
		return "removed"
	}
	return fmt.Sprintf("governor(%d)", uint8(s))
}

type Participant struct {
	Address        common.Address  `json:"address"`
	Type           ParticipantType `json:"type"`
	GovernorStatus GovernorStatus  `json:"governor_status"`
	KYCHash        common.Hash     `json:"kyc_hash"`
}

// Batch is the admission commitment registered by an executed Participants
// proposal, awaiting per-address KYC approval.
type Batch struct {
	Proposal uint64          `json:"proposal"`
	Type     ParticipantType `json:"type"`
	Root     common.Hash     `json:"root"`
}

// Bond is Locked while its governor operates executing crowdfunds; a locked
// bond can be slashed but not returned.
type Bond struct {
	Governor  common.Address `json:"governor"`
	Amount    uint64         `json:"amount"`
	Locked    bool           `json:"locked"`
	Operating uint64         `json:"operating,omitempty"`
}
