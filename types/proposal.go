package types

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type ProposalKind uint8

const (
	ProposalPaper ProposalKind = iota
	ProposalParticipants
	ProposalParticipantRemoval
	ProposalBondRemoval
	ProposalThread
	ProposalTokenAction
)

var proposalKindNames = map[ProposalKind]string{
	ProposalPaper:              "paper",
	ProposalParticipants:       "participants",
	ProposalParticipantRemoval: "participant_removal",
	ProposalBondRemoval:        "bond_removal",
	ProposalThread:             "thread",
	ProposalTokenAction:        "token_action",
}

func (k ProposalKind) String() string {
	if s, ok := proposalKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func ParseProposalKind(s string) (ProposalKind, error) {
	for k, name := range proposalKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal kind %q", s)
}

type ProposalState uint8

const (
	ProposalActive ProposalState = iota
	ProposalQueued
	ProposalExecuted
	ProposalRejected
	ProposalCancelled
)

func (s ProposalState) String() string {
	switch s {
	case ProposalActive:
		return "active"
	case ProposalQueued:
		return "queued"
	case ProposalExecuted:
		return "executed"
	case ProposalRejected:
		return "rejected"
	case ProposalCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s ProposalState) CanTransition(next ProposalState) bool {
	switch s {
	case ProposalActive:
		return next == ProposalQueued || next == ProposalRejected || next == ProposalCancelled
	case ProposalQueued:
		return next == ProposalExecuted || next == ProposalCancelled
	}
	return false
}

// Payload is the kind-specific body of a proposal. The set of
// implementations is closed.
type Payload interface {
	Kind() ProposalKind
	payload()
}

type PaperPayload struct{}

type ParticipantsPayload struct {
	Type ParticipantType `json:"type"`
	// Data is the zero-padded address for KYC agents and governors, or the
	// Merkle root of the batch for individuals and corporations.
	Data common.Hash `json:"data"`
}

type ParticipantRemovalPayload struct {
	Participant common.Address  `json:"participant"`
	Fine        uint64          `json:"fine"`
	ProofOfSale []hexutil.Bytes `json:"proof_of_sale,omitempty"`
}

type BondRemovalPayload struct {
	Governor common.Address `json:"governor"`
	Slash    bool           `json:"slash"`
	Amount   uint64         `json:"amount"`
}

type ThreadPayload struct {
	Variant    uint8          `json:"variant"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	Descriptor common.Hash    `json:"descriptor"`
	Governor   common.Address `json:"governor"`
	Data       hexutil.Bytes  `json:"data"`
}

type TokenActionPayload struct {
	Token  common.Address `json:"token"`
	Target common.Address `json:"target"`
	Amount uint64         `json:"amount"`
}

func (PaperPayload) Kind() ProposalKind              { return ProposalPaper }
func (ParticipantsPayload) Kind() ProposalKind       { return ProposalParticipants }
func (ParticipantRemovalPayload) Kind() ProposalKind { return ProposalParticipantRemoval }
func (BondRemovalPayload) Kind() ProposalKind        { return ProposalBondRemoval }
func (ThreadPayload) Kind() ProposalKind             { return ProposalThread }
func (TokenActionPayload) Kind() ProposalKind        { return ProposalTokenAction }

func (PaperPayload) payload()              {}
func (ParticipantsPayload) payload()       {}
func (ParticipantRemovalPayload) payload() {}
func (BondRemovalPayload) payload()        {}
func (ThreadPayload) payload()             {}
func (TokenActionPayload) payload()        {}

func unmarshalPayload[P Payload](dat []byte) (Payload, error) {
	var p P
	if len(dat) != 0 {
		if err := json.Unmarshal(dat, &p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func UnmarshalPayload(kind ProposalKind, dat []byte) (Payload, error) {
	switch kind {
	case ProposalPaper:
		return unmarshalPayload[PaperPayload](dat)
	case ProposalParticipants:
		return unmarshalPayload[ParticipantsPayload](dat)
	case ProposalParticipantRemoval:
		return unmarshalPayload[ParticipantRemovalPayload](dat)
	case ProposalBondRemoval:
		return unmarshalPayload[BondRemovalPayload](dat)
	case ProposalThread:
		return unmarshalPayload[ThreadPayload](dat)
	case ProposalTokenAction:
		return unmarshalPayload[TokenActionPayload](dat)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownProposalKind, kind)
}

type Proposal struct {
	ID             uint64         `json:"id"`
	Kind           ProposalKind   `json:"kind"`
	State          ProposalState  `json:"state"`
	Proposer       common.Address `json:"proposer"`
	Info           common.Hash    `json:"info"`
	CreatedHeight  uint64         `json:"created_height"`
	CreatedAt      int64          `json:"created_at"`
	VotingDeadline int64          `json:"voting_deadline"`
	ExecutionDelay int64          `json:"execution_delay"`
	QueuedAt       int64          `json:"queued_at,omitempty"`
	ForWeight      uint64         `json:"for_weight"`
	AgainstWeight  uint64         `json:"against_weight"`
	Supermajority  bool           `json:"supermajority"`
	Payload        Payload        `json:"-"`
}

func (p *Proposal) MarshalJSON() ([]byte, error) {
	type plain Proposal
	dat, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		*plain
		Payload json.RawMessage `json:"payload"`
	}{(*plain)(p), dat})
}

func (p *Proposal) UnmarshalJSON(dat []byte) error {
	type plain Proposal
	var o struct {
		*plain
		Payload json.RawMessage `json:"payload"`
	}
	o.plain = (*plain)(p)
	if err := json.Unmarshal(dat, &o); err != nil {
		return err
	}
	payload, err := UnmarshalPayload(p.Kind, o.Payload)
	if err != nil {
		return err
	}
	p.Payload = payload
	return nil
}

// ExecutableAt is the earliest time a queued proposal may be executed.
func (p *Proposal) ExecutableAt() int64 {
	return p.QueuedAt + p.ExecutionDelay
}

type Vote struct {
	Proposal uint64         `json:"proposal"`
	Voter    common.Address `json:"voter"`
	Weight   uint64         `json:"weight"`
	Support  bool           `json:"support"`
	Time     int64          `json:"time"`
}
