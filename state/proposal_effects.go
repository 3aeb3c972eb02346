package state

import (
	"fmt"

	"github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

func (e *ProposalEngine) validatePayload(payload types.Payload) error {
	switch p := payload.(type) {
	case types.PaperPayload:
		return nil
	case types.ParticipantsPayload:
		return e.validateParticipants(p)
	case types.ParticipantRemovalPayload:
		target, err := e.f.Participants.Get(p.Participant)
		if err != nil {
			return err
		}
		switch target.Type {
		case types.ParticipantNone:
			return fmt.Errorf("%w: %v is not a participant", types.ErrInvalidPayload, p.Participant)
		case types.ParticipantRemoved:
			return types.ErrParticipantRemoved
		}
		return nil
	case types.BondRemovalPayload:
		if p.Amount == 0 {
			return types.ErrInvalidAmount
		}
		bond, err := e.f.Bonds.Get(p.Governor)
		if err != nil {
			return err
		}
		if p.Amount > bond.Amount {
			return types.ErrInsufficientBond
		}
		return nil
	case types.ThreadPayload:
		if p.Variant != 0 {
			return types.ErrUnknownVariant
		}
		active, err := e.f.Participants.IsActiveGovernor(p.Governor)
		if err != nil {
			return err
		}
		if !active {
			return types.ErrNotActiveGovernor
		}
		_, _, err = DecodeThreadData(p.Data)
		return err
	case types.TokenActionPayload:
		if p.Amount == 0 {
			return types.ErrInvalidAmount
		}
		return nil
	}
	return types.ErrUnknownProposalKind
}

func (e *ProposalEngine) validateParticipants(p types.ParticipantsPayload) error {
	switch p.Type {
	case types.ParticipantGenesis:
		return types.ErrProposingGenesisParticipants
	case types.ParticipantKYC, types.ParticipantGovernor:
		addr, ok := crypto.LeafAddress(p.Data)
		if !ok {
			return fmt.Errorf("%w: data must be a zero-padded address", types.ErrInvalidPayload)
		}
		target, err := e.f.Participants.Get(addr)
		if err != nil {
			return err
		}
		return checkAdmissible(target)
	case types.ParticipantIndividual, types.ParticipantCorporation:
		if p.Data == (common.Hash{}) {
			return fmt.Errorf("%w: empty merkle root", types.ErrInvalidPayload)
		}
		return nil
	}
	return types.ErrInvalidParticipantType
}

// apply dispatches the executed proposal's effect on its kind.
func (e *ProposalEngine) apply(p *types.Proposal) error {
	switch payload := p.Payload.(type) {
	case types.PaperPayload:
		return nil
	case types.ParticipantsPayload:
		if payload.Type == types.ParticipantKYC {
			addr, _ := crypto.LeafAddress(payload.Data)
			return e.f.Participants.addKYC(addr)
		}
		return e.f.Participants.registerBatch(p.ID, payload.Type, payload.Data)
	case types.ParticipantRemovalPayload:
		return e.f.Participants.remove(payload.Participant, payload.Fine)
	case types.BondRemovalPayload:
		if payload.Slash {
			return e.f.Bonds.slash(payload.Governor, payload.Amount)
		}
		return e.f.Bonds.unbond(payload.Governor, payload.Amount)
	case types.ThreadPayload:
		_, err := e.f.Threads.Deploy(payload)
		return err
	case types.TokenActionPayload:
		return e.f.Tokens.Payout(payload.Token, e.f.Treasury(), payload.Target, payload.Amount)
	}
	return fmt.Errorf("%w: %v", types.ErrUnknownProposalKind, p.Kind)
}
