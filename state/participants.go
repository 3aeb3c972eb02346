package state

import (
	"fmt"

	"github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// ParticipantRegistry owns participant records and the admission batches
// registered by executed Participants proposals.
type ParticipantRegistry struct {
	f *Frabric
}

// Get never returns nil; unknown addresses are reported with type None.
func (r *ParticipantRegistry) Get(addr common.Address) (*types.Participant, error) {
	p, err := getJSON[types.Participant](r.f.kv, key(KeyParticipant, addr))
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &types.Participant{Address: addr}
	}
	return p, nil
}

func (r *ParticipantRegistry) set(p *types.Participant) error {
	return setJSON(r.f.kv, key(KeyParticipant, p.Address), p)
}

// CanPropose reports whether addr may open proposals: any admitted type
// except Removed, and governors only once active.
func (r *ParticipantRegistry) CanPropose(addr common.Address) (bool, error) {
	p, err := r.Get(addr)
	if err != nil {
		return false, err
	}
	switch p.Type {
	case types.ParticipantNone, types.ParticipantRemoved:
		return false, nil
	case types.ParticipantGovernor:
		return p.GovernorStatus == types.GovernorActive, nil
	}
	return true, nil
}

func (r *ParticipantRegistry) IsActiveGovernor(addr common.Address) (bool, error) {
	p, err := r.Get(addr)
	if err != nil {
		return false, err
	}
	return p.Type == types.ParticipantGovernor && p.GovernorStatus == types.GovernorActive, nil
}

func (r *ParticipantRegistry) changeType(p *types.Participant, t types.ParticipantType) error {
	p.Type = t
	if err := r.set(p); err != nil {
		return err
	}
	r.f.emit(types.EventParticipantChange{Participant: p.Address, Type: t})
	return nil
}

func (r *ParticipantRegistry) setGovernorStatus(p *types.Participant, status types.GovernorStatus) error {
	p.GovernorStatus = status
	if err := r.set(p); err != nil {
		return err
	}
	r.f.emit(types.EventGovernorChange{Governor: p.Address, Status: status})
	return nil
}

func (r *ParticipantRegistry) AddGenesis(addr common.Address, kycHash common.Hash) (err error) {
	p, err := r.Get(addr)
	if err != nil {
		return
	}
	if p.Type != types.ParticipantNone {
		return types.ErrAlreadyApproved
	}
	p.KYCHash = kycHash
	if err = r.changeType(p, types.ParticipantGenesis); err != nil {
		return
	}
	return r.f.Tokens.Whitelist(addr, kycHash)
}

// addKYC admits a KYC agent directly. Agents attest identities but are not
// whitelisted to hold restricted tokens themselves.
func (r *ParticipantRegistry) addKYC(addr common.Address) (err error) {
	p, err := r.Get(addr)
	if err != nil {
		return
	}
	if err = checkAdmissible(p); err != nil {
		return
	}
	return r.changeType(p, types.ParticipantKYC)
}

func checkAdmissible(p *types.Participant) error {
	switch p.Type {
	case types.ParticipantNone:
		return nil
	case types.ParticipantRemoved:
		return types.ErrParticipantRemoved
	}
	return types.ErrAlreadyApproved
}

// registerBatch stores the Merkle commitment of an executed Participants
// proposal. A governor batch commits to a single address, which moves to
// Unverified until its KYC approval lands.
func (r *ParticipantRegistry) registerBatch(proposal uint64, t types.ParticipantType, root common.Hash) (err error) {
	if err = setJSON(r.f.kv, key(KeyBatch, proposal), &types.Batch{Proposal: proposal, Type: t, Root: root}); err != nil {
		return
	}
	if t == types.ParticipantGovernor {
		addr, _ := crypto.LeafAddress(root)
		var p *types.Participant
		p, err = r.Get(addr)
		if err != nil {
			return
		}
		if err = checkAdmissible(p); err != nil {
			return
		}
		return r.setGovernorStatus(p, types.GovernorUnverified)
	}
	return
}

func (r *ParticipantRegistry) Batch(proposal uint64) (*types.Batch, error) {
	return getJSON[types.Batch](r.f.kv, key(KeyBatch, proposal))
}

// Approve admits participant out of the batch registered by proposal. It
// needs a proof of membership in the batch root and an attestation over
// (participant, kycHash) signed by a current KYC agent.
func (r *ParticipantRegistry) Approve(proposal uint64, participant common.Address, kycHash common.Hash, proof []common.Hash, sig []byte) (err error) {
	batch, err := r.Batch(proposal)
	if err != nil {
		return
	}
	if batch == nil {
		return types.ErrBatchNoexists
	}
	p, err := r.Get(participant)
	if err != nil {
		return
	}
	if err = checkAdmissible(p); err != nil {
		return
	}
	if !r.f.verifier.VerifyProof(proof, batch.Root, crypto.ParticipantLeaf(participant)) {
		return types.ErrInvalidProof
	}
	signer, err := r.f.verifier.RecoverKYCSigner(participant, kycHash, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidSignature, err)
	}
	agent, err := r.Get(signer)
	if err != nil {
		return
	}
	if agent.Type != types.ParticipantKYC {
		return types.ErrInvalidSignature
	}

	p.KYCHash = kycHash
	if err = r.changeType(p, batch.Type); err != nil {
		return
	}
	if err = r.f.Tokens.Whitelist(participant, kycHash); err != nil {
		return
	}
	if batch.Type == types.ParticipantGovernor {
		err = r.setGovernorStatus(p, types.GovernorActive)
	}
	r.f.logger.Debug("participant approved", "participant", participant, "type", batch.Type, "agent", signer)
	return
}

// remove demotes addr to Removed, drops its whitelist entry and forfeits up
// to fine of its governance tokens to the treasury. A removed governor also
// loses its whole bond.
func (r *ParticipantRegistry) remove(addr common.Address, fine uint64) (err error) {
	p, err := r.Get(addr)
	if err != nil {
		return
	}
	if p.Type == types.ParticipantRemoved {
		return types.ErrParticipantRemoved
	}
	wasGovernor := p.Type == types.ParticipantGovernor || p.GovernorStatus != types.GovernorNone
	if err = r.changeType(p, types.ParticipantRemoved); err != nil {
		return
	}
	if err = r.f.Tokens.Unwhitelist(addr); err != nil {
		return
	}
	if wasGovernor {
		if err = r.setGovernorStatus(p, types.GovernorRemoved); err != nil {
			return
		}
		var bond *types.Bond
		bond, err = r.f.Bonds.Get(addr)
		if err != nil {
			return
		}
		if bond.Amount > 0 {
			if err = r.f.Bonds.slash(addr, bond.Amount); err != nil {
				return
			}
		}
	}
	if fine > 0 {
		var bal uint64
		bal, err = r.f.Tokens.Balance(r.f.cfg.FRBC, addr)
		if err != nil {
			return
		}
		fine = min(fine, bal)
		if fine > 0 {
			err = r.f.Tokens.Transfer(r.f.cfg.FRBC, addr, r.f.Treasury(), fine)
		}
	}
	return
}
