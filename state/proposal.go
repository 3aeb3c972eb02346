package state

import (
	"math/big"

	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// ProposalEngine runs the weighted-voting lifecycle shared by every
// proposal kind.
type ProposalEngine struct {
	f *Frabric
}

func (e *ProposalEngine) Count() (uint64, error) {
	return getUint64(e.f.kv, KeyProposalIndex)
}

func (e *ProposalEngine) Get(id uint64) (*types.Proposal, error) {
	p, err := getJSON[types.Proposal](e.f.kv, key(KeyProposalBody, id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, types.ErrProposalNoexists
	}
	return p, nil
}

func (e *ProposalEngine) set(p *types.Proposal) error {
	return setJSON(e.f.kv, key(KeyProposalBody, p.ID), p)
}

func (e *ProposalEngine) VoteOf(id uint64, voter common.Address) (*types.Vote, error) {
	return getJSON[types.Vote](e.f.kv, key(KeyVote, id, voter))
}

func requiresSupermajority(payload types.Payload) bool {
	switch p := payload.(type) {
	case types.ParticipantRemovalPayload, types.TokenActionPayload:
		return true
	case types.BondRemovalPayload:
		return p.Slash
	}
	return false
}

// snapshotHeight is the block whose closing balances weigh votes on p.
func snapshotHeight(p *types.Proposal) uint64 {
	if p.CreatedHeight == 0 {
		return 0
	}
	return p.CreatedHeight - 1
}

// Create opens a proposal in Active state after validating the proposer and
// the kind-specific payload.
func (e *ProposalEngine) Create(proposer common.Address, payload types.Payload, info common.Hash) (proposal *types.Proposal, err error) {
	if payload == nil {
		return nil, types.ErrUnknownProposalKind
	}
	ok, err := e.f.Participants.CanPropose(proposer)
	if err != nil {
		return
	}
	if !ok {
		return nil, types.ErrUnauthorized
	}
	if err = e.validatePayload(payload); err != nil {
		return
	}
	id, err := nextIndex(e.f.kv, KeyProposalIndex)
	if err != nil {
		return
	}
	params := e.f.cfg.Params
	proposal = &types.Proposal{
		ID:             id,
		Kind:           payload.Kind(),
		State:          types.ProposalActive,
		Proposer:       proposer,
		Info:           info,
		CreatedHeight:  e.f.env.Height,
		CreatedAt:      e.f.env.Time,
		VotingDeadline: e.f.env.Time + params.VotingPeriod,
		ExecutionDelay: params.QueuePeriod,
		Supermajority:  requiresSupermajority(payload),
		Payload:        payload,
	}
	if err = e.set(proposal); err != nil {
		return nil, err
	}
	e.f.emit(types.EventProposal{
		ID:       id,
		Kind:     proposal.Kind,
		Proposer: proposer,
		Info:     info,
		Deadline: proposal.VotingDeadline,
	})
	e.f.logger.Debug("proposal created", "id", id, "kind", proposal.Kind, "proposer", proposer)
	return
}

// Vote records the voter's weight for or against. Weight is capped by the
// voter's governance token balance at the proposal's snapshot; zero means the
// whole balance. A repeated vote replaces the earlier one. Only whitelisted
// participants vote, so removal also ends a holder's voting power.
func (e *ProposalEngine) Vote(voter common.Address, id uint64, weight uint64, support bool) (vote *types.Vote, err error) {
	p, err := e.Get(id)
	if err != nil {
		return
	}
	if p.State != types.ProposalActive {
		return nil, types.NewInvalidState(p.State, types.ProposalActive)
	}
	if e.f.env.Time >= p.VotingDeadline {
		return nil, types.ErrVotingClosed
	}
	ok, err := e.f.Tokens.Whitelisted(voter)
	if err != nil {
		return
	}
	if !ok {
		return nil, types.ErrUnauthorized
	}
	available, err := e.f.Tokens.BalanceAt(voter, snapshotHeight(p))
	if err != nil {
		return
	}
	if available == 0 {
		return nil, types.ErrNoVotingWeight
	}
	if weight == 0 || weight > available {
		weight = available
	}

	prev, err := e.VoteOf(id, voter)
	if err != nil {
		return
	}
	if prev != nil {
		if prev.Support {
			p.ForWeight -= prev.Weight
		} else {
			p.AgainstWeight -= prev.Weight
		}
	}
	if support {
		p.ForWeight += weight
	} else {
		p.AgainstWeight += weight
	}
	vote = &types.Vote{
		Proposal: id,
		Voter:    voter,
		Weight:   weight,
		Support:  support,
		Time:     e.f.env.Time,
	}
	if err = setJSON(e.f.kv, key(KeyVote, id, voter), vote); err != nil {
		return nil, err
	}
	if err = e.set(p); err != nil {
		return nil, err
	}
	e.f.emit(types.EventVote{ID: id, Voter: voter, Support: support, Weight: weight})
	return
}

// passed applies quorum, simple majority and, when flagged, the
// supermajority threshold.
func (e *ProposalEngine) passed(p *types.Proposal) (bool, error) {
	params := e.f.cfg.Params
	forW := new(big.Int).SetUint64(p.ForWeight)
	againstW := new(big.Int).SetUint64(p.AgainstWeight)
	if forW.Cmp(againstW) <= 0 {
		return false, nil
	}
	total := new(big.Int).Add(forW, againstW)

	supply, err := e.f.Tokens.TotalSupplyAt(snapshotHeight(p))
	if err != nil {
		return false, err
	}
	quorum := new(big.Int).Mul(new(big.Int).SetUint64(supply), new(big.Int).SetUint64(params.QuorumPercent))
	if new(big.Int).Mul(total, big.NewInt(100)).Cmp(quorum) < 0 {
		return false, nil
	}
	if p.Supermajority {
		required := new(big.Int).Mul(total, new(big.Int).SetUint64(params.SupermajorityPercent))
		if new(big.Int).Mul(forW, big.NewInt(100)).Cmp(required) < 0 {
			return false, nil
		}
	}
	return true, nil
}

func (e *ProposalEngine) transition(p *types.Proposal, next types.ProposalState) error {
	if !p.State.CanTransition(next) {
		return types.NewInvalidState(p.State, next)
	}
	p.State = next
	if err := e.set(p); err != nil {
		return err
	}
	e.f.emit(types.EventProposalStateChange{ID: p.ID, State: next})
	return nil
}

// Complete tallies a proposal whose voting period has ended. Anyone may call
// it.
func (e *ProposalEngine) Complete(id uint64) (p *types.Proposal, err error) {
	p, err = e.Get(id)
	if err != nil {
		return
	}
	if p.State != types.ProposalActive {
		return nil, types.NewInvalidState(p.State, types.ProposalActive)
	}
	if e.f.env.Time < p.VotingDeadline {
		return nil, types.ErrVotingOpen
	}
	ok, err := e.passed(p)
	if err != nil {
		return nil, err
	}
	if ok {
		p.QueuedAt = e.f.env.Time
		err = e.transition(p, types.ProposalQueued)
	} else {
		err = e.transition(p, types.ProposalRejected)
	}
	if err != nil {
		return nil, err
	}
	return
}

// Execute runs the kind-specific effect of a queued proposal once its
// execution delay has elapsed. The proposal is marked Executed before the
// effect runs.
func (e *ProposalEngine) Execute(id uint64) (p *types.Proposal, err error) {
	p, err = e.Get(id)
	if err != nil {
		return
	}
	if p.State != types.ProposalQueued {
		return nil, types.NewInvalidState(p.State, types.ProposalQueued)
	}
	if e.f.env.Time < p.ExecutableAt() {
		return nil, types.ErrExecutionDelay
	}
	if err = e.transition(p, types.ProposalExecuted); err != nil {
		return nil, err
	}
	if err = e.apply(p); err != nil {
		return nil, err
	}
	return
}

// Cancel lets a vetoer cancel an Active or Queued proposal, and a proposer
// withdraw their own proposal while it is still Active.
func (e *ProposalEngine) Cancel(caller common.Address, id uint64) (p *types.Proposal, err error) {
	p, err = e.Get(id)
	if err != nil {
		return
	}
	vetoer, err := e.f.IsVetoer(caller)
	if err != nil {
		return nil, err
	}
	switch {
	case vetoer:
		if p.State != types.ProposalActive && p.State != types.ProposalQueued {
			return nil, types.NewInvalidState(p.State, types.ProposalActive)
		}
	case caller == p.Proposer:
		if p.State != types.ProposalActive {
			return nil, types.NewInvalidState(p.State, types.ProposalActive)
		}
	default:
		return nil, types.ErrUnauthorized
	}
	if err = e.transition(p, types.ProposalCancelled); err != nil {
		return nil, err
	}
	return
}
