package handler

import (
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/ethereum/go-ethereum/common"
)

func propose(f *state.Frabric, sender common.Address, ptx *tx.ProposeTx) error {
	payload, err := ptx.DecodePayload()
	if err != nil {
		return err
	}
	_, err = f.Proposals.Create(sender, payload, ptx.Info)
	return err
}

func vote(f *state.Frabric, sender common.Address, vtx *tx.VoteTx) error {
	_, err := f.Proposals.Vote(sender, vtx.Proposal, vtx.Weight, vtx.Support)
	return err
}

func completeProposal(f *state.Frabric, _ common.Address, ptx *tx.ProposalTx) error {
	_, err := f.Proposals.Complete(ptx.Proposal)
	return err
}

func executeProposal(f *state.Frabric, _ common.Address, ptx *tx.ProposalTx) error {
	_, err := f.Proposals.Execute(ptx.Proposal)
	return err
}

func cancelProposal(f *state.Frabric, sender common.Address, ptx *tx.ProposalTx) error {
	_, err := f.Proposals.Cancel(sender, ptx.Proposal)
	return err
}
