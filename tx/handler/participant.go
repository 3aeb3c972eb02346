package handler

import (
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/ethereum/go-ethereum/common"
)

// approve may be relayed by anyone; the KYC signature authorizes it.
func approve(f *state.Frabric, _ common.Address, atx *tx.ApproveTx) error {
	return f.Participants.Approve(atx.Proposal, atx.Participant, atx.KYCHash, atx.Proof, atx.Signature)
}

func bond(f *state.Frabric, sender common.Address, btx *tx.BondTx) error {
	return f.Bonds.Bond(sender, btx.Amount)
}

func transfer(f *state.Frabric, sender common.Address, ttx *tx.TransferTx) error {
	return f.Tokens.Send(ttx.Token, sender, ttx.To, ttx.Amount)
}
