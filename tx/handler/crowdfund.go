package handler

import (
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/ethereum/go-ethereum/common"
)

func deposit(f *state.Frabric, sender common.Address, cftx *tx.CrowdfundTx) error {
	_, err := f.Crowdfunds.Deposit(sender, cftx.Crowdfund, cftx.Amount)
	return err
}

func withdraw(f *state.Frabric, sender common.Address, cftx *tx.CrowdfundTx) error {
	return f.Crowdfunds.Withdraw(sender, cftx.Crowdfund, cftx.Amount)
}

func crowdfundExecute(f *state.Frabric, sender common.Address, cftx *tx.CrowdfundTx) error {
	return f.Crowdfunds.Execute(sender, cftx.Crowdfund)
}

func crowdfundFinish(f *state.Frabric, sender common.Address, cftx *tx.CrowdfundTx) error {
	return f.Crowdfunds.Finish(sender, cftx.Crowdfund)
}

func crowdfundRefund(f *state.Frabric, sender common.Address, cftx *tx.CrowdfundTx) error {
	return f.Crowdfunds.Refund(sender, cftx.Crowdfund, cftx.Amount)
}

func burn(f *state.Frabric, _ common.Address, btx *tx.BurnTx) error {
	_, err := f.Crowdfunds.Burn(btx.Crowdfund, btx.Contributor)
	return err
}
