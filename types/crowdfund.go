package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type CrowdfundState uint8

const (
	CrowdfundActive CrowdfundState = iota
	CrowdfundExecuting
	CrowdfundRefunding
	CrowdfundFinished
)

func (s CrowdfundState) String() string {
	switch s {
	case CrowdfundActive:
		return "active"
	case CrowdfundExecuting:
		return "executing"
	case CrowdfundRefunding:
		return "refunding"
	case CrowdfundFinished:
		return "finished"
	}
	return fmt.Sprintf("crowdfund(%d)", uint8(s))
}

type Crowdfund struct {
	Address     common.Address `json:"address"`
	Thread      common.Address `json:"thread"`
	ThreadToken common.Address `json:"thread_token"`
	Token       common.Address `json:"token"`
	Governor    common.Address `json:"governor"`
	Target      uint64         `json:"target"`
	State       CrowdfundState `json:"state"`
	Deposited   uint64         `json:"deposited"`
	// Refunded is the payment token pool handed to the distribution when the
	// raise was refunded.
	Refunded     uint64 `json:"refunded"`
	Distribution uint64 `json:"distribution"`
	// ClaimSupply snapshots Deposited when the crowdfund leaves Active, the
	// denominator for pro-rata payouts.
	ClaimSupply uint64 `json:"claim_supply"`
}

type Thread struct {
	Address    common.Address `json:"address"`
	Variant    uint8          `json:"variant"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	Descriptor common.Hash    `json:"descriptor"`
	Governor   common.Address `json:"governor"`
	ERC20      common.Address `json:"erc20"`
	Crowdfund  common.Address `json:"crowdfund"`
}

type Distribution struct {
	ID      uint64         `json:"id"`
	Holder  common.Address `json:"holder"`
	Token   common.Address `json:"token"`
	Amount  uint64         `json:"amount"`
	Claimed uint64         `json:"claimed"`
}
