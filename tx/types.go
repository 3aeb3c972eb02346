package tx

import (
	"errors"
)

type TxType uint8

const (
	TxTypeUnknown          TxType = 0
	TxTypePropose          TxType = 1
	TxTypeVote             TxType = 2
	TxTypeCompleteProposal TxType = 3
	TxTypeExecuteProposal  TxType = 4
	TxTypeCancelProposal   TxType = 5
	TxTypeApprove          TxType = 6
	TxTypeBond             TxType = 7
	TxTypeTransfer         TxType = 8
	TxTypeDeposit          TxType = 9
	TxTypeWithdraw         TxType = 10
	TxTypeCrowdfundExecute TxType = 11
	TxTypeCrowdfundFinish  TxType = 12
	TxTypeCrowdfundRefund  TxType = 13
	TxTypeBurn             TxType = 14
)

var txTypeNames = map[TxType]string{
	TxTypePropose:          "propose",
	TxTypeVote:             "vote",
	TxTypeCompleteProposal: "complete_proposal",
	TxTypeExecuteProposal:  "execute_proposal",
	TxTypeCancelProposal:   "cancel_proposal",
	TxTypeApprove:          "approve",
	TxTypeBond:             "bond",
	TxTypeTransfer:         "transfer",
	TxTypeDeposit:          "deposit",
	TxTypeWithdraw:         "withdraw",
	TxTypeCrowdfundExecute: "crowdfund_execute",
	TxTypeCrowdfundFinish:  "crowdfund_finish",
	TxTypeCrowdfundRefund:  "crowdfund_refund",
	TxTypeBurn:             "burn",
}

func (t TxType) String() string {
	if s, ok := txTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

const (
	TxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
