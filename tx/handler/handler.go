package handler

import (
	"context"

	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/calehh/frabric-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

const (
	CodeOK       uint32 = 0
	CodeTxFailed uint32 = 1
)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, sender common.Address, btx *tx.FrabricTx) (res *abcitypes.ResponseCheckTx, err error)
	Deliver(ctx context.Context, st *state.State, sender common.Address, btx *tx.FrabricTx) (res *abcitypes.ExecTxResult, err error)
}

// txHandler adapts one Frabric operation to a transaction type. Check runs
// the operation against a discarded cache; Deliver commits it.
type txHandler[T any] struct {
	logger cmtlog.Logger
	apply  func(f *state.Frabric, sender common.Address, t *T) error
}

func newTxHandler[T any](logger cmtlog.Logger, name string, apply func(f *state.Frabric, sender common.Address, t *T) error) *txHandler[T] {
	return &txHandler[T]{
		logger: logger.With("module", name),
		apply:  apply,
	}
}

func (h *txHandler[T]) run(st *state.State, sender common.Address, btx *tx.FrabricTx, checkOnly bool) ([]types.Event, error) {
	t, ok := btx.Tx.(*T)
	if !ok {
		return nil, tx.ErrInvalidTx
	}
	return st.Apply(checkOnly, func(f *state.Frabric) error {
		return h.apply(f, sender, t)
	})
}

func (h *txHandler[T]) Check(ctx context.Context, st *state.State, sender common.Address, btx *tx.FrabricTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: CodeOK}
	if _, err1 := h.run(st, sender, btx, true); err1 != nil {
		h.logger.Info("CheckTx fail", "sender", sender, "err", err1)
		res.Code = CodeTxFailed
		res.Log = err1.Error()
	}
	return
}

func (h *txHandler[T]) Deliver(ctx context.Context, st *state.State, sender common.Address, btx *tx.FrabricTx) (res *abcitypes.ExecTxResult, err error) {
	res = &abcitypes.ExecTxResult{Code: CodeOK}
	events, err1 := h.run(st, sender, btx, false)
	if err1 != nil {
		h.logger.Info("DeliverTx fail", "sender", sender, "err", err1)
		res.Code = CodeTxFailed
		res.Log = err1.Error()
		return
	}
	res.Events = make([]abcitypes.Event, 0, len(events))
	for _, ev := range events {
		var event abcitypes.Event
		event, err = types.EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, event)
	}
	return
}

func NewTxHandlers(logger cmtlog.Logger) map[tx.TxType]TxHandler {
	return map[tx.TxType]TxHandler{
		tx.TxTypePropose:          newTxHandler(logger, "proposeTx", propose),
		tx.TxTypeVote:             newTxHandler(logger, "voteTx", vote),
		tx.TxTypeCompleteProposal: newTxHandler(logger, "completeTx", completeProposal),
		tx.TxTypeExecuteProposal:  newTxHandler(logger, "executeTx", executeProposal),
		tx.TxTypeCancelProposal:   newTxHandler(logger, "cancelTx", cancelProposal),
		tx.TxTypeApprove:          newTxHandler(logger, "approveTx", approve),
		tx.TxTypeBond:             newTxHandler(logger, "bondTx", bond),
		tx.TxTypeTransfer:         newTxHandler(logger, "transferTx", transfer),
		tx.TxTypeDeposit:          newTxHandler(logger, "depositTx", deposit),
		tx.TxTypeWithdraw:         newTxHandler(logger, "withdrawTx", withdraw),
		tx.TxTypeCrowdfundExecute: newTxHandler(logger, "crowdfundExecuteTx", crowdfundExecute),
		tx.TxTypeCrowdfundFinish:  newTxHandler(logger, "crowdfundFinishTx", crowdfundFinish),
		tx.TxTypeCrowdfundRefund:  newTxHandler(logger, "crowdfundRefundTx", crowdfundRefund),
		tx.TxTypeBurn:             newTxHandler(logger, "burnTx", burn),
	}
}
