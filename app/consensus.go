package app

import (
	"context"
	"time"

	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/calehh/frabric-app/tx/handler"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

func (app *FrabricApp) getState() (st *state.State) {
	st = app.db.NewState()
	app.st = st
	return
}

// checkState is the committed state with its clock moved to the next block,
// so CheckTx judges deadlines the way the next block will.
func (app *FrabricApp) checkState() *state.State {
	st := app.db.NewState()
	h := st.Header()
	st.SetBlock(h.Height+1, max(h.Time, time.Now().Unix()))
	return st
}

// parseTx decodes txDat and checks its signature against the committed
// state. Nonces are only enforced strictly during execution.
func (app *FrabricApp) parseTx(txDat []byte, allowNonceGap bool) (btx *tx.FrabricTx, sender common.Address, err error) {
	btx, err = tx.UnmarshalTx(txDat)
	if err != nil {
		return
	}
	sender, err = app.db.State().Verify(btx, allowNonceGap)
	return
}

func (app *FrabricApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: handler.CodeOK}
	btx, sender, err := app.parseTx(check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = handler.CodeTxFailed
		res.Log = err.Error()
		err = nil
		return
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = handler.CodeTxFailed
		res.Log = tx.ErrUnsupportedTxType.Error()
		return
	}
	res, err = h.Check(ctx, app.checkState(), sender, btx)
	if err != nil {
		app.logger.Error("check tx fail", "type", btx.Type, "err", err)
		res = &abcitypes.ResponseCheckTx{Code: handler.CodeTxFailed, Log: err.Error()}
		err = nil
	}
	return
}

// PrepareProposal drops transactions that no longer decode or verify and
// keeps the block under the byte limit. Execution failures are left to
// FinalizeBlock, where they consume the sender's nonce.
func (app *FrabricApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		btx, _, err := app.parseTx(stx, true)
		if err != nil {
			app.logger.Info("drop tx, parse fail", "err", err)
			continue
		}
		if _, ok := app.txHdlrs[btx.Type]; !ok {
			app.logger.Info("drop tx, unsupported", "type", btx.Type)
			continue
		}
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(txs))
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *FrabricApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	for _, stx := range proposal.Txs {
		btx, _, err := app.parseTx(stx, true)
		if err != nil {
			app.logger.Error("reject proposal, parse tx fail", "height", proposal.Height, "err", err)
			return res, nil
		}
		if _, ok := app.txHdlrs[btx.Type]; !ok {
			app.logger.Error("reject proposal, unsupported tx", "height", proposal.Height, "type", btx.Type)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

func (app *FrabricApp) deliverTx(ctx context.Context, st *state.State, stx []byte) (res *abcitypes.ExecTxResult, t tx.TxType, err error) {
	btx, err := tx.UnmarshalTx(stx)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: handler.CodeTxFailed, Log: err.Error()}, t, nil
	}
	t = btx.Type
	sender, err := st.Verify(btx, false)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: handler.CodeTxFailed, Log: err.Error()}, t, nil
	}
	if err = st.IncNonce(sender); err != nil {
		return nil, t, err
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return &abcitypes.ExecTxResult{Code: handler.CodeTxFailed, Log: tx.ErrUnsupportedTxType.Error()}, t, nil
	}
	res, err = h.Deliver(ctx, st, sender, btx)
	return
}

func (app *FrabricApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	start := time.Now()
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState()
	st.SetBlock(uint64(req.Height), req.Time.Unix())

	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		result, t, err := app.deliverTx(ctx, st, stx)
		if err != nil {
			app.logger.Error("deliver tx fail", "height", req.Height, "index", i, "err", err)
			return nil, err
		}
		app.metrics.observeTx(t, result.Code == handler.CodeOK)
		for _, ev := range result.Events {
			app.metrics.events.WithLabelValues(ev.Type).Inc()
		}
		res[i] = result
	}

	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.metrics.observeBlock(uint64(req.Height), len(req.Txs), start)
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *FrabricApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return &abcitypes.ResponseCommit{}, nil
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
