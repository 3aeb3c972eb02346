package app

import (
	"context"
	"errors"

	"github.com/calehh/frabric-app/config"
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/calehh/frabric-app/tx/handler"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrEmptyAppState = errors.New("genesis app_state is empty")

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &FrabricApp{}

type FrabricApp struct {
	cfg    *config.FrabricAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  map[tx.TxType]handler.TxHandler
	queriers map[string]Querier
	metrics  appMetrics

	st *state.State
}

func NewFrabricApp(cfg *config.FrabricAppConfig, logger cmtlog.Logger, reg prometheus.Registerer) (app *FrabricApp, err error) {
	logger = logger.With("module", "app")

	dir := cfg.Home + "/data"
	db, err := state.NewStateDB(dir, logger)
	if err != nil {
		return nil, err
	}
	app = newFrabricApp(cfg, db, logger, reg)
	return
}

func newFrabricApp(cfg *config.FrabricAppConfig, db *state.StateDB, logger cmtlog.Logger, reg prometheus.Registerer) *FrabricApp {
	app := &FrabricApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  handler.NewTxHandlers(logger),
		queriers: make(map[string]Querier),
	}
	app.metrics.init(reg)
	app.registerQuerier()
	return app
}

func (app *FrabricApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
		app.metrics.height.Set(float64(height))
	}
}

func (app *FrabricApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("Frabric app stopped")
}

func (app *FrabricApp) registerQuerier() {
	app.queriers["/participants/"] = newStateQuerier(app.db, app.logger, queryParticipant)
	app.queriers["/proposals/"] = newStateQuerier(app.db, app.logger, queryProposal)
	app.queriers["/crowdfunds/"] = newStateQuerier(app.db, app.logger, queryCrowdfund)
	app.queriers["/threads/"] = newStateQuerier(app.db, app.logger, queryThread)
	app.queriers["/bonds/"] = newStateQuerier(app.db, app.logger, queryBond)
	app.queriers["/balances/"] = newStateQuerier(app.db, app.logger, queryBalance)
	app.queriers["/distributions/"] = newStateQuerier(app.db, app.logger, queryDistribution)
	app.queriers["/nonce/"] = &NonceQuerier{db: app.db, logger: app.logger}
}

func (app *FrabricApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	if len(chain.AppStateBytes) == 0 {
		app.logger.Error("InitChain without app state")
		return nil, ErrEmptyAppState
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.SetBlock(0, chain.Time.Unix())
	events, err := st.InitGenesis(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain genesis fail", "err", err)
		return nil, err
	}
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "events", len(events), "hash", h)
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *FrabricApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *FrabricApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *FrabricApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *FrabricApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *FrabricApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *FrabricApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *FrabricApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
