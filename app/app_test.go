package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/calehh/frabric-app/config"
	fcrypto "github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/calehh/frabric-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const testChainId = "frabric-test"

var (
	testFrabric   = common.HexToAddress("0xf0000000000000000000000000000000000000f0")
	testFRBC      = common.HexToAddress("0xf0000000000000000000000000000000000000f1")
	testBondToken = common.HexToAddress("0xf0000000000000000000000000000000000000f3")
)

type testApp struct {
	*FrabricApp
	t      *testing.T
	keys   []*fcrypto.Key
	height int64
}

func newTestApp(t *testing.T) *testApp {
	db, err := state.NewMemStateDB(log.NewNopLogger())
	require.NoError(t, err)
	app := newFrabricApp(config.DefaultFrabricAppConfig(t.TempDir()), db, log.NewNopLogger(), prometheus.NewRegistry())
	ta := &testApp{FrabricApp: app, t: t}
	for i := 0; i < 2; i++ {
		k, err := fcrypto.GenerateKey()
		require.NoError(t, err)
		ta.keys = append(ta.keys, k)
	}
	appState := types.AppState{
		ChainID:   1,
		Frabric:   testFrabric,
		FRBC:      testFRBC,
		BondToken: testBondToken,
		Params:    types.DefaultParams(),
		Participants: []types.GenesisParticipant{
			{Address: ta.keys[0].Address(), Amount: 1000},
			{Address: ta.keys[1].Address(), Amount: 500},
		},
	}
	raw, err := json.Marshal(&appState)
	require.NoError(t, err)
	res, err := app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:       testChainId,
		Time:          time.Unix(1_700_000_000, 0),
		AppStateBytes: raw,
	})
	require.NoError(t, err)
	require.Len(t, res.AppHash, common.HashLength)
	return ta
}

func (ta *testApp) signTx(key *fcrypto.Key, chainId string, nonce uint64, t tx.TxType, body any) []byte {
	dat, err := tx.Sign(&tx.FrabricTx{
		Version: tx.TxVersion0,
		Type:    t,
		Nonce:   nonce,
		Tx:      body,
	}, chainId, key)
	require.NoError(ta.t, err)
	return dat
}

func (ta *testApp) transfer(from int, nonce uint64, to common.Address, amount uint64) []byte {
	return ta.signTx(ta.keys[from], testChainId, nonce, tx.TxTypeTransfer, &tx.TransferTx{Token: testFRBC, To: to, Amount: amount})
}

func (ta *testApp) block(txs ...[]byte) *abcitypes.ResponseFinalizeBlock {
	ta.height++
	res, err := ta.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Height: ta.height,
		Time:   time.Unix(1_700_000_000+ta.height, 0),
		Hash:   common.BigToHash(common.Big1).Bytes(),
		Txs:    txs,
	})
	require.NoError(ta.t, err)
	require.Len(ta.t, res.TxResults, len(txs))
	_, err = ta.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(ta.t, err)
	return res
}

func (ta *testApp) query(path string, data []byte) *abcitypes.ResponseQuery {
	res, err := ta.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(ta.t, err)
	return res
}

func (ta *testApp) mustQuery(path string, data []byte, out any) {
	res := ta.query(path, data)
	require.Equal(ta.t, QueryCodeOK, res.Code, res.Log)
	require.NoError(ta.t, json.Unmarshal(res.Value, out))
}

func TestInitChainRequiresAppState(t *testing.T) {
	db, err := state.NewMemStateDB(log.NewNopLogger())
	require.NoError(t, err)
	app := newFrabricApp(config.DefaultFrabricAppConfig(t.TempDir()), db, log.NewNopLogger(), prometheus.NewRegistry())
	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: testChainId})
	require.ErrorIs(t, err, ErrEmptyAppState)
}

func TestFinalizeBlock(t *testing.T) {
	ta := newTestApp(t)
	a0, a1 := ta.keys[0].Address(), ta.keys[1].Address()

	paper, err := tx.NewProposeTx(types.PaperPayload{}, common.HexToHash("0xabcd"))
	require.NoError(t, err)
	res := ta.block(
		ta.transfer(0, 0, a1, 100),
		ta.transfer(0, 1, a1, 100000),
		ta.signTx(ta.keys[1], testChainId, 0, tx.TxTypePropose, paper),
	)
	require.Equal(t, uint32(0), res.TxResults[0].Code)
	require.Equal(t, types.EventTransferType, res.TxResults[0].Events[0].Type)
	require.Equal(t, uint32(1), res.TxResults[1].Code)
	require.Contains(t, res.TxResults[1].Log, types.ErrInsufficientBalance.Error())
	require.Equal(t, uint32(0), res.TxResults[2].Code)

	info, err := ta.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	require.Equal(t, int64(1), info.LastBlockHeight)
	require.Equal(t, res.AppHash, info.LastBlockAppHash)

	// The failed transfer still consumed its nonce.
	var acnt state.Account
	ta.mustQuery("/nonce/", a0.Bytes(), &acnt)
	require.Equal(t, uint64(2), acnt.Nonce)

	var bal BalanceInfo
	ta.mustQuery("/balances/", append(testFRBC.Bytes(), a1.Bytes()...), &bal)
	require.Equal(t, uint64(600), bal.Balance)

	var p types.Proposal
	ta.mustQuery("/proposals/", binary.BigEndian.AppendUint64(nil, 1), &p)
	require.Equal(t, a1, p.Proposer)
	require.Equal(t, types.ProposalActive, p.State)
	require.Equal(t, types.ProposalPaper, p.Kind)

	var pi ParticipantInfo
	ta.mustQuery("/participants/", a0.Bytes(), &pi)
	require.True(t, pi.Whitelisted)

	require.Equal(t, float64(1), testutil.ToFloat64(ta.metrics.txs.WithLabelValues("transfer", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(ta.metrics.txs.WithLabelValues("transfer", "failed")))
	require.Equal(t, float64(1), testutil.ToFloat64(ta.metrics.height))
}

func TestDeliverRejectsReplay(t *testing.T) {
	ta := newTestApp(t)
	a1 := ta.keys[1].Address()
	stx := ta.transfer(0, 0, a1, 10)
	res := ta.block(stx)
	require.Equal(t, uint32(0), res.TxResults[0].Code)

	res = ta.block(stx)
	require.Equal(t, uint32(1), res.TxResults[0].Code)
	require.Contains(t, res.TxResults[0].Log, state.ErrTxNonceInvalid.Error())

	var bal BalanceInfo
	ta.mustQuery("/balances/", append(testFRBC.Bytes(), a1.Bytes()...), &bal)
	require.Equal(t, uint64(510), bal.Balance)
}

func TestCheckTx(t *testing.T) {
	ta := newTestApp(t)
	a1 := ta.keys[1].Address()
	ctx := context.Background()

	res, err := ta.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.transfer(0, 0, a1, 10)})
	require.NoError(t, err)
	require.Equal(t, uint32(0), res.Code, res.Log)

	// Nonce gaps are accepted into the mempool.
	res, err = ta.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.transfer(0, 3, a1, 10)})
	require.NoError(t, err)
	require.Equal(t, uint32(0), res.Code, res.Log)

	res, err = ta.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.transfer(0, 0, a1, 100000)})
	require.NoError(t, err)
	require.Equal(t, uint32(1), res.Code)

	wrongChain := ta.signTx(ta.keys[0], "other-chain", 0, tx.TxTypeTransfer, &tx.TransferTx{Token: testFRBC, To: a1, Amount: 10})
	res, err = ta.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: wrongChain})
	require.NoError(t, err)
	require.Equal(t, uint32(1), res.Code)

	res, err = ta.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: []byte("not a tx")})
	require.NoError(t, err)
	require.Equal(t, uint32(1), res.Code)
}

func TestProposalFiltering(t *testing.T) {
	ta := newTestApp(t)
	a1 := ta.keys[1].Address()
	ctx := context.Background()
	good := ta.transfer(0, 0, a1, 10)
	bad := []byte("garbage")

	prep, err := ta.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{Height: 1, Txs: [][]byte{bad, good}, MaxTxBytes: 1 << 20})
	require.NoError(t, err)
	require.Equal(t, [][]byte{good}, prep.Txs)

	prep, err = ta.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{Height: 1, Txs: [][]byte{good}, MaxTxBytes: int64(len(good) - 1)})
	require.NoError(t, err)
	require.Empty(t, prep.Txs)

	proc, err := ta.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Height: 1, Txs: [][]byte{good}})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	proc, err = ta.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Height: 1, Txs: [][]byte{good, bad}})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)
}

func TestQueryErrors(t *testing.T) {
	ta := newTestApp(t)

	require.Equal(t, QueryCodeNotFound, ta.query("/unknown", nil).Code)
	require.Equal(t, QueryCodeFail, ta.query("/participants/", []byte{1, 2}).Code)
	require.Equal(t, QueryCodeFail, ta.query("/proposals/", make([]byte, 9)).Code)
	require.Equal(t, QueryCodeFail, ta.query("/threads/", ta.keys[0].Address().Bytes()).Code)
	require.Equal(t, QueryCodeFail, ta.query("/nonce/", nil).Code)

	// A trailing slash is optional.
	var acnt state.Account
	ta.mustQuery("/nonce", ta.keys[0].Address().Bytes(), &acnt)
	require.Equal(t, uint64(0), acnt.Nonce)
}

func TestCheckTxUsesNextBlockClock(t *testing.T) {
	ta := newTestApp(t)
	paper, err := tx.NewProposeTx(types.PaperPayload{}, common.Hash{})
	require.NoError(t, err)
	res := ta.block(ta.signTx(ta.keys[0], testChainId, 0, tx.TxTypePropose, paper))
	require.Equal(t, uint32(0), res.TxResults[0].Code, res.TxResults[0].Log)

	// The last block is long past, so the next one is after the deadline.
	complete := ta.signTx(ta.keys[1], testChainId, 0, tx.TxTypeCompleteProposal, &tx.ProposalTx{Proposal: 1})
	check, err := ta.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: complete})
	require.NoError(t, err)
	require.Equal(t, uint32(0), check.Code, check.Log)

	// Execution still runs on the block clock.
	res = ta.block(complete)
	require.Equal(t, uint32(1), res.TxResults[0].Code)
	require.Contains(t, res.TxResults[0].Log, types.ErrVotingOpen.Error())
}
