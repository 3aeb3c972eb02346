package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

const (
	QueryCodeOK       uint32 = 0
	QueryCodeFail     uint32 = 1
	QueryCodeNotFound uint32 = 404
)

var ErrInvalidQueryData = errors.New("invalid query data")

func (app *FrabricApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = QueryCodeNotFound
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// StateQuerier answers one query path from the last committed version of
// the Frabric tree and returns the result as JSON.
type StateQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
	query  func(f *state.Frabric, data []byte) (any, error)
}

func newStateQuerier(db *state.StateDB, logger cmtlog.Logger, query func(f *state.Frabric, data []byte) (any, error)) *StateQuerier {
	return &StateQuerier{
		db:     db,
		logger: logger,
		query:  query,
	}
}

func (q *StateQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	var v any
	height, err := q.db.View(func(f *state.Frabric) (err error) {
		v, err = q.query(f, req.Data)
		return
	})
	if err == nil {
		res.Value, err = json.Marshal(v)
	}
	if err != nil {
		q.logger.Debug("query fail", "path", req.Path, "err", err)
		res.Code = QueryCodeFail
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(height)
	return
}

type NonceQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func (q *NonceQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != common.AddressLength {
		res.Code = QueryCodeFail
		res.Log = ErrInvalidQueryData.Error()
		return
	}
	a, height, err := q.db.GetAccount(common.BytesToAddress(req.Data))
	if err != nil {
		res.Code = QueryCodeFail
		res.Log = err.Error()
		return res, nil
	}
	res.Value, _ = json.Marshal(a)
	res.Height = int64(height)
	return
}

func parseAddress(data []byte) (common.Address, error) {
	if len(data) != common.AddressLength {
		return common.Address{}, ErrInvalidQueryData
	}
	return common.BytesToAddress(data), nil
}

// parseIndex reads a big-endian id of at most eight bytes.
func parseIndex(data []byte) (idx uint64, err error) {
	if len(data) == 0 || len(data) > 8 {
		return 0, ErrInvalidQueryData
	}
	for _, v := range data {
		idx <<= 8
		idx |= uint64(v)
	}
	return
}

// ParticipantInfo is the /participants/ result.
type ParticipantInfo struct {
	*types.Participant
	Whitelisted bool   `json:"whitelisted"`
	Bond        uint64 `json:"bond"`
}

func queryParticipant(f *state.Frabric, data []byte) (any, error) {
	addr, err := parseAddress(data)
	if err != nil {
		return nil, err
	}
	p, err := f.Participants.Get(addr)
	if err != nil {
		return nil, err
	}
	whitelisted, err := f.Tokens.Whitelisted(addr)
	if err != nil {
		return nil, err
	}
	bond, err := f.Bonds.Get(addr)
	if err != nil {
		return nil, err
	}
	return &ParticipantInfo{Participant: p, Whitelisted: whitelisted, Bond: bond.Amount}, nil
}

func queryProposal(f *state.Frabric, data []byte) (any, error) {
	id, err := parseIndex(data)
	if err != nil {
		return nil, err
	}
	return f.Proposals.Get(id)
}

// CrowdfundInfo is the /crowdfunds/ result. Data may carry a contributor
// address after the crowdfund address.
type CrowdfundInfo struct {
	*types.Crowdfund
	Contribution *uint64 `json:"contribution,omitempty"`
}

func queryCrowdfund(f *state.Frabric, data []byte) (any, error) {
	if len(data) != common.AddressLength && len(data) != 2*common.AddressLength {
		return nil, ErrInvalidQueryData
	}
	cf, err := f.Crowdfunds.Get(common.BytesToAddress(data[:common.AddressLength]))
	if err != nil {
		return nil, err
	}
	info := &CrowdfundInfo{Crowdfund: cf}
	if len(data) == 2*common.AddressLength {
		amount, err := f.Crowdfunds.Contribution(cf.Address, common.BytesToAddress(data[common.AddressLength:]))
		if err != nil {
			return nil, err
		}
		info.Contribution = &amount
	}
	return info, nil
}

func queryThread(f *state.Frabric, data []byte) (any, error) {
	addr, err := parseAddress(data)
	if err != nil {
		return nil, err
	}
	th, err := f.Threads.Get(addr)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return nil, state.ErrNotFound
	}
	return th, nil
}

func queryBond(f *state.Frabric, data []byte) (any, error) {
	addr, err := parseAddress(data)
	if err != nil {
		return nil, err
	}
	return f.Bonds.Get(addr)
}

type BalanceInfo struct {
	Token   common.Address `json:"token"`
	Holder  common.Address `json:"holder"`
	Balance uint64         `json:"balance"`
}

func queryBalance(f *state.Frabric, data []byte) (any, error) {
	if len(data) != 2*common.AddressLength {
		return nil, ErrInvalidQueryData
	}
	info := &BalanceInfo{
		Token:  common.BytesToAddress(data[:common.AddressLength]),
		Holder: common.BytesToAddress(data[common.AddressLength:]),
	}
	var err error
	info.Balance, err = f.Tokens.Balance(info.Token, info.Holder)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func queryDistribution(f *state.Frabric, data []byte) (any, error) {
	id, err := parseIndex(data)
	if err != nil {
		return nil, err
	}
	d, err := f.Distributions.Get(id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, state.ErrNotFound
	}
	return d, nil
}
