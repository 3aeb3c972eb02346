package state

import (
	"github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// Env is the ledger clock a transaction executes under.
type Env struct {
	Height uint64
	Time   int64
}

// Config is the protocol configuration fixed at genesis.
type Config struct {
	ChainID   uint64         `json:"chain_id"`
	Frabric   common.Address `json:"frabric"`
	FRBC      common.Address `json:"frbc"`
	BondToken common.Address `json:"bond_token"`
	Params    types.Params   `json:"params"`
}

func (c *Config) KYCDomain() crypto.KYCDomain {
	return crypto.KYCDomain{
		ChainID:           c.ChainID,
		VerifyingContract: c.Frabric,
	}
}

// EventSink receives every event a component emits. The core never reads
// events back.
type EventSink interface {
	Emit(ev types.Event)
}

type EventLog []types.Event

func (l *EventLog) Emit(ev types.Event) {
	*l = append(*l, ev)
}

// Frabric wires the DAO components over one keyed store. Components reach
// their collaborators through it rather than through globals.
type Frabric struct {
	kv       KVStore
	env      Env
	cfg      *Config
	sink     EventSink
	verifier crypto.Verifier
	logger   cmtlog.Logger

	Tokens        *TokenLedger
	Participants  *ParticipantRegistry
	Bonds         *BondLedger
	Proposals     *ProposalEngine
	Threads       *ThreadDeployer
	Crowdfunds    *CrowdfundEngine
	Distributions *Distributions
}

func NewFrabric(kv KVStore, env Env, cfg *Config, sink EventSink, verifier crypto.Verifier, logger cmtlog.Logger) *Frabric {
	f := &Frabric{
		kv:       kv,
		env:      env,
		cfg:      cfg,
		sink:     sink,
		verifier: verifier,
		logger:   logger,
	}
	f.Tokens = &TokenLedger{f: f}
	f.Participants = &ParticipantRegistry{f: f}
	f.Bonds = &BondLedger{f: f}
	f.Proposals = &ProposalEngine{f: f}
	f.Threads = &ThreadDeployer{f: f}
	f.Crowdfunds = &CrowdfundEngine{f: f}
	f.Distributions = &Distributions{f: f}
	return f
}

func (f *Frabric) Env() Env {
	return f.env
}

func (f *Frabric) Config() *Config {
	return f.cfg
}

// Treasury is the account holding DAO-owned funds.
func (f *Frabric) Treasury() common.Address {
	return f.cfg.Frabric
}

func (f *Frabric) emit(ev types.Event) {
	if f.sink != nil {
		f.sink.Emit(ev)
	}
}

func (f *Frabric) IsVetoer(addr common.Address) (bool, error) {
	val, err := f.kv.Get([]byte(key(KeyVetoer, addr)))
	if err != nil {
		return false, err
	}
	return len(val) != 0, nil
}

func (f *Frabric) AddVetoer(addr common.Address) error {
	return f.kv.Set([]byte(key(KeyVetoer, addr)), []byte{1})
}

// InitGenesis seeds the store from the genesis app state.
func (f *Frabric) InitGenesis(app *types.AppState) (err error) {
	if err = app.Validate(); err != nil {
		return
	}
	if err = setJSON(f.kv, KeyConfig, f.cfg); err != nil {
		return
	}
	if err = f.Tokens.SetRestricted(f.cfg.FRBC); err != nil {
		return
	}
	for _, p := range app.Participants {
		if err = f.Participants.AddGenesis(p.Address, p.KYCHash); err != nil {
			return
		}
		if p.Amount > 0 {
			if err = f.Tokens.Mint(f.cfg.FRBC, p.Address, p.Amount); err != nil {
				return
			}
		}
	}
	for _, v := range app.Vetoers {
		if err = f.AddVetoer(v); err != nil {
			return
		}
	}
	for _, b := range app.Balances {
		if err = f.Tokens.Mint(b.Token, b.Address, b.Amount); err != nil {
			return
		}
	}
	f.logger.Info("genesis initialized", "participants", len(app.Participants), "vetoers", len(app.Vetoers))
	return
}

func ConfigFromAppState(app *types.AppState) *Config {
	return &Config{
		ChainID:   app.ChainID,
		Frabric:   app.Frabric,
		FRBC:      app.FRBC,
		BondToken: app.BondToken,
		Params:    app.Params,
	}
}

func loadConfig(kv KVStore) (*Config, error) {
	return getJSON[Config](kv, KeyConfig)
}
