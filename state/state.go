package state

import (
	"encoding/json"
	"errors"
	"fmt"

	fcrypto "github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/tx"
	"github.com/calehh/frabric-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrGenesisMissing  = errors.New("frabric genesis not initialized")
	ErrGenesisExists   = errors.New("frabric genesis already initialized")
	ErrTxNonceInvalid  = errors.New("nonce invalid")
	ErrTxSigInvalid    = errors.New("signature invalid")
	ErrReadOnlyStore   = errors.New("read-only store")
	ErrUnsupportedType = errors.New("unsupported tx type")
)

type StateHeader struct {
	Height   uint64        `json:"height"`
	Time     int64         `json:"time"`
	ChainId  string        `json:"chain_id"`
	RootHash hexutil.Bytes `json:"root_hash,omitempty"`
	Hash     hexutil.Bytes `json:"hash,omitempty"`
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

// State is the block-scoped view of the Frabric tree. Transactions run
// through Apply, each against its own write cache.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header   *StateHeader
	cfg      *Config
	verifier fcrypto.Verifier
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: new(StateHeader),
	}
}

func (s *State) nextState() *State {
	return &State{
		logger:   s.logger,
		db:       s.db,
		dbVer:    s.dbVer,
		header:   s.header.Clone(),
		cfg:      s.cfg,
		verifier: s.verifier,
	}
}

func (s *State) store() KVStore {
	return treeStore{tree: s.db}
}

func (s *State) setConfig(cfg *Config) {
	s.cfg = cfg
	s.verifier = fcrypto.NewKYCVerifier(cfg.KYCDomain())
}

func (s *State) load() (err error) {
	kv := s.store()
	header, err := getJSON[StateHeader](kv, KeyState)
	if err != nil {
		return
	}
	if header != nil {
		s.header = header
		if h := s.db.Hash(); h != nil {
			s.calcHash(h, true)
		}
	}
	cfg, err := loadConfig(kv)
	if err != nil {
		return
	}
	if cfg != nil {
		s.setConfig(cfg)
	}
	s.dbVer = s.db.Version()
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update writes the header into the tree and returns the resulting app hash
// without committing a version.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	if err = setJSON(s.store(), KeyState, s.header); err != nil {
		return
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}
	s.dbVer = ver
	h = s.calcHash(hash, true)
	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Config() *Config {
	return s.cfg
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

// SetBlock moves the ledger clock to the block being executed.
func (s *State) SetBlock(height uint64, time int64) {
	s.header.Height = height
	s.header.Time = time
}

func (s *State) env() Env {
	return Env{Height: s.header.Height, Time: s.header.Time}
}

// InitGenesis seeds the tree from the app_state of the genesis document.
func (s *State) InitGenesis(appState json.RawMessage) (events []types.Event, err error) {
	if s.cfg != nil {
		return nil, ErrGenesisExists
	}
	var app types.AppState
	if err = json.Unmarshal(appState, &app); err != nil {
		return nil, fmt.Errorf("parse app_state: %w", err)
	}
	cfg := ConfigFromAppState(&app)
	s.setConfig(cfg)
	events, err = s.Apply(false, func(f *Frabric) error {
		return f.InitGenesis(&app)
	})
	if err != nil {
		s.cfg, s.verifier = nil, nil
	}
	return
}

// Apply runs fn against a fresh write cache. The cache reaches the tree only
// when fn succeeds and checkOnly is false.
func (s *State) Apply(checkOnly bool, fn func(f *Frabric) error) (events []types.Event, err error) {
	if s.cfg == nil {
		return nil, ErrGenesisMissing
	}
	cache := NewCacheStore(s.store())
	var log EventLog
	f := NewFrabric(cache, s.env(), s.cfg, &log, s.verifier, s.logger)
	if err = fn(f); err != nil {
		return nil, err
	}
	if !checkOnly {
		if err = cache.Write(); err != nil {
			return nil, err
		}
	}
	return log, nil
}

// Verify recovers the sender of btx and checks its nonce. CheckTx allows a
// nonce gap so clients can queue several transactions.
func (s *State) Verify(btx *tx.FrabricTx, allowNonceGap bool) (sender common.Address, err error) {
	if len(btx.Sig) != 1 {
		err = ErrTxSigInvalid
		return
	}
	dat, err := btx.SigData([]byte(s.header.ChainId))
	if err != nil {
		return
	}
	sender, err = fcrypto.RecoverAddress(crypto.Keccak256Hash(dat), btx.Sig[0])
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTxSigInvalid, err)
		return
	}
	a, err := s.GetAccount(sender)
	if err != nil {
		return
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
	}
	return
}
