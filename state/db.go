package state

import (
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("frabric", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return openStateDB(dir, ldb, logger)
}

// NewMemStateDB keeps the tree in memory. Used by tests and tooling.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return openStateDB("", dbm.NewMemDB(), logger)
}

func openStateDB(dir string, ldb dbm.DB, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "frabricdb")
	tdb := iavl.NewMutableTree(ldb, 128, true, NewTreeLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	err = st.load()
	if err != nil {
		logger.Error("frabricdb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

// View runs fn over the last committed version of the tree. Writes through
// the view fail.
func (db *StateDB) View(fn func(f *Frabric) error) (height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st := db.state
	if st.cfg == nil {
		return 0, ErrGenesisMissing
	}
	var kv KVStore = st.store()
	if st.dbVer > 0 {
		var tree *iavl.ImmutableTree
		tree, err = db.db.GetImmutable(st.dbVer)
		if err != nil {
			return
		}
		kv = immutableStore{tree: tree}
	} else {
		kv = readOnlyStore{KVStore: kv}
	}
	f := NewFrabric(kv, st.env(), st.cfg, nil, st.verifier, db.logger)
	height = st.header.Height
	err = fn(f)
	return
}

func (db *StateDB) GetAccount(addr common.Address) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.GetAccount(addr)
	height = db.state.header.Height
	return
}

type immutableStore struct {
	tree *iavl.ImmutableTree
}

func (s immutableStore) Get(key []byte) ([]byte, error) {
	return s.tree.Get(key)
}

func (immutableStore) Set(_, _ []byte) error {
	return ErrReadOnlyStore
}

func (immutableStore) Delete(_ []byte) error {
	return ErrReadOnlyStore
}

type readOnlyStore struct {
	KVStore
}

func (readOnlyStore) Set(_, _ []byte) error {
	return ErrReadOnlyStore
}

func (readOnlyStore) Delete(_ []byte) error {
	return ErrReadOnlyStore
}
