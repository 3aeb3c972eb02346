package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger keeps fungible balances for every token the DAO touches: FRBC,
// payment and bond tokens, thread tokens and crowdfund claim tokens.
// Restricted tokens only move between whitelisted holders on user transfers.
type TokenLedger struct {
	f *Frabric
}

var ErrTransferToZero = errors.New("transfer to zero address")

type checkpoint struct {
	Height uint64 `json:"height"`
	Value  uint64 `json:"value"`
}

// supplyHolder is the checkpoint slot used for a token's total supply.
var supplyHolder = common.Address{}

func (t *TokenLedger) Balance(token, holder common.Address) (uint64, error) {
	return getUint64(t.f.kv, key(KeyBalance, token, holder))
}

func (t *TokenLedger) TotalSupply(token common.Address) (uint64, error) {
	return getUint64(t.f.kv, key(KeySupply, token))
}

func (t *TokenLedger) setBalance(token, holder common.Address, amount uint64) error {
	if err := setUint64(t.f.kv, key(KeyBalance, token, holder), amount); err != nil {
		return err
	}
	return t.writeCheckpoint(token, holder, amount)
}

func (t *TokenLedger) setSupply(token common.Address, amount uint64) error {
	if err := setUint64(t.f.kv, key(KeySupply, token), amount); err != nil {
		return err
	}
	return t.writeCheckpoint(token, supplyHolder, amount)
}

func (t *TokenLedger) Mint(token, to common.Address, amount uint64) (err error) {
	supply, err := t.TotalSupply(token)
	if err != nil {
		return
	}
	if supply+amount < supply {
		return fmt.Errorf("%w: supply overflow", types.ErrInvalidAmount)
	}
	bal, err := t.Balance(token, to)
	if err != nil {
		return
	}
	if err = t.setSupply(token, supply+amount); err != nil {
		return
	}
	if err = t.setBalance(token, to, bal+amount); err != nil {
		return
	}
	t.f.emit(types.EventTransfer{Token: token, To: to, Amount: amount})
	return
}

func (t *TokenLedger) Burn(token, from common.Address, amount uint64) (err error) {
	bal, err := t.Balance(token, from)
	if err != nil {
		return
	}
	if bal < amount {
		return types.ErrInsufficientBalance
	}
	supply, err := t.TotalSupply(token)
	if err != nil {
		return
	}
	if err = t.setBalance(token, from, bal-amount); err != nil {
		return
	}
	if err = t.setSupply(token, supply-amount); err != nil {
		return
	}
	t.f.emit(types.EventTransfer{Token: token, From: from, Amount: amount})
	return
}

// Transfer moves tokens without whitelist checks. It is used by the core
// itself for escrow, payouts and treasury movements.
func (t *TokenLedger) Transfer(token, from, to common.Address, amount uint64) (err error) {
	bal, err := t.Balance(token, from)
	if err != nil {
		return
	}
	if bal < amount {
		return types.ErrInsufficientBalance
	}
	if from != to {
		var toBal uint64
		toBal, err = t.Balance(token, to)
		if err != nil {
			return
		}
		if err = t.setBalance(token, from, bal-amount); err != nil {
			return
		}
		if err = t.setBalance(token, to, toBal+amount); err != nil {
			return
		}
	}
	t.f.emit(types.EventTransfer{Token: token, From: from, To: to, Amount: amount})
	return
}

// Send is a user-initiated transfer. Restricted tokens require both sides to
// be whitelisted.
func (t *TokenLedger) Send(token, from, to common.Address, amount uint64) error {
	if amount == 0 {
		return types.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrTransferToZero
	}
	for _, addr := range []common.Address{from, to} {
		if err := t.checkHolder(token, addr); err != nil {
			return err
		}
	}
	return t.Transfer(token, from, to, amount)
}

// Payout moves tokens out of a DAO-controlled holder such as the treasury or
// a crowdfund. Restricted tokens still require a whitelisted recipient.
func (t *TokenLedger) Payout(token, from, to common.Address, amount uint64) error {
	if err := t.checkHolder(token, to); err != nil {
		return err
	}
	return t.Transfer(token, from, to, amount)
}

func (t *TokenLedger) checkHolder(token, addr common.Address) error {
	restricted, err := t.Restricted(token)
	if err != nil || !restricted {
		return err
	}
	ok, err := t.Whitelisted(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %v", types.ErrNotWhitelisted, addr)
	}
	return nil
}

func (t *TokenLedger) SetRestricted(token common.Address) error {
	return t.f.kv.Set([]byte(key(KeyRestricted, token)), []byte{1})
}

func (t *TokenLedger) Restricted(token common.Address) (bool, error) {
	val, err := t.f.kv.Get([]byte(key(KeyRestricted, token)))
	if err != nil {
		return false, err
	}
	return len(val) != 0, nil
}

// Whitelist records addr as cleared to hold restricted tokens, with info as
// the identity commitment behind the clearance.
func (t *TokenLedger) Whitelist(addr common.Address, info common.Hash) error {
	return t.f.kv.Set([]byte(key(KeyWhitelist, addr)), info.Bytes())
}

func (t *TokenLedger) Unwhitelist(addr common.Address) error {
	return t.f.kv.Delete([]byte(key(KeyWhitelist, addr)))
}

func (t *TokenLedger) Whitelisted(addr common.Address) (bool, error) {
	val, err := t.f.kv.Get([]byte(key(KeyWhitelist, addr)))
	if err != nil {
		return false, err
	}
	return len(val) != 0, nil
}

func (t *TokenLedger) WhitelistInfo(addr common.Address) (info common.Hash, err error) {
	val, err := t.f.kv.Get([]byte(key(KeyWhitelist, addr)))
	if err != nil {
		return
	}
	info = common.BytesToHash(val)
	return
}

// Checkpoints are only kept for the governance token; vote weights and
// quorum are read from them.
func (t *TokenLedger) writeCheckpoint(token, holder common.Address, value uint64) (err error) {
	if token != t.f.cfg.FRBC {
		return nil
	}
	countKey := key(KeyCheckpointCount, token, holder)
	n, err := getUint64(t.f.kv, countKey)
	if err != nil {
		return
	}
	height := t.f.env.Height
	if n > 0 {
		var last *checkpoint
		last, err = getJSON[checkpoint](t.f.kv, key(KeyCheckpoint, token, holder, n-1))
		if err != nil {
			return
		}
		if last != nil && last.Height == height {
			return setJSON(t.f.kv, key(KeyCheckpoint, token, holder, n-1), checkpoint{Height: height, Value: value})
		}
	}
	if err = setJSON(t.f.kv, key(KeyCheckpoint, token, holder, n), checkpoint{Height: height, Value: value}); err != nil {
		return
	}
	return setUint64(t.f.kv, countKey, n+1)
}

func (t *TokenLedger) valueAt(token, holder common.Address, height uint64) (value uint64, err error) {
	n, err := getUint64(t.f.kv, key(KeyCheckpointCount, token, holder))
	if err != nil || n == 0 {
		return 0, err
	}
	var searchErr error
	// first checkpoint strictly after height
	idx := sort.Search(int(n), func(i int) bool {
		if searchErr != nil {
			return true
		}
		cp, err := getJSON[checkpoint](t.f.kv, key(KeyCheckpoint, token, holder, i))
		if err != nil {
			searchErr = err
			return true
		}
		return cp != nil && cp.Height > height
	})
	if searchErr != nil {
		return 0, searchErr
	}
	if idx == 0 {
		return 0, nil
	}
	cp, err := getJSON[checkpoint](t.f.kv, key(KeyCheckpoint, token, holder, idx-1))
	if err != nil || cp == nil {
		return 0, err
	}
	return cp.Value, nil
}

// BalanceAt returns the governance token balance of holder as of the end of
// block height.
func (t *TokenLedger) BalanceAt(holder common.Address, height uint64) (uint64, error) {
	return t.valueAt(t.f.cfg.FRBC, holder, height)
}

func (t *TokenLedger) TotalSupplyAt(height uint64) (uint64, error) {
	return t.valueAt(t.f.cfg.FRBC, supplyHolder, height)
}
