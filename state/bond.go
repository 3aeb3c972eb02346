package state

import (
	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// BondLedger tracks governor collateral held in the bond escrow account.
// Amounts only decrease through executed BondRemoval proposals or a
// governor's removal.
type BondLedger struct {
	f *Frabric
}

func (b *BondLedger) Get(governor common.Address) (*types.Bond, error) {
	bond, err := getJSON[types.Bond](b.f.kv, key(KeyBond, governor))
	if err != nil {
		return nil, err
	}
	if bond == nil {
		bond = &types.Bond{Governor: governor}
	}
	return bond, nil
}

func (b *BondLedger) set(bond *types.Bond) error {
	return setJSON(b.f.kv, key(KeyBond, bond.Governor), bond)
}

func (b *BondLedger) Bond(governor common.Address, amount uint64) (err error) {
	if amount == 0 {
		return types.ErrInvalidAmount
	}
	active, err := b.f.Participants.IsActiveGovernor(governor)
	if err != nil {
		return
	}
	if !active {
		return types.ErrNotActiveGovernor
	}
	bond, err := b.Get(governor)
	if err != nil {
		return
	}
	if bond.Amount+amount < bond.Amount {
		return types.ErrInvalidAmount
	}
	bond.Amount += amount
	if err = b.set(bond); err != nil {
		return
	}
	if err = b.f.Tokens.Transfer(b.f.cfg.BondToken, governor, BondEscrow, amount); err != nil {
		return
	}
	b.f.emit(types.EventBond{Governor: governor, Amount: amount})
	return
}

func (b *BondLedger) release(governor, to common.Address, amount uint64) (err error) {
	bond, err := b.Get(governor)
	if err != nil {
		return
	}
	if amount > bond.Amount {
		return types.ErrInsufficientBond
	}
	bond.Amount -= amount
	if err = b.set(bond); err != nil {
		return
	}
	return b.f.Tokens.Transfer(b.f.cfg.BondToken, BondEscrow, to, amount)
}

// lock marks one more executing crowdfund run by governor.
func (b *BondLedger) lock(governor common.Address) error {
	bond, err := b.Get(governor)
	if err != nil {
		return err
	}
	bond.Operating++
	bond.Locked = true
	return b.set(bond)
}

func (b *BondLedger) unlock(governor common.Address) error {
	bond, err := b.Get(governor)
	if err != nil {
		return err
	}
	if bond.Operating > 0 {
		bond.Operating--
	}
	bond.Locked = bond.Operating > 0
	return b.set(bond)
}

// unbond returns collateral to the governor.
func (b *BondLedger) unbond(governor common.Address, amount uint64) (err error) {
	bond, err := b.Get(governor)
	if err != nil {
		return
	}
	if bond.Locked {
		return types.ErrBondLocked
	}
	if err = b.release(governor, governor, amount); err != nil {
		return
	}
	b.f.emit(types.EventUnbond{Governor: governor, Amount: amount})
	return
}

// slash forfeits collateral to the treasury.
func (b *BondLedger) slash(governor common.Address, amount uint64) (err error) {
	if err = b.release(governor, b.f.Treasury(), amount); err != nil {
		return
	}
	b.f.emit(types.EventSlash{Governor: governor, Amount: amount})
	return
}
