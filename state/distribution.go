package state

import (
	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// Distributions registers token pools that holders later claim from. The
// pool stays in the holder's balance until claimed.
type Distributions struct {
	f *Frabric
}

func (d *Distributions) Get(id uint64) (*types.Distribution, error) {
	return getJSON[types.Distribution](d.f.kv, key(KeyDistributionBody, id))
}

func (d *Distributions) Distribute(holder, token common.Address, amount uint64) (id uint64, err error) {
	id, err = nextIndex(d.f.kv, KeyDistributionIndex)
	if err != nil {
		return
	}
	dist := &types.Distribution{
		ID:     id,
		Holder: holder,
		Token:  token,
		Amount: amount,
	}
	if err = setJSON(d.f.kv, key(KeyDistributionBody, id), dist); err != nil {
		return 0, err
	}
	d.f.emit(types.EventDistributed{ID: id, Token: token, Amount: amount})
	return
}

// Claim pays amount out of distribution id to person.
func (d *Distributions) Claim(id uint64, person common.Address, amount uint64) (err error) {
	dist, err := d.Get(id)
	if err != nil {
		return
	}
	if dist == nil {
		return types.ErrInvalidState
	}
	if amount > dist.Amount-dist.Claimed {
		return types.ErrInsufficientBalance
	}
	dist.Claimed += amount
	if err = setJSON(d.f.kv, key(KeyDistributionBody, id), dist); err != nil {
		return
	}
	if amount > 0 {
		if err = d.f.Tokens.Transfer(dist.Token, dist.Holder, person, amount); err != nil {
			return
		}
	}
	d.f.emit(types.EventClaimed{ID: id, Person: person, Amount: amount})
	return
}
