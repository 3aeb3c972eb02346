package state

import (
	"github.com/ethereum/go-ethereum/common"
)

// Account is the replay-protection record of a transaction sender.
type Account struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

func (s *State) GetAccount(addr common.Address) (acnt *Account, err error) {
	nonce, err := getUint64(s.store(), key(KeyNonce, addr))
	if err != nil {
		return
	}
	acnt = &Account{Address: addr, Nonce: nonce}
	return
}

// IncNonce consumes the sender's current nonce. It is applied outside the
// transaction's write cache so failed transactions still use up their nonce.
func (s *State) IncNonce(addr common.Address) (err error) {
	kv := s.store()
	k := key(KeyNonce, addr)
	nonce, err := getUint64(kv, k)
	if err != nil {
		return
	}
	return setUint64(kv, k, nonce+1)
}
