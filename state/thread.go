package state

import (
	"fmt"
	"math/big"

	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// threadDataArgs is the ABI layout of a crowdfunded thread's init data:
// (address paymentToken, uint112 target).
var threadDataArgs = func() abi.Arguments {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	targetTy, err := abi.NewType("uint112", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "token", Type: addressTy},
		{Name: "target", Type: targetTy},
	}
}()

func EncodeThreadData(token common.Address, target uint64) ([]byte, error) {
	return threadDataArgs.Pack(token, new(big.Int).SetUint64(target))
}

func DecodeThreadData(dat []byte) (token common.Address, target uint64, err error) {
	vals, err := threadDataArgs.Unpack(dat)
	if err != nil {
		return token, 0, fmt.Errorf("%w: %v", types.ErrInvalidThreadData, err)
	}
	if len(vals) != 2 {
		return token, 0, types.ErrInvalidThreadData
	}
	token, ok := vals[0].(common.Address)
	if !ok || token == (common.Address{}) {
		return token, 0, fmt.Errorf("%w: payment token", types.ErrInvalidThreadData)
	}
	t, ok := vals[1].(*big.Int)
	if !ok || t.Sign() <= 0 || !t.IsUint64() {
		return token, 0, fmt.Errorf("%w: target", types.ErrInvalidThreadData)
	}
	target = t.Uint64()
	return
}

// ThreadDeployer creates threads and their crowdfunds when a Thread proposal
// executes. Addresses are derived the way contract deployments are: the
// thread from the Frabric's deployment nonce, its token and crowdfund from
// the thread.
type ThreadDeployer struct {
	f *Frabric
}

func (d *ThreadDeployer) Get(addr common.Address) (*types.Thread, error) {
	return getJSON[types.Thread](d.f.kv, key(KeyThread, addr))
}

func (d *ThreadDeployer) Deploy(payload types.ThreadPayload) (thread *types.Thread, err error) {
	token, target, err := DecodeThreadData(payload.Data)
	if err != nil {
		return
	}
	nonce, err := nextIndex(d.f.kv, KeyThreadIndex)
	if err != nil {
		return
	}
	addr := crypto.CreateAddress(d.f.cfg.Frabric, nonce)
	thread = &types.Thread{
		Address:    addr,
		Variant:    payload.Variant,
		Name:       payload.Name,
		Symbol:     payload.Symbol,
		Descriptor: payload.Descriptor,
		Governor:   payload.Governor,
		ERC20:      crypto.CreateAddress(addr, 1),
		Crowdfund:  crypto.CreateAddress(addr, 2),
	}
	if err = setJSON(d.f.kv, key(KeyThread, addr), thread); err != nil {
		return nil, err
	}
	if err = d.f.Tokens.SetRestricted(thread.ERC20); err != nil {
		return nil, err
	}
	d.f.emit(types.EventThread{
		Thread:     addr,
		Variant:    thread.Variant,
		Governor:   thread.Governor,
		ERC20:      thread.ERC20,
		Descriptor: thread.Descriptor,
	})
	if _, err = d.f.Crowdfunds.start(thread, token, target); err != nil {
		return nil, err
	}
	d.f.emit(types.EventCrowdfundedThread{
		Thread:    addr,
		Token:     token,
		Crowdfund: thread.Crowdfund,
		Target:    target,
	})
	d.f.logger.Info("thread deployed", "thread", addr, "governor", thread.Governor, "crowdfund", thread.Crowdfund)
	return
}
