package state

import (
	"math/big"

	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// CrowdfundEngine runs each thread's raise. A crowdfund's address doubles as
// its contribution-claim token, so claims are ledger balances that move like
// any other restricted token.
type CrowdfundEngine struct {
	f *Frabric
}

func (c *CrowdfundEngine) Get(addr common.Address) (*types.Crowdfund, error) {
	cf, err := getJSON[types.Crowdfund](c.f.kv, key(KeyCrowdfund, addr))
	if err != nil {
		return nil, err
	}
	if cf == nil {
		return nil, types.ErrCrowdfundNoexists
	}
	return cf, nil
}

func (c *CrowdfundEngine) set(cf *types.Crowdfund) error {
	return setJSON(c.f.kv, key(KeyCrowdfund, cf.Address), cf)
}

func (c *CrowdfundEngine) setState(cf *types.Crowdfund, state types.CrowdfundState) error {
	cf.State = state
	if err := c.set(cf); err != nil {
		return err
	}
	c.f.emit(types.EventStateChange{Crowdfund: cf.Address, State: state})
	return nil
}

// Contribution is the caller's outstanding claim balance.
func (c *CrowdfundEngine) Contribution(cf, addr common.Address) (uint64, error) {
	return c.f.Tokens.Balance(cf, addr)
}

func (c *CrowdfundEngine) start(thread *types.Thread, token common.Address, target uint64) (cf *types.Crowdfund, err error) {
	cf = &types.Crowdfund{
		Address:     thread.Crowdfund,
		Thread:      thread.Address,
		ThreadToken: thread.ERC20,
		Token:       token,
		Governor:    thread.Governor,
		Target:      target,
		State:       types.CrowdfundActive,
	}
	if err = c.f.Tokens.SetRestricted(cf.Address); err != nil {
		return nil, err
	}
	if err = c.set(cf); err != nil {
		return nil, err
	}
	c.f.emit(types.EventCrowdfundStarted{
		Crowdfund: cf.Address,
		Governor:  cf.Governor,
		Thread:    cf.Thread,
		Token:     token,
		Target:    target,
	})
	c.f.emit(types.EventStateChange{Crowdfund: cf.Address, State: types.CrowdfundActive})
	return
}

// governor checks caller against the thread's governor of record at call
// time.
func (c *CrowdfundEngine) governor(cf *types.Crowdfund, caller common.Address) (err error) {
	thread, err := c.f.Threads.Get(cf.Thread)
	if err != nil {
		return
	}
	governor := cf.Governor
	if thread != nil {
		governor = thread.Governor
	}
	if caller != governor {
		return types.ErrUnauthorized
	}
	active, err := c.f.Participants.IsActiveGovernor(caller)
	if err != nil {
		return
	}
	if !active {
		return types.ErrNotActiveGovernor
	}
	return
}

// Deposit accepts at most the remaining gap to the target and only pulls the
// accepted amount from the depositor.
func (c *CrowdfundEngine) Deposit(depositor, addr common.Address, amount uint64) (accepted uint64, err error) {
	cf, err := c.Get(addr)
	if err != nil {
		return
	}
	if cf.State != types.CrowdfundActive {
		return 0, types.NewInvalidState(cf.State, types.CrowdfundActive)
	}
	ok, err := c.f.Tokens.Whitelisted(depositor)
	if err != nil {
		return
	}
	if !ok {
		return 0, types.ErrNotWhitelisted
	}
	accepted = min(amount, cf.Target-cf.Deposited)
	if accepted == 0 {
		return 0, types.ErrInvalidAmount
	}
	cf.Deposited += accepted
	if err = c.set(cf); err != nil {
		return 0, err
	}
	if err = c.f.Tokens.Mint(cf.Address, depositor, accepted); err != nil {
		return 0, err
	}
	if err = c.f.Tokens.Transfer(cf.Token, depositor, cf.Address, accepted); err != nil {
		return 0, err
	}
	c.f.emit(types.EventDeposit{Crowdfund: cf.Address, Depositor: depositor, Amount: accepted})
	return
}

func (c *CrowdfundEngine) Withdraw(depositor, addr common.Address, amount uint64) (err error) {
	cf, err := c.Get(addr)
	if err != nil {
		return
	}
	if cf.State != types.CrowdfundActive {
		return types.NewInvalidState(cf.State, types.CrowdfundActive)
	}
	if amount == 0 {
		return types.ErrInvalidAmount
	}
	claim, err := c.Contribution(cf.Address, depositor)
	if err != nil {
		return
	}
	if amount > claim {
		return types.ErrInsufficientBalance
	}
	cf.Deposited -= amount
	if err = c.set(cf); err != nil {
		return
	}
	if err = c.f.Tokens.Burn(cf.Address, depositor, amount); err != nil {
		return
	}
	if err = c.f.Tokens.Transfer(cf.Token, cf.Address, depositor, amount); err != nil {
		return
	}
	c.f.emit(types.EventWithdraw{Crowdfund: cf.Address, Depositor: depositor, Amount: amount})
	return
}

// Execute hands the raised capital to the governor once the target is met.
func (c *CrowdfundEngine) Execute(caller, addr common.Address) (err error) {
	cf, err := c.Get(addr)
	if err != nil {
		return
	}
	if err = c.governor(cf, caller); err != nil {
		return
	}
	if cf.State != types.CrowdfundActive {
		return types.NewInvalidState(cf.State, types.CrowdfundActive)
	}
	if cf.Deposited != cf.Target {
		return types.ErrTargetNotReached
	}
	cf.ClaimSupply = cf.Deposited
	if err = c.setState(cf, types.CrowdfundExecuting); err != nil {
		return
	}
	if err = c.f.Bonds.lock(cf.Governor); err != nil {
		return
	}
	bal, err := c.f.Tokens.Balance(cf.Token, cf.Address)
	if err != nil {
		return
	}
	return c.f.Tokens.Transfer(cf.Token, cf.Address, caller, bal)
}

// Finish marks the raise deployed and mints the thread tokens claim holders
// redeem 1:1.
func (c *CrowdfundEngine) Finish(caller, addr common.Address) (err error) {
	cf, err := c.Get(addr)
	if err != nil {
		return
	}
	if err = c.governor(cf, caller); err != nil {
		return
	}
	if cf.State != types.CrowdfundExecuting {
		return types.NewInvalidState(cf.State, types.CrowdfundExecuting)
	}
	if err = c.setState(cf, types.CrowdfundFinished); err != nil {
		return
	}
	if err = c.f.Bonds.unlock(cf.Governor); err != nil {
		return
	}
	return c.f.Tokens.Mint(cf.ThreadToken, cf.Address, cf.ClaimSupply)
}

// Refund cancels the raise. From Active the held deposits become the pool
// and amount must match them; from Executing the governor pays amount back
// in.
func (c *CrowdfundEngine) Refund(caller, addr common.Address, amount uint64) (err error) {
	cf, err := c.Get(addr)
	if err != nil {
		return
	}
	if err = c.governor(cf, caller); err != nil {
		return
	}
	from := cf.State
	switch from {
	case types.CrowdfundActive:
		if amount != cf.Deposited {
			return types.ErrInvalidAmount
		}
		cf.ClaimSupply = cf.Deposited
	case types.CrowdfundExecuting:
		if amount == 0 {
			return types.ErrInvalidAmount
		}
	default:
		return types.NewInvalidState(cf.State, types.CrowdfundActive)
	}
	cf.Refunded = amount
	cf.Distribution, err = c.f.Distributions.Distribute(cf.Address, cf.Token, amount)
	if err != nil {
		return
	}
	if err = c.setState(cf, types.CrowdfundRefunding); err != nil {
		return
	}
	if cf.Deposited == 0 {
		if err = c.setState(cf, types.CrowdfundFinished); err != nil {
			return
		}
	}
	if from == types.CrowdfundExecuting {
		if err = c.f.Bonds.unlock(cf.Governor); err != nil {
			return
		}
		err = c.f.Tokens.Transfer(cf.Token, caller, cf.Address, amount)
	}
	return
}

// Burn redeems contributor's whole claim: thread tokens 1:1 once Finished,
// or a pro-rata share of the refund pool while Refunding. The last claim
// out of a refund takes whatever rounding left in the pool.
func (c *CrowdfundEngine) Burn(addr, contributor common.Address) (payout uint64, err error) {
	cf, err := c.Get(addr)
	if err != nil {
		return
	}
	if cf.State != types.CrowdfundFinished && cf.State != types.CrowdfundRefunding {
		return 0, types.NewInvalidState(cf.State, types.CrowdfundFinished)
	}
	claim, err := c.Contribution(cf.Address, contributor)
	if err != nil {
		return
	}
	if claim == 0 {
		return 0, types.ErrInsufficientBalance
	}
	refunding := cf.State == types.CrowdfundRefunding
	payout = claim
	if refunding {
		var dist *types.Distribution
		dist, err = c.f.Distributions.Get(cf.Distribution)
		if err != nil {
			return
		}
		if claim == cf.Deposited && dist != nil {
			payout = dist.Amount - dist.Claimed
		} else {
			share := new(big.Int).Mul(new(big.Int).SetUint64(claim), new(big.Int).SetUint64(cf.Refunded))
			payout = share.Div(share, new(big.Int).SetUint64(cf.ClaimSupply)).Uint64()
		}
	}
	cf.Deposited -= claim
	if err = c.set(cf); err != nil {
		return
	}
	if refunding && cf.Deposited == 0 {
		if err = c.setState(cf, types.CrowdfundFinished); err != nil {
			return
		}
	}
	if err = c.f.Tokens.Burn(cf.Address, contributor, claim); err != nil {
		return
	}
	if refunding {
		err = c.f.Distributions.Claim(cf.Distribution, contributor, payout)
	} else {
		err = c.f.Tokens.Payout(cf.ThreadToken, cf.Address, contributor, payout)
	}
	return
}
