package state

import (
	"testing"

	fcrypto "github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type crowdfundFixture struct {
	*testChain
	gov    *fcrypto.Key
	thread *types.Thread
	cf     common.Address
}

func newCrowdfundFixture(t *testing.T, target uint64) *crowdfundFixture {
	c := newTestChain(t)
	agent := c.admitKYCAgent()
	gov := c.admitGovernor(agent)
	data, err := EncodeThreadData(testUSD, target)
	require.NoError(t, err)
	_, events := c.pass(types.ThreadPayload{
		Name:       "Main St",
		Symbol:     "MAIN",
		Descriptor: common.HexToHash("0xd35c"),
		Governor:   gov.Address(),
		Data:       data,
	})
	threadAddr := crypto.CreateAddress(testFrabric, 1)
	thread, err := c.view().Threads.Get(threadAddr)
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.True(t, hasEvent(events, types.EventCrowdfundStarted{
		Crowdfund: thread.Crowdfund,
		Governor:  gov.Address(),
		Thread:    threadAddr,
		Token:     testUSD,
		Target:    target,
	}))
	assert.True(t, hasEvent(events, types.EventStateChange{Crowdfund: thread.Crowdfund, State: types.CrowdfundActive}))
	return &crowdfundFixture{testChain: c, gov: gov, thread: thread, cf: thread.Crowdfund}
}

func (x *crowdfundFixture) deposit(from common.Address, amount uint64) (accepted uint64, err error) {
	_, err = x.exec(func(f *Frabric) error {
		accepted, err = f.Crowdfunds.Deposit(from, x.cf, amount)
		return err
	})
	return
}

func (x *crowdfundFixture) crowdfund() *types.Crowdfund {
	cf, err := x.view().Crowdfunds.Get(x.cf)
	require.NoError(x.t, err)
	return cf
}

func (x *crowdfundFixture) checkInvariants() {
	cf := x.crowdfund()
	supply, err := x.view().Tokens.TotalSupply(x.cf)
	require.NoError(x.t, err)
	assert.Equal(x.t, cf.Deposited, supply, "contributions must sum to deposited")
	if cf.State == types.CrowdfundActive {
		assert.LessOrEqual(x.t, cf.Deposited, cf.Target)
	}
}

func TestThreadAddresses(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	threadAddr := crypto.CreateAddress(testFrabric, 1)
	assert.Equal(t, threadAddr, x.thread.Address)
	assert.Equal(t, crypto.CreateAddress(threadAddr, 1), x.thread.ERC20)
	assert.Equal(t, crypto.CreateAddress(threadAddr, 2), x.thread.Crowdfund)
	assert.Equal(t, x.gov.Address(), x.crowdfund().Governor)
}

func TestCrowdfundExecute(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	a, b := x.g(1), x.g(2)

	accepted, err := x.deposit(a, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), accepted)
	x.checkInvariants()

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Withdraw(a, x.cf, 20) })
	require.NoError(t, err)
	contribution, err := x.view().Crowdfunds.Contribution(x.cf, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(80), contribution)
	assert.Equal(t, uint64(80), x.crowdfund().Deposited)
	x.checkInvariants()

	accepted, err = x.deposit(b, 920)
	require.NoError(t, err)
	assert.Equal(t, uint64(920), accepted)
	assert.Equal(t, types.CrowdfundActive, x.crowdfund().State)
	x.checkInvariants()

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Execute(x.gov.Address(), x.cf) })
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), x.balance(testUSD, x.gov.Address()))
	assert.Equal(t, uint64(0), x.balance(testUSD, x.cf))
	assert.Equal(t, types.CrowdfundExecuting, x.crowdfund().State)

	// finish and redeem
	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Finish(x.gov.Address(), x.cf) })
	require.NoError(t, err)
	assert.Equal(t, types.CrowdfundFinished, x.crowdfund().State)

	var payout uint64
	_, err = x.exec(func(f *Frabric) error {
		payout, err = f.Crowdfunds.Burn(x.cf, a)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(80), payout)
	assert.Equal(t, uint64(80), x.balance(x.thread.ERC20, a))
	assert.Equal(t, uint64(0), x.balance(x.cf, a))
	x.checkInvariants()

	_, err = x.exec(func(f *Frabric) error {
		_, err := f.Crowdfunds.Burn(x.cf, a)
		return err
	})
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestCrowdfundDepositCapsToTarget(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	a, b := x.g(1), x.g(2)

	_, err := x.deposit(a, 600)
	require.NoError(t, err)
	accepted, err := x.deposit(b, 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), accepted)
	assert.Equal(t, uint64(5000-400), x.balance(testUSD, b))
	assert.Equal(t, uint64(1000), x.crowdfund().Deposited)
	x.checkInvariants()

	_, err = x.deposit(b, 1)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestCrowdfundDepositRequiresWhitelist(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	outsider := newKey(t).Address()
	x.mustExec(func(f *Frabric) error { return f.Tokens.Mint(testUSD, outsider, 100) })
	_, err := x.deposit(outsider, 100)
	require.ErrorIs(t, err, types.ErrNotWhitelisted)
}

func TestCrowdfundStateGuards(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	gov := x.gov.Address()

	_, err := x.exec(func(f *Frabric) error { return f.Crowdfunds.Execute(gov, x.cf) })
	require.ErrorIs(t, err, types.ErrTargetNotReached)

	_, err = x.deposit(x.g(1), 1000)
	require.NoError(t, err)

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Execute(x.g(1), x.cf) })
	require.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Finish(gov, x.cf) })
	require.ErrorIs(t, err, types.ErrInvalidState)

	_, err = x.exec(func(f *Frabric) error {
		_, err := f.Crowdfunds.Burn(x.cf, x.g(1))
		return err
	})
	require.ErrorIs(t, err, types.ErrInvalidState)

	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Execute(gov, x.cf) })

	_, err = x.deposit(x.g(2), 10)
	require.ErrorIs(t, err, types.ErrInvalidState)
	assert.EqualError(t, err, "InvalidState(1, 0)")

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Withdraw(x.g(1), x.cf, 10) })
	require.ErrorIs(t, err, types.ErrInvalidState)

	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Finish(gov, x.cf) })
	_, err = x.deposit(x.g(2), 10)
	assert.EqualError(t, err, "InvalidState(3, 0)")
	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Refund(gov, x.cf, 10) })
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestCrowdfundRefundFromActive(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	a, b := x.g(1), x.g(2)
	_, err := x.deposit(a, 400)
	require.NoError(t, err)
	_, err = x.deposit(b, 600)
	require.NoError(t, err)

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Refund(x.gov.Address(), x.cf, 999) })
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	events := x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Refund(x.gov.Address(), x.cf, 1000) })
	cf := x.crowdfund()
	assert.Equal(t, types.CrowdfundRefunding, cf.State)
	assert.True(t, hasEvent(events, types.EventDistributed{ID: cf.Distribution, Token: testUSD, Amount: 1000}))

	_, err = x.deposit(a, 10)
	assert.EqualError(t, err, "InvalidState(2, 0)")

	x.mustExec(func(f *Frabric) error {
		_, err := f.Crowdfunds.Burn(x.cf, a)
		return err
	})
	assert.Equal(t, uint64(5000), x.balance(testUSD, a))
	assert.Equal(t, types.CrowdfundRefunding, x.crowdfund().State)
	x.checkInvariants()

	x.mustExec(func(f *Frabric) error {
		_, err := f.Crowdfunds.Burn(x.cf, b)
		return err
	})
	assert.Equal(t, uint64(5000), x.balance(testUSD, b))
	assert.Equal(t, types.CrowdfundFinished, x.crowdfund().State)
	assert.Equal(t, uint64(0), x.balance(testUSD, x.cf))
}

func TestCrowdfundRefundFromExecuting(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	a, b := x.g(1), x.g(2)
	gov := x.gov.Address()
	_, err := x.deposit(a, 333)
	require.NoError(t, err)
	_, err = x.deposit(b, 667)
	require.NoError(t, err)
	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Execute(gov, x.cf) })

	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Refund(gov, x.cf, 500) })
	assert.Equal(t, uint64(500), x.balance(testUSD, gov))
	assert.Equal(t, uint64(500), x.balance(testUSD, x.cf))

	var payout uint64
	x.mustExec(func(f *Frabric) error {
		payout, err = f.Crowdfunds.Burn(x.cf, a)
		return err
	})
	// 333 * 500 / 1000 rounds down
	assert.Equal(t, uint64(166), payout)

	x.mustExec(func(f *Frabric) error {
		payout, err = f.Crowdfunds.Burn(x.cf, b)
		return err
	})
	assert.Equal(t, uint64(334), payout)
	assert.Equal(t, uint64(0), x.balance(testUSD, x.cf))
	assert.Equal(t, types.CrowdfundFinished, x.crowdfund().State)

	dist, err := x.view().Distributions.Get(x.crowdfund().Distribution)
	require.NoError(t, err)
	assert.Equal(t, dist.Amount, dist.Claimed)
}

func TestCrowdfundClaimTransfer(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	a, b := x.g(1), x.g(2)
	_, err := x.deposit(a, 100)
	require.NoError(t, err)

	x.mustExec(func(f *Frabric) error { return f.Tokens.Send(x.cf, a, b, 40) })
	assert.Equal(t, uint64(60), x.balance(x.cf, a))
	assert.Equal(t, uint64(40), x.balance(x.cf, b))

	_, err = x.exec(func(f *Frabric) error { return f.Tokens.Send(x.cf, a, newKey(t).Address(), 10) })
	require.ErrorIs(t, err, types.ErrNotWhitelisted)
	x.checkInvariants()
}

func TestCrowdfundGovernorRemoved(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	_, err := x.deposit(x.g(1), 1000)
	require.NoError(t, err)
	x.pass(types.ParticipantRemovalPayload{Participant: x.gov.Address()})

	_, err = x.exec(func(f *Frabric) error { return f.Crowdfunds.Execute(x.gov.Address(), x.cf) })
	require.ErrorIs(t, err, types.ErrNotActiveGovernor)
}

func TestCrowdfundLocksGovernorBond(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	gov := x.gov.Address()
	x.mustExec(func(f *Frabric) error { return f.Bonds.Bond(gov, 2000) })
	_, err := x.deposit(x.g(1), 1000)
	require.NoError(t, err)
	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Execute(gov, x.cf) })

	b, err := x.view().Bonds.Get(gov)
	require.NoError(t, err)
	assert.True(t, b.Locked)

	// a locked bond cannot be returned but can still be slashed
	_, err = x.exec(func(f *Frabric) error { return f.Bonds.unbond(gov, 100) })
	require.ErrorIs(t, err, types.ErrBondLocked)
	x.mustExec(func(f *Frabric) error { return f.Bonds.slash(gov, 100) })

	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Finish(gov, x.cf) })
	b, err = x.view().Bonds.Get(gov)
	require.NoError(t, err)
	assert.False(t, b.Locked)
	assert.Equal(t, uint64(1900), b.Amount)
	x.mustExec(func(f *Frabric) error { return f.Bonds.unbond(gov, 100) })
}

func TestCrowdfundBurnRequiresWhitelistedContributor(t *testing.T) {
	x := newCrowdfundFixture(t, 1000)
	a, b := x.g(1), x.g(2)
	_, err := x.deposit(a, 600)
	require.NoError(t, err)
	_, err = x.deposit(b, 400)
	require.NoError(t, err)
	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Execute(x.gov.Address(), x.cf) })
	x.mustExec(func(f *Frabric) error { return f.Crowdfunds.Finish(x.gov.Address(), x.cf) })

	x.pass(types.ParticipantRemovalPayload{Participant: b})
	_, err = x.exec(func(f *Frabric) error {
		_, err := f.Crowdfunds.Burn(x.cf, b)
		return err
	})
	require.ErrorIs(t, err, types.ErrNotWhitelisted)
	assert.Equal(t, uint64(0), x.balance(x.thread.ERC20, b))

	_, err = x.exec(func(f *Frabric) error {
		_, err := f.Crowdfunds.Burn(x.cf, a)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(600), x.balance(x.thread.ERC20, a))
}
