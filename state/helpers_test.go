package state

import (
	"encoding/json"
	"testing"

	fcrypto "github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	testFrabric   = common.HexToAddress("0xf0000000000000000000000000000000000000f0")
	testFRBC      = common.HexToAddress("0xf0000000000000000000000000000000000000f1")
	testUSD       = common.HexToAddress("0xf0000000000000000000000000000000000000f2")
	testBondToken = common.HexToAddress("0xf0000000000000000000000000000000000000f3")
)

// testChain drives a Frabric state block by block: every exec runs in its
// own block one second after the previous one.
type testChain struct {
	t      *testing.T
	st     *State
	height uint64
	time   int64
	params types.Params

	genesis  []*fcrypto.Key
	vetoer   *fcrypto.Key
	verifier *fcrypto.KYCVerifier
}

func newKey(t *testing.T) *fcrypto.Key {
	k, err := fcrypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func newTestChain(t *testing.T) *testChain {
	db, err := NewMemStateDB(log.NewNopLogger())
	require.NoError(t, err)
	c := &testChain{
		t:      t,
		st:     db.NewState(),
		height: 1,
		time:   1_700_000_000,
		params: types.Params{
			VotingPeriod:         100,
			QueuePeriod:          50,
			QuorumPercent:        10,
			SupermajorityPercent: 66,
		},
		vetoer:   newKey(t),
		verifier: fcrypto.NewKYCVerifier(fcrypto.KYCDomain{ChainID: 1, VerifyingContract: testFrabric}),
	}
	for i := 0; i < 3; i++ {
		c.genesis = append(c.genesis, newKey(t))
	}
	g0, g1, g2 := c.genesis[0].Address(), c.genesis[1].Address(), c.genesis[2].Address()
	app := types.AppState{
		ChainID:   1,
		Frabric:   testFrabric,
		FRBC:      testFRBC,
		BondToken: testBondToken,
		Params:    c.params,
		Participants: []types.GenesisParticipant{
			{Address: g0, KYCHash: common.HexToHash("0x01"), Amount: 1000},
			{Address: g1, KYCHash: common.HexToHash("0x02"), Amount: 500},
			{Address: g2, KYCHash: common.HexToHash("0x03"), Amount: 500},
		},
		Vetoers: []common.Address{c.vetoer.Address()},
		Balances: []types.GenesisBalance{
			{Token: testUSD, Address: g1, Amount: 5000},
			{Token: testUSD, Address: g2, Amount: 5000},
			{Token: testUSD, Address: testFrabric, Amount: 1000},
		},
	}
	raw, err := json.Marshal(&app)
	require.NoError(t, err)
	c.st.SetChainId("frabric-test")
	c.st.SetBlock(0, c.time)
	_, err = c.st.InitGenesis(raw)
	require.NoError(t, err)
	return c
}

func (c *testChain) exec(fn func(f *Frabric) error) ([]types.Event, error) {
	c.st.SetBlock(c.height, c.time)
	events, err := c.st.Apply(false, fn)
	c.height++
	c.time++
	return events, err
}

func (c *testChain) mustExec(fn func(f *Frabric) error) []types.Event {
	events, err := c.exec(fn)
	require.NoError(c.t, err)
	return events
}

func (c *testChain) wait(seconds int64) {
	c.time += seconds
	c.height++
}

// view reads the current working tree.
func (c *testChain) view() *Frabric {
	return NewFrabric(c.st.store(), c.st.env(), c.st.cfg, nil, c.st.verifier, c.st.logger)
}

func (c *testChain) g(i int) common.Address {
	return c.genesis[i].Address()
}

func (c *testChain) propose(proposer common.Address, payload types.Payload) (id uint64, err error) {
	_, err = c.exec(func(f *Frabric) error {
		p, err := f.Proposals.Create(proposer, payload, common.Hash{})
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	return
}

func (c *testChain) vote(voter common.Address, id, weight uint64, support bool) error {
	_, err := c.exec(func(f *Frabric) error {
		_, err := f.Proposals.Vote(voter, id, weight, support)
		return err
	})
	return err
}

func (c *testChain) complete(id uint64) error {
	_, err := c.exec(func(f *Frabric) error {
		_, err := f.Proposals.Complete(id)
		return err
	})
	return err
}

func (c *testChain) execute(id uint64) ([]types.Event, error) {
	return c.exec(func(f *Frabric) error {
		_, err := f.Proposals.Execute(id)
		return err
	})
}

// pass takes payload through the full lifecycle with the two largest
// genesis holders voting for it and returns the execution events.
func (c *testChain) pass(payload types.Payload) (uint64, []types.Event) {
	id, err := c.propose(c.g(0), payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.vote(c.g(0), id, 0, true))
	require.NoError(c.t, c.vote(c.g(1), id, 0, true))
	c.wait(c.params.VotingPeriod)
	require.NoError(c.t, c.complete(id))
	c.wait(c.params.QueuePeriod)
	events, err := c.execute(id)
	require.NoError(c.t, err)
	return id, events
}

func (c *testChain) admitKYCAgent() *fcrypto.Key {
	agent := newKey(c.t)
	c.pass(types.ParticipantsPayload{Type: types.ParticipantKYC, Data: fcrypto.ParticipantLeaf(agent.Address())})
	return agent
}

func (c *testChain) approve(id uint64, agent *fcrypto.Key, participant common.Address, kycHash common.Hash, proof []common.Hash) error {
	sig, err := c.verifier.SignKYC(agent.PrivateKey(), participant, kycHash)
	require.NoError(c.t, err)
	_, err = c.exec(func(f *Frabric) error {
		return f.Participants.Approve(id, participant, kycHash, proof, sig)
	})
	return err
}

// admitGovernor admits a fresh governor through an agent attestation and
// funds it with bond tokens.
func (c *testChain) admitGovernor(agent *fcrypto.Key) *fcrypto.Key {
	gov := newKey(c.t)
	id, _ := c.pass(types.ParticipantsPayload{Type: types.ParticipantGovernor, Data: fcrypto.ParticipantLeaf(gov.Address())})
	require.NoError(c.t, c.approve(id, agent, gov.Address(), common.HexToHash("0x9090"), nil))
	c.mustExec(func(f *Frabric) error {
		return f.Tokens.Mint(testBondToken, gov.Address(), 10000)
	})
	return gov
}

func (c *testChain) balance(token, holder common.Address) uint64 {
	bal, err := c.view().Tokens.Balance(token, holder)
	require.NoError(c.t, err)
	return bal
}

func hasEvent[E types.Event](events []types.Event, want E) bool {
	for _, ev := range events {
		if e, ok := ev.(E); ok && any(e) == any(want) {
			return true
		}
	}
	return false
}
