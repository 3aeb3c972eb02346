package state

import (
	"testing"

	fcrypto "github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (c *testChain) participant(addr common.Address) *types.Participant {
	p, err := c.view().Participants.Get(addr)
	require.NoError(c.t, err)
	return p
}

func TestGenesisParticipants(t *testing.T) {
	c := newTestChain(t)
	p := c.participant(c.g(0))
	assert.Equal(t, types.ParticipantGenesis, p.Type)
	assert.Equal(t, common.HexToHash("0x01"), p.KYCHash)
	assert.Equal(t, uint64(1000), c.balance(testFRBC, c.g(0)))

	ok, err := c.view().Tokens.Whitelisted(c.g(0))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, types.ParticipantNone, c.participant(newKey(t).Address()).Type)
}

func TestKYCAgentAdmission(t *testing.T) {
	c := newTestChain(t)
	agent := c.admitKYCAgent()
	assert.Equal(t, types.ParticipantKYC, c.participant(agent.Address()).Type)

	ok, err := c.view().Tokens.Whitelisted(agent.Address())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchApproval(t *testing.T) {
	c := newTestChain(t)
	agent := c.admitKYCAgent()

	members := make([]common.Address, 5)
	for i := range members {
		members[i] = newKey(t).Address()
	}
	tree := fcrypto.NewParticipantTree(members)
	id, events := c.pass(types.ParticipantsPayload{Type: types.ParticipantIndividual, Data: tree.Root()})
	assert.Empty(t, filterEvents[types.EventParticipantChange](events))

	batch, err := c.view().Participants.Batch(id)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, tree.Root(), batch.Root)

	kycHash := common.HexToHash("0xabcdef")
	proof, err := tree.Proof(fcrypto.ParticipantLeaf(members[2]))
	require.NoError(t, err)

	// a proof for another member does not verify
	wrong, err := tree.Proof(fcrypto.ParticipantLeaf(members[1]))
	require.NoError(t, err)
	require.ErrorIs(t, c.approve(id, agent, members[2], kycHash, wrong), types.ErrInvalidProof)

	// a valid proof with a signer who is not a KYC agent
	require.ErrorIs(t, c.approve(id, c.genesis[0], members[2], kycHash, proof), types.ErrInvalidSignature)

	// a signature over a different kyc hash recovers another signer
	sig, err := c.verifier.SignKYC(agent.PrivateKey(), members[2], common.HexToHash("0x01"))
	require.NoError(t, err)
	_, err = c.exec(func(f *Frabric) error {
		return f.Participants.Approve(id, members[2], kycHash, proof, sig)
	})
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	require.NoError(t, c.approve(id, agent, members[2], kycHash, proof))
	p := c.participant(members[2])
	assert.Equal(t, types.ParticipantIndividual, p.Type)
	assert.Equal(t, kycHash, p.KYCHash)
	info, err := c.view().Tokens.WhitelistInfo(members[2])
	require.NoError(t, err)
	assert.Equal(t, kycHash, info)

	require.ErrorIs(t, c.approve(id, agent, members[2], kycHash, proof), types.ErrAlreadyApproved)
	require.ErrorIs(t, c.approve(id+10, agent, members[3], kycHash, nil), types.ErrBatchNoexists)

	// admitted individuals can propose
	ok, err := c.view().Participants.CanPropose(members[2])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGovernorAdmission(t *testing.T) {
	c := newTestChain(t)
	agent := c.admitKYCAgent()
	gov := newKey(t)

	id, events := c.pass(types.ParticipantsPayload{Type: types.ParticipantGovernor, Data: fcrypto.ParticipantLeaf(gov.Address())})
	assert.True(t, hasEvent(events, types.EventGovernorChange{Governor: gov.Address(), Status: types.GovernorUnverified}))
	p := c.participant(gov.Address())
	assert.Equal(t, types.ParticipantNone, p.Type)
	assert.Equal(t, types.GovernorUnverified, p.GovernorStatus)

	ok, err := c.view().Participants.CanPropose(gov.Address())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.approve(id, agent, gov.Address(), common.HexToHash("0x77"), nil))
	p = c.participant(gov.Address())
	assert.Equal(t, types.ParticipantGovernor, p.Type)
	assert.Equal(t, types.GovernorActive, p.GovernorStatus)

	ok, err = c.view().Participants.CanPropose(gov.Address())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParticipantRemoval(t *testing.T) {
	c := newTestChain(t)
	target := c.g(2)
	_, events := c.pass(types.ParticipantRemovalPayload{Participant: target, Fine: 200})
	assert.True(t, hasEvent(events, types.EventParticipantChange{Participant: target, Type: types.ParticipantRemoved}))

	assert.Equal(t, types.ParticipantRemoved, c.participant(target).Type)
	assert.Equal(t, uint64(300), c.balance(testFRBC, target))
	assert.Equal(t, uint64(200), c.balance(testFRBC, testFrabric))
	ok, err := c.view().Tokens.Whitelisted(target)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.propose(target, types.PaperPayload{})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = c.propose(c.g(0), types.ParticipantsPayload{Type: types.ParticipantKYC, Data: fcrypto.ParticipantLeaf(target)})
	require.ErrorIs(t, err, types.ErrParticipantRemoved)

	_, err = c.propose(c.g(0), types.ParticipantRemovalPayload{Participant: target})
	require.ErrorIs(t, err, types.ErrParticipantRemoved)

	// removed holders can no longer move restricted tokens
	_, err = c.exec(func(f *Frabric) error { return f.Tokens.Send(testFRBC, target, c.g(0), 1) })
	require.ErrorIs(t, err, types.ErrNotWhitelisted)

	// the FRBC left after the fine carries no voting power
	id, err := c.propose(c.g(0), types.PaperPayload{})
	require.NoError(t, err)
	require.ErrorIs(t, c.vote(target, id, 0, false), types.ErrUnauthorized)
	assert.Equal(t, uint64(0), c.proposal(id).AgainstWeight)
}

func TestRemovalFineCappedAtBalance(t *testing.T) {
	c := newTestChain(t)
	c.pass(types.ParticipantRemovalPayload{Participant: c.g(2), Fine: 10_000})
	assert.Equal(t, uint64(0), c.balance(testFRBC, c.g(2)))
	assert.Equal(t, uint64(500), c.balance(testFRBC, testFrabric))
}

func filterEvents[E types.Event](events []types.Event) (out []E) {
	for _, ev := range events {
		if e, ok := ev.(E); ok {
			out = append(out, e)
		}
	}
	return
}
