package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventParticipantChangeType   = "participant_change"
	EventGovernorChangeType      = "governor_change"
	EventProposalType            = "proposal"
	EventProposalStateChangeType = "proposal_state_change"
	EventVoteType                = "vote"
	EventBondType                = "bond"
	EventUnbondType              = "unbond"
	EventSlashType               = "slash"
	EventTransferType            = "transfer"
	EventThreadType              = "thread"
	EventCrowdfundedThreadType   = "crowdfunded_thread"
	EventCrowdfundStartedType    = "crowdfund_started"
	EventStateChangeType         = "state_change"
	EventDepositType             = "deposit"
	EventWithdrawType            = "withdraw"
	EventDistributedType         = "distributed"
	EventClaimedType             = "claimed"
)

// Event is a typed log record emitted by the Frabric core.
type Event interface {
	EventType() string
}

type EventParticipantChange struct {
	Participant common.Address  `json:"participant"`
	Type        ParticipantType `json:"type"`
}

type EventGovernorChange struct {
	Governor common.Address `json:"governor"`
	Status   GovernorStatus `json:"status"`
}

type EventProposal struct {
	ID       uint64         `json:"id"`
	Kind     ProposalKind   `json:"kind"`
	Proposer common.Address `json:"proposer"`
	Info     common.Hash    `json:"info"`
	Deadline int64          `json:"deadline"`
}

type EventProposalStateChange struct {
	ID    uint64        `json:"id"`
	State ProposalState `json:"state"`
}

type EventVote struct {
	ID      uint64         `json:"id"`
	Voter   common.Address `json:"voter"`
	Support bool           `json:"support"`
	Weight  uint64         `json:"weight"`
}

type EventBond struct {
	Governor common.Address `json:"governor"`
	Amount   uint64         `json:"amount"`
}

type EventUnbond struct {
	Governor common.Address `json:"governor"`
	Amount   uint64         `json:"amount"`
}

type EventSlash struct {
	Governor common.Address `json:"governor"`
	Amount   uint64         `json:"amount"`
}

type EventTransfer struct {
	Token  common.Address `json:"token"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

type EventThread struct {
	Thread     common.Address `json:"thread"`
	Variant    uint8          `json:"variant"`
	Governor   common.Address `json:"governor"`
	ERC20      common.Address `json:"erc20"`
	Descriptor common.Hash    `json:"descriptor"`
}

type EventCrowdfundedThread struct {
	Thread    common.Address `json:"thread"`
	Token     common.Address `json:"token"`
	Crowdfund common.Address `json:"crowdfund"`
	Target    uint64         `json:"target"`
}

type EventCrowdfundStarted struct {
	Crowdfund common.Address `json:"crowdfund"`
	Governor  common.Address `json:"governor"`
	Thread    common.Address `json:"thread"`
	Token     common.Address `json:"token"`
	Target    uint64         `json:"target"`
}

type EventStateChange struct {
	Crowdfund common.Address `json:"crowdfund"`
	State     CrowdfundState `json:"state"`
}

type EventDeposit struct {
	Crowdfund common.Address `json:"crowdfund"`
	Depositor common.Address `json:"depositor"`
	Amount    uint64         `json:"amount"`
}

type EventWithdraw struct {
	Crowdfund common.Address `json:"crowdfund"`
	Depositor common.Address `json:"depositor"`
	Amount    uint64         `json:"amount"`
}

type EventDistributed struct {
	ID     uint64         `json:"id"`
	Token  common.Address `json:"token"`
	Amount uint64         `json:"amount"`
}

type EventClaimed struct {
	ID     uint64         `json:"id"`
	Person common.Address `json:"person"`
	Amount uint64         `json:"amount"`
}

func (EventParticipantChange) EventType() string   { return EventParticipantChangeType }
func (EventGovernorChange) EventType() string      { return EventGovernorChangeType }
func (EventProposal) EventType() string            { return EventProposalType }
func (EventProposalStateChange) EventType() string { return EventProposalStateChangeType }
func (EventVote) EventType() string                { return EventVoteType }
func (EventBond) EventType() string                { return EventBondType }
func (EventUnbond) EventType() string              { return EventUnbondType }
func (EventSlash) EventType() string               { return EventSlashType }
func (EventTransfer) EventType() string            { return EventTransferType }
func (EventThread) EventType() string              { return EventThreadType }
func (EventCrowdfundedThread) EventType() string   { return EventCrowdfundedThreadType }
func (EventCrowdfundStarted) EventType() string    { return EventCrowdfundStartedType }
func (EventStateChange) EventType() string         { return EventStateChangeType }
func (EventDeposit) EventType() string             { return EventDepositType }
func (EventWithdraw) EventType() string            { return EventWithdrawType }
func (EventDistributed) EventType() string         { return EventDistributedType }
func (EventClaimed) EventType() string             { return EventClaimedType }

// EncodeEvent flattens the JSON form of ev into abci attributes. String
// values are stored unquoted unless the bare text would itself parse as JSON.
func EncodeEvent(ev Event) (event abci.Event, err error) {
	dat, err := json.Marshal(ev)
	if err != nil {
		return
	}
	var fields map[string]json.RawMessage
	if err = json.Unmarshal(dat, &fields); err != nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	event.Type = ev.EventType()
	for _, k := range keys {
		raw := fields[k]
		value := string(raw)
		if s, err1 := strconv.Unquote(value); err1 == nil && len(raw) > 0 && raw[0] == '"' && !json.Valid([]byte(s)) {
			value = s
		}
		event.Attributes = append(event.Attributes, abci.EventAttribute{Key: k, Value: value, Index: true})
	}
	return
}

func MustEncodeEvent(ev Event) abci.Event {
	event, err := EncodeEvent(ev)
	if err != nil {
		panic(err)
	}
	return event
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent[E Event](originEvent abci.Event) (*E, error) {
	ev := new(E)
	if originEvent.Type != (*ev).EventType() {
		return nil, fmt.Errorf("unexpected event type %q", originEvent.Type)
	}
	fields := make(map[string]json.RawMessage, len(originEvent.Attributes))
	for _, v := range originEvent.Attributes {
		if json.Valid([]byte(v.Value)) {
			fields[v.Key] = json.RawMessage(v.Value)
		} else {
			fields[v.Key] = json.RawMessage(strconv.Quote(v.Value))
		}
	}
	dat, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(dat, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
