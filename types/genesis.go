package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const FrabricModuleName = "frabric"
const DefaultPower = 1000

// Params are the governance thresholds and timings. Durations are seconds of
// block time.
type Params struct {
	VotingPeriod         int64  `json:"voting_period"`
	QueuePeriod          int64  `json:"queue_period"`
	QuorumPercent        uint64 `json:"quorum_percent"`
	SupermajorityPercent uint64 `json:"supermajority_percent"`
}

func DefaultParams() Params {
	return Params{
		VotingPeriod:         7 * 24 * 3600,
		QueuePeriod:          2 * 24 * 3600,
		QuorumPercent:        10,
		SupermajorityPercent: 66,
	}
}

func (p Params) Validate() error {
	if p.VotingPeriod <= 0 {
		return errors.New("voting_period must be positive")
	}
	if p.QueuePeriod < 0 {
		return errors.New("queue_period cannot be negative")
	}
	if p.QuorumPercent > 100 || p.SupermajorityPercent > 100 {
		return errors.New("percentages cannot exceed 100")
	}
	if p.SupermajorityPercent <= 50 {
		return errors.New("supermajority_percent must exceed 50")
	}
	return nil
}

type GenesisParticipant struct {
	Address common.Address `json:"address"`
	KYCHash common.Hash    `json:"kyc_hash"`
	Amount  uint64         `json:"amount"`
}

type GenesisBalance struct {
	Token   common.Address `json:"token"`
	Address common.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

// AppState is the Frabric section of the genesis document.
type AppState struct {
	// ChainID is the numeric chain id bound into KYC attestations.
	ChainID      uint64               `json:"chain_id"`
	Frabric      common.Address       `json:"frabric"`
	FRBC         common.Address       `json:"frbc"`
	BondToken    common.Address       `json:"bond_token"`
	Params       Params               `json:"params"`
	Participants []GenesisParticipant `json:"participants"`
	Vetoers      []common.Address     `json:"vetoers,omitempty"`
	Balances     []GenesisBalance     `json:"balances,omitempty"`
}

func (a *AppState) Validate() error {
	if a.Frabric == (common.Address{}) {
		return errors.New("frabric address is required")
	}
	if a.FRBC == (common.Address{}) {
		return errors.New("frbc token address is required")
	}
	if a.BondToken == (common.Address{}) {
		return errors.New("bond token address is required")
	}
	if len(a.Participants) == 0 {
		return errors.New("at least one genesis participant is required")
	}
	seen := make(map[common.Address]bool, len(a.Participants))
	for _, p := range a.Participants {
		if seen[p.Address] {
			return fmt.Errorf("duplicate genesis participant %v", p.Address)
		}
		seen[p.Address] = true
	}
	return a.Params.Validate()
}
