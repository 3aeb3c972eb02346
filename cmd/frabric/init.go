package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/calehh/frabric-app/config"
	"github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type printInfo struct {
	ChainID    string          `json:"chain_id"`
	NodeID     string          `json:"node_id"`
	Owner      common.Address  `json:"owner"`
	AppMessage json.RawMessage `json:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

type initArguments struct {
	Home         string
	ChainID      string
	Overwrite    bool
	KYCChainID   uint64
	OwnerAmount  uint64
	Participants []string
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize the node's configuration files and a genesis document. A fresh
secp256k1 key becomes the first genesis participant and vetoer.`,
	Args: cobra.NoArgs,
	RunE: initRun,
}

func init() {
	homeFlag(initCmd, &initArgs.Home)
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().StringVar(&initArgs.ChainID, FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().Uint64Var(&initArgs.KYCChainID, "kyc-chain-id", 1, "numeric chain id bound into KYC attestations")
	initCmd.Flags().Uint64Var(&initArgs.OwnerAmount, "amount", 1_000_000, "FRBC minted to the generated genesis participant")
	initCmd.Flags().StringSliceVar(&initArgs.Participants, "participant", nil, "extra genesis participant as address:amount")
}

func parseGenesisParticipant(s string) (p types.GenesisParticipant, err error) {
	addr, amount, ok := strings.Cut(s, ":")
	if !ok || !common.IsHexAddress(addr) {
		return p, fmt.Errorf("invalid participant %q, want address:amount", s)
	}
	p.Address = common.HexToAddress(addr)
	p.Amount, err = strconv.ParseUint(amount, 10, 64)
	return
}

func initRun(cmd *cobra.Command, args []string) error {
	chainID := initArgs.ChainID
	if chainID == "" {
		chainID = fmt.Sprintf("frabric-%v", rand.Uint64())
	}
	appConfig := config.NewConfig(initArgs.Home)
	genFile := appConfig.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !initArgs.Overwrite {
		return fmt.Errorf("genesis file %v already exists, use --%s to replace it", genFile, FlagOverwrite)
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err = key.Save(appConfig.KeyFile()); err != nil {
		return err
	}

	appState := types.AppState{
		ChainID:   initArgs.KYCChainID,
		Frabric:   state.ModuleAddress("frabric"),
		FRBC:      state.ModuleAddress("frbc"),
		BondToken: state.ModuleAddress("bond-token"),
		Params:    types.DefaultParams(),
		Participants: []types.GenesisParticipant{
			{Address: key.Address(), Amount: initArgs.OwnerAmount},
		},
		Vetoers: []common.Address{key.Address()},
	}
	for _, s := range initArgs.Participants {
		p, err := parseGenesisParticipant(s)
		if err != nil {
			return err
		}
		appState.Participants = append(appState.Participants, p)
	}
	if err = appState.Validate(); err != nil {
		return err
	}
	appStateDat, err := json.MarshalIndent(appState, "", "  ")
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appStateDat,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	config.WriteConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"), appConfig)
	return displayInfo(printInfo{
		ChainID:    chainID,
		NodeID:     nodeID,
		Owner:      key.Address(),
		AppMessage: appGenesis.AppState,
	})
}
