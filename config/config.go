package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/spf13/viper"
)

const (
	DefaultIndexerDB         = "indexer.db"
	DefaultServiceListenAddr = ":8080"
	DefaultKeyFile           = "frabric_key"
)

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.frabric")
}

type FrabricAppConfig struct {
	Home string `mapstructure:"home"`
	// IndexerDB is the sqlite file of the event indexer, relative to Home
	// unless absolute. Empty disables the indexer.
	IndexerDB         string        `mapstructure:"indexer_db"`
	ServiceListenAddr string        `mapstructure:"service_listen_addr"`
	IndexerInterval   time.Duration `mapstructure:"indexer_interval"`
}

func DefaultFrabricAppConfig(home string) *FrabricAppConfig {
	return &FrabricAppConfig{
		Home:              home,
		IndexerDB:         DefaultIndexerDB,
		ServiceListenAddr: DefaultServiceListenAddr,
		IndexerInterval:   time.Second,
	}
}

func (c *FrabricAppConfig) IndexerDBPath() string {
	if c.IndexerDB == "" || filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

func (c *FrabricAppConfig) ValidateBasic() error {
	if c.Home == "" {
		return fmt.Errorf("app.home is required")
	}
	if c.IndexerInterval < 0 {
		return fmt.Errorf("app.indexer_interval cannot be negative")
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *FrabricAppConfig `mapstructure:"app"`
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	cfg := &Config{
		DefaultCometConfig(),
		DefaultFrabricAppConfig(home),
	}
	cfg.SetRoot(home)
	return cfg
}

// NewConfig is DefaultConfig with the config directory created.
func NewConfig(home string) *Config {
	cfg := DefaultConfig(home)
	_ = os.MkdirAll(filepath.Join(cfg.RootDir, "config"), DefaultDirPerm)
	return cfg
}

// LoadConfig reads home/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(filepath.Join(cfg.RootDir, "config", "config.toml"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(cfg.RootDir)
	if cfg.App.Home == "" {
		cfg.App.Home = cfg.RootDir
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	if err := cfg.App.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func (c *Config) KeyFile() string {
	return filepath.Join(c.RootDir, "config", DefaultKeyFile)
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	cometConfig.Instrumentation.Namespace = "frabric_comet"
	return cometConfig
}
