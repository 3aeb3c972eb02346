package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	assert.Equal(t, home, cfg.RootDir)
	assert.Equal(t, home, cfg.App.Home)
	assert.Equal(t, filepath.Join(home, DefaultIndexerDB), cfg.App.IndexerDBPath())
	assert.Equal(t, filepath.Join(home, "config", DefaultKeyFile), cfg.KeyFile())
	require.NoError(t, cfg.App.ValidateBasic())
}

func TestIndexerDBPath(t *testing.T) {
	cfg := DefaultFrabricAppConfig("/srv/frabric")
	cfg.IndexerDB = ""
	assert.Empty(t, cfg.IndexerDBPath())
	cfg.IndexerDB = "/var/lib/frabric.db"
	assert.Equal(t, "/var/lib/frabric.db", cfg.IndexerDBPath())
}

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig(home)
	cfg.App.ServiceListenAddr = "127.0.0.1:9090"
	cfg.App.IndexerInterval = 3 * time.Second
	cfg.Moniker = "frabric-test"
	WriteConfigFile(filepath.Join(home, "config", "config.toml"), cfg)

	loaded, err := LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, "frabric-test", loaded.Moniker)
	assert.Equal(t, home, loaded.App.Home)
	assert.Equal(t, "127.0.0.1:9090", loaded.App.ServiceListenAddr)
	assert.Equal(t, DefaultIndexerDB, loaded.App.IndexerDB)
	assert.Equal(t, 3*time.Second, loaded.App.IndexerInterval)
	assert.Equal(t, cfg.Consensus.TimeoutCommit, loaded.Consensus.TimeoutCommit)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}
