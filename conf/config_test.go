package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
[API]
Port = 8085
RateLimit = 20.0
RateBurst = 40

[Redis]
Url = "redis://127.0.0.1:6379"

[Market]
Admin = "0x00000000000000000000000000000000000000a0"
CommunityPool = "0x00000000000000000000000000000000000000b0"
CommunityFeePercent = 15
DefaultJobTimeout = 600

[Sweep]
Schedule = "@every 30s"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(sample), 0600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 8085, cfg.API.Port)
	require.Equal(t, 40, cfg.API.RateBurst)
	require.Equal(t, uint64(15), cfg.Market.CommunityFeePercent)
	require.Equal(t, uint64(600), cfg.Market.DefaultJobTimeout)
	require.Zero(t, cfg.Market.HeartbeatTimeout)
	require.Equal(t, "umedas", cfg.Market.Denom)
	require.Equal(t, filepath.Join(dir, "ledger"), cfg.DB.Path)
	require.Equal(t, "@every 30s", cfg.Sweep.Schedule)

	require.NoError(t, InitConfig(dir))
	require.Equal(t, cfg, GetConfig())
}

func TestLoadConfigRequiredFields(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("[API]\nPort = 1\n"), 0600))

	_, err := LoadConfig(dir)
	require.ErrorContains(t, err, "Market.Admin")
	require.ErrorContains(t, err, "Market.CommunityFeePercent")
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo")
	cfg := MarketNode{
		API:    API{Port: 8085},
		Market: Market{Admin: "0xa", CommunityPool: "0xb", CommunityFeePercent: 5},
	}

	path, err := WriteDefaultConfig(dir, cfg)
	require.NoError(t, err)
	require.FileExists(t, path)

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(5), loaded.Market.CommunityFeePercent)

	_, err = WriteDefaultConfig(dir, cfg)
	require.Error(t, err)
}
