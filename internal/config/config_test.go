package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8550", cfg.Signer.BridgeURL)
	assert.Equal(t, 5*time.Minute, cfg.Signer.Timeout)
	assert.Equal(t, float64(2), cfg.Signer.RPS)
	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
	assert.Equal(t, "sepolia", cfg.Chain.Network)
	assert.Equal(t, 1, cfg.Chain.MinConfirmations)
	assert.Equal(t, 3000, cfg.Chain.PollIntervalMs)
	assert.Equal(t, 10*time.Minute, cfg.Chain.ConfirmTimeout)
	assert.Equal(t, 50, cfg.Batch.SettleDelayMs)
	assert.Equal(t, 500, cfg.Batch.MaxUnits)
	assert.Empty(t, cfg.DB.URL)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "transferd:events", cfg.Redis.StreamKey)
	assert.Equal(t, 8081, cfg.Server.AdminPort)
	assert.Equal(t, 8080, cfg.Server.HealthPort)
	assert.Equal(t, 300, cfg.Alert.CooldownSec)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SIGNER_BRIDGE_URL", "http://bridge:9000")
	t.Setenv("CHAIN_RPC_URL", "https://rpc.sepolia.example")
	t.Setenv("CHAIN_NETWORK", "mainnet")
	t.Setenv("MIN_CONFIRMATIONS", "6")
	t.Setenv("SETTLE_DELAY_MS", "100")
	t.Setenv("DB_URL", "postgres://transferd:transferd@db:5432/transferd")
	t.Setenv("REDIS_URL", "redis://redis:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://bridge:9000", cfg.Signer.BridgeURL)
	assert.Equal(t, "https://rpc.sepolia.example", cfg.Chain.RPCURL)
	assert.Equal(t, "mainnet", cfg.Chain.Network)
	assert.Equal(t, 6, cfg.Chain.MinConfirmations)
	assert.Equal(t, 100, cfg.Batch.SettleDelayMs)
	assert.Equal(t, "postgres://transferd:transferd@db:5432/transferd", cfg.DB.URL)
	assert.Equal(t, "redis://redis:6379", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNetwork(t *testing.T) {
	t.Setenv("CHAIN_NETWORK", "goerli")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAIN_NETWORK")
}

func TestLoad_InvalidConfirmations(t *testing.T) {
	t.Setenv("MIN_CONFIRMATIONS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_CONFIRMATIONS")
}

func TestLoad_PortClash(t *testing.T) {
	t.Setenv("ADMIN_PORT", "8080")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEALTH_PORT")
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("SETTLE_DELAY_MS", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Batch.SettleDelayMs)
}
