package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Signer  SignerConfig
	Chain   ChainConfig
	Batch   BatchConfig
	DB      DBConfig
	Redis   RedisConfig
	Server  ServerConfig
	Alert   AlertConfig
	Tracing TracingConfig
	Log     LogConfig
}

type SignerConfig struct {
	BridgeURL string
	Timeout   time.Duration
	RPS       float64
	Burst     int
}

type ChainConfig struct {
	RPCURL           string
	Network          string
	MinConfirmations int
	PollIntervalMs   int
	ConfirmTimeout   time.Duration
	RPS              float64
	Burst            int
}

type BatchConfig struct {
	SettleDelayMs int
	MaxUnits      int
	// StallThresholdSec of 0 disables the no-progress watchdog.
	StallThresholdSec int
}

type DBConfig struct {
	// URL is optional; without it the journal is disabled.
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	// URL is optional; without it events stay in process.
	URL       string
	StreamKey string
	MaxLen    int
}

type ServerConfig struct {
	AdminPort  int
	HealthPort int
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	CooldownSec     int
}

type TracingConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Signer: SignerConfig{
			BridgeURL: getEnv("SIGNER_BRIDGE_URL", "http://localhost:8550"),
			Timeout:   time.Duration(getEnvInt("SIGNER_TIMEOUT_SEC", 300)) * time.Second,
			RPS:       getEnvFloat("SIGNER_RPS", 2),
			Burst:     getEnvInt("SIGNER_BURST", 2),
		},
		Chain: ChainConfig{
			RPCURL:           getEnv("CHAIN_RPC_URL", "http://localhost:8545"),
			Network:          getEnv("CHAIN_NETWORK", "sepolia"),
			MinConfirmations: getEnvInt("MIN_CONFIRMATIONS", 1),
			PollIntervalMs:   getEnvInt("RECEIPT_POLL_INTERVAL_MS", 3000),
			ConfirmTimeout:   time.Duration(getEnvInt("CONFIRM_TIMEOUT_SEC", 600)) * time.Second,
			RPS:              getEnvFloat("CHAIN_RPS", 10),
			Burst:            getEnvInt("CHAIN_BURST", 5),
		},
		Batch: BatchConfig{
			SettleDelayMs:     getEnvInt("SETTLE_DELAY_MS", 50),
			MaxUnits:          getEnvInt("MAX_BATCH_UNITS", 500),
			StallThresholdSec: getEnvInt("STALL_THRESHOLD_SEC", 300),
		},
		DB: DBConfig{
			URL:             getEnv("DB_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			StreamKey: getEnv("REDIS_STREAM_KEY", "transferd:events"),
			MaxLen:    getEnvInt("REDIS_STREAM_MAXLEN", 10000),
		},
		Server: ServerConfig{
			AdminPort:  getEnvInt("ADMIN_PORT", 8081),
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
			CooldownSec:     getEnvInt("ALERT_COOLDOWN_SEC", 300),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Signer.BridgeURL == "" {
		return fmt.Errorf("SIGNER_BRIDGE_URL is required")
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}
	switch c.Chain.Network {
	case "mainnet", "sepolia", "holesky", "local":
	default:
		return fmt.Errorf("CHAIN_NETWORK %q is not supported", c.Chain.Network)
	}
	if c.Chain.MinConfirmations < 1 {
		return fmt.Errorf("MIN_CONFIRMATIONS must be at least 1")
	}
	if c.Batch.SettleDelayMs < 0 {
		return fmt.Errorf("SETTLE_DELAY_MS must not be negative")
	}
	if c.Batch.MaxUnits < 1 {
		return fmt.Errorf("MAX_BATCH_UNITS must be at least 1")
	}
	if c.Server.AdminPort == c.Server.HealthPort {
		return fmt.Errorf("ADMIN_PORT and HEALTH_PORT must differ")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
