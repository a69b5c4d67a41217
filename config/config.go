package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

// StorageConfig selects the Lifecycle Store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// NATSConfig configures the chain-observer deposit stream.
type NATSConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	Name       string        `mapstructure:"name"`
	Stream     string        `mapstructure:"stream"`
	Subject    string        `mapstructure:"subject"`
	Durable    string        `mapstructure:"durable"`
	AckWait    time.Duration `mapstructure:"ack_wait"`
	MaxDeliver int           `mapstructure:"max_deliver"`
	NakDelay   time.Duration `mapstructure:"nak_delay"`
}

// LedgerConfig configures the settlement contract node client.
type LedgerConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	ContractName    string        `mapstructure:"contract_name"`
	Network         string        `mapstructure:"network"` // testnet, mainnet
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay"`
	ContractFee     int64         `mapstructure:"contract_fee"`
	TransferFee     int64         `mapstructure:"transfer_fee"`
	PlatformAddress string        `mapstructure:"platform_address"`
	PlatformFeeRate string        `mapstructure:"platform_fee_rate"` // decimal fraction, e.g. "0.01"
	BlockTime       time.Duration `mapstructure:"block_time"`
}

// VaultConfig holds the process-wide deposit key secret.
type VaultConfig struct {
	MasterSecret string `mapstructure:"master_secret"` // 32-byte hex
}

// EncryptionConfig holds the at-rest key for webhook endpoint secrets.
type EncryptionConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

// AuthConfig configures service tokens for the internal API.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type SettlementConfig struct {
	MinAmount           int64         `mapstructure:"min_amount"`
	Currencies          []string      `mapstructure:"currencies"`
	DefaultExpiry       time.Duration `mapstructure:"default_expiry"`
	MaxExpiry           time.Duration `mapstructure:"max_expiry"`
	AutoSettle          bool          `mapstructure:"auto_settle"`
	ReconcileInterval   time.Duration `mapstructure:"reconcile_interval"`
	RegistrationGrace   time.Duration `mapstructure:"registration_grace"`
	StaleConfirmedAfter time.Duration `mapstructure:"stale_confirmed_after"`
	ClaimTTL            time.Duration `mapstructure:"claim_ttl"`
	BatchSize           int           `mapstructure:"batch_size"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
}

type WebhookConfig struct {
	Workers              int             `mapstructure:"workers"`
	QueueSize            int             `mapstructure:"queue_size"`
	DefaultTimeout       time.Duration   `mapstructure:"default_timeout"`
	DefaultRetryAttempts int             `mapstructure:"default_retry_attempts"`
	DefaultRetryDelays   []time.Duration `mapstructure:"default_retry_delays"`
}

// RateLimitConfig sets fixed-window request budgets per merchant.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Window      time.Duration `mapstructure:"window"`
	CreateLimit int64         `mapstructure:"create_limit"`
	MutateLimit int64         `mapstructure:"mutate_limit"`
	ReadLimit   int64         `mapstructure:"read_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SETTLE_.
// Nested keys use underscore: SETTLE_DATABASE_HOST, SETTLE_VAULT_MASTER_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SETTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.idempotency_ttl", 24*time.Hour)

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "settlement")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "settlement-gateway")
	v.SetDefault("nats.stream", "DEPOSITS")
	v.SetDefault("nats.subject", "deposits.observed")
	v.SetDefault("nats.durable", "settlement-engine")
	v.SetDefault("nats.ack_wait", 30*time.Second)
	v.SetDefault("nats.max_deliver", 20)
	v.SetDefault("nats.nak_delay", 10*time.Second)

	v.SetDefault("ledger.base_url", "http://localhost:3999")
	v.SetDefault("ledger.contract_address", "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	v.SetDefault("ledger.contract_name", "payment-settlement")
	v.SetDefault("ledger.network", "testnet")
	v.SetDefault("ledger.call_timeout", 10*time.Second)
	v.SetDefault("ledger.retry_attempts", 3)
	v.SetDefault("ledger.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("ledger.retry_max_delay", 5*time.Second)
	v.SetDefault("ledger.contract_fee", 2000)
	v.SetDefault("ledger.transfer_fee", 1000)
	v.SetDefault("ledger.platform_address", "")
	v.SetDefault("ledger.platform_fee_rate", "0.01")
	v.SetDefault("ledger.block_time", 10*time.Minute)

	v.SetDefault("vault.master_secret", "")
	v.SetDefault("encryption.key", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "settlement-gateway")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("settlement.min_amount", 1000)
	v.SetDefault("settlement.currencies", []string{"sbtc", "stx", "btc"})
	v.SetDefault("settlement.default_expiry", 15*time.Minute)
	v.SetDefault("settlement.max_expiry", 24*time.Hour)
	v.SetDefault("settlement.auto_settle", true)
	v.SetDefault("settlement.reconcile_interval", 30*time.Second)
	v.SetDefault("settlement.registration_grace", 2*time.Minute)
	v.SetDefault("settlement.stale_confirmed_after", 5*time.Minute)
	v.SetDefault("settlement.claim_ttl", 10*time.Minute)
	v.SetDefault("settlement.batch_size", 100)
	v.SetDefault("settlement.lock_ttl", 25*time.Second)

	v.SetDefault("webhook.workers", 8)
	v.SetDefault("webhook.queue_size", 256)
	v.SetDefault("webhook.default_timeout", 10*time.Second)
	v.SetDefault("webhook.default_retry_attempts", 3)
	v.SetDefault("webhook.default_retry_delays", []time.Duration{time.Second, 5 * time.Second, 15 * time.Second})

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.create_limit", 60)
	v.SetDefault("ratelimit.mutate_limit", 30)
	v.SetDefault("ratelimit.read_limit", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate rejects configurations the engine cannot run with safely.
func (c *Config) Validate() error {
	if err := validateHexKey("vault.master_secret", c.Vault.MasterSecret); err != nil {
		return err
	}
	if err := validateHexKey("encryption.key", c.Encryption.Key); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver %q must be postgres or memory", c.Storage.Driver)
	}

	switch c.Ledger.Network {
	case "testnet", "mainnet":
	default:
		return fmt.Errorf("ledger.network %q must be testnet or mainnet", c.Ledger.Network)
	}

	rate, err := decimal.NewFromString(c.Ledger.PlatformFeeRate)
	if err != nil {
		return fmt.Errorf("ledger.platform_fee_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("ledger.platform_fee_rate %s must be in [0, 1)", rate)
	}
	if rate.IsPositive() && c.Ledger.PlatformAddress == "" {
		return errors.New("ledger.platform_address is required when a platform fee is charged")
	}

	if len(c.Settlement.Currencies) == 0 {
		return errors.New("settlement.currencies must not be empty")
	}
	if c.Settlement.MinAmount <= 0 {
		return errors.New("settlement.min_amount must be positive")
	}
	if c.Settlement.DefaultExpiry > c.Settlement.MaxExpiry {
		return errors.New("settlement.default_expiry exceeds settlement.max_expiry")
	}
	if c.Webhook.Workers <= 0 {
		return errors.New("webhook.workers must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		return errors.New("ratelimit.window must be positive")
	}
	return nil
}

func validateHexKey(name, value string) error {
	key, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%s must be hex-encoded: %w", name, err)
	}
	if len(key) != 32 {
		return fmt.Errorf("%s must be 32 bytes, got %d", name, len(key))
	}
	return nil
}
