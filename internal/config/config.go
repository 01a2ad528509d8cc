// Package config loads marketplace layer configuration from the environment
// and an optional marketplace.yaml overlay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port         int           `env:"SERVER_PORT,default=8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=marketplace"`
}

// DatabaseConfig selects the record store backend.
type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `env:"DATABASE_DRIVER,default=memory"`
	DSN    string `env:"DATABASE_URL,default="`
}

// ChainConfig controls the optional Neo N3 settlement backend. When disabled
// the in-process ledger settles transfers.
type ChainConfig struct {
	Enabled       bool          `env:"CHAIN_ENABLED,default=false"`
	RPCURL        string        `env:"CHAIN_RPC_URL,default="`
	NetworkID     uint32        `env:"CHAIN_NETWORK_ID,default=894710606"`
	GasTokenHash  string        `env:"CHAIN_GAS_TOKEN_HASH,default=d2a4cff31913016155e38e474a2c06d08be276cf"`
	ContractHash  string        `env:"CHAIN_CONTRACT_HASH,default="`
	PrivateKeyHex string        `env:"CHAIN_PRIVATE_KEY,default="`
	Timeout       time.Duration `env:"CHAIN_TIMEOUT,default=30s"`
}

// AuthConfig controls JWT verification on the API.
type AuthConfig struct {
	// Secret signs and verifies HS256 caller tokens. Empty disables auth
	// (local development only).
	Secret string `env:"AUTH_JWT_SECRET,default="`
}

// MarketplaceConfig carries marketplace bootstrap settings.
type MarketplaceConfig struct {
	// Admin and RoyaltyFeeBasisPoints seed the configuration record when
	// AutoInitialize is set; otherwise initialization happens via the API.
	Admin                 string        `env:"MARKETPLACE_ADMIN,default=" yaml:"admin"`
	RoyaltyFeeBasisPoints uint16        `env:"MARKETPLACE_ROYALTY_BPS,default=0" yaml:"royalty_fee_basis_points"`
	AutoInitialize        bool          `env:"MARKETPLACE_AUTO_INITIALIZE,default=false" yaml:"auto_initialize"`
	AuditInterval         time.Duration `env:"MARKETPLACE_AUDIT_INTERVAL,default=30s" yaml:"audit_interval"`
	RateLimitPerSecond    int           `env:"MARKETPLACE_RATE_LIMIT,default=25" yaml:"rate_limit_per_second"`
	RateLimitBurst        int           `env:"MARKETPLACE_RATE_BURST,default=50" yaml:"rate_limit_burst"`
}

// Config is the process-wide configuration.
type Config struct {
	Server      ServerConfig
	Logging     LoggingConfig
	Database    DatabaseConfig
	Chain       ChainConfig
	Auth        AuthConfig
	Marketplace MarketplaceConfig
}

// Load reads .env (when present) and decodes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// LoadMarketplaceFile overlays settings from config/marketplace.yaml when the
// file exists. Missing files are not an error.
func (c *Config) LoadMarketplaceFile() error {
	return c.LoadMarketplaceFileFromPath(filepath.Join("config", "marketplace.yaml"))
}

// LoadMarketplaceFileFromPath overlays settings from a specific path.
func (c *Config) LoadMarketplaceFileFromPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read marketplace config: %w", err)
	}

	overlay := c.Marketplace
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse marketplace config: %w", err)
	}
	if overlay.RoyaltyFeeBasisPoints > 10000 {
		return fmt.Errorf("royalty_fee_basis_points %d exceeds 10000", overlay.RoyaltyFeeBasisPoints)
	}
	c.Marketplace = overlay
	return nil
}
