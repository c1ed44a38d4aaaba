package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type LedgerConfig struct {
	// RPCURL is the base URL of the ledger's JSON-RPC endpoint. Leave empty
	// to run against the in-memory mock ledger.
	RPCURL         string        `mapstructure:"rpc_url"`
	SignerURL      string        `mapstructure:"signer_url"`
	EscrowAccount  string        `mapstructure:"escrow_account"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type StakeConfig struct {
	// MinStake and FeeBuffer are decimal ledger units.
	MinStake         float64       `mapstructure:"min_stake"`
	FeeBuffer        float64       `mapstructure:"fee_buffer"`
	ResolutionWindow time.Duration `mapstructure:"resolution_window"`
	ResolverInterval time.Duration `mapstructure:"resolver_interval"`
}

type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LeaderboardConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RewardScore     int64         `mapstructure:"reward_score"`
}

type Config struct {
	Home     string `mapstructure:"-"`
	LogLevel string `mapstructure:"log_level"`

	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Stake       StakeConfig       `mapstructure:"stake"`
	API         APIConfig         `mapstructure:"api"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv("$HOME/.veristake")
	}
	_ = os.MkdirAll(filepath.Join(home, "config"), DefaultDirPerm)
	return &Config{
		Home:     home,
		LogLevel: "info",
		Ledger: LedgerConfig{
			RPCURL:         "",
			SignerURL:      "",
			EscrowAccount:  "",
			PollInterval:   3 * time.Second,
			ConfirmTimeout: 90 * time.Second,
			MaxRetries:     3,
		},
		Stake: StakeConfig{
			MinStake:         1,
			FeeBuffer:        0.1,
			ResolutionWindow: 24 * time.Hour,
			ResolverInterval: 30 * time.Second,
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:8645",
		},
		Leaderboard: LeaderboardConfig{
			RefreshInterval: 30 * time.Second,
			RewardScore:     10,
		},
	}
}

func (c *Config) ValidateBasic() error {
	if c.Stake.MinStake <= 0 {
		return fmt.Errorf("stake.min_stake must be positive, got %v", c.Stake.MinStake)
	}
	if c.Stake.FeeBuffer < 0 {
		return fmt.Errorf("stake.fee_buffer must not be negative, got %v", c.Stake.FeeBuffer)
	}
	if c.Stake.ResolutionWindow <= 0 {
		return fmt.Errorf("stake.resolution_window must be positive, got %v", c.Stake.ResolutionWindow)
	}
	if c.Ledger.PollInterval <= 0 {
		return fmt.Errorf("ledger.poll_interval must be positive, got %v", c.Ledger.PollInterval)
	}
	if c.Ledger.ConfirmTimeout < c.Ledger.PollInterval {
		return fmt.Errorf("ledger.confirm_timeout %v is shorter than poll_interval %v", c.Ledger.ConfirmTimeout, c.Ledger.PollInterval)
	}
	if c.Ledger.RPCURL != "" && c.Ledger.EscrowAccount == "" {
		return fmt.Errorf("ledger.escrow_account is required when ledger.rpc_url is set")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	return nil
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.Home, "config", "config.toml")
}

func (c *Config) StoreFile() string {
	return filepath.Join(c.Home, "store.db")
}

func (c *Config) JournalDir() string {
	return filepath.Join(c.Home, "journal")
}
