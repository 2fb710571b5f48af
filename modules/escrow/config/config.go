package config

import (
	"time"

	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/internal/postgres"
)

type Config struct {
	ChainID   common.ChainID `mapstructure:"chain_id"`
	ProgramID string         `mapstructure:"program_id"`

	// Admin is the public key used to sign admin instructions (reject on expiry, eligibility, dispute resolution).
	Admin string `mapstructure:"admin"`

	Database    string          `mapstructure:"database"` // Database to store escrow data. `postgres` | `memory`
	Postgres    postgres.Config `mapstructure:"postgres"`
	Locker      string          `mapstructure:"locker"` // Per-deal lock implementation. `memory` | `postgres`
	APIHandlers []string        `mapstructure:"api_handlers"`

	Ledger    LedgerConfig    `mapstructure:"ledger"`
	PriceFeed PriceFeedConfig `mapstructure:"price_feed"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Vesting   VestingConfig   `mapstructure:"vesting"`
}

type LedgerConfig struct {
	URL        string            `mapstructure:"url"`
	Headers    map[string]string `mapstructure:"headers"`
	RateLimit  float64           `mapstructure:"rate_limit"` // requests per second, 0 is unlimited
	Burst      int               `mapstructure:"burst"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	MaxRetries uint64            `mapstructure:"max_retries"` // retries of read calls on transient errors
	Debug      bool              `mapstructure:"debug"`
}

type PriceFeedConfig struct {
	URL       string        `mapstructure:"url"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type IngestionConfig struct {
	StartSlot        uint64        `mapstructure:"start_slot"`
	PollingInterval  time.Duration `mapstructure:"polling_interval"`
	MaxRetryInterval time.Duration `mapstructure:"max_retry_interval"`
	DegradedAfter    int           `mapstructure:"degraded_after"`
	WindowSize       uint64        `mapstructure:"window_size"` // slots per fetch window
	PageSize         int           `mapstructure:"page_size"`   // events per ledger request
	Concurrency      int           `mapstructure:"concurrency"` // parallel window fetches during backfill
}

type SchedulerConfig struct {
	Disabled          bool          `mapstructure:"disabled"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	OfferExpiry       time.Duration `mapstructure:"offer_expiry"`
	RejectWaitTimeout time.Duration `mapstructure:"reject_wait_timeout"`
	Concurrency       int           `mapstructure:"concurrency"`
}

type VestingConfig struct {
	FirstUnlockBps       uint32          `mapstructure:"first_unlock_bps"`
	MarketCapThresholds  []string        `mapstructure:"marketcap_thresholds"` // USD, decimal strings
	AllowCustomMarketCap bool            `mapstructure:"allow_custom_marketcap"`
	DurationOptions      []time.Duration `mapstructure:"duration_options"`
	AllowCustomDuration  bool            `mapstructure:"allow_custom_duration"`
}

// Default returns the escrow module configuration defaults.
func Default() Config {
	return Config{
		ChainID:     common.ChainSolanaDevnet,
		Database:    "postgres",
		Locker:      "memory",
		APIHandlers: []string{"http"},
		Ledger: LedgerConfig{
			RateLimit:  10,
			Burst:      5,
			Timeout:    15 * time.Second,
			MaxRetries: 5,
		},
		PriceFeed: PriceFeedConfig{
			URL:       "https://api.dexscreener.com",
			RateLimit: 4,
			Burst:     1,
			Timeout:   10 * time.Second,
			CacheTTL:  time.Minute,
		},
		Ingestion: IngestionConfig{
			PollingInterval:  5 * time.Second,
			MaxRetryInterval: 2 * time.Minute,
			DegradedAfter:    3,
			WindowSize:       1000,
			PageSize:         500,
			Concurrency:      4,
		},
		Scheduler: SchedulerConfig{
			SweepInterval:     5 * time.Minute,
			OfferExpiry:       24 * time.Hour,
			RejectWaitTimeout: time.Minute,
			Concurrency:       8,
		},
		Vesting: VestingConfig{
			FirstUnlockBps:      2000,
			MarketCapThresholds: []string{"100000", "500000", "1000000", "5000000", "10000000"},
			DurationOptions: []time.Duration{
				7 * 24 * time.Hour,
				14 * 24 * time.Hour,
				30 * 24 * time.Hour,
				60 * 24 * time.Hour,
				90 * 24 * time.Hour,
			},
		},
	}
}
