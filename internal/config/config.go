// Package config loads the engine configuration from YAML, fills defaults,
// applies environment overrides and validates the result.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/genome-consensus-bot/internal/archive"
	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	"github.com/ducminhle1904/genome-consensus-bot/internal/consensus"
	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/exchange"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/pool"
	"github.com/ducminhle1904/genome-consensus-bot/internal/population"
	"github.com/ducminhle1904/genome-consensus-bot/internal/portfolio"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/internal/risk"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
)

// Environment variables that override file values
const (
	EnvAPIKey    = "BYBIT_API_KEY"
	EnvAPISecret = "BYBIT_API_SECRET"
	EnvRedisAddr = "REDIS_ADDR"
	EnvLogLevel  = "GENOME_BOT_LOG_LEVEL"
	EnvSymbols   = "GENOME_BOT_SYMBOLS"
)

type Config struct {
	Engine       EngineConfig           `yaml:"engine"`
	Population   population.Config      `yaml:"population"`
	Consensus    consensus.Config       `yaml:"consensus"`
	Regime       regime.Config          `yaml:"regime"`
	Risk         risk.Config            `yaml:"risk"`
	Exposure     portfolio.Config       `yaml:"exposure"`
	Environments []champion.Environment `yaml:"environments" validate:"min=1,dive"`
	Exchange     ExchangeConfig         `yaml:"exchange"`
	Store        storage.Config         `yaml:"store"`
	Archive      archive.Config         `yaml:"archive"`
	Metrics      MetricsConfig          `yaml:"metrics"`
	Logging      logger.Config          `yaml:"logging"`
}

// EngineConfig drives the scheduler
type EngineConfig struct {
	Environment      string        `yaml:"environment" default:"paper" validate:"required"`
	Symbols          []string      `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"SOLUSDT\"]" validate:"min=1,dive,required"`
	Interval         string        `yaml:"interval" default:"5" validate:"required"`
	CandleLimit      int           `yaml:"candle_limit" default:"200" validate:"min=60,max=1000"`
	CycleInterval    time.Duration `yaml:"cycle_interval" default:"5m" validate:"gt=0"`
	BreedingInterval time.Duration `yaml:"breeding_interval" default:"6h" validate:"gt=0"`
	ChampionInterval time.Duration `yaml:"champion_interval" default:"24h" validate:"gt=0"`
	PoolSize         int           `yaml:"pool_size" default:"30" validate:"eq=30"`
	Workers          int           `yaml:"workers" default:"8" validate:"min=1"`
	Seed             int64         `yaml:"seed"` // 0 seeds from the clock
}

// ExchangeConfig selects the venue
type ExchangeConfig struct {
	Name      string               `yaml:"name" default:"paper" validate:"oneof=bybit paper"`
	Testnet   bool                 `yaml:"testnet" default:"true"`
	Demo      bool                 `yaml:"demo"`
	Category  string               `yaml:"category" default:"linear" validate:"oneof=linear inverse"`
	APIKey    string               `yaml:"api_key"`
	APISecret string               `yaml:"api_secret"`
	RateLimit int                  `yaml:"requests_per_second" default:"10" validate:"min=1"`
	Retry     exchange.RetryConfig `yaml:"retry"`
	Paper     exchange.PaperConfig `yaml:"paper"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Addr    string `yaml:"addr" default:":9090"`
}

// DefaultEnvironments is used when the file names none
func DefaultEnvironments() []champion.Environment {
	return []champion.Environment{
		{Name: "paper", Network: champion.NetworkTestnet, TradingType: "futures", TopK: 5, LeverageCap: 20, MinWinRate: 0.6, MinTrades: 10, MinFitness: 0.5},
		{Name: "live", Network: champion.NetworkMainnet, TradingType: "futures", TopK: 3, LeverageCap: 10, MinWinRate: 0.6, MinTrades: 10, MinFitness: 0.5},
	}
}

// Default returns a fully defaulted configuration
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	cfg.finish()
	return cfg, nil
}

// Load reads path, fills defaults, applies environment overrides and validates.
// An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, engerrors.NewConfigurationError("config", "defaults", err.Error())
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, engerrors.NewConfigurationError("config", "read", fmt.Sprintf("read config %s: %v", path, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, engerrors.NewConfigurationError("config", "parse", fmt.Sprintf("parse config: %v", err))
		}
	}

	// list elements decoded from YAML start from zero values
	for i := range cfg.Environments {
		if err := defaults.Set(&cfg.Environments[i]); err != nil {
			return nil, engerrors.NewConfigurationError("config", "defaults", err.Error())
		}
	}

	cfg.applyEnv()
	cfg.finish()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv(EnvAPISecret); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvSymbols); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		c.Engine.Symbols = symbols
	}
}

// finish fills tables that have no tag-expressible default
func (c *Config) finish() {
	if len(c.Environments) == 0 {
		c.Environments = DefaultEnvironments()
	}
	if c.Exposure.Correlations == nil {
		c.Exposure.Correlations = portfolio.DefaultCorrelations()
	}
}

// Validate checks struct tags plus rules that span sections
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return engerrors.NewConfigurationError("config", "validate", err.Error())
	}

	seen := make(map[string]bool, len(c.Environments))
	found := false
	for _, env := range c.Environments {
		if seen[env.Name] {
			return engerrors.NewConfigurationError("config", "validate", fmt.Sprintf("duplicate environment %q", env.Name))
		}
		seen[env.Name] = true
		if env.Name == c.Engine.Environment {
			found = true
		}
	}
	if !found {
		return engerrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("engine.environment %q is not one of the configured environments", c.Engine.Environment))
	}

	if c.Engine.PoolSize != pool.Size {
		return engerrors.NewConfigurationError("config", "validate", fmt.Sprintf("pool_size must be %d", pool.Size))
	}
	if c.Exchange.Name == "bybit" && !c.Exchange.Demo && !c.Exchange.Testnet {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return engerrors.NewConfigurationError("config", "validate", "mainnet trading requires BYBIT_API_KEY and BYBIT_API_SECRET")
		}
	}
	return nil
}
