// Package bybit adapts the Bybit v5 API to the engine's market-data and
// order interfaces.
package bybit

import (
	"sync"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
)

const demoURL = "https://api-demo.bybit.com"

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // demo trading environment
	Category  string // "linear" for USDT perpetuals
	// RequestsPerSecond caps outgoing API calls; 0 uses DefaultRequestsPerSecond
	RequestsPerSecond int
}

// Client wraps the Bybit API client
type Client struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	demo       bool
	log        *logger.Logger
	limiter    *rateLimiter

	mu          sync.RWMutex
	instruments map[string]*Instrument
	leverage    map[string]int
}

// NewClient creates a new Bybit client
func NewClient(cfg Config, log *logger.Logger) *Client {
	var baseURL string
	switch {
	case cfg.Demo:
		baseURL = demoURL
	case cfg.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}
	if cfg.Category == "" {
		cfg.Category = "linear"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		cfg.APIKey,
		cfg.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient:  httpClient,
		category:    cfg.Category,
		testnet:     cfg.Testnet,
		demo:        cfg.Demo,
		log:         log.With("bybit"),
		limiter:     newRateLimiter(cfg.RequestsPerSecond),
		instruments: make(map[string]*Instrument),
		leverage:    make(map[string]int),
	}
}

// Name identifies the venue
func (c *Client) Name() string {
	return "bybit"
}

// GetEnvironment returns demo, testnet or mainnet
func (c *Client) GetEnvironment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
