package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// RetryConfig bounds retries of external calls
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries" default:"3" validate:"min=0"`
	InitialInterval time.Duration `yaml:"initial_interval" default:"500ms"`
	MaxInterval     time.Duration `yaml:"max_interval" default:"5s"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout" default:"10s"`
}

// DefaultRetryConfig returns the standard retry settings
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		AttemptTimeout:  10 * time.Second,
	}
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs fn with exponential backoff. Each attempt gets its own timeout.
// When attempts are exhausted the last error is returned as an external
// service or timeout error.
func Retry[T any](ctx context.Context, cfg RetryConfig, component, operation string, log *logger.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithMaxRetries(exp, uint64(cfg.MaxRetries))
	policy = backoff.WithContext(policy, ctx)

	attempt := func() (T, error) {
		actx := ctx
		if cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
			defer cancel()
		}
		v, err := fn(actx)
		if err != nil {
			var ee *engerrors.EngineError
			if errors.As(err, &ee) && !ee.IsRetryable() {
				return v, backoff.Permanent(err)
			}
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		log.Warning("%s %s failed, retrying in %s: %v", component, operation, wait, err)
	}

	v, err := backoff.RetryNotifyWithData(attempt, policy, notify)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return v, engerrors.NewTimeoutError(component, operation, err)
	}
	return v, engerrors.CategorizeError(err, component, operation)
}

// RetryingMarketData wraps a MarketData with Retry
type RetryingMarketData struct {
	next MarketData
	cfg  RetryConfig
	log  *logger.Logger
}

// WithRetry wraps md so every call is retried per cfg
func WithRetry(md MarketData, cfg RetryConfig, log *logger.Logger) *RetryingMarketData {
	return &RetryingMarketData{next: md, cfg: cfg, log: log.With("market-data")}
}

func (r *RetryingMarketData) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	return Retry(ctx, r.cfg, "market-data", "get_candles "+symbol, r.log, func(ctx context.Context) ([]types.OHLCV, error) {
		return r.next.GetCandles(ctx, symbol, interval, limit)
	})
}

func (r *RetryingMarketData) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return Retry(ctx, r.cfg, "market-data", "get_price "+symbol, r.log, func(ctx context.Context) (float64, error) {
		return r.next.GetCurrentPrice(ctx, symbol)
	})
}
