package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, AttemptTimeout: 50 * time.Millisecond}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls int32
	v, err := Retry(context.Background(), fastRetry(), "test", "op", logger.Nop(), func(context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(3), calls)
}

func TestRetry_ExhaustedIsExternalServiceError(t *testing.T) {
	var calls int32
	_, err := Retry(context.Background(), fastRetry(), "test", "op", logger.Nop(), func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("bad gateway")
	})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls)
	assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryExternalService))
}

func TestRetry_AttemptTimeout(t *testing.T) {
	_, err := Retry(context.Background(), fastRetry(), "test", "op", logger.Nop(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryTimeout))
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	var calls int32
	_, err := Retry(context.Background(), fastRetry(), "test", "op", logger.Nop(), func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, engerrors.NewValidationError("venue", "order", "bad symbol")
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls)
	assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryValidation))
}

type flakyMarket struct {
	fails int32
	calls int32
}

func (f *flakyMarket) GetCandles(_ context.Context, symbol, _ string, limit int) ([]types.OHLCV, error) {
	if atomic.AddInt32(&f.calls, 1) <= f.fails {
		return nil, errors.New("503")
	}
	return make([]types.OHLCV, limit), nil
}

func (f *flakyMarket) GetCurrentPrice(context.Context, string) (float64, error) {
	if atomic.AddInt32(&f.calls, 1) <= f.fails {
		return 0, errors.New("503")
	}
	return 100, nil
}

func TestRetryingMarketData(t *testing.T) {
	md := WithRetry(&flakyMarket{fails: 1}, fastRetry(), logger.Nop())
	candles, err := md.GetCandles(context.Background(), "BTCUSDT", "5", 10)
	require.NoError(t, err)
	assert.Len(t, candles, 10)

	md = WithRetry(&flakyMarket{fails: 10}, fastRetry(), logger.Nop())
	_, err = md.GetCurrentPrice(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}

func TestPaperExecutor_Slippage(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{SlippageBps: 10}, nil, logger.Nop())
	ctx := context.Background()

	res, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 1, Price: 1000})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.OrderID)
	assert.InDelta(t, 1001, res.FillPrice, 1e-9)

	res, err = p.ClosePosition(ctx, CloseRequest{Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 1, Price: 1000})
	require.NoError(t, err)
	assert.InDelta(t, 999, res.FillPrice, 1e-9)

	res, err = p.PlaceOrder(ctx, OrderRequest{Symbol: "ETHUSDT", Side: types.SideShort, Quantity: 1, Price: 1000})
	require.NoError(t, err)
	assert.InDelta(t, 999, res.FillPrice, 1e-9)

	assert.Len(t, p.Fills(), 3)
}

func TestPaperExecutor_RejectsAndLooksUpPrice(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{}, &flakyMarket{}, logger.Nop())
	ctx := context.Background()

	res, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 0})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	res, err = p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.FillPrice)

	noPrices := NewPaperExecutor(PaperConfig{}, nil, logger.Nop())
	_, err = noPrices.ClosePosition(ctx, CloseRequest{Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 1})
	assert.Error(t, err)
}
