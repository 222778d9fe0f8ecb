package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// Intervals accepted by the kline endpoint
var validIntervals = map[string]bool{
	"1": true, "3": true, "5": true, "15": true, "30": true,
	"60": true, "120": true, "240": true, "360": true, "720": true,
	"D": true, "W": true, "M": true,
}

type klineResult struct {
	Symbol   string     `json:"symbol"`
	Category string     `json:"category"`
	List     [][]string `json:"list"`
}

type tickerResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
		MarkPrice string `json:"markPrice"`
	} `json:"list"`
}

// GetCandles fetches klines and returns them oldest first
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if !validIntervals[interval] {
		return nil, classify("get_candles", &APIError{Code: 10001, Message: fmt.Sprintf("unsupported interval %q", interval)})
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}
	if err := c.limiter.wait(ctx); err != nil {
		return nil, throttled("get_candles", err)
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, classify("get_candles", err)
	}

	var kr klineResult
	if err := decode(result, &kr); err != nil {
		return nil, classify("get_candles", err)
	}
	return parseKlines(kr.List), nil
}

// parseKlines converts [start, open, high, low, close, volume, turnover] rows.
// Bybit returns newest first.
func parseKlines(rows [][]string) []types.OHLCV {
	out := make([]types.OHLCV, 0, len(rows))
	for _, item := range rows {
		if len(item) < 6 {
			continue
		}
		out = append(out, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])).UTC(),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// GetCurrentPrice returns the last traded price
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}
	if err := c.limiter.wait(ctx); err != nil {
		return 0, throttled("get_price", err)
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, classify("get_price", err)
	}

	var tr tickerResult
	if err := decode(result, &tr); err != nil {
		return 0, classify("get_price", err)
	}
	if len(tr.List) == 0 {
		return 0, classify("get_price", fmt.Errorf("no ticker data for %s", symbol))
	}
	return parseFloat64(tr.List[0].LastPrice), nil
}

func parseFloat64(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt64(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return i
}
