package pool

import (
	"fmt"
	"math"

	ind "github.com/ducminhle1904/genome-consensus-bot/internal/indicators"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

// DefaultBank returns the fixed bank of Size strategies. IDs equal slice positions.
func DefaultBank() []Strategy {
	bank := []Strategy{
		maCross("ema_cross_9_21", ind.EMA, 9, 21),
		maCross("ema_cross_12_26", ind.EMA, 12, 26),
		maCross("sma_cross_20_50", ind.SMA, 20, 50),
		maCross("sma_cross_10_30", ind.SMA, 10, 30),
		rsiReversal("rsi_reversal_14", 14, 30, 70),
		rsiReversal("rsi_reversal_7", 7, 25, 75),
		rsiTrend("rsi_trend_21", 21),
		macdCross("macd_cross_12_26_9", 12, 26, 9),
		macdMomentum("macd_hist_momentum_5_35_5", 5, 35, 5),
		bollingerReversion("bollinger_reversion_20_2", 20, 2),
		bollingerBreakout("bollinger_breakout_20_2.5", 20, 2.5),
		stochastic("stochastic_14_3_3", 14, 3, 3),
		stochRSI("stoch_rsi_14_14", 14, 14),
		williamsR("williams_r_14", 14),
		cci("cci_20", 20),
		mfi("mfi_14", 14),
		obvTrend("obv_trend_20", 20),
		donchianBreakout("donchian_breakout_20", 20),
		donchianBreakout("donchian_breakout_55", 55),
		keltnerBreakout("keltner_breakout_20_2", 20, 2),
		superTrend("supertrend_10_3", 10, 3),
		adxDI("adx_di_14", 14, 20),
		rocMomentum("roc_momentum_10", 10, 5),
		rocMomentum("roc_momentum_20", 20, 10),
		hullSlope("hull_slope_16", 16),
		momentum("momentum_10", 10),
		vwapDeviation("vwap_deviation_20", 20),
		ichimokuTK("ichimoku_tk_9_26", 9, 26),
		aroon("aroon_25", 25),
		trix("trix_15", 15),
	}
	for i, s := range bank {
		if fs, ok := s.(*funcStrategy); ok {
			fs.id = i
		}
	}
	if len(bank) != Size {
		panic(fmt.Sprintf("strategy bank has %d entries, want %d", len(bank), Size))
	}
	return bank
}

type maFunc func([]float64, int) ([]float64, error)

func maCross(name string, ma maFunc, fast, slow int) Strategy {
	return &funcStrategy{name: name, minCandles: slow + 2, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		closes := types.Closes(w)
		f, err := ma(closes, fast)
		if err != nil {
			return neutral()
		}
		s, err := ma(closes, slow)
		if err != nil {
			return neutral()
		}
		lf, ls := ind.Last(f), ind.Last(s)
		if anyNaN(lf, ls) || ls == 0 {
			return neutral()
		}
		// full strength at a 2% spread
		return sign((lf-ls)/ls, 0.02)
	}}
}

func rsiReversal(name string, period int, oversold, overbought float64) Strategy {
	return &funcStrategy{name: name, minCandles: period + 2, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		r, err := ind.RSI(types.Closes(w), period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(r)
		switch {
		case anyNaN(v):
			return neutral()
		case v <= oversold:
			return types.DirectionLong, clampStrength(50 + (oversold-v)/oversold*50), nil
		case v >= overbought:
			return types.DirectionShort, clampStrength(50 + (v-overbought)/(100-overbought)*50), nil
		default:
			return neutral()
		}
	}}
}

func rsiTrend(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + 2, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		r, err := ind.RSI(types.Closes(w), period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(r)
		if anyNaN(v) || math.Abs(v-50) < 5 {
			return neutral()
		}
		return sign(v-50, 30)
	}}
}

func macdCross(name string, fast, slow, signal int) Strategy {
	return &funcStrategy{name: name, minCandles: slow + signal + 2, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		closes := types.Closes(w)
		m, err := ind.MACD(closes, fast, slow, signal)
		if err != nil {
			return neutral()
		}
		h := ind.Last(m.Histogram)
		price := types.LastClose(w)
		if anyNaN(h) || price == 0 {
			return neutral()
		}
		return sign(h/price, 0.005)
	}}
}

func macdMomentum(name string, fast, slow, signal int) Strategy {
	return &funcStrategy{name: name, minCandles: slow + signal + 3, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		m, err := ind.MACD(types.Closes(w), fast, slow, signal)
		if err != nil {
			return neutral()
		}
		h, prev := ind.Last(m.Histogram), ind.LastN(m.Histogram, 1)
		price := types.LastClose(w)
		if anyNaN(h, prev) || price == 0 {
			return neutral()
		}
		// histogram must agree in sign and be expanding
		if h > 0 && h > prev {
			return types.DirectionLong, scaled(h/price, 0.005), nil
		}
		if h < 0 && h < prev {
			return types.DirectionShort, scaled(h/price, 0.005), nil
		}
		return neutral()
	}}
}

func bollingerReversion(name string, period int, sd float64) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		b, err := ind.Bollinger(types.Closes(w), period, sd)
		if err != nil {
			return neutral()
		}
		price := types.LastClose(w)
		up, mid, lo := ind.Last(b.Upper), ind.Last(b.Middle), ind.Last(b.Lower)
		if anyNaN(up, mid, lo) || up == lo {
			return neutral()
		}
		half := (up - lo) / 2
		switch {
		case price <= lo:
			return types.DirectionLong, scaled((mid-price)/half, 1.5), nil
		case price >= up:
			return types.DirectionShort, scaled((price-mid)/half, 1.5), nil
		default:
			return neutral()
		}
	}}
}

func bollingerBreakout(name string, period int, sd float64) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		b, err := ind.Bollinger(types.Closes(w), period, sd)
		if err != nil {
			return neutral()
		}
		price := types.LastClose(w)
		up, lo := ind.Last(b.Upper), ind.Last(b.Lower)
		if anyNaN(up, lo) || up == lo {
			return neutral()
		}
		width := up - lo
		switch {
		case price > up:
			return types.DirectionLong, clampStrength(50 + (price-up)/width*200), nil
		case price < lo:
			return types.DirectionShort, clampStrength(50 + (lo-price)/width*200), nil
		default:
			return neutral()
		}
	}}
}

func stochastic(name string, kPeriod, smoothK, dPeriod int) Strategy {
	return &funcStrategy{name: name, minCandles: kPeriod + smoothK + dPeriod, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		k, d, err := ind.Stochastic(w, kPeriod, smoothK, dPeriod)
		if err != nil {
			return neutral()
		}
		kv, dv := ind.Last(k), ind.Last(d)
		switch {
		case anyNaN(kv, dv):
			return neutral()
		case kv < 20 && kv > dv:
			return types.DirectionLong, clampStrength(50 + (20-kv)*2.5), nil
		case kv > 80 && kv < dv:
			return types.DirectionShort, clampStrength(50 + (kv-80)*2.5), nil
		default:
			return neutral()
		}
	}}
}

func stochRSI(name string, rsiPeriod, stochPeriod int) Strategy {
	return &funcStrategy{name: name, minCandles: rsiPeriod + stochPeriod + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		s, err := ind.StochRSI(types.Closes(w), rsiPeriod, stochPeriod)
		if err != nil {
			return neutral()
		}
		v := ind.Last(s)
		switch {
		case anyNaN(v):
			return neutral()
		case v < 20:
			return types.DirectionLong, clampStrength((20 - v) * 5), nil
		case v > 80:
			return types.DirectionShort, clampStrength((v - 80) * 5), nil
		default:
			return neutral()
		}
	}}
}

func williamsR(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		r, err := ind.WilliamsR(w, period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(r)
		switch {
		case anyNaN(v):
			return neutral()
		case v < -80:
			return types.DirectionLong, clampStrength((-80 - v) * 5), nil
		case v > -20:
			return types.DirectionShort, clampStrength((v + 20) * 5), nil
		default:
			return neutral()
		}
	}}
}

func cci(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		c, err := ind.CCI(w, period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(c)
		switch {
		case anyNaN(v):
			return neutral()
		case v < -100:
			return types.DirectionLong, scaled(v+100, 100), nil
		case v > 100:
			return types.DirectionShort, scaled(v-100, 100), nil
		default:
			return neutral()
		}
	}}
}

func mfi(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		m, err := ind.MFI(w, period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(m)
		switch {
		case anyNaN(v):
			return neutral()
		case v < 20:
			return types.DirectionLong, clampStrength((20 - v) * 5), nil
		case v > 80:
			return types.DirectionShort, clampStrength((v - 80) * 5), nil
		default:
			return neutral()
		}
	}}
}

func obvTrend(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		o, err := ind.OBV(w)
		if err != nil {
			return neutral()
		}
		avg, err := ind.SMA(o, period)
		if err != nil {
			return neutral()
		}
		diff := ind.Last(o) - ind.Last(avg)
		vol := 0.0
		for _, c := range w[len(w)-period:] {
			vol += c.Volume
		}
		if anyNaN(diff) || vol == 0 {
			return neutral()
		}
		return sign(diff/vol, 0.5)
	}}
}

func donchianBreakout(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		d, err := ind.Donchian(w, period)
		if err != nil {
			return neutral()
		}
		price := types.LastClose(w)
		up, lo := ind.Last(d.Upper), ind.Last(d.Lower)
		if anyNaN(up, lo) || up == lo {
			return neutral()
		}
		width := up - lo
		switch {
		case price > up:
			return types.DirectionLong, clampStrength(60 + (price-up)/width*400), nil
		case price < lo:
			return types.DirectionShort, clampStrength(60 + (lo-price)/width*400), nil
		default:
			return neutral()
		}
	}}
}

func keltnerBreakout(name string, period int, mult float64) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		k, err := ind.Keltner(w, period, mult)
		if err != nil {
			return neutral()
		}
		price := types.LastClose(w)
		up, lo := ind.Last(k.Upper), ind.Last(k.Lower)
		if anyNaN(up, lo) || up == lo {
			return neutral()
		}
		width := up - lo
		switch {
		case price > up:
			return types.DirectionLong, clampStrength(50 + (price-up)/width*200), nil
		case price < lo:
			return types.DirectionShort, clampStrength(50 + (lo-price)/width*200), nil
		default:
			return neutral()
		}
	}}
}

func superTrend(name string, period int, mult float64) Strategy {
	return &funcStrategy{name: name, minCandles: period + 2, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		line, dir, err := ind.SuperTrend(w, period, mult)
		if err != nil {
			return neutral()
		}
		l := ind.Last(line)
		price := types.LastClose(w)
		if anyNaN(l) || price == 0 {
			return neutral()
		}
		strength := scaled((price-l)/price, 0.03)
		switch dir[len(dir)-1] {
		case 1:
			return types.DirectionLong, strength, nil
		case -1:
			return types.DirectionShort, strength, nil
		default:
			return neutral()
		}
	}}
}

func adxDI(name string, period int, threshold float64) Strategy {
	return &funcStrategy{name: name, minCandles: 2*period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		a, err := ind.ADX(w, period)
		if err != nil {
			return neutral()
		}
		adx, plus, minus := ind.Last(a.ADX), ind.Last(a.PlusDI), ind.Last(a.MinusDI)
		if anyNaN(adx, plus, minus) || adx < threshold {
			return neutral()
		}
		dir, _, err := sign(plus-minus, 1)
		if err != nil {
			return neutral()
		}
		return dir, clampStrength(adx * 2), nil
	}}
}

func rocMomentum(name string, period int, fullPct float64) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		r, err := ind.ROC(types.Closes(w), period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(r)
		if anyNaN(v) {
			return neutral()
		}
		return sign(v, fullPct)
	}}
}

func hullSlope(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + int(math.Sqrt(float64(period))) + 3, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		h, err := ind.HullMA(types.Closes(w), period)
		if err != nil {
			return neutral()
		}
		s := ind.Slope(h, 2)
		return sign(s, 0.01)
	}}
}

func momentum(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		m, err := ind.Momentum(types.Closes(w), period)
		if err != nil {
			return neutral()
		}
		price := types.LastClose(w)
		v := ind.Last(m)
		if anyNaN(v) || price == 0 {
			return neutral()
		}
		return sign(v/price, 0.05)
	}}
}

func vwapDeviation(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		v, err := ind.RollingVWAP(w, period)
		if err != nil {
			return neutral()
		}
		vwap := ind.Last(v)
		price := types.LastClose(w)
		if anyNaN(vwap) || vwap == 0 {
			return neutral()
		}
		// stretched far from VWAP reverts
		dev := (price - vwap) / vwap
		if math.Abs(dev) < 0.01 {
			return neutral()
		}
		return sign(-dev, 0.04)
	}}
}

func ichimokuTK(name string, tenkan, kijun int) Strategy {
	return &funcStrategy{name: name, minCandles: kijun, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		t, err := ind.Midpoint(w, tenkan)
		if err != nil {
			return neutral()
		}
		k, err := ind.Midpoint(w, kijun)
		if err != nil {
			return neutral()
		}
		tv, kv := ind.Last(t), ind.Last(k)
		if anyNaN(tv, kv) || kv == 0 {
			return neutral()
		}
		return sign((tv-kv)/kv, 0.02)
	}}
}

func aroon(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		up, down, err := ind.Aroon(w, period)
		if err != nil {
			return neutral()
		}
		u, d := ind.Last(up), ind.Last(down)
		if anyNaN(u, d) || math.Abs(u-d) < 30 {
			return neutral()
		}
		return sign(u-d, 100)
	}}
}

func trix(name string, period int) Strategy {
	return &funcStrategy{name: name, minCandles: 3*period + 1, eval: func(w []types.OHLCV) (types.Direction, float64, error) {
		t, err := ind.TRIX(types.Closes(w), period)
		if err != nil {
			return neutral()
		}
		v := ind.Last(t)
		if anyNaN(v) {
			return neutral()
		}
		return sign(v, 0.2)
	}}
}
