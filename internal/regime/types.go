package regime

// Regime is a coarse market state. Strategy reliability is tracked separately per regime.
type Regime string

const (
	TrendingBull Regime = "TRENDING_BULL"
	TrendingBear Regime = "TRENDING_BEAR"
	Ranging      Regime = "RANGING"
	Volatile     Regime = "VOLATILE"
	Calm         Regime = "CALM"
)

// Default is used when a window is too short to classify
const Default = Ranging

// All lists every regime in a stable order
func All() []Regime {
	return []Regime{TrendingBull, TrendingBear, Ranging, Volatile, Calm}
}

// Valid reports whether r is a known regime
func (r Regime) Valid() bool {
	for _, known := range All() {
		if r == known {
			return true
		}
	}
	return false
}

func (r Regime) String() string { return string(r) }

// Metrics are the inputs a classification was based on
type Metrics struct {
	ADX        float64 `json:"adx"`
	PlusDI     float64 `json:"plus_di"`
	MinusDI    float64 `json:"minus_di"`
	EMASlope   float64 `json:"ema_slope"`    // relative change of the trend EMA over SlopeLookback
	EMADist    float64 `json:"ema_distance"` // (close - EMA) / EMA
	ATRPercent float64 `json:"atr_percent"`  // ATR as a fraction of price
}

// Config holds classification thresholds
type Config struct {
	ADXPeriod         int     `yaml:"adx_period" default:"14" validate:"min=2"`
	ADXTrendThreshold float64 `yaml:"adx_trend_threshold" default:"25" validate:"gt=0"`
	EMAPeriod         int     `yaml:"ema_period" default:"50" validate:"min=2"`
	SlopeLookback     int     `yaml:"slope_lookback" default:"10" validate:"min=1"`
	ATRPeriod         int     `yaml:"atr_period" default:"14" validate:"min=2"`
	VolatileATR       float64 `yaml:"volatile_atr" default:"0.04" validate:"gt=0"`
	CalmATR           float64 `yaml:"calm_atr" default:"0.008" validate:"gt=0,ltfield=VolatileATR"`
	ConfirmationBars  int     `yaml:"confirmation_bars" default:"2" validate:"min=1"`
}

// DefaultConfig returns the thresholds used when none are configured
func DefaultConfig() Config {
	return Config{
		ADXPeriod:         14,
		ADXTrendThreshold: 25,
		EMAPeriod:         50,
		SlopeLookback:     10,
		ATRPeriod:         14,
		VolatileATR:       0.04,
		CalmATR:           0.008,
		ConfirmationBars:  2,
	}
}
