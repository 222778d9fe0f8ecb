// Package risk turns market and agent state into a bounded position size,
// leverage cap and stop/target distances, and tracks an hourly loss circuit
// breaker per group.
package risk

import (
	"math"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
)

// Config holds the risk manager's tunables. Risk values are percentages of bankroll.
type Config struct {
	BaseRiskPercent float64 `yaml:"base_risk_percent" default:"2" validate:"gt=0"`
	MinRiskPercent  float64 `yaml:"min_risk_percent" default:"0.5" validate:"gt=0"`
	MaxRiskPercent  float64 `yaml:"max_risk_percent" default:"5" validate:"gtefield=MinRiskPercent"`

	LeverageScale float64 `yaml:"leverage_scale" default:"20" validate:"gt=0"`
	MaxLeverage   int     `yaml:"max_leverage" default:"125" validate:"min=1,max=125"`
	// leverage is divided by (1 + volatility × VolatilityDiscount)
	VolatilityDiscount float64 `yaml:"volatility_discount" default:"20" validate:"gte=0"`

	StopLossVolMultiplier float64 `yaml:"stop_loss_vol_multiplier" default:"1.5" validate:"gt=0"`
	MinStopLoss           float64 `yaml:"min_stop_loss" default:"0.005" validate:"gt=0"`
	MaxStopLoss           float64 `yaml:"max_stop_loss" default:"0.1" validate:"gtfield=MinStopLoss"`
	MinRewardRatio        float64 `yaml:"min_reward_ratio" default:"2" validate:"gte=2"`
	// substituted when volatility is missing
	DefaultVolatility float64 `yaml:"default_volatility" default:"0.05" validate:"gt=0"`

	CircuitBreakerThreshold float64 `yaml:"circuit_breaker_threshold" default:"0.05" validate:"gt=0,lte=1"`

	Brackets map[string][]Bracket `yaml:"brackets" validate:"omitempty,dive,dive"`
}

// DefaultConfig returns the standard risk settings
func DefaultConfig() Config {
	return Config{
		BaseRiskPercent:         2,
		MinRiskPercent:          0.5,
		MaxRiskPercent:          5,
		LeverageScale:           20,
		MaxLeverage:             125,
		VolatilityDiscount:      20,
		StopLossVolMultiplier:   1.5,
		MinStopLoss:             0.005,
		MaxStopLoss:             0.1,
		MinRewardRatio:          2,
		DefaultVolatility:       0.05,
		CircuitBreakerThreshold: 0.05,
	}
}

// Factors describe one prospective trade
type Factors struct {
	Volatility        float64 // ATR as a fraction of price
	Confidence        float64 // decision confidence, 0-100
	RecentROI         float64 // trailing-window return as a fraction
	Correlation       float64 // 0-1 against open positions
	Drawdown          float64 // fraction below peak bankroll
	ConsecutiveLosses int
	Bankroll          float64

	// genome genes; zero values fall back to neutral settings
	MaxLeverage  int
	SLMultiplier float64
	TPMultiplier float64
}

// Decision is derived per (agent, cycle)
type Decision struct {
	RiskPercent          float64            `json:"risk_percent"`
	MaxPositionSize      float64            `json:"max_position_size"` // notional
	LeverageLimit        int                `json:"leverage_limit"`
	StopLossDistance     float64            `json:"stop_loss_distance"`   // fraction of entry price
	TakeProfitDistance   float64            `json:"take_profit_distance"` // fraction of entry price
	CircuitBreakerActive bool               `json:"circuit_breaker_active"`
	Adjustments          map[string]float64 `json:"adjustments,omitempty"`
}

// Manager sizes trades. Size never fails; bad inputs get conservative defaults.
type Manager struct {
	cfg         Config
	adjustments []Adjustment
	breaker     *CircuitBreaker
	now         func() time.Time
	log         *logger.Logger
}

// NewManager creates a risk manager
func NewManager(cfg Config, log *logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		adjustments: buildAdjustments(cfg.Brackets),
		breaker:     NewCircuitBreaker(cfg.CircuitBreakerThreshold),
		now:         time.Now,
		log:         log.With("risk"),
	}
}

// WithClock replaces the clock used for circuit breaker hour keys
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Breaker exposes the hourly circuit breaker
func (m *Manager) Breaker() *CircuitBreaker { return m.breaker }

// Size converts factors into a risk decision for an agent in group
func (m *Manager) Size(group string, f Factors) Decision {
	d := Decision{Adjustments: make(map[string]float64, len(m.adjustments))}

	risk := m.cfg.BaseRiskPercent
	for _, adj := range m.adjustments {
		mult := adj.Multiplier(m.factorValue(adj.Name, f))
		d.Adjustments[adj.Name] = mult
		risk *= mult
	}
	risk = clamp(risk, m.cfg.MinRiskPercent, m.cfg.MaxRiskPercent)

	if m.breaker.Check(group, m.now()) {
		d.CircuitBreakerActive = true
		risk = m.cfg.MinRiskPercent * 0.5
	}
	d.RiskPercent = risk

	vol := f.Volatility
	if !finite(vol) || vol <= 0 {
		vol = m.cfg.DefaultVolatility
	}

	d.LeverageLimit = m.leverage(risk, vol, f.MaxLeverage)
	d.StopLossDistance = m.stopLoss(vol, f.SLMultiplier)
	d.TakeProfitDistance = d.StopLossDistance * m.rewardRatio(f.TPMultiplier)

	if finite(f.Bankroll) && f.Bankroll > 0 {
		size := f.Bankroll * risk / 100 / d.StopLossDistance
		d.MaxPositionSize = math.Min(size, f.Bankroll*float64(d.LeverageLimit))
	}
	return d
}

// RecordLoss feeds a realized loss, as a positive fraction of the group's
// capital, into group's breaker
func (m *Manager) RecordLoss(group string, lossFraction float64) bool {
	tripped := m.breaker.RecordLoss(group, lossFraction, m.now())
	if tripped {
		m.log.Warning("circuit breaker tripped for group %s (hour %s)", group, HourKey(m.now()))
	}
	return tripped
}

// CheckCircuitBreaker reports whether group's breaker is active now
func (m *Manager) CheckCircuitBreaker(group string) bool {
	return m.breaker.Check(group, m.now())
}

// HourlyLoss is group's accumulated loss fraction in the current hour
func (m *Manager) HourlyLoss(group string) float64 {
	return m.breaker.Loss(group, m.now())
}

// ResetCircuitBreaker clears group's breaker
func (m *Manager) ResetCircuitBreaker(group string) {
	m.breaker.Reset(group)
	m.log.Info("circuit breaker reset for group %s", group)
}

func (m *Manager) factorValue(name string, f Factors) float64 {
	switch name {
	case AdjVolatility:
		return f.Volatility
	case AdjConfidence:
		return f.Confidence
	case AdjRecentPerformance:
		return f.RecentROI
	case AdjCorrelation:
		return f.Correlation
	case AdjDrawdown:
		return f.Drawdown
	case AdjConsecutiveLosses:
		return float64(f.ConsecutiveLosses)
	default:
		return math.NaN()
	}
}

// leverage is inversely proportional to risk and discounted by volatility
func (m *Manager) leverage(riskPercent, vol float64, genomeCap int) int {
	limit := m.cfg.MaxLeverage
	if genomeCap > 0 && genomeCap < limit {
		limit = genomeCap
	}
	raw := m.cfg.LeverageScale / riskPercent / (1 + vol*m.cfg.VolatilityDiscount)
	lev := int(math.Floor(raw))
	if lev < 1 {
		return 1
	}
	if lev > limit {
		return limit
	}
	return lev
}

func (m *Manager) stopLoss(vol, genomeMult float64) float64 {
	if !finite(genomeMult) || genomeMult <= 0 {
		genomeMult = 1
	}
	return clamp(vol*m.cfg.StopLossVolMultiplier*genomeMult, m.cfg.MinStopLoss, m.cfg.MaxStopLoss)
}

func (m *Manager) rewardRatio(genomeTP float64) float64 {
	if finite(genomeTP) && genomeTP > m.cfg.MinRewardRatio {
		return genomeTP
	}
	return m.cfg.MinRewardRatio
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
