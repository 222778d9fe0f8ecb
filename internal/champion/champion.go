// Package champion selects the best genomes and publishes them as
// environment-specific execution configs.
package champion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
)

// Networks
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
)

// Validation statuses
const (
	StatusValidated = "validated"
	StatusPending   = "pending"
)

// Risk levels
const (
	RiskConservative = "conservative"
	RiskModerate     = "moderate"
	RiskAggressive   = "aggressive"
)

var championNamespace = uuid.MustParse("6f1c3f0e-5b8e-4d0a-9c1e-2f4a7b9d3e51")

// Environment is a deployment target with its own acceptance gate
type Environment struct {
	Name        string  `yaml:"name" validate:"required"`
	Network     string  `yaml:"network" default:"testnet" validate:"oneof=testnet mainnet"`
	TradingType string  `yaml:"trading_type" default:"futures"`
	TopK        int     `yaml:"top_k" default:"5" validate:"min=1"`
	LeverageCap int     `yaml:"leverage_cap" default:"20" validate:"min=1,max=125"`
	MinWinRate  float64 `yaml:"min_win_rate" default:"0.6" validate:"gte=0,lte=1"`
	MinTrades   int     `yaml:"min_trades" default:"10" validate:"min=0"`
	MinFitness  float64 `yaml:"min_fitness" default:"0.5"`
}

// Accepts applies the environment's gate. Testnet accepts every top-K candidate.
func (e Environment) Accepts(c Candidate) bool {
	if e.Network != NetworkMainnet {
		return true
	}
	return c.WinRate >= e.MinWinRate && c.TotalTrades >= e.MinTrades && c.Fitness >= e.MinFitness
}

// Candidate is a live agent offered for promotion
type Candidate struct {
	AgentID     string
	GroupID     string
	Genome      *genome.Genome
	Fitness     float64
	WinRate     float64
	TotalTrades int
}

// ExecutionConfig is the persisted champion record
type ExecutionConfig struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Environment        string  `json:"environment"`
	IsActive           bool    `json:"isActive"`
	TradingType        string  `json:"tradingType"`
	RiskLevel          string  `json:"riskLevel"`
	TPMultiplier       float64 `json:"tpMultiplier"`
	SLMultiplier       float64 `json:"slMultiplier"`
	TrailingMultiplier float64 `json:"trailingMultiplier"`
	Leverage           int     `json:"leverage"`
	SourceBot          string  `json:"sourceBot"`
	SourceGroup        string  `json:"sourceGroup"`
	SourceGeneration   int     `json:"sourceGeneration"`
	Fitness            float64 `json:"fitness"`
	WinRate            float64 `json:"winRate"`
	TotalTrades        int     `json:"totalTrades"`
	ValidationStatus   string  `json:"validationStatus"`
	SyncedAt           string  `json:"syncedAt"`
}

// Document is what gets stored under an environment key
type Document struct {
	Environment string            `json:"environment"`
	SyncedAt    string            `json:"syncedAt"`
	Champions   []ExecutionConfig `json:"champions"`
}

// Key is the store key for an environment's champions
func Key(env string) string {
	return "champions:" + env
}

// Propagator maps top genomes into execution configs per environment
type Propagator struct {
	envs  []Environment
	store storage.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewPropagator creates a propagator writing to store
func NewPropagator(envs []Environment, store storage.Store, log *logger.Logger) *Propagator {
	return &Propagator{envs: envs, store: store, log: log.With("champion"), now: time.Now}
}

// WithClock replaces the propagator's clock
func (p *Propagator) WithClock(now func() time.Time) *Propagator {
	p.now = now
	return p
}

// Environments returns the configured targets
func (p *Propagator) Environments() []Environment {
	return p.envs
}

// Select ranks candidates by fitness and applies env's top-K and gate
func Select(env Environment, candidates []Candidate) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Genome != nil {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Fitness != ranked[j].Fitness {
			return ranked[i].Fitness > ranked[j].Fitness
		}
		return ranked[i].AgentID < ranked[j].AgentID
	})
	if len(ranked) > env.TopK {
		ranked = ranked[:env.TopK]
	}

	out := ranked[:0]
	for _, c := range ranked {
		if env.Accepts(c) {
			out = append(out, c)
		}
	}
	return out
}

// Build maps a candidate onto an execution config for env
func Build(env Environment, c Candidate, rank int, syncedAt time.Time) ExecutionConfig {
	g := c.Genome
	lev := g.RiskParams.Leverage
	if lev > env.LeverageCap {
		lev = env.LeverageCap
	}
	if lev < genome.MinLeverage {
		lev = genome.MinLeverage
	}
	status := StatusPending
	if env.Network == NetworkMainnet {
		status = StatusValidated
	}
	return ExecutionConfig{
		ID:                 uuid.NewSHA1(championNamespace, []byte(env.Name+"/"+g.ID)).String(),
		Name:               fmt.Sprintf("%s-champion-%d", env.Name, rank+1),
		Environment:        env.Name,
		IsActive:           true,
		TradingType:        env.TradingType,
		RiskLevel:          riskLevel(lev),
		TPMultiplier:       g.RiskParams.TPMultiplier,
		SLMultiplier:       g.RiskParams.SLMultiplier,
		TrailingMultiplier: g.RiskParams.TrailingMultiplier,
		Leverage:           lev,
		SourceBot:          c.AgentID,
		SourceGroup:        c.GroupID,
		SourceGeneration:   g.Generation,
		Fitness:            c.Fitness,
		WinRate:            c.WinRate,
		TotalTrades:        c.TotalTrades,
		ValidationStatus:   status,
		SyncedAt:           syncedAt.UTC().Format(time.RFC3339),
	}
}

func riskLevel(leverage int) string {
	switch {
	case leverage <= 5:
		return RiskConservative
	case leverage <= 20:
		return RiskModerate
	default:
		return RiskAggressive
	}
}

// Propagate writes one document per environment. Each document is built in
// memory and saved in a single store write, so a failed write leaves the
// previous champions in place. The first failure aborts and is returned as a
// persistence error; environments already written stay written.
func (p *Propagator) Propagate(ctx context.Context, candidates []Candidate) (map[string][]ExecutionConfig, error) {
	syncedAt := p.now()
	out := make(map[string][]ExecutionConfig, len(p.envs))

	for _, env := range p.envs {
		selected := Select(env, candidates)
		doc := Document{
			Environment: env.Name,
			SyncedAt:    syncedAt.UTC().Format(time.RFC3339),
			Champions:   make([]ExecutionConfig, 0, len(selected)),
		}
		for i, c := range selected {
			doc.Champions = append(doc.Champions, Build(env, c, i, syncedAt))
		}

		if err := storage.SaveJSON(ctx, p.store, Key(env.Name), doc); err != nil {
			return out, engerrors.NewPersistenceError("champion", "propagate", err).
				WithContext("environment", env.Name)
		}
		out[env.Name] = doc.Champions
		p.log.Info("propagated %d/%d champions to %s", len(doc.Champions), len(candidates), env.Name)
	}
	return out, nil
}

// ListChampions reads an environment's current champions. A never-synced
// environment has none.
func (p *Propagator) ListChampions(ctx context.Context, env string) ([]ExecutionConfig, error) {
	return ListChampions(ctx, p.store, env)
}

// ListChampions reads env's champions from store
func ListChampions(ctx context.Context, store storage.Store, env string) ([]ExecutionConfig, error) {
	var doc Document
	if err := storage.GetJSON(ctx, store, Key(env), &doc); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, engerrors.NewPersistenceError("champion", "list", err)
	}
	return doc.Champions, nil
}
