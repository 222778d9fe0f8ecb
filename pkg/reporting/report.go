// Package reporting renders population and champion reports to the console
// and to xlsx, csv or json files.
package reporting

import (
	"sort"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	"github.com/ducminhle1904/genome-consensus-bot/internal/population"
	"github.com/ducminhle1904/genome-consensus-bot/internal/portfolio"
)

// AgentRow is one agent in the population table
type AgentRow struct {
	Rank          int     `json:"rank"`
	AgentID       string  `json:"agent_id"`
	GroupID       string  `json:"group_id"`
	Generation    int     `json:"generation"`
	Fitness       float64 `json:"fitness"`
	WinRate       float64 `json:"win_rate"`
	Trades        int     `json:"trades"`
	Bankroll      float64 `json:"bankroll"`
	ROI           float64 `json:"roi"`
	Drawdown      float64 `json:"drawdown"`
	OpenPositions int     `json:"open_positions"`
	Strategies    int     `json:"strategies"`
	Leverage      int     `json:"leverage"`
	TPMultiplier  float64 `json:"tp_multiplier"`
	SLMultiplier  float64 `json:"sl_multiplier"`
	Trailing      float64 `json:"trailing_multiplier"`
}

// GroupRow summarises one group
type GroupRow struct {
	GroupID        string  `json:"group_id"`
	Generation     int     `json:"generation"`
	Agents         int     `json:"agents"`
	AverageFitness float64 `json:"average_fitness"`
	BestFitness    float64 `json:"best_fitness"`
	Deaths         int     `json:"deaths"`
}

// Report is everything -report prints and -export writes
type Report struct {
	Environment string                                `json:"environment"`
	GeneratedAt time.Time                             `json:"generated_at"`
	Groups      []GroupRow                            `json:"groups"`
	Agents      []AgentRow                            `json:"agents"`
	Champions   map[string][]champion.ExecutionConfig `json:"champions"`
	Exposure    *portfolio.Status                     `json:"exposure,omitempty"`
}

// BuildReport ranks agents by fitness and aggregates them per group
func BuildReport(env string, groups []population.Group, agents []*population.Agent,
	champions map[string][]champion.ExecutionConfig, now time.Time) *Report {

	r := &Report{
		Environment: env,
		GeneratedAt: now.UTC(),
		Champions:   champions,
	}
	if r.Champions == nil {
		r.Champions = make(map[string][]champion.ExecutionConfig)
	}

	ranked := append([]*population.Agent(nil), agents...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Fitness != ranked[j].Fitness {
			return ranked[i].Fitness > ranked[j].Fitness
		}
		return ranked[i].ID < ranked[j].ID
	})

	byGroup := make(map[string][]*population.Agent)
	for i, ag := range ranked {
		r.Agents = append(r.Agents, agentRow(i+1, ag))
		byGroup[ag.GroupID] = append(byGroup[ag.GroupID], ag)
	}

	for _, g := range groups {
		row := GroupRow{GroupID: g.ID, Generation: g.Generation, Deaths: g.Deaths}
		members := byGroup[g.ID]
		row.Agents = len(members)
		row.AverageFitness = g.Fitness
		if len(members) > 0 {
			row.BestFitness = members[0].Fitness
		}
		r.Groups = append(r.Groups, row)
	}
	return r
}

func agentRow(rank int, ag *population.Agent) AgentRow {
	row := AgentRow{
		Rank:          rank,
		AgentID:       ag.ID,
		GroupID:       ag.GroupID,
		Fitness:       ag.Fitness,
		WinRate:       ag.WinRate(),
		Trades:        ag.Trades,
		Bankroll:      ag.Bankroll,
		Drawdown:      ag.Drawdown(),
		OpenPositions: len(ag.Positions),
	}
	if ag.InitialBankroll > 0 {
		row.ROI = ag.Bankroll/ag.InitialBankroll - 1
	}
	if g := ag.Genome; g != nil {
		row.Generation = g.Generation
		row.Leverage = g.RiskParams.Leverage
		row.TPMultiplier = g.RiskParams.TPMultiplier
		row.SLMultiplier = g.RiskParams.SLMultiplier
		row.Trailing = g.RiskParams.TrailingMultiplier
		for _, on := range g.StrategyMask {
			if on {
				row.Strategies++
			}
		}
	}
	return row
}

// EnvironmentNames returns the champion environments in name order
func (r *Report) EnvironmentNames() []string {
	names := make([]string, 0, len(r.Champions))
	for name := range r.Champions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
