// Package population owns the agents: stable IDs, group membership,
// deaths, breeding, migration and snapshots.
package population

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/archive"
	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
)

// Config controls population size and evolution
type Config struct {
	Groups           int                   `yaml:"groups" default:"3" validate:"min=1"`
	AgentsPerGroup   int                   `yaml:"agents_per_group" default:"10" validate:"min=2"`
	SeedBankroll     float64               `yaml:"seed_bankroll" default:"1000" validate:"gt=0"`
	Mutation         genome.MutationConfig `yaml:"mutation"`
	TopFraction      float64               `yaml:"top_fraction" default:"0.5" validate:"gt=0,lte=1"`
	ReplaceFraction  float64               `yaml:"replace_fraction" default:"0.2" validate:"gte=0,lt=1"`
	DeathQuota       int                   `yaml:"death_quota" default:"3" validate:"min=1"`
	FitnessWindow    int                   `yaml:"fitness_window" default:"50" validate:"min=2"`
	MinTradesForCull int                   `yaml:"min_trades_for_cull" default:"5" validate:"min=0"`
	ArchiveLookback  int                   `yaml:"archive_lookback" default:"20" validate:"min=0"`
	Migration        bool                  `yaml:"migration" default:"true"`
}

// DefaultConfig returns the standard population settings
func DefaultConfig() Config {
	return Config{
		Groups:           3,
		AgentsPerGroup:   10,
		SeedBankroll:     1000,
		Mutation:         genome.MutationConfig{Probability: 0.1, Sigma: 0.2},
		TopFraction:      0.5,
		ReplaceFraction:  0.2,
		DeathQuota:       3,
		FitnessWindow:    50,
		MinTradesForCull: 5,
		ArchiveLookback:  20,
		Migration:        true,
	}
}

// BreedResult summarises one breeding step
type BreedResult struct {
	GroupID    string   `json:"group_id"`
	Generation int      `json:"generation"`
	Culled     []string `json:"culled"`
	Born       []string `json:"born"`
}

// Arena holds every agent. Agents keep their ID for life; breeding and deaths
// create new entries rather than mutating genomes in place.
type Arena struct {
	cfg        Config
	strategies int
	archive    archive.Archive
	log        *logger.Logger
	now        func() time.Time

	mu     sync.RWMutex
	groups []*Group
	agents map[string]*Agent
}

// NewArena seeds cfg.Groups groups of random generation-0 agents
func NewArena(cfg Config, strategies int, arch archive.Archive, rng *rand.Rand, log *logger.Logger) *Arena {
	if arch == nil {
		arch = archive.NewMemory(0)
	}
	a := &Arena{
		cfg:        cfg,
		strategies: strategies,
		archive:    arch,
		log:        log.With("population"),
		now:        time.Now,
		agents:     make(map[string]*Agent),
	}
	now := a.now()
	for gi := 0; gi < cfg.Groups; gi++ {
		grp := &Group{ID: fmt.Sprintf("group-%d", gi+1), LastBred: now}
		for i := 0; i < cfg.AgentsPerGroup; i++ {
			ag := newAgent(grp.ID, genome.Random(strategies, rng), cfg.SeedBankroll, now)
			a.agents[ag.ID] = ag
			grp.AgentIDs = append(grp.AgentIDs, ag.ID)
		}
		a.groups = append(a.groups, grp)
	}
	return a
}

// WithClock replaces the arena's clock
func (a *Arena) WithClock(now func() time.Time) *Arena {
	a.now = now
	return a
}

// Config returns the arena settings
func (a *Arena) Config() Config { return a.cfg }

// Groups returns copies of the groups in order, each carrying its current group fitness
func (a *Arena) Groups() []Group {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Group, len(a.groups))
	for i, g := range a.groups {
		out[i] = *g
		out[i].AgentIDs = append([]string(nil), g.AgentIDs...)
		out[i].Fitness = a.meanFitnessLocked(g)
	}
	return out
}

// Agents returns live agents in group order then slot order
func (a *Arena) Agents() []*Agent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Agent, 0, len(a.agents))
	for _, g := range a.groups {
		for _, id := range g.AgentIDs {
			if ag := a.agents[id]; ag != nil && ag.Alive {
				out = append(out, ag)
			}
		}
	}
	return out
}

// Agent looks up a live agent
func (a *Arena) Agent(id string) (*Agent, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ag, ok := a.agents[id]
	return ag, ok
}

// RecomputeFitness refreshes every live agent's fitness
func (a *Arena) RecomputeFitness() {
	for _, ag := range a.Agents() {
		ag.UpdateFitness(a.cfg.FitnessWindow)
	}
}

// GroupBankroll is the capital of a group: the sum of its live agents' positive bankrolls
func (a *Arena) GroupBankroll(groupID string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	g := a.groupLocked(groupID)
	if g == nil {
		return 0
	}
	total := 0.0
	for _, id := range g.AgentIDs {
		if ag := a.agents[id]; ag != nil && ag.Alive && ag.Bankroll > 0 {
			total += ag.Bankroll
		}
	}
	return total
}

func (a *Arena) groupLocked(id string) *Group {
	for _, g := range a.groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// a group is due once interval - interval/breedSlack has passed since LastBred
const breedSlack = 10

// ShouldBreed reports whether groupID is due: its death quota is reached or
// interval (less a tenth for timer jitter) has elapsed since it last bred
func (a *Arena) ShouldBreed(groupID string, interval time.Duration) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	g := a.groupLocked(groupID)
	if g == nil {
		return false
	}
	if g.Deaths >= a.cfg.DeathQuota {
		return true
	}
	return interval > 0 && a.now().Sub(g.LastBred) >= interval-interval/breedSlack
}

// HandleDeath archives a dead agent and spawns its replacement in the same slot.
// The replacement is bred from the group's best genomes, live or archived.
func (a *Arena) HandleDeath(ctx context.Context, agentID string, rng *rand.Rand) (*Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dead, ok := a.agents[agentID]
	if !ok || !dead.Alive {
		return nil, fmt.Errorf("agent %s is not alive", agentID)
	}
	g := a.groupLocked(dead.GroupID)
	if g == nil {
		return nil, fmt.Errorf("agent %s has unknown group %s", agentID, dead.GroupID)
	}

	if err := a.retireLocked(ctx, dead, archive.ReasonDeath); err != nil {
		return nil, err
	}
	parents, err := a.parentPoolLocked(ctx, g)
	if err != nil {
		return nil, err
	}
	child := a.spawnLocked(g, dead.ID, a.offspring(parents, rng))
	g.Deaths++
	a.log.Info("agent %s died in %s after %d trades, replaced by %s (gen %d)",
		dead.ID, g.ID, dead.Trades, child.ID, child.Genome.Generation)
	return child, nil
}

// Breed runs one breeding step for groupID: the bottom ReplaceFraction of live
// agents with enough trades are retired and replaced by offspring of the top
// TopFraction of live and archived genomes.
func (a *Arena) Breed(ctx context.Context, groupID string, rng *rand.Rand) (*BreedResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	g := a.groupLocked(groupID)
	if g == nil {
		return nil, fmt.Errorf("unknown group %s", groupID)
	}

	parents, err := a.parentPoolLocked(ctx, g)
	if err != nil {
		return nil, err
	}

	res := &BreedResult{GroupID: g.ID}
	for _, victim := range a.cullCandidatesLocked(g) {
		if err := a.retireLocked(ctx, victim, archive.ReasonCull); err != nil {
			return nil, err
		}
		child := a.spawnLocked(g, victim.ID, a.offspring(parents, rng))
		res.Culled = append(res.Culled, victim.ID)
		res.Born = append(res.Born, child.ID)
	}

	g.Generation++
	g.Deaths = 0
	g.LastBred = a.now()
	res.Generation = g.Generation
	a.log.Info("bred %s: generation %d, culled %d", g.ID, g.Generation, len(res.Culled))
	return res, nil
}

// Migrate clones the best genome of the best group into the worst group,
// replacing that group's worst agent without open positions. It returns the
// new agent, or nil when there is nothing to migrate.
func (a *Arena) Migrate(ctx context.Context) (*Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.cfg.Migration || len(a.groups) < 2 {
		return nil, nil
	}
	best, worst := a.groups[0], a.groups[0]
	bestFit, worstFit := math.Inf(-1), math.Inf(1)
	for _, g := range a.groups {
		f := a.meanFitnessLocked(g)
		if f > bestFit {
			best, bestFit = g, f
		}
		if f < worstFit {
			worst, worstFit = g, f
		}
	}
	if best == worst {
		return nil, nil
	}

	donor := a.rankedLocked(best)[0]
	var victim *Agent
	ranked := a.rankedLocked(worst)
	for i := len(ranked) - 1; i >= 0; i-- {
		if len(ranked[i].Positions) == 0 {
			victim = ranked[i]
			break
		}
	}
	if victim == nil || donor.Fitness <= victim.Fitness {
		return nil, nil
	}

	if err := a.retireLocked(ctx, victim, archive.ReasonCull); err != nil {
		return nil, err
	}
	migrant := a.spawnLocked(worst, victim.ID, genome.CloneAsChild(donor.Genome))
	a.log.Info("migrated genome %s from %s to %s as %s", donor.Genome.ID, best.ID, worst.ID, migrant.ID)
	return migrant, nil
}

func (a *Arena) meanFitnessLocked(g *Group) float64 {
	if len(g.AgentIDs) == 0 {
		return 0
	}
	sum := 0.0
	for _, id := range g.AgentIDs {
		sum += a.agents[id].Fitness
	}
	return sum / float64(len(g.AgentIDs))
}

// rankedLocked returns a group's agents by fitness desc, ties by slot order
func (a *Arena) rankedLocked(g *Group) []*Agent {
	out := make([]*Agent, 0, len(g.AgentIDs))
	for _, id := range g.AgentIDs {
		out = append(out, a.agents[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Fitness > out[j].Fitness })
	return out
}

func (a *Arena) cullCandidatesLocked(g *Group) []*Agent {
	n := int(math.Floor(float64(len(g.AgentIDs)) * a.cfg.ReplaceFraction))
	if n == 0 {
		return nil
	}
	ranked := a.rankedLocked(g)
	var out []*Agent
	for i := len(ranked) - 1; i >= 0 && len(out) < n; i-- {
		if ranked[i].Trades >= a.cfg.MinTradesForCull && len(ranked[i].Positions) == 0 {
			out = append(out, ranked[i])
		}
	}
	return out
}

type candidate struct {
	genome  *genome.Genome
	fitness float64
}

// parentPoolLocked ranks live and archived genomes of g and keeps the top fraction
func (a *Arena) parentPoolLocked(ctx context.Context, g *Group) ([]candidate, error) {
	var pool []candidate
	for _, id := range g.AgentIDs {
		ag := a.agents[id]
		if ag == nil || !ag.Alive {
			continue
		}
		pool = append(pool, candidate{genome: ag.Genome, fitness: ag.Fitness})
	}
	if a.cfg.ArchiveLookback > 0 {
		recs, err := a.archive.Top(ctx, g.ID, a.cfg.ArchiveLookback)
		if err != nil {
			return nil, fmt.Errorf("read dna archive: %w", err)
		}
		for _, r := range recs {
			pool = append(pool, candidate{genome: r.Genome, fitness: r.Fitness})
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].fitness > pool[j].fitness })

	keep := int(math.Ceil(float64(len(pool)) * a.cfg.TopFraction))
	if keep < 2 {
		keep = 2
	}
	if keep > len(pool) {
		keep = len(pool)
	}
	return pool[:keep], nil
}

// offspring picks two parents fitness-proportionally and breeds a mutated child
func (a *Arena) offspring(parents []candidate, rng *rand.Rand) *genome.Genome {
	if len(parents) == 0 {
		return genome.Random(a.strategies, rng)
	}
	if len(parents) == 1 {
		child := genome.CloneAsChild(parents[0].genome)
		child.Generation++
		genome.Mutate(child, a.cfg.Mutation, rng)
		return child
	}
	i := selectProportional(parents, rng, -1)
	j := selectProportional(parents, rng, i)
	return genome.Offspring(parents[i].genome, parents[j].genome, a.cfg.Mutation, rng)
}

// selectProportional draws an index with probability proportional to
// fitness shifted so the weakest candidate still has a small chance
func selectProportional(pool []candidate, rng *rand.Rand, exclude int) int {
	const epsilon = 1e-6
	minFit := math.Inf(1)
	for _, c := range pool {
		if c.fitness < minFit {
			minFit = c.fitness
		}
	}
	total := 0.0
	weights := make([]float64, len(pool))
	for i, c := range pool {
		if i == exclude {
			continue
		}
		weights[i] = c.fitness - minFit + epsilon
		total += weights[i]
	}
	r := rng.Float64() * total
	last := -1
	for i, w := range weights {
		if i == exclude {
			continue
		}
		last = i
		if r < w {
			return i
		}
		r -= w
	}
	return last
}

// retireLocked archives ag with a fitness that includes its latest trade
func (a *Arena) retireLocked(ctx context.Context, ag *Agent, reason string) error {
	ag.UpdateFitness(a.cfg.FitnessWindow)
	ag.Alive = false
	rec := archive.Record{
		AgentID:       ag.ID,
		GroupID:       ag.GroupID,
		Genome:        ag.Genome,
		Fitness:       ag.Fitness,
		Trades:        ag.Trades,
		Wins:          ag.Wins,
		Losses:        ag.Losses,
		FinalBankroll: ag.Bankroll,
		Reason:        reason,
		ArchivedAt:    a.now().UTC(),
	}
	if err := a.archive.Put(ctx, rec); err != nil {
		ag.Alive = true
		return fmt.Errorf("archive agent %s: %w", ag.ID, err)
	}
	return nil
}

// spawnLocked puts a new agent into the slot previously held by replacedID
func (a *Arena) spawnLocked(g *Group, replacedID string, gen *genome.Genome) *Agent {
	child := newAgent(g.ID, gen, a.cfg.SeedBankroll, a.now())
	delete(a.agents, replacedID)
	a.agents[child.ID] = child
	for i, id := range g.AgentIDs {
		if id == replacedID {
			g.AgentIDs[i] = child.ID
			return child
		}
	}
	g.AgentIDs = append(g.AgentIDs, child.ID)
	return child
}

func sortStrings(s []string) { sort.Strings(s) }

// sortAgents orders by fitness desc, then by ID
func sortAgents(agents []*Agent) {
	sort.SliceStable(agents, func(i, j int) bool {
		if agents[i].Fitness != agents[j].Fitness {
			return agents[i].Fitness > agents[j].Fitness
		}
		return agents[i].ID < agents[j].ID
	})
}
