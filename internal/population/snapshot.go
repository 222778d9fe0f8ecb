package population

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the persisted form of an arena
type Snapshot struct {
	Groups  []Group   `json:"groups"`
	Agents  []*Agent  `json:"agents"`
	TakenAt time.Time `json:"taken_at"`
}

// Snapshot serialises groups and live agents
func (a *Arena) Snapshot() ([]byte, error) {
	a.mu.RLock()
	snap := Snapshot{TakenAt: a.now().UTC()}
	for _, g := range a.groups {
		cp := *g
		cp.AgentIDs = append([]string(nil), g.AgentIDs...)
		snap.Groups = append(snap.Groups, cp)
		for _, id := range g.AgentIDs {
			snap.Agents = append(snap.Agents, a.agents[id])
		}
	}
	data, err := json.Marshal(snap)
	a.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("marshal population: %w", err)
	}
	return data, nil
}

// Restore replaces the arena's state with a snapshot. Genomes are clamped and
// validated; the arena is left untouched when the snapshot is inconsistent.
func (a *Arena) Restore(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal population: %w", err)
	}
	if len(snap.Groups) == 0 {
		return fmt.Errorf("population snapshot has no groups")
	}

	agents := make(map[string]*Agent, len(snap.Agents))
	for _, ag := range snap.Agents {
		if ag == nil || ag.Genome == nil {
			return fmt.Errorf("population snapshot has an agent without a genome")
		}
		ag.Genome.Clamp()
		if err := ag.Genome.Validate(a.strategies); err != nil {
			return fmt.Errorf("agent %s: %w", ag.ID, err)
		}
		if ag.Positions == nil {
			ag.Positions = make(map[string]*Position)
		}
		agents[ag.ID] = ag
	}

	groups := make([]*Group, len(snap.Groups))
	for i := range snap.Groups {
		g := snap.Groups[i]
		for _, id := range g.AgentIDs {
			ag, ok := agents[id]
			if !ok {
				return fmt.Errorf("group %s references unknown agent %s", g.ID, id)
			}
			ag.GroupID = g.ID
		}
		groups[i] = &g
	}

	a.mu.Lock()
	a.groups = groups
	a.agents = agents
	a.mu.Unlock()
	return nil
}

// Ranked returns live agents ordered by fitness, highest first
func (a *Arena) Ranked() []*Agent {
	out := a.Agents()
	sortAgents(out)
	return out
}

// Stats summarises the population
type Stats struct {
	Agents         int            `json:"agents"`
	BestFitness    float64        `json:"best_fitness"`
	AverageFitness float64        `json:"average_fitness"`
	Generations    map[string]int `json:"generations"`
	OpenPositions  int            `json:"open_positions"`
}

// Stats computes population-wide figures
func (a *Arena) Stats() Stats {
	agents := a.Agents()
	st := Stats{Agents: len(agents), Generations: make(map[string]int)}
	for _, g := range a.Groups() {
		st.Generations[g.ID] = g.Generation
	}
	if len(agents) == 0 {
		return st
	}
	sum := 0.0
	st.BestFitness = agents[0].Fitness
	for _, ag := range agents {
		sum += ag.Fitness
		if ag.Fitness > st.BestFitness {
			st.BestFitness = ag.Fitness
		}
		st.OpenPositions += len(ag.Positions)
	}
	st.AverageFitness = sum / float64(len(agents))
	return st
}
