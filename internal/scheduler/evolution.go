package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/monitoring"
	"github.com/ducminhle1904/genome-consensus-bot/internal/notifications"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
)

// PopulationKey is the store key of an environment's population snapshot
func PopulationKey(env string) string { return "population:" + env }

// ReliabilityKey is the store key of an environment's reliability table
func ReliabilityKey(env string) string { return "reliability:" + env }

// RunBreeding breeds every group whose interval has elapsed or whose death
// quota is reached, migrates between groups and persists the population.
func (e *Engine) RunBreeding(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.arena.RecomputeFitness()
	bred, err := e.breedDueGroups(ctx, e.cfg.BreedingInterval)
	if err != nil {
		return err
	}
	if bred == 0 {
		e.log.Debug("no group due for breeding")
		return nil
	}

	migrant, err := e.arena.Migrate(ctx)
	if err != nil {
		return engerrors.NewPersistenceError("scheduler", "migrate", err)
	}
	if migrant != nil {
		e.log.Info("migrant %s joined %s", migrant.ID, migrant.GroupID)
	}
	return e.saveStateLocked(ctx)
}

// breedDueGroups breeds the groups ShouldBreed selects; interval 0 only
// honours death quotas. It returns how many groups were bred.
func (e *Engine) breedDueGroups(ctx context.Context, interval time.Duration) (int, error) {
	bred := 0
	for _, g := range e.arena.Groups() {
		if !e.arena.ShouldBreed(g.ID, interval) {
			continue
		}
		res, err := e.arena.Breed(ctx, g.ID, e.rng)
		if err != nil {
			return bred, engerrors.NewPersistenceError("scheduler", "breed", err).WithContext("group", g.ID)
		}
		bred++
		monitoring.SetGeneration(res.GroupID, res.Generation)
		e.log.Info("%s reached generation %d: culled %d, born %d",
			res.GroupID, res.Generation, len(res.Culled), len(res.Born))
	}
	return bred, nil
}

// RunChampionSync promotes the best live agents to every configured environment
func (e *Engine) RunChampionSync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.arena.RecomputeFitness()
	agents := e.arena.Ranked()
	candidates := make([]champion.Candidate, 0, len(agents))
	for _, ag := range agents {
		candidates = append(candidates, champion.Candidate{
			AgentID:     ag.ID,
			GroupID:     ag.GroupID,
			Genome:      ag.Genome,
			Fitness:     ag.Fitness,
			WinRate:     ag.WinRate(),
			TotalTrades: ag.Trades,
		})
	}

	synced, err := e.propagator.Propagate(ctx, candidates)
	for env, champs := range synced {
		monitoring.RecordChampionSync(env, "ok")
		e.log.Info("%s now has %d champions", env, len(champs))
	}
	if err != nil {
		monitoring.RecordChampionSync(e.cfg.Environment, "failed")
		monitoring.RecordError(string(engerrors.ErrorCategoryPersistence))
		e.alert(notifications.LevelError, fmt.Sprintf("champion sync failed: %v", err))
		return err
	}
	e.lastSync = e.now()
	return nil
}

// SaveState persists the population and the reliability table
func (e *Engine) SaveState(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveStateLocked(ctx)
}

func (e *Engine) saveStateLocked(ctx context.Context) error {
	snap, err := e.arena.Snapshot()
	if err != nil {
		return engerrors.NewPersistenceError("scheduler", "save_state", err)
	}
	if err := e.store.SaveData(ctx, PopulationKey(e.cfg.Environment), snap); err != nil {
		return engerrors.NewPersistenceError("scheduler", "save_state", err).WithContext("key", PopulationKey(e.cfg.Environment))
	}
	rel := e.combiner.Reliability().Snapshot()
	if err := storage.SaveJSON(ctx, e.store, ReliabilityKey(e.cfg.Environment), rel); err != nil {
		return engerrors.NewPersistenceError("scheduler", "save_state", err).WithContext("key", ReliabilityKey(e.cfg.Environment))
	}
	e.log.Debug("saved population snapshot (%d bytes)", len(snap))
	return nil
}

// LoadState restores a previously saved population and reliability table.
// A missing snapshot keeps the freshly seeded population. It returns whether
// a population was restored.
func (e *Engine) LoadState(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.store.GetData(ctx, PopulationKey(e.cfg.Environment))
	if errors.Is(err, storage.ErrNotFound) {
		e.log.Info("no saved population for %s, starting fresh", e.cfg.Environment)
		return false, nil
	}
	if err != nil {
		return false, engerrors.NewPersistenceError("scheduler", "load_state", err)
	}
	if err := e.arena.Restore(data); err != nil {
		return false, engerrors.NewPersistenceError("scheduler", "load_state", err)
	}

	var rel map[regime.Regime]map[int]float64
	err = storage.GetJSON(ctx, e.store, ReliabilityKey(e.cfg.Environment), &rel)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return true, engerrors.NewPersistenceError("scheduler", "load_state", err)
	default:
		e.combiner.Reliability().Restore(rel)
	}

	e.rebuildLedger()
	stats := e.arena.Stats()
	e.log.Info("restored %d agents with %d open positions for %s", stats.Agents, stats.OpenPositions, e.cfg.Environment)
	return true, nil
}

// rebuildLedger replaces the ledger contents with the agents' open positions
func (e *Engine) rebuildLedger() {
	for _, p := range e.ledger.Status().Positions {
		e.ledger.Remove(p.ID)
	}
	e.ledger.SetBankroll(e.totalBankroll())
	for _, ag := range e.arena.Agents() {
		for _, symbol := range ag.OpenSymbols() {
			p := ag.Positions[symbol]
			if err := e.ledger.Add(ledgerPosition(p)); err != nil {
				e.log.Warning("restored position %s not tracked: %v", p.ID, err)
			}
		}
	}
}

// MarshalStatus renders Status as indented JSON
func (e *Engine) MarshalStatus() ([]byte, error) {
	return json.MarshalIndent(e.Status(), "", "  ")
}
