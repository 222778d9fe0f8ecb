package population

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/genome-consensus-bot/internal/archive"
	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/types"
)

const strategies = 30

func testArena(t *testing.T, cfg Config) (*Arena, *archive.Memory, *rand.Rand) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	arch := archive.NewMemory(100)
	a := NewArena(cfg, strategies, arch, rng, logger.Nop())
	return a, arch, rng
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Groups = 2
	cfg.AgentsPerGroup = 5
	return cfg
}

func TestNewArena_SeedsGroups(t *testing.T) {
	a, _, _ := testArena(t, smallConfig())

	groups := a.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "group-1", groups[0].ID)
	assert.Equal(t, "group-2", groups[1].ID)

	agents := a.Agents()
	require.Len(t, agents, 10)
	for i, ag := range agents {
		assert.Equal(t, groups[i/5].ID, ag.GroupID)
		assert.Equal(t, groups[i/5].AgentIDs[i%5], ag.ID)
		assert.Equal(t, 1000.0, ag.Bankroll)
		assert.True(t, ag.Alive)
		assert.Equal(t, 0, ag.Genome.Generation)
		require.NoError(t, ag.Genome.Validate(strategies))
	}
}

func TestAgent_RecordTrade(t *testing.T) {
	ag := newAgent("g", genome.Random(strategies, rand.New(rand.NewSource(1))), 1000, time.Now())

	assert.InDelta(t, 0.1, ag.RecordTrade(100), 1e-12)
	assert.InDelta(t, -0.5, ag.RecordTrade(-550), 1e-12)
	ag.RecordTrade(-10)

	assert.Equal(t, 3, ag.Trades)
	assert.Equal(t, 1, ag.Wins)
	assert.Equal(t, 2, ag.Losses)
	assert.Equal(t, 2, ag.ConsecutiveLosses)
	assert.Equal(t, 1100.0, ag.PeakBankroll)
	assert.InDelta(t, 540.0/1100.0, ag.Drawdown(), 1e-12)
	assert.InDelta(t, 1.0/3.0, ag.WinRate(), 1e-12)
	assert.False(t, ag.Dead())

	ag.RecordTrade(-540)
	assert.True(t, ag.Dead())
}

func TestAgent_RecentROI(t *testing.T) {
	ag := &Agent{PnLHistory: []float64{0.5, 0.1, -0.1}}
	assert.InDelta(t, 1.1*0.9-1, ag.RecentROI(2), 1e-12)
	assert.InDelta(t, 1.5*1.1*0.9-1, ag.RecentROI(0), 1e-12)
}

func TestPosition_PnL(t *testing.T) {
	long := &Position{Side: types.SideLong, Quantity: 2, EntryPrice: 100}
	short := &Position{Side: types.SideShort, Quantity: 2, EntryPrice: 100}
	assert.Equal(t, 20.0, long.PnL(110))
	assert.Equal(t, -20.0, short.PnL(110))
	assert.Equal(t, 200.0, long.Notional())
}

func TestHandleDeath_ArchivesAndRespawns(t *testing.T) {
	a, arch, rng := testArena(t, smallConfig())
	ctx := context.Background()

	victim := a.Agents()[2]
	victim.RecordTrade(-1000)
	require.True(t, victim.Dead())

	child, err := a.HandleDeath(ctx, victim.ID, rng)
	require.NoError(t, err)

	assert.NotEqual(t, victim.ID, child.ID)
	assert.Equal(t, victim.GroupID, child.GroupID)
	assert.Equal(t, 1000.0, child.Bankroll)
	assert.Equal(t, 0, child.Trades)
	assert.Equal(t, 1, child.Genome.Generation)
	assert.Len(t, child.Genome.ParentIDs, 2)
	require.NoError(t, child.Genome.Validate(strategies))

	// same slot, old agent gone
	assert.Equal(t, child.ID, a.Groups()[0].AgentIDs[2])
	_, ok := a.Agent(victim.ID)
	assert.False(t, ok)
	assert.Len(t, a.Agents(), 10)

	n, err := arch.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	recs, err := arch.Top(ctx, victim.GroupID, 1)
	require.NoError(t, err)
	assert.Equal(t, victim.ID, recs[0].AgentID)
	assert.Equal(t, archive.ReasonDeath, recs[0].Reason)

	assert.Equal(t, 1, a.Groups()[0].Deaths)

	_, err = a.HandleDeath(ctx, victim.ID, rng)
	assert.Error(t, err)
}

func TestHandleDeath_ArchivesFitnessIncludingFatalTrade(t *testing.T) {
	a, arch, rng := testArena(t, smallConfig())
	ctx := context.Background()

	victim := a.Agents()[1]
	for _, pnl := range []float64{80, -20, 60, -10, 90} {
		victim.RecordTrade(pnl)
	}
	a.RecomputeFitness()
	before := victim.Fitness
	require.Greater(t, before, 0.0)

	victim.RecordTrade(-victim.Bankroll - 1)
	require.True(t, victim.Dead())
	_, err := a.HandleDeath(ctx, victim.ID, rng)
	require.NoError(t, err)

	recs, err := arch.Top(ctx, victim.GroupID, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	want := genome.Fitness(victim.PnLHistory, a.Config().FitnessWindow)
	assert.InDelta(t, want, recs[0].Fitness, 1e-12)
	assert.Less(t, recs[0].Fitness, before)
}

func TestGroups_CarryFitnessAndBankroll(t *testing.T) {
	a, _, _ := testArena(t, smallConfig())
	for i, ag := range a.Agents()[:5] {
		ag.Fitness = float64(i)
	}
	a.Agents()[4].Bankroll = -5

	assert.InDelta(t, 2.0, a.Groups()[0].Fitness, 1e-12)
	assert.Zero(t, a.Groups()[1].Fitness)
	assert.Equal(t, 4000.0, a.GroupBankroll("group-1"))
	assert.Equal(t, 5000.0, a.GroupBankroll("group-2"))
	assert.Zero(t, a.GroupBankroll("missing"))
}

type failingArchive struct{ archive.Archive }

func (failingArchive) Put(context.Context, archive.Record) error { return errors.New("disk full") }

func TestHandleDeath_ArchiveFailureKeepsAgent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := NewArena(smallConfig(), strategies, failingArchive{archive.NewMemory(10)}, rng, logger.Nop())
	victim := a.Agents()[0]

	_, err := a.HandleDeath(context.Background(), victim.ID, rng)
	require.Error(t, err)

	got, ok := a.Agent(victim.ID)
	require.True(t, ok)
	assert.True(t, got.Alive)
}

func TestShouldBreed(t *testing.T) {
	cfg := smallConfig()
	cfg.DeathQuota = 2
	a, _, rng := testArena(t, cfg)
	start := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	now := start
	a.WithClock(func() time.Time { return now })

	_, err := a.Breed(context.Background(), "group-1", rng)
	require.NoError(t, err)
	assert.False(t, a.ShouldBreed("group-1", time.Hour))

	// a timer tick may land a little short of a full interval after the stamp
	now = start.Add(53 * time.Minute)
	assert.False(t, a.ShouldBreed("group-1", time.Hour))
	now = start.Add(time.Hour - time.Second)
	assert.True(t, a.ShouldBreed("group-1", time.Hour))

	now = start.Add(time.Hour)
	assert.True(t, a.ShouldBreed("group-1", time.Hour))
	assert.False(t, a.ShouldBreed("group-1", 0))

	for _, id := range a.Groups()[0].AgentIDs[:2] {
		_, err := a.HandleDeath(context.Background(), id, rng)
		require.NoError(t, err)
	}
	assert.True(t, a.ShouldBreed("group-1", 0))
	assert.False(t, a.ShouldBreed("missing", 0))
}

func TestBreed_CullsBottomAndAdvancesGeneration(t *testing.T) {
	cfg := smallConfig()
	cfg.AgentsPerGroup = 10
	cfg.ReplaceFraction = 0.2
	cfg.MinTradesForCull = 5
	a, arch, rng := testArena(t, cfg)
	ctx := context.Background()

	ids := a.Groups()[0].AgentIDs
	for i, id := range ids {
		ag, _ := a.Agent(id)
		ag.Fitness = float64(i)
		ag.Trades = 10
	}
	// the worst agent is too young to cull, so the next two go
	worst, _ := a.Agent(ids[0])
	worst.Trades = 1

	res, err := a.Breed(ctx, "group-1", rng)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Generation)
	assert.Equal(t, []string{ids[1], ids[2]}, res.Culled)
	require.Len(t, res.Born, 2)

	g := a.Groups()[0]
	assert.Equal(t, 1, g.Generation)
	assert.Equal(t, 0, g.Deaths)
	assert.Equal(t, ids[0], g.AgentIDs[0])
	assert.Equal(t, res.Born[0], g.AgentIDs[1])
	assert.Equal(t, res.Born[1], g.AgentIDs[2])

	for _, id := range res.Born {
		child, ok := a.Agent(id)
		require.True(t, ok)
		require.NoError(t, child.Genome.Validate(strategies))
		for _, w := range child.Genome.StrategyWeights {
			assert.GreaterOrEqual(t, w, genome.MinWeight)
			assert.LessOrEqual(t, w, genome.MaxWeight)
		}
		assert.Equal(t, 1, child.Genome.Generation)
		assert.Equal(t, 1000.0, child.Bankroll)
	}

	n, err := arch.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// other group untouched
	assert.Equal(t, 0, a.Groups()[1].Generation)
}

func TestBreed_UnknownGroup(t *testing.T) {
	a, _, rng := testArena(t, smallConfig())
	_, err := a.Breed(context.Background(), "nope", rng)
	assert.Error(t, err)
}

func TestMigrate_CopiesBestIntoWorstGroup(t *testing.T) {
	a, _, _ := testArena(t, smallConfig())
	groups := a.Groups()

	for i, id := range groups[0].AgentIDs {
		ag, _ := a.Agent(id)
		ag.Fitness = 1 + float64(i)
	}
	for i, id := range groups[1].AgentIDs {
		ag, _ := a.Agent(id)
		ag.Fitness = -1 - float64(i)
	}
	donor, _ := a.Agent(groups[0].AgentIDs[4])
	victimID := groups[1].AgentIDs[4]

	migrant, err := a.Migrate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, migrant)

	assert.Equal(t, "group-2", migrant.GroupID)
	assert.Equal(t, []string{donor.Genome.ID}, migrant.Genome.ParentIDs)
	assert.Equal(t, donor.Genome.StrategyMask, migrant.Genome.StrategyMask)
	assert.Equal(t, migrant.ID, a.Groups()[1].AgentIDs[4])
	_, ok := a.Agent(victimID)
	assert.False(t, ok)
}

func TestMigrate_SkipsVictimsWithOpenPositions(t *testing.T) {
	a, _, _ := testArena(t, smallConfig())
	groups := a.Groups()
	for i, id := range groups[0].AgentIDs {
		ag, _ := a.Agent(id)
		ag.Fitness = 1 + float64(i)
	}
	for i, id := range groups[1].AgentIDs {
		ag, _ := a.Agent(id)
		ag.Fitness = -1 - float64(i)
	}
	worst, _ := a.Agent(groups[1].AgentIDs[4])
	worst.Positions["BTCUSDT"] = &Position{ID: "p1", Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 1, EntryPrice: 100}

	migrant, err := a.Migrate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, migrant)
	assert.Equal(t, migrant.ID, a.Groups()[1].AgentIDs[3])
	_, ok := a.Agent(worst.ID)
	assert.True(t, ok)
}

func TestMigrate_Disabled(t *testing.T) {
	cfg := smallConfig()
	cfg.Migration = false
	a, _, _ := testArena(t, cfg)
	m, err := a.Migrate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSnapshotRestore(t *testing.T) {
	a, _, rng := testArena(t, smallConfig())
	ag := a.Agents()[3]
	ag.RecordTrade(25)
	ag.Positions["BTCUSDT"] = &Position{ID: "p1", Symbol: "BTCUSDT", Side: types.SideLong, Quantity: 0.1, EntryPrice: 60000, Contributing: []int{1, 4}}
	_, err := a.Breed(context.Background(), "group-2", rng)
	require.NoError(t, err)

	data, err := a.Snapshot()
	require.NoError(t, err)

	b := NewArena(smallConfig(), strategies, nil, rand.New(rand.NewSource(99)), logger.Nop())
	require.NoError(t, b.Restore(data))

	assert.Equal(t, a.Groups()[0].AgentIDs, b.Groups()[0].AgentIDs)
	assert.Equal(t, 1, b.Groups()[1].Generation)

	got, ok := b.Agent(ag.ID)
	require.True(t, ok)
	assert.Equal(t, 1025.0, got.Bankroll)
	assert.Equal(t, []string{"BTCUSDT"}, got.OpenSymbols())
	assert.Equal(t, []int{1, 4}, got.Positions["BTCUSDT"].Contributing)
	assert.Equal(t, ag.Genome.StrategyWeights, got.Genome.StrategyWeights)
}

func TestRestore_RejectsBrokenSnapshot(t *testing.T) {
	a, _, _ := testArena(t, smallConfig())
	before := a.Groups()

	assert.Error(t, a.Restore([]byte(`{"groups":[]}`)))
	assert.Error(t, a.Restore([]byte(`{"groups":[{"id":"g","agent_ids":["ghost"]}]}`)))
	assert.Error(t, a.Restore([]byte(`not json`)))

	assert.Equal(t, before, a.Groups())
}

func TestStatsAndRanked(t *testing.T) {
	a, _, _ := testArena(t, smallConfig())
	for i, ag := range a.Agents() {
		ag.Fitness = float64(i)
	}
	st := a.Stats()
	assert.Equal(t, 10, st.Agents)
	assert.Equal(t, 9.0, st.BestFitness)
	assert.InDelta(t, 4.5, st.AverageFitness, 1e-12)
	assert.Equal(t, map[string]int{"group-1": 0, "group-2": 0}, st.Generations)

	ranked := a.Ranked()
	assert.Equal(t, 9.0, ranked[0].Fitness)
	assert.Equal(t, 0.0, ranked[9].Fitness)
}
