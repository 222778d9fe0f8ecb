package champion

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
)

var syncTime = time.Date(2024, 8, 2, 9, 30, 0, 0, time.UTC)

func environments() []Environment {
	return []Environment{
		{Name: "paper", Network: NetworkTestnet, TradingType: "futures", TopK: 3, LeverageCap: 50, MinWinRate: 0.6, MinTrades: 10, MinFitness: 0.5},
		{Name: "live", Network: NetworkMainnet, TradingType: "futures", TopK: 3, LeverageCap: 10, MinWinRate: 0.6, MinTrades: 10, MinFitness: 0.5},
	}
}

func candidates() []Candidate {
	rng := rand.New(rand.NewSource(5))
	mk := func(id string, fitness, winRate float64, trades, lev int) Candidate {
		g := genome.Random(30, rng)
		g.RiskParams.Leverage = lev
		return Candidate{AgentID: id, GroupID: "group-1", Genome: g, Fitness: fitness, WinRate: winRate, TotalTrades: trades}
	}
	return []Candidate{
		mk("a", 0.4, 0.9, 50, 3),  // fitness too low for live
		mk("b", 2.0, 0.7, 30, 40), // best, leverage capped
		mk("c", 1.5, 0.5, 30, 8),  // win rate too low for live
		mk("d", 1.0, 0.65, 9, 8),  // too few trades for live
		mk("e", 0.1, 0.1, 1, 2),   // outside top-3
	}
}

func ids(cfgs []ExecutionConfig) []string {
	out := make([]string, len(cfgs))
	for i, c := range cfgs {
		out[i] = c.SourceBot
	}
	return out
}

func newStore(t *testing.T) *storage.FileStore {
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPropagate_RoundTrip(t *testing.T) {
	store := newStore(t)
	p := NewPropagator(environments(), store, logger.Nop()).WithClock(func() time.Time { return syncTime })
	ctx := context.Background()

	written, err := p.Propagate(ctx, candidates())
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "d"}, ids(written["paper"]))
	assert.Equal(t, []string{"b"}, ids(written["live"]))

	for env, want := range written {
		got, err := p.ListChampions(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	live := written["live"][0]
	assert.Equal(t, 10, live.Leverage)
	assert.Equal(t, RiskModerate, live.RiskLevel)
	assert.Equal(t, StatusValidated, live.ValidationStatus)
	assert.Equal(t, "2024-08-02T09:30:00Z", live.SyncedAt)
	assert.Equal(t, "live-champion-1", live.Name)
	assert.True(t, live.IsActive)

	paper := written["paper"][0]
	assert.Equal(t, 40, paper.Leverage)
	assert.Equal(t, RiskAggressive, paper.RiskLevel)
	assert.Equal(t, StatusPending, paper.ValidationStatus)
	assert.NotEqual(t, paper.ID, live.ID)
}

func TestPropagate_DeterministicIDs(t *testing.T) {
	cands := candidates()
	env := environments()[0]
	a := Build(env, cands[1], 0, syncTime)
	b := Build(env, cands[1], 0, syncTime)
	assert.Equal(t, a, b)
}

type failingStore struct {
	storage.Store
	fail bool
}

func (s *failingStore) SaveData(ctx context.Context, key string, value []byte) error {
	if s.fail {
		return errors.New("write failed")
	}
	return s.Store.SaveData(ctx, key, value)
}

func TestPropagate_FailureKeepsPriorChampions(t *testing.T) {
	store := &failingStore{Store: newStore(t)}
	p := NewPropagator(environments(), store, logger.Nop()).WithClock(func() time.Time { return syncTime })
	ctx := context.Background()

	first, err := p.Propagate(ctx, candidates())
	require.NoError(t, err)

	store.fail = true
	better := candidates()
	better[0].Fitness = 9
	_, err = p.Propagate(ctx, better)
	require.Error(t, err)
	assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryPersistence))

	got, err := p.ListChampions(ctx, "paper")
	require.NoError(t, err)
	assert.Equal(t, first["paper"], got)
}

func TestListChampions_NeverSynced(t *testing.T) {
	got, err := ListChampions(context.Background(), newStore(t), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnvironment_Accepts(t *testing.T) {
	live := environments()[1]
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"all thresholds met", Candidate{WinRate: 0.6, TotalTrades: 10, Fitness: 0.5}, true},
		{"win rate below", Candidate{WinRate: 0.59, TotalTrades: 10, Fitness: 0.5}, false},
		{"trades below", Candidate{WinRate: 0.6, TotalTrades: 9, Fitness: 0.5}, false},
		{"fitness below", Candidate{WinRate: 0.6, TotalTrades: 10, Fitness: 0.49}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, live.Accepts(tt.c))
		})
	}
	assert.True(t, environments()[0].Accepts(Candidate{}))
}
