package archive

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
)

func record(rng *rand.Rand, agent, group string, fitness float64, at time.Time) Record {
	return Record{
		AgentID:       agent,
		GroupID:       group,
		Genome:        genome.Random(30, rng),
		Fitness:       fitness,
		Trades:        12,
		Wins:          7,
		Losses:        5,
		FinalBankroll: 0,
		Reason:        ReasonDeath,
		ArchivedAt:    at,
	}
}

func backends(t *testing.T) map[string]Archive {
	sq, err := NewSQLite(filepath.Join(t.TempDir(), "dna.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Archive{"memory": NewMemory(100), "sqlite": sq}
}

func TestArchive_TopAndCount(t *testing.T) {
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rng := rand.New(rand.NewSource(1))
			recs := []Record{
				record(rng, "a1", "g1", 0.5, base),
				record(rng, "a2", "g1", 2.5, base.Add(time.Minute)),
				record(rng, "a3", "g2", 1.5, base.Add(2*time.Minute)),
				record(rng, "a4", "g1", 2.5, base.Add(3*time.Minute)),
			}
			for _, r := range recs {
				require.NoError(t, a.Put(ctx, r))
			}

			n, err := a.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			top, err := a.Top(ctx, "g1", 2)
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, "a2", top[0].AgentID)
			assert.Equal(t, "a4", top[1].AgentID)
			assert.Equal(t, recs[1].Genome, top[0].Genome)
			assert.True(t, recs[1].ArchivedAt.Equal(top[0].ArchivedAt))

			all, err := a.Top(ctx, "", 10)
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, "a1", all[3].AgentID)

			assert.Error(t, a.Put(ctx, Record{AgentID: "nil"}))
		})
	}
}

func TestMemory_CapacityKeepsNewest(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2))
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Put(ctx, record(rng, fmt.Sprintf("a%d", i), "g", float64(i), time.Unix(int64(i), 0))))
	}
	n, _ := m.Count(ctx)
	assert.Equal(t, 3, n)

	top, err := m.Top(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, "a4", top[0].AgentID)
	assert.Equal(t, "a2", top[2].AgentID)
}

func TestMemory_RecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	rec := record(rand.New(rand.NewSource(3)), "a", "g", 1, time.Now())
	m := NewMemory(10)
	require.NoError(t, m.Put(ctx, rec))

	rec.Genome.StrategyWeights[0] = 99
	top, _ := m.Top(ctx, "", 1)
	assert.NotEqual(t, 99.0, top[0].Genome.StrategyWeights[0])
}

func TestOpen(t *testing.T) {
	a, err := Open(Config{Backend: "memory", Capacity: 5})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, a)

	_, err = Open(Config{Backend: "mongo"})
	assert.Error(t, err)
}
