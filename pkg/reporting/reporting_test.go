package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/population"
)

var reportTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	cfg := population.DefaultConfig()
	cfg.Groups = 2
	cfg.AgentsPerGroup = 3
	arena := population.NewArena(cfg, 30, nil, rand.New(rand.NewSource(5)), logger.Nop())

	agents := arena.Agents()
	for i, ag := range agents {
		ag.Fitness = float64(i) / 10
		ag.RecordTrade(float64(10 * (i - 2)))
	}

	champs := map[string][]champion.ExecutionConfig{
		"paper": {{ID: "c1", Name: "paper-champion-1", Environment: "paper", SourceBot: agents[5].ID,
			Leverage: 10, RiskLevel: champion.RiskModerate, Fitness: 0.5, ValidationStatus: champion.StatusPending}},
		"live": {},
	}
	return BuildReport("paper", arena.Groups(), agents, champs, reportTime)
}

func TestBuildReport_RanksAndAggregates(t *testing.T) {
	r := sampleReport(t)

	require.Len(t, r.Agents, 6)
	assert.Equal(t, 1, r.Agents[0].Rank)
	assert.Equal(t, 0.5, r.Agents[0].Fitness)
	assert.Equal(t, 0.0, r.Agents[5].Fitness)
	for i := 1; i < len(r.Agents); i++ {
		assert.GreaterOrEqual(t, r.Agents[i-1].Fitness, r.Agents[i].Fitness)
	}

	require.Len(t, r.Groups, 2)
	assert.Equal(t, 3, r.Groups[0].Agents)
	assert.InDelta(t, 0.1, r.Groups[0].AverageFitness, 1e-9)
	assert.InDelta(t, 0.2, r.Groups[0].BestFitness, 1e-9)
	assert.InDelta(t, 0.5, r.Groups[1].BestFitness, 1e-9)

	assert.Equal(t, []string{"live", "paper"}, r.EnvironmentNames())
	assert.Greater(t, r.Agents[0].Strategies, 0)
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport(t)
	NewDefaultReporter().Print(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "POPULATION paper")
	assert.Contains(t, out, "CHAMPIONS paper")
	assert.Contains(t, out, "CHAMPIONS live")
	assert.Contains(t, out, "paper-champion-1")
	assert.Contains(t, out, shortID(r.Agents[0].AgentID))
}

func TestExport_XLSX(t *testing.T) {
	r := sampleReport(t)
	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	require.NoError(t, NewDefaultReporter().Export(r, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{sheetGroups, sheetPopulation, sheetChampions}, fx.GetSheetList())

	v, err := fx.GetCellValue(sheetPopulation, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Rank", v)
	v, err = fx.GetCellValue(sheetPopulation, "B2")
	require.NoError(t, err)
	assert.Equal(t, r.Agents[0].AgentID, v)

	rows, err := fx.GetRows(sheetChampions)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "paper-champion-1", rows[1][1])
}

func TestExport_CSV(t *testing.T) {
	r := sampleReport(t)
	path := filepath.Join(t.TempDir(), "population.csv")
	require.NoError(t, NewDefaultReporter().Export(r, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 7)
	assert.Equal(t, "Rank", records[0][0])
	assert.Equal(t, r.Agents[0].AgentID, records[1][1])
}

func TestExport_JSON(t *testing.T) {
	r := sampleReport(t)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, NewDefaultReporter().Export(r, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "paper", got.Environment)
	assert.Len(t, got.Agents, 6)
	assert.Equal(t, "paper-champion-1", got.Champions["paper"][0].Name)
}

func TestExport_UnsupportedFormat(t *testing.T) {
	err := NewDefaultReporter().Export(sampleReport(t), filepath.Join(t.TempDir(), "report.pdf"))
	assert.Error(t, err)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "paper_population_20240301-1230.xlsx"), DefaultOutputPath("Paper", reportTime))
	assert.Equal(t, filepath.Join("results", "unknown_population_20240301-1230.xlsx"), DefaultOutputPath(" ", reportTime))
}
