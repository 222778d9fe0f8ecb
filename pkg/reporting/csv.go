package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// DefaultCSVReporter writes the ranked population as csv
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WritePopulationCSV writes one row per agent, best first
func (c *DefaultCSVReporter) WritePopulationCSV(r *Report, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"Rank", "Agent_ID", "Group", "Generation", "Fitness", "Win_Rate", "Trades",
		"Bankroll_$", "ROI_%", "Drawdown_%", "Open_Positions", "Strategies",
		"Leverage", "TP_Multiplier", "SL_Multiplier", "Trailing_Multiplier",
	}); err != nil {
		return err
	}
	for _, a := range r.Agents {
		if err := w.Write([]string{
			strconv.Itoa(a.Rank),
			a.AgentID,
			a.GroupID,
			strconv.Itoa(a.Generation),
			strconv.FormatFloat(a.Fitness, 'f', 6, 64),
			strconv.FormatFloat(a.WinRate, 'f', 4, 64),
			strconv.Itoa(a.Trades),
			strconv.FormatFloat(a.Bankroll, 'f', 2, 64),
			strconv.FormatFloat(a.ROI*100, 'f', 2, 64),
			strconv.FormatFloat(a.Drawdown*100, 'f', 2, 64),
			strconv.Itoa(a.OpenPositions),
			strconv.Itoa(a.Strategies),
			strconv.Itoa(a.Leverage),
			strconv.FormatFloat(a.TPMultiplier, 'f', 4, 64),
			strconv.FormatFloat(a.SLMultiplier, 'f', 4, 64),
			strconv.FormatFloat(a.Trailing, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
