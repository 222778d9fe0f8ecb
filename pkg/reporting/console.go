package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultConsoleReporter prints reports as tables
type DefaultConsoleReporter struct {
	// MaxAgents limits the population table; 0 prints every agent
	MaxAgents int
}

// NewDefaultConsoleReporter creates a console reporter showing the top 20 agents
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{MaxAgents: 20}
}

// Write renders the group summary, the population ranking and every
// environment's champions to w
func (c *DefaultConsoleReporter) Write(w io.Writer, r *Report) {
	c.writeGroups(w, r)
	c.writeAgents(w, r)
	for _, env := range r.EnvironmentNames() {
		c.writeChampions(w, env, r)
	}
	if r.Exposure != nil {
		c.writeExposure(w, r)
	}
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func (c *DefaultConsoleReporter) writeGroups(w io.Writer, r *Report) {
	t := newTable(w, fmt.Sprintf("POPULATION %s (%s)", r.Environment, r.GeneratedAt.Format("2006-01-02 15:04 MST")))
	t.AppendHeader(table.Row{"Group", "Generation", "Agents", "Avg Fitness", "Best Fitness", "Deaths"})
	for _, g := range r.Groups {
		t.AppendRow(table.Row{g.GroupID, g.Generation, g.Agents,
			fmt.Sprintf("%.4f", g.AverageFitness), fmt.Sprintf("%.4f", g.BestFitness), g.Deaths})
	}
	t.Render()
}

func (c *DefaultConsoleReporter) writeAgents(w io.Writer, r *Report) {
	t := newTable(w, "TOP AGENTS")
	t.AppendHeader(table.Row{"#", "Agent", "Group", "Gen", "Fitness", "Win %", "Trades", "Bankroll", "ROI %", "DD %", "Open", "Lev"})
	rows := r.Agents
	if c.MaxAgents > 0 && len(rows) > c.MaxAgents {
		rows = rows[:c.MaxAgents]
	}
	for _, a := range rows {
		t.AppendRow(table.Row{
			a.Rank, shortID(a.AgentID), a.GroupID, a.Generation,
			fmt.Sprintf("%.4f", a.Fitness),
			fmt.Sprintf("%.1f", a.WinRate*100),
			a.Trades,
			fmt.Sprintf("$%.2f", a.Bankroll),
			fmt.Sprintf("%+.2f", a.ROI*100),
			fmt.Sprintf("%.2f", a.Drawdown*100),
			a.OpenPositions,
			fmt.Sprintf("%dx", a.Leverage),
		})
	}
	if len(rows) < len(r.Agents) {
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d more", len(r.Agents)-len(rows))})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

func (c *DefaultConsoleReporter) writeChampions(w io.Writer, env string, r *Report) {
	t := newTable(w, "CHAMPIONS "+env)
	t.AppendHeader(table.Row{"Name", "Source", "Gen", "Risk", "Lev", "TP x", "SL x", "Trail x", "Fitness", "Win %", "Trades", "Status"})
	champs := r.Champions[env]
	for _, ch := range champs {
		t.AppendRow(table.Row{
			ch.Name, shortID(ch.SourceBot), ch.SourceGeneration, ch.RiskLevel,
			fmt.Sprintf("%dx", ch.Leverage),
			fmt.Sprintf("%.2f", ch.TPMultiplier),
			fmt.Sprintf("%.2f", ch.SLMultiplier),
			fmt.Sprintf("%.2f", ch.TrailingMultiplier),
			fmt.Sprintf("%.4f", ch.Fitness),
			fmt.Sprintf("%.1f", ch.WinRate*100),
			ch.TotalTrades,
			ch.ValidationStatus,
		})
	}
	if len(champs) == 0 {
		t.AppendRow(table.Row{"none"})
	}
	t.Render()
}

func (c *DefaultConsoleReporter) writeExposure(w io.Writer, r *Report) {
	ex := r.Exposure
	t := newTable(w, "EXPOSURE")
	t.AppendRows([]table.Row{
		{"Bankroll", fmt.Sprintf("$%.2f", ex.Bankroll)},
		{"Open positions", ex.OpenPositions},
		{"Total notional", fmt.Sprintf("$%.2f", ex.TotalNotional)},
		{"Total exposure", fmt.Sprintf("%.2f%%", ex.TotalExposurePct)},
	})
	t.AppendSeparator()
	for side, pct := range ex.ByDirectionPct {
		t.AppendRow(table.Row{string(side), fmt.Sprintf("%.2f%%", pct)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, Align: text.AlignRight},
	})
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintReport writes r to stdout
func PrintReport(r *Report) {
	NewDefaultConsoleReporter().Write(os.Stdout, r)
}
