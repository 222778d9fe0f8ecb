package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelStyles holds the workbook's cell styles
type ExcelStyles struct {
	HeaderStyle   int
	BaseStyle     int
	CurrencyStyle int
	PercentStyle  int
	DecimalStyle  int
}

// DefaultExcelReporter writes reports as xlsx workbooks
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

const (
	sheetGroups     = "Groups"
	sheetPopulation = "Population"
	sheetChampions  = "Champions"
)

// WriteXLSX writes groups, the ranked population and all champions to path
func (x *DefaultExcelReporter) WriteXLSX(r *Report, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), sheetGroups); err != nil {
		return err
	}
	for _, name := range []string{sheetPopulation, sheetChampions} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := x.createStyles(fx)
	if err != nil {
		return err
	}
	if err := x.writeGroups(fx, r, styles); err != nil {
		return err
	}
	if err := x.writePopulation(fx, r, styles); err != nil {
		return err
	}
	if err := x.writeChampions(fx, r, styles); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func (x *DefaultExcelReporter) createStyles(fx *excelize.File) (ExcelStyles, error) {
	var s ExcelStyles
	var err error

	s.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	s.BaseStyle, err = fx.NewStyle(&excelize.Style{Font: &excelize.Font{Size: 10, Family: "Calibri"}})
	if err != nil {
		return s, fmt.Errorf("base style: %w", err)
	}
	currency := "$#,##0.00"
	s.CurrencyStyle, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &currency})
	if err != nil {
		return s, fmt.Errorf("currency style: %w", err)
	}
	s.PercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return s, fmt.Errorf("percent style: %w", err)
	}
	decimal := "0.0000"
	s.DecimalStyle, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &decimal})
	if err != nil {
		return s, fmt.Errorf("decimal style: %w", err)
	}
	return s, nil
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeRow writes values on row; styles maps a 1-based column to a style
func writeRow(fx *excelize.File, sheet string, row int, values []interface{}, styles map[int]int) error {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if st, ok := styles[i+1]; ok {
			if err := fx.SetCellStyle(sheet, cell, cell, st); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *DefaultExcelReporter) writeGroups(fx *excelize.File, r *Report, s ExcelStyles) error {
	if err := writeHeader(fx, sheetGroups, []string{"Group", "Generation", "Agents", "Avg Fitness", "Best Fitness", "Deaths"}, s.HeaderStyle); err != nil {
		return err
	}
	for i, g := range r.Groups {
		err := writeRow(fx, sheetGroups, i+2,
			[]interface{}{g.GroupID, g.Generation, g.Agents, g.AverageFitness, g.BestFitness, g.Deaths},
			map[int]int{4: s.DecimalStyle, 5: s.DecimalStyle})
		if err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheetGroups, "A", "F", 14)
}

func (x *DefaultExcelReporter) writePopulation(fx *excelize.File, r *Report, s ExcelStyles) error {
	headers := []string{"Rank", "Agent", "Group", "Generation", "Fitness", "Win Rate", "Trades", "Bankroll",
		"ROI", "Drawdown", "Open", "Strategies", "Leverage", "TP x", "SL x", "Trailing x"}
	if err := writeHeader(fx, sheetPopulation, headers, s.HeaderStyle); err != nil {
		return err
	}
	cols := map[int]int{5: s.DecimalStyle, 6: s.PercentStyle, 8: s.CurrencyStyle, 9: s.PercentStyle, 10: s.PercentStyle}
	for i, a := range r.Agents {
		err := writeRow(fx, sheetPopulation, i+2, []interface{}{
			a.Rank, a.AgentID, a.GroupID, a.Generation, a.Fitness, a.WinRate, a.Trades, a.Bankroll,
			a.ROI, a.Drawdown, a.OpenPositions, a.Strategies, a.Leverage, a.TPMultiplier, a.SLMultiplier, a.Trailing,
		}, cols)
		if err != nil {
			return err
		}
	}
	if err := fx.SetColWidth(sheetPopulation, "B", "B", 38); err != nil {
		return err
	}
	return fx.AutoFilter(sheetPopulation, fmt.Sprintf("A1:P%d", len(r.Agents)+1), nil)
}

func (x *DefaultExcelReporter) writeChampions(fx *excelize.File, r *Report, s ExcelStyles) error {
	headers := []string{"Environment", "Name", "ID", "Source Agent", "Source Group", "Generation", "Risk Level",
		"Leverage", "TP x", "SL x", "Trailing x", "Fitness", "Win Rate", "Trades", "Status", "Synced At"}
	if err := writeHeader(fx, sheetChampions, headers, s.HeaderStyle); err != nil {
		return err
	}
	row := 2
	for _, env := range r.EnvironmentNames() {
		for _, ch := range r.Champions[env] {
			err := writeRow(fx, sheetChampions, row, []interface{}{
				ch.Environment, ch.Name, ch.ID, ch.SourceBot, ch.SourceGroup, ch.SourceGeneration, ch.RiskLevel,
				ch.Leverage, ch.TPMultiplier, ch.SLMultiplier, ch.TrailingMultiplier, ch.Fitness, ch.WinRate,
				ch.TotalTrades, ch.ValidationStatus, ch.SyncedAt,
			}, map[int]int{12: s.DecimalStyle, 13: s.PercentStyle})
			if err != nil {
				return err
			}
			row++
		}
	}
	return fx.SetColWidth(sheetChampions, "A", "P", 16)
}

// WriteXLSX writes r to an xlsx workbook at path
func WriteXLSX(r *Report, path string) error {
	return NewDefaultExcelReporter().WriteXLSX(r, path)
}
