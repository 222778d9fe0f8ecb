package reporting

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Reporter renders reports to a terminal and to files
type Reporter interface {
	Print(w io.Writer, r *Report)
	Export(r *Report, path string) error
}

// DefaultReporter picks the file format from the export path's extension
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
}

// NewDefaultReporter creates a reporter with every output format
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
	}
}

// Print renders r as console tables
func (d *DefaultReporter) Print(w io.Writer, r *Report) {
	d.console.Write(w, r)
}

// Export writes r to path as xlsx, csv or json
func (d *DefaultReporter) Export(r *Report, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return d.excel.WriteXLSX(r, path)
	case ".csv":
		return d.csv.WritePopulationCSV(r, path)
	case ".json":
		return WriteJSON(r, path)
	default:
		return fmt.Errorf("unsupported export format %q (want .xlsx, .csv or .json)", ext)
	}
}

var _ Reporter = (*DefaultReporter)(nil)
