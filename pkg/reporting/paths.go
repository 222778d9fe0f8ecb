package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultOutputPath is results/<env>_population_<yyyymmdd-hhmm>.xlsx
func DefaultOutputPath(env string, now time.Time) string {
	e := strings.ToLower(strings.TrimSpace(env))
	if e == "" {
		e = "unknown"
	}
	return filepath.Join("results", fmt.Sprintf("%s_population_%s.xlsx", e, now.UTC().Format("20060102-1504")))
}

// EnsureDirectoryExists creates the parent directory of path
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
