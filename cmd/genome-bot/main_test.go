package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/genome-consensus-bot/internal/archive"
	"github.com/ducminhle1904/genome-consensus-bot/internal/config"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
)

type closeCounter struct {
	storeClosed, archiveClosed int
}

type countingStore struct{ c *closeCounter }

func (s countingStore) GetData(context.Context, string) ([]byte, error) {
	return nil, storage.ErrNotFound
}
func (s countingStore) SaveData(context.Context, string, []byte) error { return nil }
func (s countingStore) Close() error                                   { s.c.storeClosed++; return nil }

type countingArchive struct {
	archive.Archive
	c *closeCounter
}

func (a countingArchive) Close() error { a.c.archiveClosed++; return nil }

func TestApplicationClose_ReleasesStoreAndArchive(t *testing.T) {
	c := &closeCounter{}
	app := &application{store: countingStore{c}, archive: countingArchive{c: c}}
	app.close()
	assert.Equal(t, 1, c.storeClosed)
	assert.Equal(t, 1, c.archiveClosed)

	(&application{}).close()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Store.Dir = filepath.Join(dir, "state")
	cfg.Archive.Backend = "sqlite"
	cfg.Archive.Path = filepath.Join(dir, "dna.db")
	cfg.Metrics.Enabled = false
	return cfg
}

func setExport(t *testing.T, path string) {
	t.Helper()
	prev := *exportFlag
	*exportFlag = path
	t.Cleanup(func() { *exportFlag = prev })
}

func TestRun_ReportReturnsZeroAndReleasesArchive(t *testing.T) {
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "report.json")
	setExport(t, out)

	assert.Equal(t, 0, run(cfg, logger.Nop()))
	assert.FileExists(t, out)

	arch, err := archive.NewSQLite(cfg.Archive.Path)
	require.NoError(t, err)
	n, err := arch.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, arch.Close())
}

func TestRun_CorruptStateReturnsOne(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Store.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Store.Dir, "population_paper.json"), []byte("{broken"), 0o644))
	setExport(t, filepath.Join(t.TempDir(), "report.json"))

	assert.Equal(t, 1, run(cfg, logger.Nop()))
}
