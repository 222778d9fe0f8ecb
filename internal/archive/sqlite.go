package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
	_ "modernc.org/sqlite"
)

// SQLite persists records to a SQLite database
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (or creates) the database and runs migrations
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	a := &SQLite{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dna_archive (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id       TEXT NOT NULL,
			group_id       TEXT NOT NULL,
			genome_id      TEXT NOT NULL,
			generation     INTEGER NOT NULL,
			fitness        REAL,
			trades         INTEGER,
			wins           INTEGER,
			losses         INTEGER,
			final_bankroll REAL,
			reason         TEXT,
			archived_at    INTEGER NOT NULL,
			genome_json    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dna_group_fitness ON dna_archive(group_id, fitness)`,
	}
	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (a *SQLite) Put(ctx context.Context, rec Record) error {
	if rec.Genome == nil {
		return fmt.Errorf("archive record %s has no genome", rec.AgentID)
	}
	gj, err := json.Marshal(rec.Genome)
	if err != nil {
		return fmt.Errorf("marshal genome: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.db.ExecContext(ctx, `INSERT INTO dna_archive
		(agent_id, group_id, genome_id, generation, fitness, trades, wins, losses, final_bankroll, reason, archived_at, genome_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AgentID, rec.GroupID, rec.Genome.ID, rec.Genome.Generation, rec.Fitness,
		rec.Trades, rec.Wins, rec.Losses, rec.FinalBankroll, rec.Reason,
		rec.ArchivedAt.UnixNano(), string(gj))
	if err != nil {
		return fmt.Errorf("insert dna record: %w", err)
	}
	return nil
}

func (a *SQLite) Top(ctx context.Context, group string, k int) ([]Record, error) {
	if k < 0 {
		k = -1
	}
	rows, err := a.db.QueryContext(ctx, `SELECT agent_id, group_id, fitness, trades, wins, losses, final_bankroll, reason, archived_at, genome_json
		FROM dna_archive
		WHERE (? = '' OR group_id = ?)
		ORDER BY fitness DESC, archived_at ASC, agent_id ASC
		LIMIT ?`, group, group, k)
	if err != nil {
		return nil, fmt.Errorf("query dna archive: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec        Record
			archivedAt int64
			gj         string
		)
		if err := rows.Scan(&rec.AgentID, &rec.GroupID, &rec.Fitness, &rec.Trades, &rec.Wins, &rec.Losses,
			&rec.FinalBankroll, &rec.Reason, &archivedAt, &gj); err != nil {
			return nil, fmt.Errorf("scan dna record: %w", err)
		}
		var g genome.Genome
		if err := json.Unmarshal([]byte(gj), &g); err != nil {
			return nil, fmt.Errorf("decode genome for %s: %w", rec.AgentID, err)
		}
		rec.Genome = &g
		rec.ArchivedAt = time.Unix(0, archivedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dna_archive`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dna archive: %w", err)
	}
	return n, nil
}

func (a *SQLite) Close() error {
	return a.db.Close()
}
