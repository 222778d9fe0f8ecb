// Package archive is the DNA memory: a read-only history of retired and dead
// agents, consulted when choosing breeding parents.
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/genome-consensus-bot/internal/genome"
)

// Retirement reasons
const (
	ReasonDeath = "death"
	ReasonCull  = "cull"
)

// Record is an archived agent's genome and final stats
type Record struct {
	AgentID       string         `json:"agent_id"`
	GroupID       string         `json:"group_id"`
	Genome        *genome.Genome `json:"genome"`
	Fitness       float64        `json:"fitness"`
	Trades        int            `json:"trades"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	FinalBankroll float64        `json:"final_bankroll"`
	Reason        string         `json:"reason"`
	ArchivedAt    time.Time      `json:"archived_at"`
}

// Archive stores records. Records are never modified once written.
type Archive interface {
	Put(ctx context.Context, rec Record) error
	// Top returns up to k records by fitness, highest first; an empty group matches all
	Top(ctx context.Context, group string, k int) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Backend  string `yaml:"backend" default:"memory" validate:"oneof=memory sqlite"`
	Path     string `yaml:"path" default:"data/dna.db"`
	Capacity int    `yaml:"capacity" default:"1000" validate:"min=1"`
}

// Open builds the configured backend
func Open(cfg Config) (Archive, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(cfg.Capacity), nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// Memory keeps the most recent Capacity records in memory
type Memory struct {
	mu       sync.RWMutex
	capacity int
	records  []Record
}

// NewMemory creates an in-memory archive
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Put(_ context.Context, rec Record) error {
	if rec.Genome == nil {
		return fmt.Errorf("archive record %s has no genome", rec.AgentID)
	}
	rec.Genome = rec.Genome.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.capacity {
		m.records = m.records[len(m.records)-m.capacity:]
	}
	return nil
}

func (m *Memory) Top(_ context.Context, group string, k int) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if group == "" || r.GroupID == group {
			r.Genome = r.Genome.Clone()
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sortRecords(out)
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Close() error { return nil }

// sortRecords orders by fitness desc, then archive time, then agent ID
func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Fitness != rs[j].Fitness {
			return rs[i].Fitness > rs[j].Fitness
		}
		if !rs[i].ArchivedAt.Equal(rs[j].ArchivedAt) {
			return rs[i].ArchivedAt.Before(rs[j].ArchivedAt)
		}
		return rs[i].AgentID < rs[j].AgentID
	})
}
