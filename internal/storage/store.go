// Package storage is a key-value blob store for JSON documents: champion
// configs and population snapshots. Writes replace a key atomically.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by GetData for a missing key
var ErrNotFound = errors.New("key not found")

// Store persists opaque values by key. SaveData either fully replaces the
// previous value or leaves it untouched.
type Store interface {
	GetData(ctx context.Context, key string) ([]byte, error)
	SaveData(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file redis"`
	Dir     string `yaml:"dir" default:"data"`

	RedisAddr     string `yaml:"redis_addr" default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" default:"0" validate:"min=0"`
	RedisPrefix   string `yaml:"redis_prefix" default:"genome-bot"`
}

// Open builds the configured backend
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// SaveJSON marshals v and saves it under key
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.SaveData(ctx, key, data)
}

// GetJSON loads key into v
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.GetData(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
