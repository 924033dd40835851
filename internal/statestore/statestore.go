// Package statestore persists opaque state blobs with atomic replace
// semantics on a local file, Redis or Postgres.
package statestore

import (
	"context"
	"errors"
	"fmt"

	"regime-trader/internal/interfaces"
)

// ErrNotFound is returned by Load when no blob exists for the key.
var ErrNotFound = errors.New("statestore: not found")

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file redis postgres"`
	Dir     string `yaml:"dir" default:"state"`

	RedisAddr     string `yaml:"redis_addr" default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" default:"regime-trader:"`

	PostgresURL string `yaml:"postgres_url"`
}

// Open builds the configured backend. The returned close func releases
// connections and is never nil.
func Open(ctx context.Context, cfg Config) (interfaces.StateStore, func(), error) {
	switch cfg.Backend {
	case "", BackendFile:
		s, err := NewFileStore(cfg.Dir)
		return s, func() {}, err
	case BackendRedis:
		s, err := NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { _ = s.Close() }, nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, func() {}, err
		}
		return s, s.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("statestore: unknown backend %q", cfg.Backend)
	}
}
