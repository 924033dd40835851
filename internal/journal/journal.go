// Package journal records every regime packet the loop produces in
// Postgres, one row per instrument and as-of time.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"regime-trader/internal/types"
)

const createJournalTable = `CREATE TABLE IF NOT EXISTS regime_journal (
	id          uuid PRIMARY KEY,
	instrument  text NOT NULL,
	as_of       timestamptz NOT NULL,
	regime      text NOT NULL,
	confidence  double precision NOT NULL,
	is_safe     boolean NOT NULL,
	skip_reason text NOT NULL DEFAULT '',
	entries     integer NOT NULL DEFAULT 0,
	exits       integer NOT NULL DEFAULT 0,
	packet      jsonb NOT NULL,
	recorded_at timestamptz NOT NULL DEFAULT now()
)`

const insertRow = `INSERT INTO regime_journal
	(id, instrument, as_of, regime, confidence, is_safe, skip_reason, entries, exits, packet)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING`

// namespace scopes the row ids so a replay of the same instrument and
// time maps onto the same row.
var namespace = uuid.MustParse("6f1c2a52-8a7e-4d0b-9b8e-2f4f3c1d9a10")

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Journal struct {
	db      execer
	timeout time.Duration
	close   func()
}

// Open connects to url and creates the table if needed.
func Open(ctx context.Context, url string) (*Journal, error) {
	if url == "" {
		return nil, errors.New("journal: postgres url is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("journal: parse postgres url: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createJournalTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: create table: %w", err)
	}
	return &Journal{db: pool, timeout: 5 * time.Second, close: pool.Close}, nil
}

func (j *Journal) Close() {
	if j.close != nil {
		j.close()
	}
}

// ID returns the row id of an instrument at an as-of time.
func ID(instrument string, asOf time.Time) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(instrument+"|"+asOf.UTC().Format(time.RFC3339Nano)))
}

// Append writes the packet of res. Writing the same result twice is a
// no-op.
func (j *Journal) Append(res *types.IterationResult) error {
	if res == nil {
		return nil
	}
	packet, err := json.Marshal(res.Packet)
	if err != nil {
		return fmt.Errorf("journal: marshal packet: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err = j.db.Exec(ctx, insertRow,
		ID(res.Instrument, res.AsOf),
		res.Instrument,
		res.AsOf,
		string(res.Packet.Regime),
		res.Packet.Confidence,
		res.Packet.IsSafe,
		res.SkipReason,
		len(res.Entries),
		len(res.Exits),
		packet,
	)
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", res.Instrument, err)
	}
	return nil
}
