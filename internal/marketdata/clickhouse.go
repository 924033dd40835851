package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ClickHouseStore keeps historical bars for replay in one table keyed by
// instrument, interval and timestamp.
type ClickHouseStore struct {
	db    *sql.DB
	table string
}

var _ interfaces.MarketData = (*ClickHouseStore)(nil)

// OpenClickHouse connects with a clickhouse:// DSN and pings the server.
func OpenClickHouse(ctx context.Context, dsn, table string) (*ClickHouseStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("clickhouse: invalid table name %q", table)
	}
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseStore{db: db, table: table}, nil
}

func (s *ClickHouseStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the bar table if it does not exist.
func (s *ClickHouseStore) InitSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            instrument LowCardinality(String),
            interval   LowCardinality(String),
            ts         DateTime64(3, 'UTC'),
            open       Float64,
            high       Float64,
            low        Float64,
            close      Float64,
            volume     Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (instrument, interval, ts)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) FetchBars(ctx context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error) {
	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE instrument = ? AND interval = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, instrument, interval, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]types.Bar, 0, 512)
	for rows.Next() {
		var b types.Bar
		if err := rows.Scan(&b.Ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	logger.Debug(ctx, "clickhouse bars ok", "instrument", instrument, "interval", interval, "rows", len(out))
	return out, nil
}

// InsertBars writes a series in one batch. Re-inserting a timestamp
// replaces the earlier row once ClickHouse merges.
func (s *ClickHouseStore) InsertBars(ctx context.Context, instrument, interval string, bars []types.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (instrument, interval, ts, open, high, low, close, volume)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, instrument, interval, b.Ts.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append bar: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Info(ctx, "Stored bars in clickhouse", "instrument", instrument, "interval", interval, "count", len(bars))
	return nil
}
