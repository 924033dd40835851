package journal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regime-trader/internal/types"
)

type fakeDB struct {
	sql  string
	args []any
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.CommandTag{}, f.err
}

func TestAppendWritesPacket(t *testing.T) {
	db := &fakeDB{}
	j := &Journal{db: db, timeout: time.Second}
	asOf := time.Date(2025, 3, 10, 5, 30, 0, 0, time.UTC)
	res := &types.IterationResult{
		Instrument: "NIFTY 50",
		AsOf:       asOf,
		Packet:     types.RegimePacket{Regime: types.RegimeCaution, Confidence: 0.55, Reasons: []string{"warning state"}},
		Entries:    []types.EntryOutcome{{}},
		SkipReason: types.SkipNoProposals,
	}
	require.NoError(t, j.Append(res))

	require.Len(t, db.args, 10)
	id, ok := db.args[0].(uuid.UUID)
	require.True(t, ok)
	assert.Equal(t, uuid.Version(5), id.Version())
	assert.Equal(t, ID("NIFTY 50", asOf), id)
	assert.Equal(t, "CAUTION", db.args[3])
	assert.Equal(t, false, db.args[5])
	assert.Equal(t, types.SkipNoProposals, db.args[6])
	assert.Equal(t, 1, db.args[7])

	var pkt types.RegimePacket
	require.NoError(t, json.Unmarshal(db.args[9].([]byte), &pkt))
	assert.Equal(t, []string{"warning state"}, pkt.Reasons)
}

func TestIDIsStableAcrossZones(t *testing.T) {
	utc := time.Date(2025, 3, 10, 5, 30, 0, 0, time.UTC)
	ist := utc.In(time.FixedZone("IST", 19800))
	assert.Equal(t, ID("NIFTY 50", utc), ID("NIFTY 50", ist))
	assert.NotEqual(t, ID("NIFTY 50", utc), ID("BANKNIFTY", utc))
}

func TestAppendWrapsError(t *testing.T) {
	j := &Journal{db: &fakeDB{err: errors.New("connection refused")}, timeout: time.Second}
	err := j.Append(&types.IterationResult{Instrument: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, j.Append(nil))
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
