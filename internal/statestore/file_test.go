package statestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(ctx, "risk_state")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Save(ctx, "risk_state", []byte(`{"v":1}`)))
	require.NoError(t, s.Save(ctx, "risk_state", []byte(`{"v":2}`)))

	b, err := s.Load(ctx, "risk_state")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(b))

	bak, err := os.ReadFile(s.path("risk_state") + ".bak")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(bak))
}

func TestFileStoreSanitizesKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "../acct/1", []byte("x")))
	_, err = os.Stat(s.path("../acct/1"))
	assert.NoError(t, err)
	assert.Equal(t, s.dir, filepath.Dir(s.path("../acct/1")))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, closeFn, err := Open(context.Background(), Config{Backend: "etcd"})
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
