package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// backends returns every KV implementation that runs without external services.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	out := map[string]KV{
		"memory": NewMemory(),
		"sqlite": newTestSQLiteStore(t),
	}
	if addr := os.Getenv("LUREIQ_TEST_REDIS_ADDR"); addr != "" {
		rs, err := NewRedis(context.Background(), addr, "lureiq-test:")
		require.NoError(t, err)
		t.Cleanup(func() { rs.Close() }) //nolint:errcheck
		out["redis"] = rs
	}
	return out
}

func TestKV_SetGetDelete(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := kv.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, kv.Set(ctx, "slot", []byte(`{"a":1}`)))
			v, err = kv.Get(ctx, "slot")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(v))

			require.NoError(t, kv.Set(ctx, "slot", []byte(`{"a":2}`)))
			v, err = kv.Get(ctx, "slot")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(v))

			require.NoError(t, kv.Delete(ctx, "slot"))
			v, err = kv.Get(ctx, "slot")
			require.NoError(t, err)
			assert.Nil(t, v)

			// Deleting a missing key is not an error.
			assert.NoError(t, kv.Delete(ctx, "slot"))
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Set(ctx, "queue", []byte(`[1,2]`)))
	require.NoError(t, st.Close())

	st, err = NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	v, err := st.Get(ctx, "queue")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(v))
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'z'

	out, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	got := GetJSON(ctx, kv, "p", payload{Name: "fallback"})
	assert.Equal(t, "fallback", got.Name)

	require.NoError(t, SetJSON(ctx, kv, "p", payload{Name: "x", Count: 3}))
	got = GetJSON(ctx, kv, "p", payload{})
	assert.Equal(t, payload{Name: "x", Count: 3}, got)
}

func TestGetJSON_CorruptValueFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, "queue", []byte("{not json")))

	got := GetJSON[[]payload](ctx, kv, "queue", nil)
	assert.Empty(t, got)

	ptr := GetJSON[*payload](ctx, kv, "queue", nil)
	assert.Nil(t, ptr)
}

func TestGetJSON_JSONNullIsZero(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, "slot", []byte("null")))

	ptr := GetJSON[*payload](ctx, kv, "slot", nil)
	assert.Nil(t, ptr)
}

type failingKV struct{ MemoryStore }

func (*failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, assert.AnError
}

func TestGetJSON_ReadErrorFallsBack(t *testing.T) {
	got := GetJSON[payload](context.Background(), &failingKV{}, "p", payload{Name: "fb"})
	assert.Equal(t, "fb", got.Name)
}

func TestLoadJSON_ReadErrorReturned(t *testing.T) {
	got, err := LoadJSON[[]payload](context.Background(), &failingKV{}, "queue", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "store: read queue")
	assert.Nil(t, got)
}

func TestLoadJSON_MissingAndCorruptFallBack(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	got, err := LoadJSON(ctx, kv, "p", payload{Name: "fb"})
	require.NoError(t, err)
	assert.Equal(t, "fb", got.Name)

	require.NoError(t, kv.Set(ctx, "p", []byte("{not json")))
	got, err = LoadJSON(ctx, kv, "p", payload{Name: "fb"})
	require.NoError(t, err)
	assert.Equal(t, "fb", got.Name)

	require.NoError(t, SetJSON(ctx, kv, "p", payload{Name: "x", Count: 2}))
	got, err = LoadJSON(ctx, kv, "p", payload{})
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "x", Count: 2}, got)
}
