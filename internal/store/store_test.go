package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	hit, err := kv.GetJSON(ctx, "vault:session:missing", &doc{})
	require.NoError(t, err)
	require.False(t, hit)

	in := doc{Name: "ward-7", Count: 3}
	require.NoError(t, kv.SetJSON(ctx, "vault:session:abc", in))

	var out doc
	hit, err = kv.GetJSON(ctx, "vault:session:abc", &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, in, out)
}

func TestMemoryLastWriteWins(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	require.NoError(t, kv.SetJSON(ctx, "k", doc{Name: "first"}))
	require.NoError(t, kv.SetJSON(ctx, "k", doc{Name: "second"}))

	var out doc
	hit, err := kv.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "second", out.Name)
}

func TestMemoryKeysSortedByPrefix(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	for _, k := range []string{"vault:session:b", "vault:session:a", "audit:log", "vault:session:c"} {
		require.NoError(t, kv.SetJSON(ctx, k, doc{}))
	}

	keys, err := kv.Keys(ctx, "vault:session:")
	require.NoError(t, err)
	require.Equal(t, []string{"vault:session:a", "vault:session:b", "vault:session:c"}, keys)
}

func TestMemoryDelIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	require.NoError(t, kv.SetJSON(ctx, "k", doc{}))
	require.NoError(t, kv.Del(ctx, "k"))
	// deleting again must not error; sweeps may run redundantly
	require.NoError(t, kv.Del(ctx, "k"))
	require.NoError(t, kv.Del(ctx))

	hit, err := kv.GetJSON(ctx, "k", &doc{})
	require.NoError(t, err)
	require.False(t, hit)
}

func TestMemoryCorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	kv.data["bad"] = []byte(`{not json`)

	var out doc
	hit, err := kv.GetJSON(ctx, "bad", &out)
	require.NoError(t, err)
	require.False(t, hit)

	// the corrupt entry is dropped, not kept around
	keys, err := kv.Keys(ctx, "bad")
	require.NoError(t, err)
	require.Empty(t, keys)
}
