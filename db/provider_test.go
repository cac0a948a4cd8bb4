package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers(t *testing.T) map[string]IterableProvider {
	t.Helper()

	mem, err := NewLevelDBMemProvider()
	require.NoError(t, err)
	lvl, err := NewLevelDBProvider(t.TempDir())
	require.NoError(t, err)
	peb, err := NewPebbleProvider(t.TempDir())
	require.NoError(t, err)
	blt, err := NewBoltProvider(t.TempDir())
	require.NoError(t, err)

	all := map[string]IterableProvider{
		"leveldb-mem": mem,
		"leveldb":     lvl,
		"pebble":      peb,
		"bolt":        blt,
	}
	t.Cleanup(func() {
		for _, p := range all {
			p.Close()
		}
	})
	return all
}

func TestProviders_GetPutDelete(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			v, err := p.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, p.Put([]byte("k1"), []byte("v1")))
			v, err = p.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)

			ok, err := p.Has([]byte("k1"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, p.Delete([]byte("k1")))
			ok, err = p.Has([]byte("k1"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProviders_BatchIsAtomicAndGetBatchSkipsMissing(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			batch := p.Batch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))

			got, err := p.GetBatch([][]byte{[]byte("a"), []byte("b")})
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, batch.Write())
			require.NoError(t, batch.Close())

			got, err = p.GetBatch([][]byte{[]byte("a"), []byte("b"), []byte("c")})
			require.NoError(t, err)
			assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)
		})
	}
}

func TestProviders_IteratePrefix(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Put([]byte("state:1"), []byte("x")))
			require.NoError(t, p.Put([]byte("state:2"), []byte("y")))
			require.NoError(t, p.Put([]byte("status:1"), []byte("z")))

			var keys []string
			require.NoError(t, p.IteratePrefix([]byte("state:"), func(key, value []byte) bool {
				keys = append(keys, string(key))
				return true
			}))
			assert.Equal(t, []string{"state:1", "state:2"}, keys)

			count := 0
			require.NoError(t, p.IteratePrefix([]byte("state:"), func(key, value []byte) bool {
				count++
				return false
			}))
			assert.Equal(t, 1, count)
		})
	}
}

func TestDBTxManager(t *testing.T) {
	p, err := NewLevelDBMemProvider()
	require.NoError(t, err)
	defer p.Close()
	tm := NewDBTxManager(p)

	err = tm.WithBatch(func(batch DatabaseBatch) error {
		batch.Put([]byte("x"), []byte("1"))
		return errors.New("abort")
	})
	require.Error(t, err)
	v, err := p.Get([]byte("x"))
	require.NoError(t, err)
	assert.Nil(t, v)

	written, err := tm.PutAll(map[string][]byte{"b": []byte("2"), "a": []byte("1")}, func(name string) []byte {
		return []byte("p:" + name)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, written)
	v, err = p.Get([]byte("p:b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	written, err = tm.PutAll(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("b"), prefixUpperBound([]byte("a")))
	assert.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff}))
	assert.Nil(t, prefixUpperBound(nil))
}
