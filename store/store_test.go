package store

import (
	"testing"

	"github.com/mezonai/simplewallet/config"
	"github.com/mezonai/simplewallet/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStores(t *testing.T) *Stores {
	t.Helper()
	provider, err := db.NewLevelDBMemProvider()
	require.NoError(t, err)
	stores, err := NewStores(provider)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestStateStore_ApplyAndGetState(t *testing.T) {
	stores := newMemStores(t)

	written, err := stores.State.Apply(map[string][]byte{
		"bbb": []byte("2"),
		"aaa": []byte("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, written)

	got, err := stores.State.GetState([]string{"aaa", "bbb", "ccc", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"aaa": []byte("1"), "bbb": []byte("2")}, got)

	v, err := stores.State.Get("ccc")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStateStore_List(t *testing.T) {
	stores := newMemStores(t)
	_, err := stores.State.Apply(map[string][]byte{
		"ab01": []byte("1"),
		"ab02": []byte("2"),
		"cd01": []byte("3"),
	})
	require.NoError(t, err)
	// statuses share the provider and must not leak into state listings
	require.NoError(t, stores.Statuses.Store(&BatchStatus{ID: "ab03", Status: BatchPending}))

	var addrs []string
	require.NoError(t, stores.State.List("ab", func(addr string, data []byte) bool {
		addrs = append(addrs, addr)
		return true
	}))
	assert.Equal(t, []string{"ab01", "ab02"}, addrs)
}

func TestStateStore_CommitMarksTransactions(t *testing.T) {
	stores := newMemStores(t)

	ok, err := stores.State.TxCommitted("tx1")
	require.NoError(t, err)
	assert.False(t, ok)

	written, err := stores.State.Commit(map[string][]byte{"aaa": []byte("1")}, []string{"tx1", "tx2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa"}, written)

	for _, id := range []string{"tx1", "tx2"} {
		ok, err := stores.State.TxCommitted(id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}
	v, err := stores.State.Get("aaa")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// markers live outside the state keyspace
	var addrs []string
	require.NoError(t, stores.State.List("", func(addr string, _ []byte) bool {
		addrs = append(addrs, addr)
		return true
	}))
	assert.Equal(t, []string{"aaa"}, addrs)
}

func TestBatchStatusStore(t *testing.T) {
	stores := newMemStores(t)

	status, err := stores.Statuses.Get("nope")
	require.NoError(t, err)
	assert.Equal(t, BatchUnknown, status.Status)

	require.NoError(t, stores.Statuses.StoreBatch([]*BatchStatus{
		{ID: "b1", Status: BatchPending},
		{ID: "b2", Status: BatchInvalid, InvalidTransactions: []InvalidTransaction{{ID: "t1", Message: "Not enough balance"}}},
	}))
	require.NoError(t, stores.Statuses.Store(&BatchStatus{ID: "b1", Status: BatchCommitted}))

	all, err := stores.Statuses.GetMany([]string{"b2", "b1", "b3"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, BatchInvalid, all[0].Status)
	assert.Equal(t, "Not enough balance", all[0].InvalidTransactions[0].Message)
	assert.Equal(t, BatchCommitted, all[1].Status)
	assert.Equal(t, BatchUnknown, all[2].Status)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StoreConfig
		wantErr bool
	}{
		{"nil", nil, true},
		{"empty type", &config.StoreConfig{}, true},
		{"leveldb", &config.StoreConfig{Type: "leveldb", Directory: "/tmp/x"}, false},
		{"leveldb no dir", &config.StoreConfig{Type: "leveldb"}, true},
		{"memory", &config.StoreConfig{Type: "memory"}, false},
		{"redis no addr", &config.StoreConfig{Type: "redis"}, true},
		{"redis", &config.StoreConfig{Type: "redis", RedisAddr: "localhost:6379"}, false},
		{"rocksdb", &config.StoreConfig{Type: "rocksdb", Directory: "/tmp/x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateProvider_FileBackends(t *testing.T) {
	for _, typ := range []StoreType{LevelDBStoreType, BoltStoreType, PebbleStoreType, MemoryStoreType} {
		t.Run(string(typ), func(t *testing.T) {
			stores, err := Open(&config.StoreConfig{Type: string(typ), Directory: t.TempDir()})
			require.NoError(t, err)
			defer stores.Close()

			_, err = stores.State.Apply(map[string][]byte{"k": []byte("v")})
			require.NoError(t, err)
			v, err := stores.State.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
		})
	}
}
