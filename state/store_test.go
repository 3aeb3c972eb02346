package state

import (
	"errors"
	"testing"

	"github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree() *iavl.MutableTree {
	return iavl.NewMutableTree(dbm.NewMemDB(), 128, false, NewTreeLogger(log.NewNopLogger()))
}

func TestCacheStore(t *testing.T) {
	parent := treeStore{tree: newTestTree()}
	require.NoError(t, parent.Set([]byte("a"), []byte("1")))
	require.NoError(t, parent.Set([]byte("b"), []byte("2")))

	cache := NewCacheStore(parent)
	require.NoError(t, cache.Set([]byte("a"), []byte("10")))
	require.NoError(t, cache.Delete([]byte("b")))
	require.NoError(t, cache.Set([]byte("c"), []byte("3")))

	val, err := cache.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("10"), val)
	val, err = cache.Get([]byte("b"))
	require.NoError(t, err)
	assert.Nil(t, val)

	// parent untouched until Write
	val, err = parent.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)
	val, err = parent.Get([]byte("c"))
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, cache.Write())
	val, err = parent.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("10"), val)
	val, err = parent.Get([]byte("b"))
	require.NoError(t, err)
	assert.Nil(t, val)
	val, err = parent.Get([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), val)
}

func TestCacheWriteOrderIndependent(t *testing.T) {
	write := func(keys ...string) []byte {
		tree := newTestTree()
		cache := NewCacheStore(treeStore{tree: tree})
		for _, k := range keys {
			require.NoError(t, cache.Set([]byte(k), []byte(k+k)))
		}
		require.NoError(t, cache.Write())
		return tree.WorkingHash()
	}
	assert.Equal(t, write("x", "y", "z"), write("z", "x", "y"))
}

func TestApplyDiscardsOnError(t *testing.T) {
	c := newTestChain(t)
	boom := errors.New("boom")
	events, err := c.exec(func(f *Frabric) error {
		if err := f.Tokens.Mint(testUSD, c.g(0), 99); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, events)
	assert.Equal(t, uint64(0), c.balance(testUSD, c.g(0)))

	c.st.SetBlock(c.height, c.time)
	_, err = c.st.Apply(true, func(f *Frabric) error {
		return f.Tokens.Mint(testUSD, c.g(0), 99)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), c.balance(testUSD, c.g(0)))
}

func TestCounters(t *testing.T) {
	kv := NewCacheStore(treeStore{tree: newTestTree()})
	for want := uint64(1); want <= 3; want++ {
		n, err := nextIndex(kv, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := getUint64(kv, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}
