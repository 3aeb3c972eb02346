package state

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

// KVStore is the keyed storage handle passed to every Frabric component.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

type treeStore struct {
	tree *iavl.MutableTree
}

func (t treeStore) Get(key []byte) ([]byte, error) {
	val, err := t.tree.Get(key)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (t treeStore) Set(key, value []byte) error {
	_, err := t.tree.Set(key, value)
	return err
}

func (t treeStore) Delete(key []byte) error {
	_, _, err := t.tree.Remove(key)
	return err
}

// CacheStore buffers writes over a parent store. Nothing reaches the parent
// until Write, so a failed transaction is dropped by discarding the cache.
type CacheStore struct {
	parent KVStore
	writes map[string][]byte
}

func NewCacheStore(parent KVStore) *CacheStore {
	return &CacheStore{
		parent: parent,
		writes: make(map[string][]byte),
	}
}

func (c *CacheStore) Get(key []byte) ([]byte, error) {
	if val, ok := c.writes[string(key)]; ok {
		if val == nil {
			return nil, nil
		}
		return append([]byte(nil), val...), nil
	}
	return c.parent.Get(key)
}

func (c *CacheStore) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	c.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (c *CacheStore) Delete(key []byte) error {
	c.writes[string(key)] = nil
	return nil
}

// Write flushes buffered writes to the parent in key order so the resulting
// tree hash does not depend on map iteration.
func (c *CacheStore) Write() error {
	keys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := c.writes[k]
		var err error
		if val == nil {
			err = c.parent.Delete([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), val)
		}
		if err != nil {
			return err
		}
	}
	c.writes = make(map[string][]byte)
	return nil
}

func getJSON[T any](kv KVStore, key string) (v *T, err error) {
	val, err := kv.Get([]byte(key))
	if err != nil || len(val) == 0 {
		return nil, err
	}
	v = new(T)
	if err = json.Unmarshal(val, v); err != nil {
		return nil, err
	}
	return
}

func setJSON(kv KVStore, key string, v any) error {
	dat, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set([]byte(key), dat)
}

func getUint64(kv KVStore, key string) (n uint64, err error) {
	val, err := kv.Get([]byte(key))
	if err != nil || len(val) == 0 {
		return 0, err
	}
	err = rlp.DecodeBytes(val, &n)
	return
}

func setUint64(kv KVStore, key string, n uint64) error {
	val, err := rlp.EncodeToBytes(n)
	if err != nil {
		return err
	}
	return kv.Set([]byte(key), val)
}

// nextIndex increments the counter at key and returns the new value.
func nextIndex(kv KVStore, key string) (uint64, error) {
	n, err := getUint64(kv, key)
	if err != nil {
		return 0, err
	}
	n += 1
	if err = setUint64(kv, key, n); err != nil {
		return 0, err
	}
	return n, nil
}
