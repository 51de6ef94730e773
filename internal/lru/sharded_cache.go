package lru

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var ErrIllegalCapacity = errors.New("illegal lru cache capacity")
var ErrInvalidSharding = errors.New("invalid sharding")

type OnEvict func(k uint64, v []byte)

// Cache is what the database needs from a payload cache.
type Cache interface {
	Add(key uint64, value []byte) bool
	Get(key uint64) ([]byte, bool)
	Remove(key uint64)
	Purge()
	Count() int
	Size() uint64
}

// ShardedCache is a byte bounded LRU split into shards picked by
// the xxhash of a key, every shard owns an equal part of the budget.
type ShardedCache struct {
	maxBytes uint64
	capacity uint64
	shards   []*lruShard
}

var _ Cache = (*ShardedCache)(nil)

func NewShardedCache(shards int, maxTotalBytes uint64, onEvict OnEvict) (*ShardedCache, error) {
	if shards < 1 {
		return nil, errors.Wrapf(ErrInvalidSharding, "%d shards", shards)
	}

	if maxTotalBytes <= uint64(shards) {
		return nil, errors.Wrapf(ErrIllegalCapacity, "%d bytes for %d shards", maxTotalBytes, shards)
	}

	c := ShardedCache{
		maxBytes: maxTotalBytes,
		capacity: uint64(shards),
		shards:   make([]*lruShard, shards),
	}

	shardMaxBytes := maxTotalBytes / c.capacity
	for i := range c.shards {
		c.shards[i] = newLruShard(shardMaxBytes, onEvict)
	}

	return &c, nil
}

// Add value to cache under key and returns true if eviction happened
func (c *ShardedCache) Add(key uint64, value []byte) bool {
	_, evicted := c.getShard(key).add(key, value)
	return evicted
}

func (c *ShardedCache) Get(key uint64) ([]byte, bool) {
	return c.getShard(key).get(key)
}

func (c *ShardedCache) Remove(key uint64) {
	c.getShard(key).remove(key)
}

func (c *ShardedCache) Purge() {
	var wg sync.WaitGroup

	wg.Add(len(c.shards))
	for i := range c.shards {
		go func(i int) {
			defer wg.Done()
			c.shards[i].purge()
		}(i)
	}

	wg.Wait()
}

func (c *ShardedCache) Count() int {
	var count int64
	for i := range c.shards {
		count += c.shards[i].count()
	}
	return int(count)
}

// Size returns the number of payload bytes currently held.
func (c *ShardedCache) Size() uint64 {
	var size uint64
	for i := range c.shards {
		size += c.shards[i].size()
	}
	return size
}

func (c *ShardedCache) getShard(key uint64) *lruShard {
	if c.capacity == 1 {
		return c.shards[0]
	}

	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, key)
	hash := xxhash.Sum64(bs)
	return c.shards[hash%c.capacity]
}
