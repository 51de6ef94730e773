package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_lruShard(t *testing.T) {
	t.Run("it evicts only when bytes limit is reached and new key is added", func(t *testing.T) {
		var evictedKeys []uint64
		var evictedValues [][]byte

		onEvict := func(k uint64, v []byte) {
			evictedKeys = append(evictedKeys, k)
			evictedValues = append(evictedValues, v)
		}

		vA := []byte(`data:image/png;base64,AAAA`)
		vB := []byte(`data:image/png;base64,BBBB`)
		vC := []byte(`data:image/png;base64,CCCC`)
		vD := []byte(`data:image/png;base64,DDDD`)

		shard := newLruShard(uint64(len(vA)*4), onEvict)
		for k, v := range map[uint64][]byte{1: vA, 33: vB, 99: vC, 134: vD} {
			added, evicted := shard.add(k, v)
			require.True(t, added)
			require.False(t, evicted)
		}

		assert.Empty(t, evictedKeys)

		// touch everything except for c,
		// hence it is the first candidate for eviction
		for _, k := range []uint64{1, 33, 134} {
			v, ok := shard.get(k)
			require.True(t, ok)
			require.NotNil(t, v)
		}

		vE := []byte(`data:image/png;base64,EEEE`)
		added, evicted := shard.add(456, vE)
		assert.True(t, added)
		assert.True(t, evicted)
		require.Len(t, evictedKeys, 1)
		assert.Equal(t, uint64(99), evictedKeys[0])
		assert.Exactly(t, vC, evictedValues[0])

		v, ok := shard.get(99)
		require.False(t, ok)
		require.Nil(t, v)
	})

	t.Run("value larger than the shard is not stored", func(t *testing.T) {
		shard := newLruShard(8, nil)

		added, evicted := shard.add(1, []byte(`data:image/gif;base64,R0lGOD`))
		assert.False(t, added)
		assert.False(t, evicted)
		assert.Equal(t, int64(0), shard.count())
	})

	t.Run("re-adding a key replaces its value and size", func(t *testing.T) {
		shard := newLruShard(100, nil)

		shard.add(7, []byte(`0123456789`))
		shard.add(7, []byte(`01234`))

		v, ok := shard.get(7)
		require.True(t, ok)
		assert.Equal(t, []byte(`01234`), v)
		assert.Equal(t, uint64(5), shard.size())
		assert.Equal(t, int64(1), shard.count())
	})
}
