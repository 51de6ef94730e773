package idb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/btree"
)

func TestPK_Less(t *testing.T) {
	tt := []struct {
		key1 string
		key2 string
		less bool
	}{
		{"project:11", "project:100", true},
		{"project:1", "project:999", true},
		{"project:100", "project:11", false},
		{"logoa", "logob", true},
		{"logoc", "logob", false},
		{"project:a", "project:b", true},
		{"project:a:2", "project:b:1", true},
		{"project:a", "project:b:0", true},
		{"project", "project:1", true},
		{"logo", "project", true},
		{"logo:9", "project:1", true},
		{"project:1", "project:1:cover", true},
		{"project:1:cover", "project:1", false},
		{"hero", "hero", false},
		{"img:1145", "img:1144", false},
		{"img:1145", "img:1146", true},
		{"img:1", "img:01", true},
		{"img:01", "img:1", false},
		{"1", "+1", true},
		{"+1", "1", false},
		{"10", "2a", true},
		{"3", "2a", true},
		{"0", "1", true},
		{"18446744073709551616", "9", false},
	}

	for _, tc := range tt {
		t.Run(tc.key1+"_"+tc.key2, func(t *testing.T) {
			a := newPK(tc.key1)
			b := newPK(tc.key2)

			assert.Equal(t, tc.less, a.Less(b))
		})
	}
}

var mixedKeys = []string{
	"1", "+1", "01", "-1", "2a", "3", "10", "0", "", ":", "a:", ":1",
	"img:1", "img:01", "img:+1", "img:2a", "img:10", "img", "img:1:x",
	"18446744073709551616", "99", "a", "B", "1a", "1 ",
}

func TestPK_Less_IsAStrictTotalOrder(t *testing.T) {
	pks := make([]PK, len(mixedKeys))
	for i, k := range mixedKeys {
		pks[i] = newPK(k)
	}

	for i := range pks {
		assert.False(t, pks[i].Less(pks[i]), "irreflexive %q", pks[i].key)

		for j := range pks {
			if i == j {
				continue
			}

			// distinct keys are never equivalent
			assert.NotEqual(t, pks[i].Less(pks[j]), pks[j].Less(pks[i]),
				"exactly one of %q < %q and %q < %q", pks[i].key, pks[j].key, pks[j].key, pks[i].key)

			for k := range pks {
				if pks[i].Less(pks[j]) && pks[j].Less(pks[k]) {
					assert.True(t, pks[i].Less(pks[k]), "transitive %q < %q < %q", pks[i].key, pks[j].key, pks[k].key)
				}
			}
		}
	}
}

func TestPK_DistinctKeysKeepDistinctSlots(t *testing.T) {
	tr := btree.NewNonConcurrent(byPrimaryKeys)

	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	for _, k := range mixedKeys {
		add(k)
	}
	for i := 1; i <= 300; i++ {
		add(fmt.Sprintf("%d", i))
		add(fmt.Sprintf("%da", i))
	}

	for i, k := range keys {
		if existing := tr.Set(newEntry(k, position{offset: uint64(i)})); existing != nil {
			require.Failf(t, "slot collision", "%q replaced %q", k, existing.(*entry).key.String())
		}
	}

	require.Equal(t, len(keys), tr.Len())
	for i, k := range keys {
		found := tr.Get(&entry{key: newPK(k)})
		require.NotNil(t, found, k)
		assert.Equal(t, uint64(i), found.(*entry).pos.offset, k)
	}
}
