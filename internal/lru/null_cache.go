package lru

// NullCache is used when payload caching is switched off.
type NullCache struct{}

var _ Cache = NullCache{}

func (NullCache) Add(key uint64, value []byte) bool { return false }

func (NullCache) Get(key uint64) ([]byte, bool) { return nil, false }

func (NullCache) Remove(key uint64) {}

func (NullCache) Purge() {}

func (NullCache) Count() int { return 0 }

func (NullCache) Size() uint64 { return 0 }
