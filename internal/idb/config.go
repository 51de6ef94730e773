package idb

import (
	"time"

	"github.com/pbnjay/memory"
)

type PersistenceStrategy string

const (
	Async PersistenceStrategy = "async"
	Sync  PersistenceStrategy = "sync"
)

const (
	defaultAutoVacuumMinSize uint64 = 1000
	defaultCacheShards              = 16
	fallbackCacheBytes       uint64 = 16 << 20
	maxDefaultCacheBytes     uint64 = 64 << 20
)

var defaultAutoVacuumIntervals = 10 * time.Minute
var defaultPersistenceIntervals = 1 * time.Second

type Config struct {
	// Dir holds one <name>.idb file per database. Empty means the
	// process has nowhere to persist to.
	Dir string

	PersistenceStrategy       PersistenceStrategy
	AsyncPersistenceIntervals time.Duration

	DisableCache bool
	CacheBytes   uint64
	CacheShards  int

	DisableAutoVacuum     bool
	AutoVacuumOnlyOnClose bool
	AutoVacuumMinSize     uint64
	AutoVacuumIntervals   time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.PersistenceStrategy == "" {
		cfg.PersistenceStrategy = Sync
	} else if cfg.PersistenceStrategy == Async && cfg.AsyncPersistenceIntervals == 0 {
		cfg.AsyncPersistenceIntervals = defaultPersistenceIntervals
	}

	if cfg.CacheBytes == 0 {
		cfg.CacheBytes = defaultCacheBytes()
	}

	if cfg.CacheShards == 0 {
		cfg.CacheShards = defaultCacheShards
	}

	if cfg.AutoVacuumIntervals == 0 {
		cfg.AutoVacuumIntervals = defaultAutoVacuumIntervals
	}

	if cfg.AutoVacuumMinSize == 0 {
		cfg.AutoVacuumMinSize = defaultAutoVacuumMinSize
	}

	return cfg
}

// defaultCacheBytes gives the payload cache 1/64 of the machine memory,
// capped so a desktop session does not hold on to too much.
func defaultCacheBytes() uint64 {
	total := memory.TotalMemory()
	if total == 0 {
		return fallbackCacheBytes
	}

	b := total / 64
	if b > maxDefaultCacheBytes {
		return maxDefaultCacheBytes
	}

	return b
}
