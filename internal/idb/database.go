package idb

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/denismitr/portfoliocad/internal/lru"
	"github.com/denismitr/portfoliocad/options"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnavailable    = errors.New("persistent database environment unavailable")
	ErrVersion        = errors.New("requested version is lower than the stored one")
	ErrStoreNotFound  = errors.New("object store not found")
	ErrStoreExists    = errors.New("object store already exists")
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidKey     = errors.New("invalid key")
	ErrDatabaseClosed = errors.New("database already closed")
	ErrCorrupted      = errors.New("database file is corrupted")
)

const queueSize = 64

// Database is one open, file backed database. Every transaction is
// executed by a single worker goroutine, so transactions never interleave.
type Database struct {
	name    string
	cfg     Config
	version atomic.Int64

	p     *persistence
	e     *engine
	cache lru.Cache

	queue  chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.RWMutex
	closed  bool
	onClose func()
}

// Info is a point in time snapshot of a database.
type Info struct {
	Name         string
	Version      int
	Path         string
	ObjectStores []string
	Records      int
	Garbage      uint64
	Size         int64

	CachedValues int
	CachedBytes  uint64
}

func openDatabase(path, name string, cfg Config) (*Database, error) {
	p, err := newPersistence(path, cfg.PersistenceStrategy)
	if err != nil {
		return nil, err
	}

	e := newEngine()
	if err := p.load(func(cmd command) error {
		return cmd.apply(e)
	}); err != nil {
		_ = p.close()
		return nil, errors.Wrapf(err, "could not load database %s", name)
	}

	var cache lru.Cache = lru.NullCache{}
	if !cfg.DisableCache {
		sc, err := lru.NewShardedCache(cfg.CacheShards, cfg.CacheBytes, nil)
		if err != nil {
			_ = p.close()
			return nil, errors.Wrap(err, "could not create payload cache")
		}
		cache = sc
	}

	db := &Database{
		name:   name,
		cfg:    cfg,
		p:      p,
		e:      e,
		cache:  cache,
		queue:  make(chan func(), queueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	db.version.Store(int64(e.version))

	return db, nil
}

func (db *Database) Name() string {
	return db.name
}

func (db *Database) Version() int {
	return int(db.version.Load())
}

func (db *Database) start() {
	go db.run()
}

func (db *Database) run() {
	defer close(db.doneCh)

	var flushC, vacuumC <-chan time.Time
	if db.cfg.PersistenceStrategy == Async {
		t := time.NewTicker(db.cfg.AsyncPersistenceIntervals)
		defer t.Stop()
		flushC = t.C
	}

	if !db.cfg.DisableAutoVacuum && !db.cfg.AutoVacuumOnlyOnClose {
		t := time.NewTicker(db.cfg.AutoVacuumIntervals)
		defer t.Stop()
		vacuumC = t.C
	}

	for {
		select {
		case job := <-db.queue:
			job()
		case <-flushC:
			if err := db.p.sync(); err != nil {
				log.Error().Err(err).Str("db", db.name).Msg("async flush failed")
			}
		case <-vacuumC:
			if db.e.garbage < db.cfg.AutoVacuumMinSize {
				continue
			}

			if err := db.vacuum(); err != nil {
				log.Error().Err(err).Str("db", db.name).Msg("scheduled vacuum failed")
			}
		case <-db.stopCh:
			// whatever was accepted before close still runs
			for {
				select {
				case job := <-db.queue:
					job()
				default:
					return
				}
			}
		}
	}
}

func (db *Database) submit(job func()) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return false
	}

	db.queue <- job
	return true
}

// do runs job on the worker and waits for it
func (db *Database) do(job func()) bool {
	done := make(chan struct{})
	if !db.submit(func() {
		defer close(done)
		job()
	}) {
		return false
	}

	<-done
	return true
}

func (db *Database) Put(store, key string, value []byte) *Request {
	if key == "" {
		return ResolvedRequest(nil, false, errors.Wrap(ErrInvalidKey, "key cannot be empty"))
	}

	v := make([]byte, len(value))
	copy(v, value)

	req := newRequest()
	if !db.submit(func() {
		req.resolve(nil, false, db.put(store, key, v))
	}) {
		req.fail(ErrDatabaseClosed)
	}

	return req
}

func (db *Database) Get(store, key string) *Request {
	req := newRequest()
	if !db.submit(func() {
		req.resolve(db.get(store, key))
	}) {
		req.fail(ErrDatabaseClosed)
	}

	return req
}

func (db *Database) Delete(store, key string) *Request {
	req := newRequest()
	if !db.submit(func() {
		req.resolve(nil, false, db.delete(store, key))
	}) {
		req.fail(ErrDatabaseClosed)
	}

	return req
}

func (db *Database) Keys(store string, opts *options.ListOptions) *Request {
	req := newRequest()
	if !db.submit(func() {
		req.resolveKeys(db.e.keys(store, opts))
	}) {
		req.resolveKeys(nil, ErrDatabaseClosed)
	}

	return req
}

func (db *Database) Info() (Info, error) {
	var out Info

	if !db.do(func() {
		out = Info{
			Name:         db.name,
			Version:      db.e.version,
			Path:         db.p.name(),
			ObjectStores: append([]string(nil), db.e.storeNames...),
			Records:      db.e.count(),
			Garbage:      db.e.garbage,
			Size:         db.p.size(),
			CachedValues: db.cache.Count(),
			CachedBytes:  db.cache.Size(),
		}
	}) {
		return Info{}, ErrDatabaseClosed
	}

	return out, nil
}

// Vacuum compacts the database file down to its live records.
func (db *Database) Vacuum() error {
	var err error
	if !db.do(func() {
		err = db.vacuum()
	}) {
		return ErrDatabaseClosed
	}

	return err
}

func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrDatabaseClosed
	}
	db.closed = true
	db.mu.Unlock()

	close(db.stopCh)
	<-db.doneCh

	if db.onClose != nil {
		db.onClose()
	}

	var err error
	if !db.cfg.DisableAutoVacuum && db.e.garbage > 0 {
		err = db.vacuum()
	}

	if cErr := db.p.close(); cErr != nil && err == nil {
		err = cErr
	}

	db.cache.Purge()
	return err
}

// upgradeTo must run on the worker or before it starts
func (db *Database) upgradeTo(version int, fn UpgradeFunc) error {
	current := db.e.version
	if version < current {
		return errors.Wrapf(ErrVersion, "%s is at version %d, %d requested", db.name, current, version)
	}

	if version == current {
		return nil
	}

	u := &Upgrade{OldVersion: current, NewVersion: version, e: db.e}
	if fn != nil {
		if err := fn(u); err != nil {
			return errors.Wrapf(err, "upgrade of %s from %d to %d aborted", db.name, current, version)
		}
	}

	if err := u.commit(db.p); err != nil {
		return err
	}

	db.version.Store(int64(version))
	log.Debug().
		Str("db", db.name).
		Int("from", current).
		Int("to", version).
		Strs("stores", u.pending).
		Msg("database upgraded")

	return nil
}

func (db *Database) ensureVersion(version int, fn UpgradeFunc) error {
	var err error
	if !db.do(func() {
		err = db.upgradeTo(version, fn)
	}) {
		return ErrDatabaseClosed
	}

	return err
}

func (db *Database) put(store, key string, v []byte) error {
	if !db.e.hasStore(store) {
		return errors.Wrapf(ErrStoreNotFound, "%s", store)
	}

	rs := respSerializer{pos: db.p.offset()}
	pos := rs.serializeSet(store, key, v)
	if err := db.p.write(&rs); err != nil {
		return err
	}

	prev, err := db.e.put(store, newEntry(key, pos))
	if err != nil {
		return err
	}

	if prev != nil {
		db.cache.Remove(prev.pos.offset)
	}

	db.cache.Add(pos.offset, v)
	return nil
}

func (db *Database) get(store, key string) ([]byte, bool, error) {
	ent, err := db.e.find(store, key)
	if err != nil {
		return nil, false, err
	}

	if ent == nil {
		return nil, false, nil
	}

	v, err := db.load(ent.pos)
	if err != nil {
		return nil, false, err
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (db *Database) delete(store, key string) error {
	ent, err := db.e.find(store, key)
	if err != nil {
		return err
	}

	if ent == nil {
		return nil
	}

	rs := respSerializer{pos: db.p.offset()}
	rs.serializeDel(store, key)
	if err := db.p.write(&rs); err != nil {
		return err
	}

	if _, err := db.e.remove(store, key); err != nil {
		return err
	}

	db.cache.Remove(ent.pos.offset)
	return nil
}

func (db *Database) load(pos position) ([]byte, error) {
	if v, ok := db.cache.Get(pos.offset); ok {
		return v, nil
	}

	v, err := db.p.readAt(pos)
	if err != nil {
		return nil, err
	}

	db.cache.Add(pos.offset, v)
	return v, nil
}

func (db *Database) vacuum() error {
	rs := respSerializer{}
	rs.serializeVersion(db.e.version)
	for _, name := range db.e.storeNames {
		rs.serializeCreateStore(name)
	}

	moved := make(map[*entry]position)
	var loadErr error
	db.e.ascend(func(storeName string, ent *entry) bool {
		v, err := db.load(ent.pos)
		if err != nil {
			loadErr = err
			return false
		}

		moved[ent] = rs.serializeSet(storeName, ent.key.String(), v)
		return true
	})

	if loadErr != nil {
		return errors.Wrap(loadErr, "vacuum could not load live values")
	}

	before := db.p.size()
	if err := db.p.writeAndSwap(&rs); err != nil {
		return err
	}

	for ent, pos := range moved {
		ent.pos = pos
	}

	// offsets are cache keys and they all moved
	db.cache.Purge()
	db.e.garbage = 0

	log.Debug().
		Str("db", db.name).
		Int64("before", before).
		Int64("after", db.p.size()).
		Msg("database vacuumed")

	return nil
}
