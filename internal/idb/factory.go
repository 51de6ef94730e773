package idb

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const fileExt = ".idb"

// Factory opens databases living in one data directory. A database
// name maps to a single open *Database per factory.
type Factory struct {
	cfg Config

	mu  sync.Mutex
	dbs map[string]*Database
}

func NewFactory(cfg Config) *Factory {
	return &Factory{
		cfg: cfg.withDefaults(),
		dbs: make(map[string]*Database),
	}
}

// Open opens (creating if needed) the named database at version,
// running upgrade when the stored version is older. The work happens
// in the background, the returned request completes with the result.
func (f *Factory) Open(name string, version int, upgrade UpgradeFunc) *OpenRequest {
	req := newOpenRequest()

	go func() {
		req.resolve(f.open(name, version, upgrade))
	}()

	return req
}

func (f *Factory) open(name string, version int, upgrade UpgradeFunc) (*Database, error) {
	if f.cfg.Dir == "" {
		return nil, errors.Wrap(ErrUnavailable, "no data directory configured")
	}

	if err := validateName(name); err != nil {
		return nil, err
	}

	if version < 1 {
		return nil, errors.Wrapf(ErrVersion, "version %d is invalid", version)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if db, ok := f.dbs[name]; ok {
		if err := db.ensureVersion(version, upgrade); err != nil {
			return nil, err
		}

		return db, nil
	}

	if err := os.MkdirAll(f.cfg.Dir, 0755); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "data directory %s: %v", f.cfg.Dir, err)
	}

	path := filepath.Join(f.cfg.Dir, name+fileExt)
	db, err := openDatabase(path, name, f.cfg)
	if err != nil {
		return nil, err
	}

	if err := db.upgradeTo(version, upgrade); err != nil {
		_ = db.p.close()
		return nil, err
	}

	db.onClose = func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.dbs[name] == db {
			delete(f.dbs, name)
		}
	}

	db.start()
	f.dbs[name] = db

	log.Debug().
		Str("db", name).
		Str("path", path).
		Int("version", db.Version()).
		Msg("database opened")

	return db, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.Wrapf(ErrInvalidName, "database name %q", name)
	}

	return nil
}

// Close closes every database this factory has open.
func (f *Factory) Close() error {
	f.mu.Lock()
	dbs := make([]*Database, 0, len(f.dbs))
	for _, db := range f.dbs {
		dbs = append(dbs, db)
	}
	f.mu.Unlock()

	var result error
	for _, db := range dbs {
		if err := db.Close(); err != nil && !errors.Is(err, ErrDatabaseClosed) && result == nil {
			result = errors.Wrapf(err, "could not close %s", db.Name())
		}
	}

	return result
}
