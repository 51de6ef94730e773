package portfoliocad

import (
	"context"
	"sync"
	"time"

	"github.com/denismitr/portfoliocad/internal/idb"
	"github.com/denismitr/portfoliocad/options"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DatabaseName    = "portfoliocad-db"
	DatabaseVersion = 1
	ImagesStore     = "images"
)

// Host is the embedded database capability of the process.
// *idb.Factory is the production implementation.
type Host interface {
	Open(name string, version int, upgrade idb.UpgradeFunc) *idb.OpenRequest
}

// Observer gets told about every finished store operation.
type Observer interface {
	ObserveStoreOp(op string, took time.Duration, err error)
}

type database interface {
	Put(store, key string, value []byte) *idb.Request
	Get(store, key string) *idb.Request
	Delete(store, key string) *idb.Request
	Keys(store string, opts *options.ListOptions) *idb.Request
	Info() (idb.Info, error)
	Vacuum() error
}

type Option func(s *Store)

// WithClock replaces the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.obs = o
	}
}

// Store keeps images in the images object store of the portfoliocad
// database. The database is opened on first use, exactly once per Store,
// and an open failure is remembered for the lifetime of the Store.
type Store struct {
	host Host
	now  func() time.Time
	obs  Observer

	once    sync.Once
	ready   chan struct{}
	db      database
	openErr error
}

// New returns a store persisting into dir. An empty dir leaves the
// store without a persistent database.
func New(dir string, opts ...Option) *Store {
	return NewWithHost(idb.NewFactory(idb.Config{Dir: dir}), opts...)
}

func NewWithHost(host Host, opts ...Option) *Store {
	s := &Store{
		host:  host,
		now:   time.Now,
		ready: make(chan struct{}),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

func createImagesStore(u *idb.Upgrade) error {
	if u.HasObjectStore(ImagesStore) {
		return nil
	}

	return u.CreateObjectStore(ImagesStore)
}

func (s *Store) open() {
	defer close(s.ready)

	db, err := s.host.Open(DatabaseName, DatabaseVersion, createImagesStore).Database()
	if err != nil {
		if errors.Is(err, idb.ErrUnavailable) {
			s.openErr = errors.Wrap(ErrEnvironmentUnavailable, err.Error())
		} else {
			s.openErr = errors.Wrap(ErrStorageReadFailed, err.Error())
		}

		log.Warn().Err(err).Str("db", DatabaseName).Msg("image database could not be opened")
		return
	}

	s.db = db
}

// database waits for the one and only open, ctx only bounds the wait
func (s *Store) database(ctx context.Context) (database, error) {
	s.once.Do(func() {
		go s.open()
	})

	select {
	case <-s.ready:
		return s.db, s.openErr
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "gave up waiting for the image database")
	}
}

func (s *Store) observe(op string, start time.Time, err *error) {
	if s.obs != nil {
		s.obs.ObserveStoreOp(op, time.Since(start), *err)
	}
}

// Put creates or replaces the image id. The record is stamped with the
// current time and named options.PutOptions.Name or DefaultName.
func (s *Store) Put(ctx context.Context, id, dataURL string, opts ...*options.PutOptions) (err error) {
	defer s.observe("put", time.Now(), &err)

	if id == "" {
		return ErrInvalidID
	}

	db, err := s.database(ctx)
	if err != nil {
		return err
	}

	po := options.MergePutOptions(opts...)
	name := DefaultName
	if po.Name != nil {
		name = *po.Name
	}

	raw, err := encodeRecord(&ImageRecord{
		ID:        id,
		Data:      dataURL,
		Name:      name,
		Timestamp: s.now().UnixMilli(),
	})
	if err != nil {
		return errors.Wrap(ErrStorageWriteFailed, err.Error())
	}

	if err := db.Put(ImagesStore, id, raw).Await(ctx); err != nil {
		return wrapRequestErr(ctx, ErrStorageWriteFailed, err, "put", id)
	}

	return nil
}

// Get returns the image id, or nil when there is no such image.
func (s *Store) Get(ctx context.Context, id string) (_ *ImageRecord, err error) {
	defer s.observe("get", time.Now(), &err)

	raw, found, err := s.getRaw(ctx, "get", id)
	if err != nil || !found {
		return nil, err
	}

	r, err := decodeRecord(id, raw)
	if err != nil {
		return nil, errors.Wrap(ErrStorageReadFailed, err.Error())
	}

	return r, nil
}

// Delete removes the image id, deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if id == "" {
		return ErrInvalidID
	}

	db, err := s.database(ctx)
	if err != nil {
		return err
	}

	if err := db.Delete(ImagesStore, id).Await(ctx); err != nil {
		return wrapRequestErr(ctx, ErrStorageWriteFailed, err, "delete", id)
	}

	return nil
}

// GetDataURL returns only the data URL of image id, found is false
// when there is no such image.
func (s *Store) GetDataURL(ctx context.Context, id string) (_ string, _ bool, err error) {
	defer s.observe("get_data_url", time.Now(), &err)

	raw, found, err := s.getRaw(ctx, "get data url of", id)
	if err != nil || !found {
		return "", false, err
	}

	data, err := dataField(id, raw)
	if err != nil {
		return "", false, errors.Wrap(ErrStorageReadFailed, err.Error())
	}

	return data, true, nil
}

// Keys lists stored image ids in key order.
func (s *Store) Keys(ctx context.Context, opts *options.ListOptions) (_ []string, err error) {
	defer s.observe("keys", time.Now(), &err)

	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}

	req := db.Keys(ImagesStore, opts)
	if err := req.Await(ctx); err != nil {
		return nil, wrapRequestErr(ctx, ErrStorageReadFailed, err, "list", "")
	}

	return req.Keys()
}

// DatabaseInfo describes the database behind a Store.
type DatabaseInfo struct {
	Name         string   `json:"name"`
	Version      int      `json:"version"`
	Path         string   `json:"path"`
	ObjectStores []string `json:"objectStores"`
	Records      int      `json:"records"`
	Garbage      uint64   `json:"garbage"`
	Size         int64    `json:"size"`
	CachedValues int      `json:"cachedValues"`
	CachedBytes  uint64   `json:"cachedBytes"`
}

// Info opens the database if needed and reports on it.
func (s *Store) Info(ctx context.Context) (_ *DatabaseInfo, err error) {
	defer s.observe("info", time.Now(), &err)

	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}

	info, err := db.Info()
	if err != nil {
		return nil, errors.Wrapf(ErrStorageReadFailed, "could not describe %s: %v", DatabaseName, err)
	}

	var out DatabaseInfo
	if err := copier.CopyWithOption(&out, &info, copier.Option{DeepCopy: true}); err != nil {
		return nil, errors.Wrapf(ErrStorageReadFailed, "could not copy %s info: %v", DatabaseName, err)
	}

	return &out, nil
}

// Vacuum compacts the database file down to the live images.
func (s *Store) Vacuum(ctx context.Context) (err error) {
	defer s.observe("vacuum", time.Now(), &err)

	db, err := s.database(ctx)
	if err != nil {
		return err
	}

	if err := db.Vacuum(); err != nil {
		return errors.Wrapf(ErrStorageWriteFailed, "could not vacuum %s: %v", DatabaseName, err)
	}

	return nil
}

func (s *Store) getRaw(ctx context.Context, op, id string) ([]byte, bool, error) {
	if id == "" {
		return nil, false, ErrInvalidID
	}

	db, err := s.database(ctx)
	if err != nil {
		return nil, false, err
	}

	req := db.Get(ImagesStore, id)
	if err := req.Await(ctx); err != nil {
		return nil, false, wrapRequestErr(ctx, ErrStorageReadFailed, err, op, id)
	}

	return req.Value()
}

// wrapRequestErr keeps a caller giving up distinguishable from a failed request
func wrapRequestErr(ctx context.Context, sentinel, err error, op, id string) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return errors.Wrapf(err, "gave up waiting to %s image %q", op, id)
	}

	return errors.Wrapf(sentinel, "could not %s image %q: %v", op, id, err)
}
