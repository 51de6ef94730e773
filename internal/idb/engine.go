package idb

import (
	"strings"

	"github.com/denismitr/portfoliocad/options"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

const castPanic = "how could primary keys item not be of type *entry"

type objectStore struct {
	name string
	pks  *btree.BTree
}

func newObjectStore(name string) *objectStore {
	return &objectStore{name: name, pks: btree.NewNonConcurrent(byPrimaryKeys)}
}

// engine is the in memory model rebuilt from the database file,
// it is only ever touched by the database worker.
type engine struct {
	version    int
	stores     map[string]*objectStore
	storeNames []string

	// garbage counts log commands that no longer describe live state
	garbage uint64
}

func newEngine() *engine {
	return &engine{stores: make(map[string]*objectStore)}
}

func (e *engine) setVersion(v int) {
	e.version = v
}

func (e *engine) hasStore(name string) bool {
	_, ok := e.stores[name]
	return ok
}

func (e *engine) createStore(name string) error {
	if e.hasStore(name) {
		return errors.Wrapf(ErrStoreExists, "%s", name)
	}

	e.stores[name] = newObjectStore(name)
	e.storeNames = append(e.storeNames, name)
	return nil
}

func (e *engine) store(name string) (*objectStore, error) {
	s, ok := e.stores[name]
	if !ok {
		return nil, errors.Wrapf(ErrStoreNotFound, "%s", name)
	}

	return s, nil
}

// put sets ent and returns the entry it replaced, if any
func (e *engine) put(storeName string, ent *entry) (*entry, error) {
	s, err := e.store(storeName)
	if err != nil {
		return nil, err
	}

	existing := s.pks.Set(ent)
	if existing == nil {
		return nil, nil
	}

	prev, ok := existing.(*entry)
	if !ok {
		panic(castPanic)
	}

	e.garbage++
	return prev, nil
}

func (e *engine) find(storeName, key string) (*entry, error) {
	s, err := e.store(storeName)
	if err != nil {
		return nil, err
	}

	found := s.pks.Get(&entry{key: newPK(key)})
	if found == nil {
		return nil, nil
	}

	ent, ok := found.(*entry)
	if !ok {
		panic(castPanic)
	}

	return ent, nil
}

// remove deletes key and returns the removed entry, nil when it was absent
func (e *engine) remove(storeName, key string) (*entry, error) {
	s, err := e.store(storeName)
	if err != nil {
		return nil, err
	}

	removed := s.pks.Delete(&entry{key: newPK(key)})
	if removed == nil {
		return nil, nil
	}

	ent, ok := removed.(*entry)
	if !ok {
		panic(castPanic)
	}

	// the replaced set and the del command are both dead now
	e.garbage += 2
	return ent, nil
}

func (e *engine) count() int {
	var n int
	for _, s := range e.stores {
		n += s.pks.Len()
	}
	return n
}

func (e *engine) keys(storeName string, opts *options.ListOptions) ([]string, error) {
	s, err := e.store(storeName)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = options.List()
	}

	var lower, upper *PK
	if opts.KR != nil {
		if opts.KR.Lower != "" {
			pk := newPK(opts.KR.Lower)
			lower = &pk
		}
		if opts.KR.Upper != "" {
			pk := newPK(opts.KR.Upper)
			upper = &pk
		}
	}

	result := make([]string, 0)
	iter := func(item interface{}) bool {
		ent, ok := item.(*entry)
		if !ok {
			panic(castPanic)
		}

		if lower != nil && ent.key.Less(*lower) {
			return true
		}

		if upper != nil && upper.Less(ent.key) {
			return true
		}

		if opts.Px != "" && !strings.HasPrefix(ent.key.String(), opts.Px) {
			return true
		}

		result = append(result, ent.key.String())
		return opts.Limit <= 0 || len(result) < opts.Limit
	}

	if opts.O == options.Descend {
		s.pks.Descend(nil, iter)
	} else {
		s.pks.Ascend(nil, iter)
	}

	return result, nil
}

// ascend walks every live entry of every store in creation order
func (e *engine) ascend(fn func(storeName string, ent *entry) bool) {
	for _, name := range e.storeNames {
		next := true
		e.stores[name].pks.Ascend(nil, func(item interface{}) bool {
			ent, ok := item.(*entry)
			if !ok {
				panic(castPanic)
			}

			next = fn(name, ent)
			return next
		})

		if !next {
			return
		}
	}
}
