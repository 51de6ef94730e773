package idb

import (
	"github.com/pkg/errors"
)

// UpgradeFunc runs when a database is opened with a version newer than
// the one on disk (or the database is brand new). Nothing it does is
// persisted if it returns an error.
type UpgradeFunc func(u *Upgrade) error

type Upgrade struct {
	OldVersion int
	NewVersion int

	e       *engine
	pending []string
}

func (u *Upgrade) HasObjectStore(name string) bool {
	if u.e.hasStore(name) {
		return true
	}

	for _, p := range u.pending {
		if p == name {
			return true
		}
	}

	return false
}

func (u *Upgrade) ObjectStoreNames() []string {
	names := make([]string, 0, len(u.e.storeNames)+len(u.pending))
	names = append(names, u.e.storeNames...)
	return append(names, u.pending...)
}

func (u *Upgrade) CreateObjectStore(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "object store name cannot be empty")
	}

	if u.HasObjectStore(name) {
		return errors.Wrapf(ErrStoreExists, "%s", name)
	}

	u.pending = append(u.pending, name)
	return nil
}

// commit writes the upgrade as one append and only then applies it
func (u *Upgrade) commit(p *persistence) error {
	rs := respSerializer{pos: p.offset()}
	for _, name := range u.pending {
		rs.serializeCreateStore(name)
	}
	rs.serializeVersion(u.NewVersion)

	if err := p.write(&rs); err != nil {
		return err
	}

	for _, name := range u.pending {
		if err := u.e.createStore(name); err != nil {
			return err
		}
	}

	u.e.setVersion(u.NewVersion)
	return nil
}
