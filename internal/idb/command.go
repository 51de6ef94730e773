package idb

import (
	"strconv"

	"github.com/pkg/errors"
)

type commandCode int8

const (
	invalidCode commandCode = iota
	versionCode
	createStoreCode
	setCode
	delCode
)

// command is one replayable record of the database file
type command interface {
	apply(e *engine) error
}

type versionCmd struct {
	version int
}

func (cmd *versionCmd) apply(e *engine) error {
	if cmd.version < e.version {
		return errors.Wrapf(ErrCorrupted, "version went down from %d to %d", e.version, cmd.version)
	}

	e.setVersion(cmd.version)
	return nil
}

type createStoreCmd struct {
	name string
}

func (cmd *createStoreCmd) apply(e *engine) error {
	if err := e.createStore(cmd.name); err != nil {
		return errors.Wrap(ErrCorrupted, err.Error())
	}

	return nil
}

type setCmd struct {
	store string
	ent   *entry
}

func (cmd *setCmd) apply(e *engine) error {
	if _, err := e.put(cmd.store, cmd.ent); err != nil {
		return errors.Wrap(ErrCorrupted, err.Error())
	}

	return nil
}

type deleteCmd struct {
	store string
	key   string
}

func (cmd *deleteCmd) apply(e *engine) error {
	removed, err := e.remove(cmd.store, cmd.key)
	if err != nil {
		return errors.Wrap(ErrCorrupted, err.Error())
	}

	if removed == nil {
		// a del is only ever logged for a present key
		return errors.Wrapf(ErrCorrupted, "del of absent key %s in %s", cmd.key, cmd.store)
	}

	return nil
}

func parseVersion(b []byte) (int, error) {
	v, err := strconv.Atoi(string(b))
	if err != nil || v < 1 {
		return 0, errors.Wrapf(ErrCommandInvalid, "version %q is invalid", string(b))
	}

	return v, nil
}
