package idb

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

var ErrDbFileWriteFailed = errors.New("database write failed")
var ErrSourceFileReadFailed = errors.New("source file read failed")
var ErrCommandInvalid = errors.New("command invalid")
var ErrStorageFailed = errors.New("storage error")

type persistence struct {
	mu       sync.Mutex
	strategy PersistenceStrategy
	f        *os.File
	cursor   int64
	flushes  int

	// syncFile flushes f to stable storage
	syncFile func(f *os.File) error
}

func newPersistence(path string, strategy PersistenceStrategy) (*persistence, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open database file %s", path)
	}

	return &persistence{f: f, strategy: strategy, syncFile: (*os.File).Sync}, nil
}

func (p *persistence) name() string {
	return p.f.Name()
}

func (p *persistence) size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *persistence) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.f.Sync(); err != nil {
		_ = p.f.Close()
		return errors.Wrapf(err, "could not sync file %s on close", p.f.Name())
	}

	if err := p.f.Close(); err != nil {
		return errors.Wrapf(err, "could not close file %s", p.f.Name())
	}

	return nil
}

// load replays the file, a torn tail left by a crash mid write is cut off
func (p *persistence) load(cb func(cmd command) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not rewind %s: %s", p.f.Name(), err.Error())
	}

	prs := &parser{}
	n, err := prs.parse(bufio.NewReader(p.f), cb)
	if err != nil {
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}

		if tErr := p.f.Truncate(int64(n)); tErr != nil {
			return errors.Wrapf(tErr, "could not truncate torn tail of %s", p.f.Name())
		}
	}

	pos, err := p.f.Seek(int64(n), io.SeekStart)
	if err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not move the cursor: %s", err.Error())
	}

	p.cursor = pos
	return nil
}

// offset is where the next write lands
func (p *persistence) offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.cursor)
}

func (p *persistence) write(rs *respSerializer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := rs.buf.Bytes()
	n, err := p.f.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}

	if err != nil {
		if n > 0 {
			// partial write occurred, must rollback the file
			if rbErr := p.rollback(); rbErr != nil {
				return errors.Wrapf(ErrDbFileWriteFailed, "%v and %v", err, rbErr)
			}
		}

		return errors.Wrap(ErrDbFileWriteFailed, err.Error())
	}

	if p.strategy == Sync {
		if err := p.syncFile(p.f); err != nil {
			// the bytes are in the file but not durable, they must not
			// be replayed on the next open either
			if rbErr := p.rollback(); rbErr != nil {
				return errors.Wrapf(ErrDbFileWriteFailed, "could not sync %s: %v and %v", p.f.Name(), err, rbErr)
			}

			return errors.Wrapf(ErrDbFileWriteFailed, "could not sync %s: %v", p.f.Name(), err)
		}
	}

	p.flushes++
	p.cursor += int64(n)
	return nil
}

// rollback cuts the file back to the cursor, must be called under lock
func (p *persistence) rollback() error {
	if err := p.f.Truncate(p.cursor); err != nil {
		return errors.Wrapf(err, "could not truncate %s back", p.f.Name())
	}

	if _, err := p.f.Seek(p.cursor, io.SeekStart); err != nil {
		return errors.Wrapf(err, "could not seek %s back", p.f.Name())
	}

	return nil
}

func (p *persistence) readAt(pos position) ([]byte, error) {
	blob := make([]byte, pos.size)
	if pos.size == 0 {
		return blob, nil
	}

	if _, err := p.f.ReadAt(blob, int64(pos.offset)); err != nil {
		return nil, errors.Wrapf(
			ErrStorageFailed,
			"could not read blob at offset %d in file %s: %s",
			pos.offset, p.f.Name(), err.Error(),
		)
	}

	return blob, nil
}

func (p *persistence) sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.syncFile(p.f); err != nil {
		return errors.Wrapf(err, "cannot sync file %s", p.f.Name())
	}
	return nil
}

// writeAndSwap replaces the whole file with the contents of rs
func (p *persistence) writeAndSwap(rs *respSerializer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	oldName := p.f.Name()
	tmpFName := oldName + ".tmp"
	tmpF, err := os.Create(tmpFName)
	if err != nil {
		return errors.Wrapf(err, "could not create %s file for vacuum", tmpFName)
	}

	defer func() {
		_ = tmpF.Close()
		_ = os.RemoveAll(tmpFName)
	}()

	expectedLen := rs.buf.Len()
	n, err := tmpF.Write(rs.buf.Bytes())
	if err != nil {
		return errors.Wrapf(err, "vacuum could not write into %s file", tmpFName)
	}

	if n != expectedLen {
		return errors.Wrapf(io.ErrShortWrite, "vacuum could not write all the data into %s file", tmpFName)
	}

	if err := tmpF.Sync(); err != nil {
		return errors.Wrapf(err, "vacuum could not sync %s file", tmpFName)
	}

	if err := p.f.Close(); err != nil {
		return errors.Wrapf(err, "vacuum could not close %s file to swap it", oldName)
	}

	if rnErr := os.Rename(tmpFName, oldName); rnErr != nil {
		resultErr := errors.Wrapf(rnErr, "vacuum could not swap %s file for %s", oldName, tmpFName)
		p.f, err = os.OpenFile(oldName, os.O_CREATE|os.O_RDWR, 0666)
		if err != nil {
			return errors.Wrapf(resultErr, "and could not reopen old file: %s", err.Error())
		}

		if _, err := p.f.Seek(p.cursor, io.SeekStart); err != nil {
			return errors.Wrapf(resultErr, "and could not restore the cursor: %s", err.Error())
		}

		return resultErr
	}

	p.f, err = os.OpenFile(oldName, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return errors.Wrapf(err, "could not reopen swapped file: %s", oldName)
	}

	pos, err := p.f.Seek(int64(n), io.SeekStart)
	if err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not move the cursor in file %s: %s", oldName, err.Error())
	}

	p.cursor = pos
	return nil
}
