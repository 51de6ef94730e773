package idb

import (
	"context"
)

// Request is the pending result of a single transaction. It completes
// exactly once, Done is closed when the outcome is available.
type Request struct {
	done  chan struct{}
	value []byte
	found bool
	keys  []string
	err   error
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

// ResolvedRequest returns a request that has already completed with the
// given outcome.
func ResolvedRequest(value []byte, found bool, err error) *Request {
	r := newRequest()
	r.resolve(value, found, err)
	return r
}

// ResolvedKeysRequest returns an already completed key listing.
func ResolvedKeysRequest(keys []string, err error) *Request {
	r := newRequest()
	r.resolveKeys(keys, err)
	return r
}

func (r *Request) resolve(value []byte, found bool, err error) {
	r.value, r.found, r.err = value, found, err
	close(r.done)
}

func (r *Request) resolveKeys(keys []string, err error) {
	r.keys, r.err = keys, err
	close(r.done)
}

func (r *Request) fail(err error) {
	r.resolve(nil, false, err)
}

func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Value blocks until the request completes. found is false when the key
// was absent, which is not an error.
func (r *Request) Value() (value []byte, found bool, err error) {
	<-r.done
	return r.value, r.found, r.err
}

func (r *Request) Keys() ([]string, error) {
	<-r.done
	return r.keys, r.err
}

func (r *Request) Err() error {
	<-r.done
	return r.err
}

// Await waits for completion or for ctx to be done, whichever is first.
// Giving up on ctx does not cancel the transaction itself.
func (r *Request) Await(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpenRequest is the pending result of opening a database.
type OpenRequest struct {
	done chan struct{}
	db   *Database
	err  error
}

func newOpenRequest() *OpenRequest {
	return &OpenRequest{done: make(chan struct{})}
}

func (r *OpenRequest) resolve(db *Database, err error) {
	r.db, r.err = db, err
	close(r.done)
}

func (r *OpenRequest) Done() <-chan struct{} {
	return r.done
}

func (r *OpenRequest) Database() (*Database, error) {
	<-r.done
	return r.db, r.err
}
