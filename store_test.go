package portfoliocad_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/denismitr/portfoliocad"
	"github.com/denismitr/portfoliocad/internal/idb"
	"github.com/denismitr/portfoliocad/options"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const logoURL = "data:image/png;base64,AAA="

type countingHost struct {
	opens atomic.Int32
	f     *idb.Factory
}

func (h *countingHost) Open(name string, version int, upgrade idb.UpgradeFunc) *idb.OpenRequest {
	h.opens.Add(1)
	return h.f.Open(name, version, upgrade)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type storeTestSuite struct {
	suite.Suite
	dir   string
	host  *countingHost
	store *portfoliocad.Store
}

func TestStore(t *testing.T) {
	suite.Run(t, &storeTestSuite{})
}

func (sts *storeTestSuite) SetupTest() {
	sts.dir = sts.T().TempDir()
	sts.host = &countingHost{f: idb.NewFactory(idb.Config{Dir: sts.dir, DisableAutoVacuum: true})}
	sts.store = portfoliocad.NewWithHost(sts.host)
}

func (sts *storeTestSuite) TestPutThenGet() {
	ctx := context.Background()
	before := time.Now().UnixMilli()

	sts.Require().NoError(sts.store.Put(ctx, "hero", "data:image/jpeg;base64,/9j/"))

	r, err := sts.store.Get(ctx, "hero")
	sts.Require().NoError(err)
	sts.Require().NotNil(r)
	sts.Assert().Equal("hero", r.ID)
	sts.Assert().Equal("data:image/jpeg;base64,/9j/", r.Data)
	sts.Assert().GreaterOrEqual(r.Timestamp, before)
}

func (sts *storeTestSuite) TestNamedImage() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL, options.Put().SetName("Logo")))

	r, err := sts.store.Get(ctx, "logo")
	sts.Require().NoError(err)
	sts.Require().NotNil(r)
	sts.Assert().Equal("logo", r.ID)
	sts.Assert().Equal(logoURL, r.Data)
	sts.Assert().Equal("Logo", r.Name)
	sts.Assert().NotZero(r.Timestamp)
}

func (sts *storeTestSuite) TestDefaultName() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL))

	r, err := sts.store.Get(ctx, "logo")
	sts.Require().NoError(err)
	sts.Require().NotNil(r)
	sts.Assert().Equal(portfoliocad.DefaultName, r.Name)
}

func (sts *storeTestSuite) TestLastWriteWins() {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := portfoliocad.NewWithHost(sts.host, portfoliocad.WithClock(clock.Now))

	sts.Require().NoError(store.Put(ctx, "logo", "data:,A"))
	first, err := store.Get(ctx, "logo")
	sts.Require().NoError(err)

	sts.Require().NoError(store.Put(ctx, "logo", "data:,B", options.Put().SetName("second")))
	second, err := store.Get(ctx, "logo")
	sts.Require().NoError(err)

	sts.Assert().Equal("data:,B", second.Data)
	sts.Assert().Equal("second", second.Name)
	sts.Assert().Equal(first.Timestamp+1000, second.Timestamp)
}

func (sts *storeTestSuite) TestDeleteThenGet() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL))
	sts.Require().NoError(sts.store.Delete(ctx, "logo"))

	r, err := sts.store.Get(ctx, "logo")
	sts.Require().NoError(err)
	sts.Assert().Nil(r)

	data, found, err := sts.store.GetDataURL(ctx, "logo")
	sts.Require().NoError(err)
	sts.Assert().False(found)
	sts.Assert().Empty(data)
}

func (sts *storeTestSuite) TestNeverWritten() {
	ctx := context.Background()

	data, found, err := sts.store.GetDataURL(ctx, "ghost")
	sts.Require().NoError(err)
	sts.Assert().False(found)
	sts.Assert().Empty(data)

	r, err := sts.store.Get(ctx, "ghost")
	sts.Require().NoError(err)
	sts.Assert().Nil(r)

	sts.Assert().NoError(sts.store.Delete(ctx, "ghost"))
}

func (sts *storeTestSuite) TestGetDataURL() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL, options.Put().SetName("Logo")))

	data, found, err := sts.store.GetDataURL(ctx, "logo")
	sts.Require().NoError(err)
	sts.Assert().True(found)
	sts.Assert().Equal(logoURL, data)
}

func (sts *storeTestSuite) TestDataIsStoredVerbatim() {
	ctx := context.Background()
	weird := "not a data url at all \"quoted\" \n"
	sts.Require().NoError(sts.store.Put(ctx, "odd", weird))

	data, found, err := sts.store.GetDataURL(ctx, "odd")
	sts.Require().NoError(err)
	sts.Assert().True(found)
	sts.Assert().Equal(weird, data)
}

func (sts *storeTestSuite) TestReturnedRecordsAreCopies() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL))

	r, err := sts.store.Get(ctx, "logo")
	sts.Require().NoError(err)
	r.Data = "data:,changed"
	r.Name = "changed"

	again, err := sts.store.Get(ctx, "logo")
	sts.Require().NoError(err)
	sts.Assert().Equal(logoURL, again.Data)
	sts.Assert().Equal(portfoliocad.DefaultName, again.Name)
}

func (sts *storeTestSuite) TestEmptyIDIsRejected() {
	ctx := context.Background()

	sts.Assert().True(errors.Is(sts.store.Put(ctx, "", logoURL), portfoliocad.ErrInvalidID))
	_, err := sts.store.Get(ctx, "")
	sts.Assert().True(errors.Is(err, portfoliocad.ErrInvalidID))
	sts.Assert().True(errors.Is(sts.store.Delete(ctx, ""), portfoliocad.ErrInvalidID))
	_, _, err = sts.store.GetDataURL(ctx, "")
	sts.Assert().True(errors.Is(err, portfoliocad.ErrInvalidID))
}

func (sts *storeTestSuite) TestKeys() {
	ctx := context.Background()
	for _, id := range []string{"project:10", "logo", "project:2", "hero"} {
		sts.Require().NoError(sts.store.Put(ctx, id, logoURL))
	}

	ids, err := sts.store.Keys(ctx, nil)
	sts.Require().NoError(err)
	sts.Assert().Equal([]string{"hero", "logo", "project:2", "project:10"}, ids)

	ids, err = sts.store.Keys(ctx, options.List().Prefix("project:").SetOrder(options.Descend).SetLimit(1))
	sts.Require().NoError(err)
	sts.Assert().Equal([]string{"project:10"}, ids)
}

func (sts *storeTestSuite) TestLookalikeIDsStayDistinct() {
	ctx := context.Background()
	ids := []string{"1", "+1", "2a", "3", "10", "01", "img:1", "img:+1"}
	for _, id := range ids {
		sts.Require().NoError(sts.store.Put(ctx, id, "data:,"+id))
	}

	for _, id := range ids {
		r, err := sts.store.Get(ctx, id)
		sts.Require().NoError(err)
		sts.Require().NotNil(r, id)
		sts.Assert().Equal(id, r.ID)
		sts.Assert().Equal("data:,"+id, r.Data)
	}

	all, err := sts.store.Keys(ctx, nil)
	sts.Require().NoError(err)
	sts.Assert().Equal([]string{"1", "3", "10", "+1", "01", "2a", "img:1", "img:+1"}, all)
}

func (sts *storeTestSuite) TestManyMixedIDsReadBack() {
	ctx := context.Background()
	var ids []string
	for i := 1; i <= 300; i++ {
		ids = append(ids, strconv.Itoa(i), strconv.Itoa(i)+"a")
	}

	for _, id := range ids {
		sts.Require().NoError(sts.store.Put(ctx, id, "data:,"+id))
	}

	for _, id := range ids {
		data, found, err := sts.store.GetDataURL(ctx, id)
		sts.Require().NoError(err)
		sts.Require().True(found, id)
		sts.Assert().Equal("data:,"+id, data)
	}

	all, err := sts.store.Keys(ctx, nil)
	sts.Require().NoError(err)
	sts.Assert().Len(all, len(ids))
}

func (sts *storeTestSuite) TestInfoAndVacuum() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", "data:,A"))
	sts.Require().NoError(sts.store.Put(ctx, "logo", "data:,B"))
	sts.Require().NoError(sts.store.Put(ctx, "hero", "data:,C"))

	before, err := sts.store.Info(ctx)
	sts.Require().NoError(err)
	sts.Assert().Equal(portfoliocad.DatabaseName, before.Name)
	sts.Assert().Equal(portfoliocad.DatabaseVersion, before.Version)
	sts.Assert().Equal([]string{portfoliocad.ImagesStore}, before.ObjectStores)
	sts.Assert().Equal(filepath.Join(sts.dir, portfoliocad.DatabaseName+".idb"), before.Path)
	sts.Assert().Equal(2, before.Records)
	sts.Assert().Equal(uint64(1), before.Garbage)

	// the returned info is the caller's own
	before.ObjectStores[0] = "changed"

	sts.Require().NoError(sts.store.Vacuum(ctx))

	after, err := sts.store.Info(ctx)
	sts.Require().NoError(err)
	sts.Assert().Equal([]string{portfoliocad.ImagesStore}, after.ObjectStores)
	sts.Assert().Equal(uint64(0), after.Garbage)
	sts.Assert().Less(after.Size, before.Size)

	r, err := sts.store.Get(ctx, "logo")
	sts.Require().NoError(err)
	sts.Assert().Equal("data:,B", r.Data)
}

func (sts *storeTestSuite) TestOpensOnceUnderConcurrency() {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sts.store.Get(ctx, "logo")
			sts.Assert().NoError(err)
		}()
	}
	wg.Wait()

	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL))
	sts.Assert().Equal(int32(1), sts.host.opens.Load())
}

func (sts *storeTestSuite) TestImagesSurviveANewProcess() {
	ctx := context.Background()
	sts.Require().NoError(sts.store.Put(ctx, "logo", logoURL, options.Put().SetName("Logo")))

	// a fresh factory plays the part of a restarted process
	next := portfoliocad.New(sts.dir)
	r, err := next.Get(ctx, "logo")
	sts.Require().NoError(err)
	sts.Require().NotNil(r)
	sts.Assert().Equal("Logo", r.Name)
	sts.Assert().Equal(logoURL, r.Data)
}

func TestStore_EnvironmentUnavailable(t *testing.T) {
	ctx := context.Background()
	host := &countingHost{f: idb.NewFactory(idb.Config{})}
	store := portfoliocad.NewWithHost(host)

	err := store.Put(ctx, "logo", logoURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, portfoliocad.ErrEnvironmentUnavailable))

	_, err = store.Get(ctx, "logo")
	assert.True(t, errors.Is(err, portfoliocad.ErrEnvironmentUnavailable))

	_, _, err = store.GetDataURL(ctx, "logo")
	assert.True(t, errors.Is(err, portfoliocad.ErrEnvironmentUnavailable))

	assert.True(t, errors.Is(store.Delete(ctx, "logo"), portfoliocad.ErrEnvironmentUnavailable))

	// the failure is remembered, not retried
	assert.Equal(t, int32(1), host.opens.Load())
}

func TestStore_OpenFailureIsAReadFailure(t *testing.T) {
	dir := t.TempDir()
	// a directory where the database file should be
	require.NoError(t, os.Mkdir(filepath.Join(dir, portfoliocad.DatabaseName+".idb"), 0755))

	store := portfoliocad.New(dir)
	_, err := store.Get(context.Background(), "logo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, portfoliocad.ErrStorageReadFailed))
	assert.False(t, errors.Is(err, portfoliocad.ErrEnvironmentUnavailable))
}

type recordedOp struct {
	op  string
	err error
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (o *recordingObserver) ObserveStoreOp(op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, recordedOp{op: op, err: err})
}

func TestStore_Observer(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	store := portfoliocad.New(t.TempDir(), portfoliocad.WithObserver(obs))

	require.NoError(t, store.Put(ctx, "logo", logoURL))
	_, err := store.Get(ctx, "logo")
	require.NoError(t, err)
	_, _, err = store.GetDataURL(ctx, "logo")
	require.NoError(t, err)
	_, err = store.Keys(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "logo"))
	require.Error(t, store.Put(ctx, "", logoURL))

	require.Len(t, obs.ops, 6)
	assert.Equal(t, []string{"put", "get", "get_data_url", "keys", "delete", "put"}, []string{
		obs.ops[0].op, obs.ops[1].op, obs.ops[2].op, obs.ops[3].op, obs.ops[4].op, obs.ops[5].op,
	})
	assert.NoError(t, obs.ops[0].err)
	assert.True(t, errors.Is(obs.ops[5].err, portfoliocad.ErrInvalidID))
}
