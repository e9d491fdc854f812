package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/catalog"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/partition"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/registry"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/snapshot"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// memoryProvider serves fixed records and counts loads.
type memoryProvider struct {
	tables map[string]*metadata.TableMetadata
	loads  int32
}

func (p *memoryProvider) LoadTable(_ context.Context, schema, table string) (*metadata.TableMetadata, error) {
	atomic.AddInt32(&p.loads, 1)
	tab, ok := p.tables[schema+"."+table]
	if !ok {
		return nil, catalog.ErrTableNotFound
	}
	return tab, nil
}

func (p *memoryProvider) ListTables(_ context.Context, schema string) ([]string, error) {
	var names []string
	for _, tab := range p.tables {
		if tab.Schema == schema {
			names = append(names, tab.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func newTestHandler(t *testing.T) (*DescriptorHandler, *memoryProvider) {
	t.Helper()
	orders := metadata.NewTableBuilder("shop", "orders").
		AddColumn("id", metadata.ColumnTypeLong).
		AddColumn("year", metadata.ColumnTypeShort).
		AddPrimaryKey("id", "year").
		PartitionBy(metadata.PartitionTypeRange, "year").
		AddPartition("p0", metadata.Literal(0, 0, "2000")).
		AddPartition("p1", metadata.MaxValue(0, 0)).
		MustBuild()
	items := metadata.NewTableBuilder("shop", "items").
		AddColumn("id", metadata.ColumnTypeLong).
		AddPrimaryKey("id").
		MustBuild()
	broken := metadata.NewTableBuilder("shop", "broken").
		WithEngine("Archive").
		AddColumn("id", metadata.ColumnTypeLong).
		MustBuild()

	provider := &memoryProvider{tables: map[string]*metadata.TableMetadata{
		"shop.orders": orders,
		"shop.items":  items,
		"shop.broken": broken,
	}}
	compiler := tableshare.NewCompiler(registry.DefaultEngines(), registry.DefaultCollations(),
		registry.NewParserRegistry(), partition.NewGenerator())
	cache, err := NewDescriptorCache(8)
	require.NoError(t, err)
	return NewDescriptorHandler(provider, compiler, cache), provider
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestDescriptorHandler_Describe(t *testing.T) {
	h, provider := newTestHandler(t)

	rec := get(t, h, http.MethodGet, "/tables/shop/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp DescriptorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, "orders", resp.Descriptor.Name)
	assert.Equal(t, 0, resp.Descriptor.PrimaryKey)

	rec = get(t, h, http.MethodGet, "/tables/shop/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.loads))

	rec = get(t, h, http.MethodDelete, "/tables/shop/orders/cache")
	assert.JSONEq(t, `{"removed":true}`, rec.Body.String())
	get(t, h, http.MethodGet, "/tables/shop/orders")
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.loads))
}

func TestDescriptorHandler_Partitions(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, http.MethodGet, "/tables/shop/orders/partitions")
	require.Equal(t, http.StatusOK, rec.Code)
	var info tableshare.PartitionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, tableshare.MethodRange, info.Method)
	assert.Equal(t, 2, info.NumParts)
	assert.Contains(t, info.Text, "PARTITION BY RANGE (year)")

	rec = get(t, h, http.MethodGet, "/tables/shop/items/partitions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDescriptorHandler_Errors(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, http.MethodGet, "/tables/shop/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, http.MethodGet, "/tables/shop/broken")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UnknownStorageEngine", resp.Kind)

	rec = get(t, h, http.MethodGet, "/tables/shop/orders/snapshot?compress=zstd")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, http.MethodPost, "/tables/shop/orders")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDescriptorHandler_Snapshot(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, http.MethodGet, "/tables/shop/orders/snapshot?compress=snappy")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "snappy", rec.Header().Get("X-Snapshot-Compress"))

	desc, err := snapshot.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "orders", desc.Name)
	require.NotNil(t, desc.Partition)
}

func TestDescriptorHandler_ListAndHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, http.MethodGet, "/tables/shop")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schema":"shop","tables":["broken","items","orders"]}`, rec.Body.String())

	rec = get(t, h, http.MethodGet, "/tables/empty")
	assert.JSONEq(t, `{"schema":"empty","tables":[]}`, rec.Body.String())

	rec = get(t, h, http.MethodGet, "/healthz")
	assert.JSONEq(t, `{"status":"ok","cached":0}`, rec.Body.String())
}

func TestDescriptorCache_CompilesOnce(t *testing.T) {
	cache, err := NewDescriptorCache(2)
	require.NoError(t, err)

	var calls int32
	compile := func() (*compiledTable, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return &compiledTable{desc: &tableshare.TableDescriptor{Name: "t"}}, nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _, err := cache.GetOrCompile("s", "t", compile)
			assert.NoError(t, err)
			assert.Equal(t, "t", e.desc.Name)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, _, _ = cache.GetOrCompile("s", "u", compile)
	_, _, _ = cache.GetOrCompile("s", "v", compile)
	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Invalidate("s", "t"))
	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestDescriptorCache_RetriesAfterFailureOneAtATime(t *testing.T) {
	cache, err := NewDescriptorCache(2)
	require.NoError(t, err)

	var calls, inFlight, maxInFlight int32
	release := make(chan struct{})
	compile := func() (*compiledTable, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
			return nil, errors.New("catalog unavailable")
		}
		time.Sleep(time.Millisecond)
		return &compiledTable{desc: &tableshare.TableDescriptor{Name: "t"}}, nil
	}
	waiters := func() int {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		if l, ok := cache.loading["s.t"]; ok {
			return l.refs
		}
		return 0
	}

	first := make(chan error, 1)
	go func() {
		_, _, err := cache.GetOrCompile("s", "t", compile)
		first <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _, err := cache.GetOrCompile("s", "t", compile)
			if assert.NoError(t, err) {
				assert.Equal(t, "t", e.desc.Name)
			}
		}()
	}
	require.Eventually(t, func() bool { return waiters() == 9 }, time.Second, time.Millisecond)

	close(release)
	assert.Error(t, <-first)
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.Equal(t, 0, waiters())
	assert.Empty(t, cache.loading)
}

func TestServer_RunAndStop(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := NewServer(h, WithLocalAddress("127.0.0.1:0"), WithShutdownTimeout(time.Second))
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.RunContext(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"status":"ok"`)

	srv.Stop()
	assert.True(t, srv.IsClosed())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
