package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/frame"
	"github.com/tickforge/tickforge/internal/metrics"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/ratelimit"
	"github.com/tickforge/tickforge/internal/vendorapi"
)

const tradesCSV = "timestamp,local_timestamp,id,side,price,amount\n" +
	"1684800000000000,1684800000000123,42,buy,26837.5,0.004\n"

// stubFetcher serves canned responses keyed by vendor symbol and tracks
// concurrency.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     atomic.Int32
	inFlight  atomic.Int32
	peak      atomic.Int32
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: make(map[string][]byte), errs: make(map[string]error)}
}

func (f *stubFetcher) TickFile(ctx context.Context, vendorExchange, product string, day time.Time, vendorSymbol string) ([]byte, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[vendorSymbol]; ok {
		return nil, err
	}
	if data, ok := f.responses[vendorSymbol]; ok {
		return data, nil
	}
	return nil, vendorapi.ErrNoData
}

func testBucket(t *testing.T, capacity int64) *ratelimit.DailyBucket {
	t.Helper()
	b, err := ratelimit.NewDailyBucket(capacity, ratelimit.DefaultRefillPeriod)
	require.NoError(t, err)
	return b
}

func testTarget(i int) domain.DownloadTarget {
	return domain.DownloadTarget{
		InstrumentKey:  fmt.Sprintf("BINANCE:SPOT_PAIR:COIN%d-USDT", i),
		VendorExchange: "binance",
		VendorSymbol:   fmt.Sprintf("COIN%dUSDT", i),
		Product:        domain.ProductTrades,
		Date:           time.Date(2023, 5, 23, 0, 0, 0, 0, time.UTC),
	}
}

func TestDownloadUploadsParsedFrames(t *testing.T) {
	fetcher := newStubFetcher()
	store := objstore.NewMemStore()
	var targets []domain.DownloadTarget
	for i := 0; i < 5; i++ {
		tgt := testTarget(i)
		fetcher.responses[tgt.VendorSymbol] = []byte(tradesCSV)
		targets = append(targets, tgt)
	}

	o := New(fetcher, store, testBucket(t, 1000), Options{BatchSize: 2, MaxConcurrent: 3},
		metrics.NewPipeline(), zerolog.Nop())
	rep, err := o.Download(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, 5, rep.Processed)
	assert.Equal(t, 5, rep.Uploaded)
	assert.Equal(t, 0, rep.Failed)
	assert.Len(t, rep.UploadedPaths, 5)

	for _, tgt := range targets {
		key := objstore.TickDataKey(tgt.Date, tgt.Product, tgt.InstrumentKey)
		data, err := store.Get(context.Background(), key)
		require.NoError(t, err, key)

		schema, err := frame.SchemaFor(tgt.Product)
		require.NoError(t, err)
		f, err := frame.ReadParquet(schema, data)
		require.NoError(t, err)
		require.Len(t, f.Rows, 1)
		assert.Equal(t, 26837.5, f.Rows[0][4])
	}
}

func TestDownloadStatusTaxonomy(t *testing.T) {
	fetcher := newStubFetcher()
	store := objstore.NewMemStore()

	ok := testTarget(0)
	gone := testTarget(1)
	broken := testTarget(2)
	fetcher.responses[ok.VendorSymbol] = []byte(tradesCSV)
	fetcher.errs[broken.VendorSymbol] = errors.New("connection reset")
	targets := []domain.DownloadTarget{ok, gone, broken}

	o := New(fetcher, store, testBucket(t, 1000), Options{},
		metrics.NewPipeline(), zerolog.Nop())
	rep, err := o.Download(context.Background(), targets)
	require.NoError(t, err, "per-target failures never fail the run")

	assert.Equal(t, 1, rep.Uploaded)
	assert.Equal(t, 1, rep.NoData)
	assert.Equal(t, 1, rep.Failed)

	assert.Equal(t, StatusUploaded, rep.PerTargetStatus[TargetID(ok)].Status)
	assert.Equal(t, StatusNoData, rep.PerTargetStatus[TargetID(gone)].Status)
	st := rep.PerTargetStatus[TargetID(broken)]
	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.Error, "connection reset")

	assert.Equal(t, 1, store.Len(), "only the uploaded target reached the store")
}

func TestDownloadStrictMissing(t *testing.T) {
	fetcher := newStubFetcher()
	o := New(fetcher, objstore.NewMemStore(), testBucket(t, 1000),
		Options{StrictMissing: true}, metrics.NewPipeline(), zerolog.Nop())

	rep, err := o.Download(context.Background(), []domain.DownloadTarget{testTarget(0)})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.NoData)
}

func TestDownloadBoundsConcurrency(t *testing.T) {
	fetcher := newStubFetcher()
	var targets []domain.DownloadTarget
	for i := 0; i < 30; i++ {
		tgt := testTarget(i)
		fetcher.responses[tgt.VendorSymbol] = []byte(tradesCSV)
		targets = append(targets, tgt)
	}

	o := New(fetcher, objstore.NewMemStore(), testBucket(t, 1000),
		Options{BatchSize: 30, MaxConcurrent: 4}, metrics.NewPipeline(), zerolog.Nop())
	_, err := o.Download(context.Background(), targets)
	require.NoError(t, err)

	assert.LessOrEqual(t, fetcher.peak.Load(), int32(4), "the semaphore caps in-flight fetches")
	assert.Equal(t, int32(30), fetcher.calls.Load())
}

func TestDownloadCancellationStopsNewBatches(t *testing.T) {
	fetcher := newStubFetcher()
	var targets []domain.DownloadTarget
	for i := 0; i < 10; i++ {
		tgt := testTarget(i)
		fetcher.responses[tgt.VendorSymbol] = []byte(tradesCSV)
		targets = append(targets, tgt)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := New(fetcher, objstore.NewMemStore(), testBucket(t, 1000),
		Options{BatchSize: 2}, metrics.NewPipeline(), zerolog.Nop())
	rep, err := o.Download(ctx, targets)
	require.NoError(t, err, "a cut-short run still returns its report")
	assert.Equal(t, 0, rep.Processed)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestTargetsForDayIsSortedAndComplete(t *testing.T) {
	day := time.Date(2023, 5, 23, 0, 0, 0, 0, time.UTC)
	defs := []domain.InstrumentDefinition{
		{
			InstrumentKey:  "BINANCE:SPOT_PAIR:ETH-USDT",
			VendorExchange: "binance", VendorSymbol: "ETHUSDT",
			DataTypes: "trades,book_snapshot_5",
		},
		{
			InstrumentKey:  "BINANCE:SPOT_PAIR:BTC-USDT",
			VendorExchange: "binance", VendorSymbol: "BTCUSDT",
			DataTypes: "trades,book_snapshot_5",
		},
	}
	targets := TargetsForDay(defs, day)
	require.Len(t, targets, 4)
	assert.Equal(t, "BINANCE:SPOT_PAIR:BTC-USDT", targets[0].InstrumentKey)
	assert.Equal(t, "book_snapshot_5", targets[0].Product)
	assert.Equal(t, "trades", targets[1].Product)
	assert.Equal(t, "BINANCE:SPOT_PAIR:ETH-USDT", targets[2].InstrumentKey)
}

func TestFilterShardIsDisjointAndExhaustive(t *testing.T) {
	var targets []domain.DownloadTarget
	for i := 0; i < 100; i++ {
		targets = append(targets, testTarget(i))
	}

	const total = 4
	seen := make(map[string]int)
	kept := 0
	for shard := 0; shard < total; shard++ {
		for _, tgt := range FilterShard(targets, shard, total) {
			seen[tgt.InstrumentKey]++
			kept++
		}
	}
	assert.Equal(t, len(targets), kept, "every target lands in exactly one shard")
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}

	assert.Len(t, FilterShard(targets, 0, 1), len(targets), "a single shard keeps everything")
}

func TestFilterProductsExactMatch(t *testing.T) {
	targets := []domain.DownloadTarget{
		{InstrumentKey: "a", Product: "trades"},
		{InstrumentKey: "a", Product: "book_snapshot_5"},
		{InstrumentKey: "b", Product: "trades"},
	}
	got := FilterProducts(targets, []string{"trades"})
	require.Len(t, got, 2)
	for _, tgt := range got {
		assert.Equal(t, "trades", tgt.Product)
	}
	assert.Len(t, FilterProducts(targets, nil), 3)
	assert.Empty(t, FilterProducts(targets, []string{"trade"}), "matching is exact, never substring")
}
