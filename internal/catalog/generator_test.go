package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/tickforge/internal/domain"
	"github.com/tickforge/tickforge/internal/metrics"
	"github.com/tickforge/tickforge/internal/objstore"
	"github.com/tickforge/tickforge/internal/symbols"
)

// stubSource serves canned listings per vendor exchange and counts fetches.
type stubSource struct {
	listings map[string][]symbols.Listing
	errs     map[string]error
	fetches  map[string]int
}

func newStubSource() *stubSource {
	return &stubSource{
		listings: make(map[string][]symbols.Listing),
		errs:     make(map[string]error),
		fetches:  make(map[string]int),
	}
}

func (s *stubSource) ExchangeCatalog(_ context.Context, vendorExchange string) ([]symbols.Listing, error) {
	s.fetches[vendorExchange]++
	if err := s.errs[vendorExchange]; err != nil {
		return nil, err
	}
	return s.listings[vendorExchange], nil
}

func day(d int) time.Time { return time.Date(2023, 5, d, 0, 0, 0, 0, time.UTC) }

func binanceListings() []symbols.Listing {
	return []symbols.Listing{
		{ID: "BTCUSDT", Type: "spot", AvailableSince: day(1)},
		{ID: "ETHUSDT", Type: "spot", AvailableSince: day(1)},
		{ID: "BTCEUR", Type: "spot", AvailableSince: day(1)},   // filtered: quote not whitelisted
		{ID: "BTCUPUSDT", Type: "spot", AvailableSince: day(1)}, // filtered: leveraged token
		{ID: "SPOT", Type: "spot", AvailableSince: day(1)},      // skipped: synthetic aggregate
		{ID: "WEIRD", Type: "warrant", AvailableSince: day(1)},  // parse failure
	}
}

func TestGenerateWritesSortedDailyCatalogs(t *testing.T) {
	src := newStubSource()
	src.listings["binance"] = binanceListings()
	store := objstore.NewMemStore()

	g := NewGenerator(src, store, metrics.NewPipeline(), zerolog.Nop())
	rep, err := g.Generate(context.Background(), Options{
		Exchanges: []string{"binance"},
		Start:     day(23), End: day(24),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Days)
	assert.Equal(t, 4, rep.RowsWritten, "two instruments per day")
	assert.Equal(t, 2, rep.FailedParsing, "one rejected symbol per day")
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 4, rep.Filtered)
	assert.Empty(t, rep.FailedVenues)
	assert.Empty(t, rep.EmptyDays)

	for _, d := range []time.Time{day(23), day(24)} {
		data, err := store.Get(context.Background(), objstore.CatalogDayKey(d))
		require.NoError(t, err)
		defs, err := DecodeDefinitions(data)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "BINANCE:SPOT_PAIR:BTC-USDT", defs[0].InstrumentKey)
		assert.Equal(t, "BINANCE:SPOT_PAIR:ETH-USDT", defs[1].InstrumentKey)
		assert.Equal(t, "binance", defs[0].VendorExchange)
	}

	// The aggregate view spans both days.
	data, err := store.Get(context.Background(), objstore.AggregateCatalogKey(day(23), day(24)))
	require.NoError(t, err)
	defs, err := DecodeDefinitions(data)
	require.NoError(t, err)
	assert.Len(t, defs, 4)
}

func TestGenerateRespectsAvailabilityWindow(t *testing.T) {
	delisted := day(10)
	src := newStubSource()
	src.listings["binance"] = []symbols.Listing{
		{ID: "BTCUSDT", Type: "spot", AvailableSince: day(1)},
		{ID: "OLDUSDT", Type: "spot", AvailableSince: day(1), AvailableTo: &delisted},
	}
	store := objstore.NewMemStore()

	g := NewGenerator(src, store, metrics.NewPipeline(), zerolog.Nop())
	_, err := g.Generate(context.Background(), Options{
		Exchanges: []string{"binance"},
		Start:     day(23), End: day(23),
	})
	require.NoError(t, err)

	data, err := store.Get(context.Background(), objstore.CatalogDayKey(day(23)))
	require.NoError(t, err)
	defs, err := DecodeDefinitions(data)
	require.NoError(t, err)
	require.Len(t, defs, 1, "a delisted instrument stays out of later days")
	assert.Equal(t, "BINANCE:SPOT_PAIR:BTC-USDT", defs[0].InstrumentKey)
}

func TestGenerateVenueFailureDoesNotBlockOthers(t *testing.T) {
	src := newStubSource()
	src.listings["binance"] = binanceListings()
	src.errs["upbit"] = errors.New("vendor responded 500")
	store := objstore.NewMemStore()

	g := NewGenerator(src, store, metrics.NewPipeline(), zerolog.Nop())
	rep, err := g.Generate(context.Background(), Options{
		Exchanges: []string{"binance", "upbit"},
		Start:     day(23), End: day(23),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.VenueUpbit}, rep.FailedVenues)
	assert.Equal(t, 2, rep.RowsWritten, "the healthy venue still produced its rows")
}

func TestGenerateEmptyDayProducesNoFile(t *testing.T) {
	src := newStubSource()
	store := objstore.NewMemStore()

	g := NewGenerator(src, store, metrics.NewPipeline(), zerolog.Nop())
	rep, err := g.Generate(context.Background(), Options{
		Exchanges: []string{"binance"},
		Start:     day(23), End: day(23),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-05-23"}, rep.EmptyDays)
	assert.Equal(t, 0, store.Len())
}

func TestGenerateCachesListingsAcrossDays(t *testing.T) {
	src := newStubSource()
	src.listings["binance"] = binanceListings()
	g := NewGenerator(src, objstore.NewMemStore(), metrics.NewPipeline(), zerolog.Nop())

	_, err := g.Generate(context.Background(), Options{
		Exchanges: []string{"binance"},
		Start:     day(1), End: day(5),
		EnableCaching: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, src.fetches["binance"], "one fetch serves the whole range")

	src.fetches["binance"] = 0
	_, err = g.Generate(context.Background(), Options{
		Exchanges: []string{"binance"},
		Start:     day(1), End: day(5),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, src.fetches["binance"], "caching off fetches per day")
}

func TestGenerateMaxInstrumentsTruncatesAfterSort(t *testing.T) {
	src := newStubSource()
	src.listings["binance"] = binanceListings()
	store := objstore.NewMemStore()

	g := NewGenerator(src, store, metrics.NewPipeline(), zerolog.Nop())
	_, err := g.Generate(context.Background(), Options{
		Exchanges:      []string{"binance"},
		Start:          day(23), End: day(23),
		MaxInstruments: 1,
	})
	require.NoError(t, err)

	data, err := store.Get(context.Background(), objstore.CatalogDayKey(day(23)))
	require.NoError(t, err)
	defs, err := DecodeDefinitions(data)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "BINANCE:SPOT_PAIR:BTC-USDT", defs[0].InstrumentKey, "truncation keeps the sorted head")
}

func TestResolveVenues(t *testing.T) {
	all, err := ResolveVenues(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AllVenues(), all)

	got, err := ResolveVenues([]string{"binance", "OKX-SWAP", "okex-futures"})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.VenueBinance, domain.VenueOKXSwap, domain.VenueOKXFutures}, got)

	_, err = ResolveVenues([]string{"nasdaq"})
	assert.Error(t, err)
}

func TestReaderFallsBackToLegacyLayouts(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemStore()
	defs := []domain.InstrumentDefinition{{
		InstrumentKey: "BINANCE:SPOT_PAIR:BTC-USDT",
		Venue:         domain.VenueBinance,
		DataTypes:     "trades,book_snapshot_5",
	}}
	data, err := EncodeDefinitions(defs)
	require.NoError(t, err)

	d := day(23)
	legacy := objstore.CatalogDayFallbacks(d)[1]
	require.NoError(t, store.Put(ctx, legacy, data))

	r := NewReader(store, zerolog.Nop())
	got, err := r.LoadDay(ctx, d)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, defs[0].InstrumentKey, got[0].InstrumentKey)

	_, err = r.LoadDay(ctx, day(24))
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestDefinitionsRoundTripPreservesExpiry(t *testing.T) {
	expiry := time.Date(2025, 11, 7, 8, 0, 0, 0, time.UTC)
	defs := []domain.InstrumentDefinition{
		{
			InstrumentKey:  "DERIBIT:OPTION:BTC-USD-251107-50000-CALL",
			Venue:          domain.VenueDeribit,
			InstrumentType: domain.Option,
			AvailableFrom:  day(1),
			AvailableTo:    expiry,
			DataTypes:      "trades,book_snapshot_5,options_chain,liquidations,derivative_ticker",
			BaseAsset:      "BTC", QuoteAsset: "USD", SettleAsset: "BTC",
			Inverse: true,
			Expiry:  &expiry, Strike: "50000", OptionType: domain.Call,
			Underlying: "BTC-USD",
		},
		{
			InstrumentKey:  "BINANCE:SPOT_PAIR:BTC-USDT",
			Venue:          domain.VenueBinance,
			InstrumentType: domain.SpotPair,
			AvailableFrom:  day(1),
			AvailableTo:    domain.FarFutureAvailability,
			DataTypes:      "trades,book_snapshot_5",
			BaseAsset:      "BTC", QuoteAsset: "USDT", SettleAsset: "USDT",
		},
	}
	data, err := EncodeDefinitions(defs)
	require.NoError(t, err)
	got, err := DecodeDefinitions(data)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Expiry)
	assert.Equal(t, expiry, *got[0].Expiry)
	assert.Equal(t, domain.Call, got[0].OptionType)
	assert.True(t, got[0].Inverse)
	assert.Nil(t, got[1].Expiry, "spot rows keep a null expiry")
	assert.Equal(t, defs[1].InstrumentKey, got[1].InstrumentKey)
	assert.Equal(t, defs[1].DataTypes, got[1].DataTypes)
	assert.True(t, got[1].AvailableTo.Equal(domain.FarFutureAvailability))
}
