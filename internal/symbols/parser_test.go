package symbols

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/tickforge/internal/domain"
)

func listedSince(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseSpotAndPerp(t *testing.T) {
	tests := []struct {
		name    string
		venue   string
		listing Listing
		wantKey string
		base    string
		quote   string
		settle  string
		inverse bool
	}{
		{
			name:    "binance spot",
			venue:   domain.VenueBinance,
			listing: Listing{ID: "btcusdt", Type: "spot", AvailableSince: listedSince(2019, 3, 30)},
			wantKey: "BINANCE:SPOT_PAIR:BTC-USDT",
			base:    "BTC", quote: "USDT", settle: "USDT",
		},
		{
			name:    "upbit spot",
			venue:   domain.VenueUpbit,
			listing: Listing{ID: "BTC-KRW", Type: "spot", AvailableSince: listedSince(2019, 3, 30)},
			wantKey: "UPBIT:SPOT_PAIR:BTC-KRW",
			base:    "BTC", quote: "KRW", settle: "KRW",
		},
		{
			name:    "binance-futures linear perp",
			venue:   domain.VenueBinanceFutures,
			listing: Listing{ID: "BTCUSDT", Type: "perpetual", AvailableSince: listedSince(2019, 9, 8)},
			wantKey: "BINANCE-FUTURES:PERP:BTC-USDT",
			base:    "BTC", quote: "USDT", settle: "USDT",
		},
		{
			name:    "deribit coin-margined perp",
			venue:   domain.VenueDeribit,
			listing: Listing{ID: "BTC-PERPETUAL", Type: "perpetual", AvailableSince: listedSince(2018, 8, 14)},
			wantKey: "DERIBIT:PERP:BTC-USD",
			base:    "BTC", quote: "USD", settle: "BTC", inverse: true,
		},
		{
			name:    "deribit linear perp with folded pair",
			venue:   domain.VenueDeribit,
			listing: Listing{ID: "BTC_USDC-PERPETUAL", Type: "perpetual", AvailableSince: listedSince(2022, 1, 1)},
			wantKey: "DERIBIT:PERP:BTC-USDC",
			base:    "BTC", quote: "USDC", settle: "USDC",
		},
		{
			name:    "okx swap",
			venue:   domain.VenueOKXSwap,
			listing: Listing{ID: "ETH-USDT-SWAP", Type: "perpetual", AvailableSince: listedSince(2020, 1, 1)},
			wantKey: "OKX-SWAP:PERP:ETH-USDT",
			base:    "ETH", quote: "USDT", settle: "USDT",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewParser(tc.venue)
			require.NoError(t, err)
			def, err := p.Parse(tc.listing)
			require.NoError(t, err)

			assert.Equal(t, tc.wantKey, def.InstrumentKey)
			assert.Equal(t, tc.base, def.BaseAsset)
			assert.Equal(t, tc.quote, def.QuoteAsset)
			assert.Equal(t, tc.settle, def.SettleAsset)
			assert.Equal(t, tc.inverse, def.Inverse)
			assert.Equal(t, tc.listing.ID, def.VendorSymbol, "vendor symbol keeps original casing")
			assert.Equal(t, domain.FarFutureAvailability, def.AvailableTo, "open listing gets the sentinel")

			// Round trip through the canonical grammar.
			_, err = domain.ParseInstrumentKey(def.InstrumentKey)
			assert.NoError(t, err)
		})
	}
}

func TestParseDerivativeExpiries(t *testing.T) {
	tests := []struct {
		name       string
		venue      string
		listing    Listing
		wantKey    string
		wantExpiry time.Time
	}{
		{
			name:       "binance-futures dated future",
			venue:      domain.VenueBinanceFutures,
			listing:    Listing{ID: "BTCUSDT_240628", Type: "future", AvailableSince: listedSince(2023, 12, 29)},
			wantKey:    "BINANCE-FUTURES:FUTURE:BTC-USDT-240628",
			wantExpiry: time.Date(2024, 6, 28, 8, 0, 0, 0, time.UTC),
		},
		{
			name:       "okx dated future",
			venue:      domain.VenueOKXFutures,
			listing:    Listing{ID: "BTC-USD-240628", Type: "future", AvailableSince: listedSince(2023, 12, 29)},
			wantKey:    "OKX-FUTURES:FUTURE:BTC-USD-240628",
			wantExpiry: time.Date(2024, 6, 28, 8, 0, 0, 0, time.UTC),
		},
		{
			name:       "deribit single-digit day option",
			venue:      domain.VenueDeribit,
			listing:    Listing{ID: "BTC-7NOV25-50000-C", Type: "option", AvailableSince: listedSince(2025, 10, 31)},
			wantKey:    "DERIBIT:OPTION:BTC-USD-251107-50000-CALL",
			wantExpiry: time.Date(2025, 11, 7, 8, 0, 0, 0, time.UTC),
		},
		{
			name:       "deribit fractional strike",
			venue:      domain.VenueDeribit,
			listing:    Listing{ID: "XRP_USDC-7NOV25-1d14-P", Type: "option", AvailableSince: listedSince(2025, 10, 31)},
			wantKey:    "DERIBIT:OPTION:XRP-USDC-251107-1.14-PUT",
			wantExpiry: time.Date(2025, 11, 7, 8, 0, 0, 0, time.UTC),
		},
		{
			name:       "bybit quarterly month code",
			venue:      domain.VenueBybit,
			listing:    Listing{ID: "BTCUSDZ25", Type: "future", AvailableSince: listedSince(2025, 6, 27)},
			wantKey:    "BYBIT:FUTURE:BTC-USD-251231",
			wantExpiry: time.Date(2025, 12, 31, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewParser(tc.venue)
			require.NoError(t, err)
			def, err := p.Parse(tc.listing)
			require.NoError(t, err)

			assert.Equal(t, tc.wantKey, def.InstrumentKey)
			require.NotNil(t, def.Expiry)
			assert.Equal(t, tc.wantExpiry, *def.Expiry)
		})
	}
}

func TestParseSettlementShift(t *testing.T) {
	p, err := NewParser(domain.VenueBinanceFutures)
	require.NoError(t, err)

	def, err := p.Parse(Listing{
		ID:             "BTCUSDT_240628",
		Type:           "future",
		AvailableSince: listedSince(2023, 12, 29),
	})
	require.NoError(t, err)

	// Midnight endpoints shift onto the settlement convention: the open
	// moves forward 8h, the close moves back from next-day midnight to the
	// expiry-day 08:00Z.
	assert.Equal(t, time.Date(2023, 12, 29, 8, 0, 0, 0, time.UTC), def.AvailableFrom)
	assert.Equal(t, time.Date(2024, 6, 28, 8, 0, 0, 0, time.UTC), def.AvailableTo)
}

func TestParseShiftSkipsNonMidnight(t *testing.T) {
	p, err := NewParser(domain.VenueDeribit)
	require.NoError(t, err)

	since := time.Date(2023, 12, 1, 9, 30, 0, 0, time.UTC)
	def, err := p.Parse(Listing{ID: "BTC-29DEC23", Type: "future", AvailableSince: since})
	require.NoError(t, err)
	assert.Equal(t, since, def.AvailableFrom, "non-midnight timestamps pass through unshifted")
}

func TestParseExplicitAvailableTo(t *testing.T) {
	p, err := NewParser(domain.VenueBinance)
	require.NoError(t, err)

	delisted := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
	def, err := p.Parse(Listing{
		ID:             "BTCBUSD",
		Type:           "spot",
		AvailableSince: listedSince(2020, 1, 1),
		AvailableTo:    &delisted,
	})
	require.NoError(t, err)
	assert.Equal(t, delisted, def.AvailableTo, "vendor-reported end wins over the sentinel")
}

func TestParseSkips(t *testing.T) {
	p, err := NewParser(domain.VenueDeribit)
	require.NoError(t, err)

	for _, l := range []Listing{
		{ID: "OPTIONS", Type: "option"},
		{ID: "PERPETUALS", Type: "perpetual"},
		{ID: "BTC-FS-29DEC23_PERP", Type: "combo"},
	} {
		_, err := p.Parse(l)
		require.Error(t, err, l.ID)
		assert.True(t, IsSkip(err), "%s should skip, got %v", l.ID, err)
	}
}

func TestParseFailures(t *testing.T) {
	deribit, err := NewParser(domain.VenueDeribit)
	require.NoError(t, err)
	binanceFut, err := NewParser(domain.VenueBinanceFutures)
	require.NoError(t, err)

	tests := []struct {
		name    string
		p       *Parser
		listing Listing
	}{
		{"unknown vendor type", deribit, Listing{ID: "BTC-PERPETUAL", Type: "warrant"}},
		{"future without expiry", binanceFut, Listing{ID: "BTCUSDT", Type: "future"}},
		{"option without strike", deribit, Listing{ID: "BTC-29DEC23", Type: "option"}},
		{"future carrying strike", deribit, Listing{ID: "BTC-29DEC23-50000-C", Type: "future"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.p.Parse(tc.listing)
			require.Error(t, err)
			assert.False(t, IsSkip(err), "parse failures are not skips")
		})
	}
}

func TestNewParserRejectsUnknownVenue(t *testing.T) {
	_, err := NewParser("NASDAQ")
	assert.Error(t, err)
}

func TestAdmit(t *testing.T) {
	admit := func(venue, base, quote string) bool {
		ok, _ := Admit(&domain.InstrumentDefinition{Venue: venue, BaseAsset: base, QuoteAsset: quote})
		return ok
	}

	assert.True(t, admit(domain.VenueBinance, "BTC", "USDT"))
	assert.False(t, admit(domain.VenueBinance, "BTC", "BUSD"), "default whitelist is USDT only")
	assert.True(t, admit(domain.VenueUpbit, "BTC", "KRW"))
	assert.False(t, admit(domain.VenueUpbit, "BTC", "USDT"))
	assert.True(t, admit(domain.VenueDeribit, "BTC", "USD"))
	assert.True(t, admit(domain.VenueDeribit, "BTC", "USDC"))

	assert.False(t, admit(domain.VenueBinance, "BTCUP", "USDT"), "leveraged tokens are excluded")
	assert.False(t, admit(domain.VenueBinance, "ETHDOWN", "USDT"))
	assert.True(t, admit(domain.VenueBinance, "UP", "USDT"), "short bases that merely end in UP stay")
}
