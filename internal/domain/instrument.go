package domain

import (
	"strings"
	"time"
)

// Tick-data products the vendor archives per instrument.
const (
	ProductTrades           = "trades"
	ProductBookSnapshot5    = "book_snapshot_5"
	ProductDerivativeTicker = "derivative_ticker"
	ProductLiquidations     = "liquidations"
	ProductOptionsChain     = "options_chain"
)

// FarFutureAvailability is the sentinel availability end for instruments the
// vendor reports as still listed.
var FarFutureAvailability = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// productsByType is the closed mapping from instrument type to the products
// the vendor archives for it. Order is the order written into data_types.
var productsByType = map[InstrumentType][]string{
	SpotPair: {ProductTrades, ProductBookSnapshot5},
	Perp:     {ProductTrades, ProductBookSnapshot5, ProductDerivativeTicker, ProductLiquidations},
	Future:   {ProductTrades, ProductBookSnapshot5, ProductDerivativeTicker, ProductLiquidations},
	Option:   {ProductTrades, ProductBookSnapshot5, ProductOptionsChain, ProductLiquidations, ProductDerivativeTicker},
}

// ProductsFor returns the products available for an instrument type.
func ProductsFor(t InstrumentType) []string {
	ps := productsByType[t]
	out := make([]string, len(ps))
	copy(out, ps)
	return out
}

// AllProducts lists every product the pipeline knows about.
func AllProducts() []string {
	return []string{
		ProductTrades, ProductBookSnapshot5, ProductDerivativeTicker,
		ProductLiquidations, ProductOptionsChain,
	}
}

// InstrumentDefinition is one catalog row: a single instrument at a single
// venue, with the window during which the vendor archives data for it.
// Definitions are generated fresh each run and never mutated once written.
type InstrumentDefinition struct {
	InstrumentKey  string         `json:"instrument_key"`
	Venue          string         `json:"venue"`
	InstrumentType InstrumentType `json:"instrument_type"`

	AvailableFrom time.Time `json:"available_from"`
	AvailableTo   time.Time `json:"available_to"`

	// DataTypes is the comma-joined product list derived from the type.
	DataTypes string `json:"data_types"`

	BaseAsset   string `json:"base_asset"`
	QuoteAsset  string `json:"quote_asset"`
	SettleAsset string `json:"settle_asset"`

	// ExchangeRawSymbol is the vendor-reported symbol, unchanged.
	ExchangeRawSymbol string `json:"exchange_raw_symbol"`
	// VendorSymbol and VendorExchange are the identifiers the vendor's
	// tick-archive URLs expect.
	VendorSymbol   string `json:"vendor_symbol"`
	VendorExchange string `json:"vendor_exchange"`

	// Inverse marks coin-margined contracts (settle != quote).
	Inverse bool `json:"inverse"`

	Expiry     *time.Time `json:"expiry,omitempty"`
	Strike     string     `json:"strike,omitempty"`
	OptionType OptionType `json:"option_type,omitempty"`
	Underlying string     `json:"underlying,omitempty"`
}

// ProductList splits the comma-joined data_types field. Matching against it
// must always go through here so product names compare exactly, never by
// substring.
func (d *InstrumentDefinition) ProductList() []string {
	if d.DataTypes == "" {
		return nil
	}
	parts := strings.Split(d.DataTypes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasProduct reports whether the definition carries the exact product.
func (d *InstrumentDefinition) HasProduct(product string) bool {
	for _, p := range d.ProductList() {
		if p == product {
			return true
		}
	}
	return false
}

// AvailableOn reports whether the availability window covers any instant of
// the UTC day. Both window endpoints are inclusive.
func (d *InstrumentDefinition) AvailableOn(day time.Time) bool {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
	return !d.AvailableFrom.After(dayEnd) && !d.AvailableTo.Before(dayStart)
}

// DownloadTarget is one unit of download work: a single (instrument, product,
// date) cell addressed with the identifiers the vendor expects. Targets are
// ephemeral and live only within a single orchestrator run.
type DownloadTarget struct {
	InstrumentKey  string
	VendorExchange string
	VendorSymbol   string
	Product        string
	Date           time.Time
}

// MissingEntry is one expected-but-absent tick file.
type MissingEntry struct {
	Date          time.Time `json:"date"`
	InstrumentKey string    `json:"instrument_key"`
	Product       string    `json:"product"`
	Status        string    `json:"status"`
}
