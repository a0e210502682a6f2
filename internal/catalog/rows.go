package catalog

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tickforge/tickforge/internal/domain"
)

// catalogRow is the parquet layout of one InstrumentDefinition. Timestamps
// are millisecond-precision; availability windows and expiries carry no
// sub-second component.
type catalogRow struct {
	InstrumentKey     string     `parquet:"instrument_key"`
	Venue             string     `parquet:"venue"`
	InstrumentType    string     `parquet:"instrument_type"`
	AvailableFrom     time.Time  `parquet:"available_from,timestamp(millisecond)"`
	AvailableTo       time.Time  `parquet:"available_to,timestamp(millisecond)"`
	DataTypes         string     `parquet:"data_types"`
	BaseAsset         string     `parquet:"base_asset"`
	QuoteAsset        string     `parquet:"quote_asset"`
	SettleAsset       string     `parquet:"settle_asset"`
	ExchangeRawSymbol string     `parquet:"exchange_raw_symbol"`
	VendorSymbol      string     `parquet:"vendor_symbol"`
	VendorExchange    string     `parquet:"vendor_exchange"`
	Inverse           bool       `parquet:"inverse"`
	Expiry            *time.Time `parquet:"expiry,optional,timestamp(millisecond)"`
	Strike            string     `parquet:"strike"`
	OptionType        string     `parquet:"option_type"`
	Underlying        string     `parquet:"underlying"`
}

func toRow(d *domain.InstrumentDefinition) catalogRow {
	return catalogRow{
		InstrumentKey:     d.InstrumentKey,
		Venue:             d.Venue,
		InstrumentType:    string(d.InstrumentType),
		AvailableFrom:     d.AvailableFrom.UTC(),
		AvailableTo:       d.AvailableTo.UTC(),
		DataTypes:         d.DataTypes,
		BaseAsset:         d.BaseAsset,
		QuoteAsset:        d.QuoteAsset,
		SettleAsset:       d.SettleAsset,
		ExchangeRawSymbol: d.ExchangeRawSymbol,
		VendorSymbol:      d.VendorSymbol,
		VendorExchange:    d.VendorExchange,
		Inverse:           d.Inverse,
		Expiry:            d.Expiry,
		Strike:            d.Strike,
		OptionType:        string(d.OptionType),
		Underlying:        d.Underlying,
	}
}

func fromRow(r catalogRow) domain.InstrumentDefinition {
	d := domain.InstrumentDefinition{
		InstrumentKey:     r.InstrumentKey,
		Venue:             r.Venue,
		InstrumentType:    domain.InstrumentType(r.InstrumentType),
		AvailableFrom:     r.AvailableFrom.UTC(),
		AvailableTo:       r.AvailableTo.UTC(),
		DataTypes:         r.DataTypes,
		BaseAsset:         r.BaseAsset,
		QuoteAsset:        r.QuoteAsset,
		SettleAsset:       r.SettleAsset,
		ExchangeRawSymbol: r.ExchangeRawSymbol,
		VendorSymbol:      r.VendorSymbol,
		VendorExchange:    r.VendorExchange,
		Inverse:           r.Inverse,
		Strike:            r.Strike,
		OptionType:        domain.OptionType(r.OptionType),
		Underlying:        r.Underlying,
	}
	if r.Expiry != nil {
		exp := r.Expiry.UTC()
		d.Expiry = &exp
	}
	return d
}

// EncodeDefinitions renders catalog rows as a snappy-compressed parquet
// file. Row order is preserved; callers sort before encoding so output is
// deterministic.
func EncodeDefinitions(defs []domain.InstrumentDefinition) ([]byte, error) {
	rows := make([]catalogRow, len(defs))
	for i := range defs {
		rows[i] = toRow(&defs[i])
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, fmt.Errorf("encode catalog parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDefinitions reads a catalog parquet file back into definitions.
func DecodeDefinitions(data []byte) ([]domain.InstrumentDefinition, error) {
	rows, err := parquet.Read[catalogRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decode catalog parquet: %w", err)
	}
	defs := make([]domain.InstrumentDefinition, len(rows))
	for i, r := range rows {
		defs[i] = fromRow(r)
	}
	return defs, nil
}
