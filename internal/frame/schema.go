package frame

import (
	"fmt"
	"strings"

	"github.com/tickforge/tickforge/internal/domain"
)

// Kind is the storage type of a column after coercion.
type Kind int

const (
	KindInt64 Kind = iota
	KindFloat64
	KindString
)

// Column describes one column of a product schema. CSV is the header name in
// the vendor archive; Name is the parquet-safe output name (the vendor uses
// bracketed headers like bids[0].price which are hostile to most parquet
// tooling).
type Column struct {
	CSV  string
	Name string
	Kind Kind
}

// Schema is the static column description for one product. It drives both
// CSV coercion and parquet layout; nothing is inferred at runtime.
type Schema struct {
	Product string
	Columns []Column
}

func col(csv string, kind Kind) Column {
	name := strings.NewReplacer("[", "_", "].", "_", "]", "").Replace(csv)
	return Column{CSV: csv, Name: name, Kind: kind}
}

func tradeColumns() []Column {
	return []Column{
		col("timestamp", KindInt64),
		col("local_timestamp", KindInt64),
		col("id", KindString),
		col("side", KindString),
		col("price", KindFloat64),
		col("amount", KindFloat64),
	}
}

func bookSnapshotColumns() []Column {
	cols := []Column{
		col("timestamp", KindInt64),
		col("local_timestamp", KindInt64),
	}
	for i := 0; i < 5; i++ {
		cols = append(cols,
			col(fmt.Sprintf("asks[%d].price", i), KindFloat64),
			col(fmt.Sprintf("asks[%d].amount", i), KindFloat64),
			col(fmt.Sprintf("bids[%d].price", i), KindFloat64),
			col(fmt.Sprintf("bids[%d].amount", i), KindFloat64),
		)
	}
	return cols
}

func derivativeTickerColumns() []Column {
	return []Column{
		col("timestamp", KindInt64),
		col("local_timestamp", KindInt64),
		col("funding_timestamp", KindInt64),
		col("funding_rate", KindFloat64),
		col("predicted_funding_rate", KindFloat64),
		col("open_interest", KindFloat64),
		col("last_price", KindFloat64),
		col("index_price", KindFloat64),
		col("mark_price", KindFloat64),
	}
}

func optionsChainColumns() []Column {
	cols := []Column{
		col("timestamp", KindInt64),
		col("local_timestamp", KindInt64),
		col("expiration", KindInt64),
		col("type", KindString),
		col("underlying_index", KindString),
	}
	for _, name := range []string{
		"strike_price", "open_interest", "last_price",
		"bid_price", "bid_amount", "bid_iv",
		"ask_price", "ask_amount", "ask_iv",
		"mark_price", "mark_iv", "underlying_price",
		"delta", "gamma", "vega", "theta", "rho",
	} {
		cols = append(cols, col(name, KindFloat64))
	}
	return cols
}

// SchemaFor returns the coercion schema for a product. Timestamps are int64
// microseconds since epoch; prices and sizes are float64; everything else is
// a string.
func SchemaFor(product string) (*Schema, error) {
	switch product {
	case domain.ProductTrades:
		return &Schema{Product: product, Columns: tradeColumns()}, nil
	case domain.ProductLiquidations:
		// Same shape as trades.
		return &Schema{Product: product, Columns: tradeColumns()}, nil
	case domain.ProductBookSnapshot5:
		return &Schema{Product: product, Columns: bookSnapshotColumns()}, nil
	case domain.ProductDerivativeTicker:
		return &Schema{Product: product, Columns: derivativeTickerColumns()}, nil
	case domain.ProductOptionsChain:
		return &Schema{Product: product, Columns: optionsChainColumns()}, nil
	default:
		return nil, fmt.Errorf("no schema for product %q", product)
	}
}
