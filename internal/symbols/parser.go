package symbols

import (
	"fmt"
	"strings"
	"time"

	"github.com/tickforge/tickforge/internal/domain"
)

// Listing is one entry of the vendor's per-exchange catalog, already decoded
// from JSON.
type Listing struct {
	ID             string
	Type           string
	AvailableSince time.Time
	AvailableTo    *time.Time
}

// Parser turns vendor listings for a single venue into canonical instrument
// definitions. It is stateless and safe for concurrent use.
type Parser struct {
	venue          string
	vendorExchange string
}

// NewParser builds a parser for a supported venue.
func NewParser(venue string) (*Parser, error) {
	vendor, ok := domain.VendorExchange(venue)
	if !ok {
		return nil, fmt.Errorf("unsupported venue %q", venue)
	}
	return &Parser{venue: venue, vendorExchange: vendor}, nil
}

// Venue returns the canonical venue the parser serves.
func (p *Parser) Venue() string { return p.venue }

// perpSuffixes are venue decorations on perpetual symbols that carry no
// asset information.
var perpSuffixes = []string{"-PERPETUAL", "-SWAP", "_PERP", "-PERP"}

func stripPerpSuffix(sym string) string {
	for _, s := range perpSuffixes {
		if strings.HasSuffix(sym, s) {
			return strings.TrimSuffix(sym, s)
		}
	}
	return sym
}

// Parse runs the full pipeline for one listing: classification, expiry and
// strike extraction, asset extraction, availability-window resolution, and
// projection into the canonical schema. A returned error wrapping ErrSkip
// means the listing is deliberately not an instrument; any other error is a
// parse failure to be counted by the caller.
func (p *Parser) Parse(l Listing) (*domain.InstrumentDefinition, error) {
	raw := l.ID
	sym := strings.ToUpper(raw)
	if isSyntheticAggregate(sym) {
		return nil, fmt.Errorf("%w: aggregate symbol %q", ErrSkip, raw)
	}
	typ, err := classifyType(l.Type)
	if err != nil {
		return nil, fmt.Errorf("symbol %q: %w", raw, err)
	}

	stem := sym
	var match expiryMatch
	switch typ {
	case domain.Future, domain.Option:
		m, ok, err := matchExpiry(p.venue, sym)
		if err != nil {
			return nil, fmt.Errorf("symbol %q: %w", raw, err)
		}
		if !ok {
			return nil, fmt.Errorf("symbol %q: no expiry pattern matched for %s", raw, typ)
		}
		if typ == domain.Option && m.OptionType == "" {
			return nil, fmt.Errorf("symbol %q: option without strike/type segments", raw)
		}
		if typ == domain.Future && m.OptionType != "" {
			return nil, fmt.Errorf("symbol %q: future carrying option segments", raw)
		}
		match = m
		stem = m.Stem
	case domain.Perp:
		stem = stripPerpSuffix(sym)
	}

	base, quote, err := splitAssets(p.venue, stem)
	if err != nil {
		return nil, fmt.Errorf("symbol %q: %w", raw, err)
	}

	settle := quote
	if typ != domain.SpotPair && quote == "USD" {
		settle = base // coin-margined
	}

	from := l.AvailableSince.UTC()
	var to time.Time
	switch {
	case l.AvailableTo != nil:
		to = l.AvailableTo.UTC()
	case typ == domain.SpotPair || typ == domain.Perp:
		to = domain.FarFutureAvailability
	default:
		// The vendor archives derivative data through the expiry day;
		// the window closes at the following midnight.
		exp := match.Expiry
		to = time.Date(exp.Year(), exp.Month(), exp.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	}
	if (typ == domain.Future || typ == domain.Option) && domain.AppliesSettlementShift(p.venue) {
		from = shiftToSettlement(from, 8*time.Hour)
		to = shiftToSettlement(to, -16*time.Hour)
	}

	key := domain.InstrumentKey{
		Venue: p.venue, Type: typ,
		Base: base, Quote: quote,
		Expiry: match.Expiry, Strike: match.Strike, OptionType: match.OptionType,
	}

	def := &domain.InstrumentDefinition{
		InstrumentKey:     key.String(),
		Venue:             p.venue,
		InstrumentType:    typ,
		AvailableFrom:     from,
		AvailableTo:       to,
		DataTypes:         strings.Join(domain.ProductsFor(typ), ","),
		BaseAsset:         base,
		QuoteAsset:        quote,
		SettleAsset:       settle,
		ExchangeRawSymbol: raw,
		VendorSymbol:      raw,
		VendorExchange:    p.vendorExchange,
		Inverse:           settle != quote,
	}
	if typ == domain.Future || typ == domain.Option {
		exp := match.Expiry
		def.Expiry = &exp
	}
	if typ == domain.Option {
		def.Strike = match.Strike
		def.OptionType = match.OptionType
	}
	if typ != domain.SpotPair {
		def.Underlying = base + "-" + quote
	}
	return def, nil
}

// shiftToSettlement applies the crypto-venue settlement offset to a window
// endpoint, but only when the vendor reported a midnight timestamp. The
// offsets are asymmetric (+8h on the open, -16h on the close) and must stay
// that way.
func shiftToSettlement(t time.Time, offset time.Duration) time.Time {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
		return t
	}
	return t.Add(offset)
}
