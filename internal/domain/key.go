package domain

import (
	"fmt"
	"strings"
	"time"
)

// InstrumentType is the canonical classification of a tradeable instrument.
type InstrumentType string

const (
	SpotPair InstrumentType = "SPOT_PAIR"
	Perp     InstrumentType = "PERP"
	Future   InstrumentType = "FUTURE"
	Option   InstrumentType = "OPTION"
)

// OptionType is the side of an option contract.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// expiryKeyLayout renders an expiry as the YYMMDD segment of a canonical key.
const expiryKeyLayout = "060102"

// SettlementHour is the UTC hour at which crypto derivatives conventionally
// settle. All parsed expiries are normalized to this instant.
const SettlementHour = 8

// InstrumentKey is the parsed form of a canonical instrument identifier
// VENUE:TYPE:BASE-QUOTE[-YYMMDD[-STRIKE-{CALL|PUT}]]. The string form is the
// primary identifier everywhere in the pipeline; the struct form exists so
// keys can be produced and consumed without string surgery at call sites.
type InstrumentKey struct {
	Venue      string
	Type       InstrumentType
	Base       string
	Quote      string
	Expiry     time.Time  // zero for SPOT_PAIR and PERP
	Strike     string     // empty unless OPTION
	OptionType OptionType // empty unless OPTION
}

// String renders the canonical key. Output is deterministic: identical inputs
// produce bit-identical keys.
func (k InstrumentKey) String() string {
	var b strings.Builder
	b.WriteString(k.Venue)
	b.WriteByte(':')
	b.WriteString(string(k.Type))
	b.WriteByte(':')
	b.WriteString(k.Base)
	b.WriteByte('-')
	b.WriteString(k.Quote)
	switch k.Type {
	case Future:
		b.WriteByte('-')
		b.WriteString(k.Expiry.UTC().Format(expiryKeyLayout))
	case Option:
		b.WriteByte('-')
		b.WriteString(k.Expiry.UTC().Format(expiryKeyLayout))
		b.WriteByte('-')
		b.WriteString(k.Strike)
		b.WriteByte('-')
		b.WriteString(string(k.OptionType))
	}
	return b.String()
}

// Symbol returns the BASE-QUOTE portion of the key.
func (k InstrumentKey) Symbol() string {
	return k.Base + "-" + k.Quote
}

// ParseInstrumentKey is the inverse of String. Every key emitted by the
// catalog generator must round-trip through it.
func ParseInstrumentKey(s string) (InstrumentKey, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return InstrumentKey{}, fmt.Errorf("instrument key %q: want VENUE:TYPE:SYMBOL", s)
	}
	k := InstrumentKey{Venue: parts[0], Type: InstrumentType(parts[1])}
	if k.Venue == "" {
		return InstrumentKey{}, fmt.Errorf("instrument key %q: empty venue", s)
	}
	segs := strings.Split(parts[2], "-")
	switch k.Type {
	case SpotPair, Perp:
		if len(segs) != 2 {
			return InstrumentKey{}, fmt.Errorf("instrument key %q: want BASE-QUOTE for %s", s, k.Type)
		}
		k.Base, k.Quote = segs[0], segs[1]
	case Future:
		if len(segs) != 3 {
			return InstrumentKey{}, fmt.Errorf("instrument key %q: want BASE-QUOTE-EXPIRY for FUTURE", s)
		}
		k.Base, k.Quote = segs[0], segs[1]
		exp, err := parseKeyExpiry(segs[2])
		if err != nil {
			return InstrumentKey{}, fmt.Errorf("instrument key %q: %w", s, err)
		}
		k.Expiry = exp
	case Option:
		if len(segs) != 5 {
			return InstrumentKey{}, fmt.Errorf("instrument key %q: want BASE-QUOTE-EXPIRY-STRIKE-TYPE for OPTION", s)
		}
		k.Base, k.Quote = segs[0], segs[1]
		exp, err := parseKeyExpiry(segs[2])
		if err != nil {
			return InstrumentKey{}, fmt.Errorf("instrument key %q: %w", s, err)
		}
		k.Expiry = exp
		k.Strike = segs[3]
		switch OptionType(segs[4]) {
		case Call, Put:
			k.OptionType = OptionType(segs[4])
		default:
			return InstrumentKey{}, fmt.Errorf("instrument key %q: option type %q", s, segs[4])
		}
	default:
		return InstrumentKey{}, fmt.Errorf("instrument key %q: unknown type %q", s, parts[1])
	}
	if k.Base == "" || k.Quote == "" {
		return InstrumentKey{}, fmt.Errorf("instrument key %q: empty asset segment", s)
	}
	return k, nil
}

func parseKeyExpiry(seg string) (time.Time, error) {
	t, err := time.ParseInLocation(expiryKeyLayout, seg, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry segment %q: %w", seg, err)
	}
	return SettlementTime(t), nil
}

// SettlementTime pins a calendar date to the 08:00:00Z settlement instant.
func SettlementTime(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), SettlementHour, 0, 0, 0, time.UTC)
}
