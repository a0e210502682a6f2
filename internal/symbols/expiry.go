package symbols

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tickforge/tickforge/internal/domain"
)

// expiryMatch is the result of applying one expiry pattern to a derivative
// symbol: the stem left over for asset extraction plus the decoded contract
// fields.
type expiryMatch struct {
	Stem       string
	Expiry     time.Time
	Strike     string
	OptionType domain.OptionType
}

// expiryPattern is one row of a venue's pattern table. Tables are applied in
// order; the first match wins.
type expiryPattern struct {
	re     *regexp.Regexp
	decode func(m []string) (expiryMatch, error)
}

var monthByCode = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// quarterlyMonthCodes is the futures month-code alphabet used by Bybit
// quarterly symbols (BTCUSDZ25). The contract expires on the last day of the
// coded month.
var quarterlyMonthCodes = map[string]time.Month{
	"F": time.January, "G": time.February, "H": time.March,
	"J": time.April, "K": time.May, "M": time.June,
	"N": time.July, "Q": time.August, "U": time.September,
	"V": time.October, "X": time.November, "Z": time.December,
}

// yymmddExpiry decodes a YYMMDD segment to the 08:00Z settlement instant.
func yymmddExpiry(seg string) (time.Time, error) {
	t, err := time.ParseInLocation("060102", seg, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry %q: %w", seg, err)
	}
	return domain.SettlementTime(t), nil
}

// dmmmyyExpiry decodes a D/DD + month-name + YY triple (29DEC23, 7NOV25).
func dmmmyyExpiry(day, mon, yy string) (time.Time, error) {
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("expiry day %q out of range", day)
	}
	m, ok := monthByCode[mon]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month code %q", mon)
	}
	y, err := strconv.Atoi(yy)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry year %q: %w", yy, err)
	}
	return domain.SettlementTime(time.Date(2000+y, m, d, 0, 0, 0, 0, time.UTC)), nil
}

// quarterlyExpiry decodes a futures month code + YY pair to the last day of
// that month.
func quarterlyExpiry(code, yy string) (time.Time, error) {
	m, ok := quarterlyMonthCodes[code]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown quarterly month code %q", code)
	}
	y, err := strconv.Atoi(yy)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry year %q: %w", yy, err)
	}
	lastDay := time.Date(2000+y, m+1, 0, 0, 0, 0, 0, time.UTC)
	return domain.SettlementTime(lastDay), nil
}

// normalizeStrike decodes a strike segment. Deribit substitutes 'd' for the
// decimal point in fractional strikes (1d14 -> 1.14); symbols are uppercased
// before pattern matching, so the substitute arrives as 'D'.
func normalizeStrike(seg string) string {
	return strings.ReplaceAll(seg, "D", ".")
}

func decodeOption(typeSeg string) (domain.OptionType, error) {
	switch typeSeg {
	case "C":
		return domain.Call, nil
	case "P":
		return domain.Put, nil
	default:
		return "", fmt.Errorf("option type segment %q", typeSeg)
	}
}

// Decoders shared by pattern tables.

func decodeYYMMDDSuffix(m []string) (expiryMatch, error) {
	exp, err := yymmddExpiry(m[2])
	if err != nil {
		return expiryMatch{}, err
	}
	return expiryMatch{Stem: m[1], Expiry: exp}, nil
}

func decodeDMMMYYSuffix(m []string) (expiryMatch, error) {
	exp, err := dmmmyyExpiry(m[2], m[3], m[4])
	if err != nil {
		return expiryMatch{}, err
	}
	return expiryMatch{Stem: m[1], Expiry: exp}, nil
}

func decodeDMMMYYOption(m []string) (expiryMatch, error) {
	exp, err := dmmmyyExpiry(m[2], m[3], m[4])
	if err != nil {
		return expiryMatch{}, err
	}
	ot, err := decodeOption(m[6])
	if err != nil {
		return expiryMatch{}, err
	}
	return expiryMatch{Stem: m[1], Expiry: exp, Strike: normalizeStrike(m[5]), OptionType: ot}, nil
}

func decodeYYMMDDOption(m []string) (expiryMatch, error) {
	exp, err := yymmddExpiry(m[2])
	if err != nil {
		return expiryMatch{}, err
	}
	ot, err := decodeOption(m[4])
	if err != nil {
		return expiryMatch{}, err
	}
	return expiryMatch{Stem: m[1], Expiry: exp, Strike: normalizeStrike(m[3]), OptionType: ot}, nil
}

func decodeQuarterly(m []string) (expiryMatch, error) {
	exp, err := quarterlyExpiry(m[2], m[3])
	if err != nil {
		return expiryMatch{}, err
	}
	return expiryMatch{Stem: m[1], Expiry: exp}, nil
}

// expiryTables holds the per-venue pattern tables for derivative symbols.
// Symbols are uppercased before matching. Order matters: option patterns
// precede future patterns so the strike/type tail is not mistaken for part of
// the stem.
var expiryTables = map[string][]expiryPattern{
	domain.VenueBinanceFutures: {
		// BTCUSDT_240628
		{regexp.MustCompile(`^(.+)_(\d{6})$`), decodeYYMMDDSuffix},
	},
	domain.VenueOKXFutures: {
		// BTC-USD-240628-50000-C
		{regexp.MustCompile(`^(.+?)-(\d{6})-(\d+(?:D\d+)?)-([CP])$`), decodeYYMMDDOption},
		// BTC-USD-240628
		{regexp.MustCompile(`^(.+?)-(\d{6})$`), decodeYYMMDDSuffix},
	},
	domain.VenueDeribit: {
		// BTC-29DEC23-50000-C, BTC-7NOV25-50000-C, ETH-29DEC23-1d14-P
		{regexp.MustCompile(`^(.+?)-(\d{1,2})([A-Z]{3})(\d{2})-(\d+(?:D\d+)?)-([CP])$`), decodeDMMMYYOption},
		// BTC-29DEC23, BTC_USDC-29DEC23
		{regexp.MustCompile(`^(.+?)-(\d{1,2})([A-Z]{3})(\d{2})$`), decodeDMMMYYSuffix},
	},
	domain.VenueBybit: {
		// BTC-29DEC23-50000-C
		{regexp.MustCompile(`^(.+?)-(\d{1,2})([A-Z]{3})(\d{2})-(\d+(?:D\d+)?)-([CP])$`), decodeDMMMYYOption},
		// BTCUSDT-29DEC23, BTC-29DEC23
		{regexp.MustCompile(`^(.+?)-(\d{1,2})([A-Z]{3})(\d{2})$`), decodeDMMMYYSuffix},
		// BTCUSDZ25: quarterly month code + two-digit year
		{regexp.MustCompile(`^(.+?)([FGHJKMNQUVXZ])(\d{2})$`), decodeQuarterly},
	},
}

// matchExpiry applies the venue's pattern table in order and decodes the
// first hit. ok is false when no pattern matches.
func matchExpiry(venue, symbol string) (expiryMatch, bool, error) {
	for _, p := range expiryTables[venue] {
		m := p.re.FindStringSubmatch(symbol)
		if m == nil {
			continue
		}
		match, err := p.decode(m)
		if err != nil {
			return expiryMatch{}, true, err
		}
		return match, true, nil
	}
	return expiryMatch{}, false, nil
}
