package symbols

import (
	"fmt"
	"strings"

	"github.com/tickforge/tickforge/internal/domain"
)

// knownQuotes are the quote currencies recognized during asset extraction,
// longest match first where it matters.
var knownQuotes = []string{
	"USDT", "USDC", "BUSD", "TUSD", // 4-char stables before USD
	"USD", "DAI", "GBP", "EUR", "TRY", "BRL", "JPY", "KRW", "CNY", "HKD",
}

var knownQuoteSet = func() map[string]bool {
	m := make(map[string]bool, len(knownQuotes))
	for _, q := range knownQuotes {
		m[q] = true
	}
	return m
}()

// dashVenues split their symbols on '-'; everything else strips a known quote
// suffix.
var dashVenues = map[string]bool{
	domain.VenueDeribit: true,
	domain.VenueUpbit:   true,
}

// splitAssets extracts (base, quote) from the instrument stem: the vendor
// symbol with any expiry/strike microsyntax already removed. The stem is
// uppercase by the time it gets here.
func splitAssets(venue, stem string) (base, quote string, err error) {
	if dashVenues[venue] || isDashStyle(stem) {
		return splitDashAssets(stem)
	}
	return splitSuffixAssets(stem)
}

// isDashStyle recognizes dash-separated symbols on suffix-stripping venues,
// e.g. OKX's USDT-TRY. Digits exclude date-bearing stems, which never reach
// here anyway.
func isDashStyle(stem string) bool {
	return strings.Contains(stem, "-") && !strings.ContainsAny(stem, "0123456789")
}

// splitDashAssets handles dash-separated listings. A single segment, or a
// second segment that is not a currency, is a coin-margined contract quoted
// in USD (Deribit's BTC-PERPETUAL). A first segment carrying '_' is a linear
// pair folded into one token (Deribit's BTC_USDC-PERPETUAL).
func splitDashAssets(stem string) (string, string, error) {
	parts := strings.Split(stem, "-")
	first := parts[0]
	if first == "" {
		return "", "", fmt.Errorf("symbol stem %q: empty base segment", stem)
	}
	if i := strings.IndexByte(first, '_'); i > 0 {
		base, quote := first[:i], first[i+1:]
		if !knownQuoteSet[quote] {
			return "", "", fmt.Errorf("symbol stem %q: unknown quote %q", stem, quote)
		}
		return base, quote, nil
	}
	if len(parts) >= 2 && knownQuoteSet[parts[1]] {
		return first, parts[1], nil
	}
	return first, "USD", nil
}

// splitSuffixAssets strips the longest known quote suffix; the remainder is
// the base.
func splitSuffixAssets(stem string) (string, string, error) {
	best := ""
	for _, q := range knownQuotes {
		if strings.HasSuffix(stem, q) && len(q) > len(best) && len(stem) > len(q) {
			best = q
		}
	}
	if best == "" {
		return "", "", fmt.Errorf("symbol stem %q: no known quote suffix", stem)
	}
	return strings.TrimSuffix(stem, best), best, nil
}

// isLeveragedToken recognizes leveraged-token tickers (BTCUP, ETHDOWN) by
// their base asset.
func isLeveragedToken(base string) bool {
	switch {
	case len(base) > 2 && strings.HasSuffix(base, "UP"):
		return true
	case len(base) > 4 && strings.HasSuffix(base, "DOWN"):
		return true
	}
	return false
}
