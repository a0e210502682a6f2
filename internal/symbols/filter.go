package symbols

import (
	"github.com/tickforge/tickforge/internal/domain"
)

// quoteWhitelists narrows catalog output to the quote currencies the
// pipeline archives per venue. Venues without an entry fall back to USDT.
var quoteWhitelists = map[string]map[string]bool{
	domain.VenueUpbit:   {"KRW": true},
	domain.VenueDeribit: {"USD": true, "USDT": true, "USDC": true},
}

var defaultQuoteWhitelist = map[string]bool{"USDT": true}

// Admit applies the venue filter policy to a parsed definition: quote
// whitelist and leveraged-token exclusion. It returns false with a short
// reason when the definition should be dropped. Window intersection with the
// requested date range is the caller's concern.
func Admit(def *domain.InstrumentDefinition) (bool, string) {
	wl, ok := quoteWhitelists[def.Venue]
	if !ok {
		wl = defaultQuoteWhitelist
	}
	if !wl[def.QuoteAsset] {
		return false, "quote not whitelisted"
	}
	if isLeveragedToken(def.BaseAsset) {
		return false, "leveraged token"
	}
	return true, ""
}
