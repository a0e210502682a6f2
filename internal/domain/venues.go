package domain

// Venue identifiers. Each names a single exchange endpoint; derivatives
// endpoints of one brand are distinct venues because the vendor archives them
// separately.
const (
	VenueBinance        = "BINANCE"
	VenueBinanceFutures = "BINANCE-FUTURES"
	VenueBybit          = "BYBIT"
	VenueOKX            = "OKX"
	VenueOKXSwap        = "OKX-SWAP"
	VenueOKXFutures     = "OKX-FUTURES"
	VenueDeribit        = "DERIBIT"
	VenueUpbit          = "UPBIT"
)

// vendorExchanges maps canonical venues to the exchange identifiers the
// vendor's archive and catalog endpoints expect.
var vendorExchanges = map[string]string{
	VenueBinance:        "binance",
	VenueBinanceFutures: "binance-futures",
	VenueBybit:          "bybit",
	VenueOKX:            "okex",
	VenueOKXSwap:        "okex-swap",
	VenueOKXFutures:     "okex-futures",
	VenueDeribit:        "deribit",
	VenueUpbit:          "upbit",
}

var venueByVendor = func() map[string]string {
	m := make(map[string]string, len(vendorExchanges))
	for venue, vendor := range vendorExchanges {
		m[vendor] = venue
	}
	return m
}()

// VendorExchange returns the vendor identifier for a venue, and whether the
// venue is known.
func VendorExchange(venue string) (string, bool) {
	v, ok := vendorExchanges[venue]
	return v, ok
}

// VenueForVendor returns the canonical venue for a vendor exchange id.
func VenueForVendor(vendor string) (string, bool) {
	v, ok := venueByVendor[vendor]
	return v, ok
}

// AllVenues lists every supported venue.
func AllVenues() []string {
	return []string{
		VenueBinance, VenueBinanceFutures, VenueBybit,
		VenueOKX, VenueOKXSwap, VenueOKXFutures,
		VenueDeribit, VenueUpbit,
	}
}

// settlementShiftVenues lists the venues whose future/option availability
// windows shift from vendor midnight to the 08:00Z settlement convention.
// The set is deliberately closed: the from-date moves +8h and the to-date
// -16h (next-day midnight becomes same-day 08:00Z). Do not generalize.
var settlementShiftVenues = map[string]bool{
	VenueDeribit:        true,
	VenueBinanceFutures: true,
	VenueOKXFutures:     true,
	VenueOKXSwap:        true,
	VenueBybit:          true,
}

// AppliesSettlementShift reports whether derivative availability windows on
// the venue follow the 08:00Z settlement shift.
func AppliesSettlementShift(venue string) bool {
	return settlementShiftVenues[venue]
}
