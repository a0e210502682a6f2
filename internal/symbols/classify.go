package symbols

import (
	"errors"
	"fmt"

	"github.com/tickforge/tickforge/internal/domain"
)

// ErrSkip marks a vendor symbol that is deliberately not an instrument:
// synthetic aggregates, Deribit combos. Callers must not count it as a parse
// failure.
var ErrSkip = errors.New("symbol skipped")

// IsSkip reports whether an error marks a deliberate skip.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkip)
}

// classifyType maps vendor symbol-type strings onto canonical instrument
// types. Deribit combos classify as options structurally but are composite
// products the archive has no per-leg data for, so they are skipped.
func classifyType(vendorType string) (domain.InstrumentType, error) {
	switch vendorType {
	case "spot":
		return domain.SpotPair, nil
	case "perpetual":
		return domain.Perp, nil
	case "future":
		return domain.Future, nil
	case "option":
		return domain.Option, nil
	case "combo":
		return "", fmt.Errorf("%w: combo symbol", ErrSkip)
	default:
		return "", fmt.Errorf("unknown vendor symbol type %q", vendorType)
	}
}

// syntheticAggregates are vendor catalog rows that stand for whole channel
// groups rather than instruments. OPTIONS is skipped as well: every supported
// venue archives options_chain per instrument, so the grouped channel adds
// nothing to the catalog.
var syntheticAggregates = map[string]bool{
	"SPOT":       true,
	"PERPETUALS": true,
	"FUTURES":    true,
	"COMBOS":     true,
	"OPTIONS":    true,
}

func isSyntheticAggregate(id string) bool {
	return syntheticAggregates[id]
}
