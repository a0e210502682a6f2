package vendorapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tickforge/tickforge/internal/symbols"
)

// exchangeResponse mirrors the vendor's per-exchange catalog payload.
type exchangeResponse struct {
	ID               string          `json:"id"`
	AvailableSymbols []symbolListing `json:"availableSymbols"`
}

type symbolListing struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	AvailableSince vendorTime `json:"availableSince"`
	AvailableTo    *vendorTime `json:"availableTo,omitempty"`
}

// vendorTime tolerates the ISO-8601 variants the vendor emits, with or
// without the trailing Z.
type vendorTime struct {
	time.Time
}

var vendorTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *vendorTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	for _, layout := range vendorTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable vendor timestamp %q", s)
}

// ExchangeCatalog fetches the symbol list for one vendor exchange. The
// response is date-independent; per-date filtering happens downstream.
func (c *Client) ExchangeCatalog(ctx context.Context, vendorExchange string) ([]symbols.Listing, error) {
	url := fmt.Sprintf("%s/v1/exchanges/%s", strings.TrimSuffix(c.cfg.BaseURL, "/"), vendorExchange)
	p, err := c.doWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog for %s: %w", vendorExchange, err)
	}
	var resp exchangeResponse
	if err := json.Unmarshal(p.data, &resp); err != nil {
		return nil, fmt.Errorf("decode catalog for %s: %w", vendorExchange, err)
	}
	out := make([]symbols.Listing, 0, len(resp.AvailableSymbols))
	for _, s := range resp.AvailableSymbols {
		l := symbols.Listing{
			ID:             s.ID,
			Type:           s.Type,
			AvailableSince: s.AvailableSince.Time,
		}
		if s.AvailableTo != nil {
			to := s.AvailableTo.Time
			l.AvailableTo = &to
		}
		out = append(out, l)
	}
	return out, nil
}
