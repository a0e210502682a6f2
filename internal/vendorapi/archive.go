package vendorapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the two-byte gzip file header.
var gzipMagic = []byte{0x1f, 0x8b}

// TickFile fetches one archived day file and returns the decompressed CSV
// bytes. A 404 surfaces as ErrNoData; decompression failures on a complete
// response are not retried.
func (c *Client) TickFile(ctx context.Context, vendorExchange, product string, day time.Time, vendorSymbol string) ([]byte, error) {
	d := day.UTC()
	url := fmt.Sprintf("%s/v1/%s/%s/%04d/%02d/%02d/%s.csv.gz",
		strings.TrimSuffix(c.cfg.BaseURL, "/"),
		vendorExchange, product,
		d.Year(), int(d.Month()), d.Day(),
		vendorSymbol)
	p, err := c.doWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	if strings.Contains(p.encoding, "gzip") || bytes.HasPrefix(p.data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(p.data))
		if err != nil {
			return nil, fmt.Errorf("open gzip stream for %s: %w", url, err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", url, err)
		}
		return data, nil
	}
	return p.data, nil
}
