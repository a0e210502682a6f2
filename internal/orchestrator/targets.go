package orchestrator

import (
	"sort"
	"time"

	"github.com/tickforge/tickforge/internal/domain"
)

// TargetsForDay joins a day's catalog with each definition's product list.
// Output is sorted by (instrument key, product) so runs are deterministic.
func TargetsForDay(defs []domain.InstrumentDefinition, day time.Time) []domain.DownloadTarget {
	var targets []domain.DownloadTarget
	for i := range defs {
		d := &defs[i]
		for _, product := range d.ProductList() {
			targets = append(targets, domain.DownloadTarget{
				InstrumentKey:  d.InstrumentKey,
				VendorExchange: d.VendorExchange,
				VendorSymbol:   d.VendorSymbol,
				Product:        product,
				Date:           day,
			})
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].InstrumentKey != targets[j].InstrumentKey {
			return targets[i].InstrumentKey < targets[j].InstrumentKey
		}
		return targets[i].Product < targets[j].Product
	})
	return targets
}

// FilterShard keeps the targets owned by one shard. Shards partition on the
// instrument key, so every product and date of one instrument stays on the
// same worker.
func FilterShard(targets []domain.DownloadTarget, shardIndex, totalShards int) []domain.DownloadTarget {
	if totalShards <= 1 {
		return targets
	}
	out := targets[:0:0]
	for _, t := range targets {
		if domain.InShard(t.InstrumentKey, shardIndex, totalShards) {
			out = append(out, t)
		}
	}
	return out
}

// FilterProducts keeps targets whose product is in the inclusion list; an
// empty list keeps everything. Matching is exact.
func FilterProducts(targets []domain.DownloadTarget, products []string) []domain.DownloadTarget {
	if len(products) == 0 {
		return targets
	}
	allowed := make(map[string]bool, len(products))
	for _, p := range products {
		allowed[p] = true
	}
	out := targets[:0:0]
	for _, t := range targets {
		if allowed[t.Product] {
			out = append(out, t)
		}
	}
	return out
}
