// Package analytics computes class breaks, zonal histograms, and point
// samples over a fused raster or a raw catalog layer.
package analytics

import (
	"sort"

	"github.com/gt-overlay/server/internal/raster"
)

// ClassBreaks partitions r's non-NoData values into up to n quantile
// buckets and returns their upper edges, strictly increasing. Ties in
// the underlying data collapse adjacent buckets, so the result may have
// fewer than n entries. A raster with no data cells at all returns the
// single-element list [NoData], signaling the caller to report
// UnableToCompute rather than render an empty legend.
func ClassBreaks(r *raster.Raster, n int) []int32 {
	if n <= 0 {
		n = 1
	}

	values := make([]int32, 0, len(r.Cells))
	for _, v := range r.Cells {
		if raster.IsData(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return []int32{raster.NoData}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	breaks := make([]int32, 0, n)
	for i := 1; i <= n; i++ {
		idx := i*len(values)/n - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(values) {
			idx = len(values) - 1
		}
		v := values[idx]
		if len(breaks) == 0 || breaks[len(breaks)-1] < v {
			breaks = append(breaks, v)
		}
	}
	return breaks
}
