package analytics

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/gt-overlay/server/internal/raster"
)

// Histogram counts non-NoData cell values in r. With no polygons, every
// cell counts once. With polygons, it's zonal: each polygon's cell count
// is computed independently (a cell whose center falls in more than one
// polygon is counted once per polygon it falls in) and the per-polygon
// counts are merged by summation. Independent zones may be computed in
// parallel; the merge is commutative and associative so completion order
// never affects the result.
func Histogram(r *raster.Raster, polys []orb.Polygon) map[int32]int64 {
	if len(polys) == 0 {
		hist := make(map[int32]int64)
		for _, v := range r.Cells {
			if raster.IsData(v) {
				hist[v]++
			}
		}
		return hist
	}

	partials := make([]map[int32]int64, len(polys))
	var wg sync.WaitGroup
	for i, poly := range polys {
		wg.Add(1)
		go func(i int, poly orb.Polygon) {
			defer wg.Done()
			partials[i] = zonalCounts(r, poly)
		}(i, poly)
	}
	wg.Wait()

	merged := make(map[int32]int64)
	for _, p := range partials {
		for v, count := range p {
			merged[v] += count
		}
	}
	return merged
}

func zonalCounts(r *raster.Raster, poly orb.Polygon) map[int32]int64 {
	counts := make(map[int32]int64)
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			v := r.At(col, row)
			if !raster.IsData(v) {
				continue
			}
			x, y := r.CellCenter(col, row)
			if planar.PolygonContains(poly, orb.Point{x, y}) {
				counts[v]++
			}
		}
	}
	return counts
}
