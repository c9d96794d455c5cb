package raster

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Mask is a unary Raster -> Raster transform. The three stages below are
// composed left-to-right: ApplyMasks(r, polygonMask, layerMask,
// thresholdMask) == thresholdMask(layerMask(polygonMask(r))).
//
// None of the stages are order-sensitive: all are conjunctive over cell
// survival and none transform surviving values, so any permutation of
// the three yields an identical result raster.
type Mask func(r *Raster) (*Raster, error)

// ApplyMasks folds masks over r in order, left to right.
func ApplyMasks(r *Raster, masks ...Mask) (*Raster, error) {
	out := r
	for _, m := range masks {
		if m == nil {
			continue
		}
		next, err := m(out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// PolygonMask retains a cell iff its center lies inside the union of
// polys. An empty polygon set is the identity mask.
func PolygonMask(polys []orb.Polygon) Mask {
	if len(polys) == 0 {
		return func(r *Raster) (*Raster, error) { return r, nil }
	}
	return func(r *Raster) (*Raster, error) {
		out := r.Clone()
		for row := 0; row < r.Rows; row++ {
			for col := 0; col < r.Cols; col++ {
				v := out.At(col, row)
				if !IsData(v) {
					continue
				}
				x, y := r.CellCenter(col, row)
				if !pointInAnyPolygon(orb.Point{x, y}, polys) {
					out.Set(col, row, NoData)
				}
			}
		}
		return out, nil
	}
}

func pointInAnyPolygon(pt orb.Point, polys []orb.Polygon) bool {
	for _, p := range polys {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// LayerFetcher fetches the raster for a mask layer at the same
// extent/tile as the raster being masked.
type LayerFetcher func(ctx context.Context, layerName string) (*Raster, error)

// LayerMask retains a cell iff, for every (layerName, allowedValues)
// entry, the mask layer has data at that cell and its value is in
// allowedValues. A nil/empty map is the identity mask. Stages for
// distinct layer names compose as logical AND.
func LayerMask(ctx context.Context, allow map[string][]int32, fetch LayerFetcher) Mask {
	if len(allow) == 0 {
		return func(r *Raster) (*Raster, error) { return r, nil }
	}
	return func(r *Raster) (*Raster, error) {
		out := r.Clone()
		for layerName, values := range allow {
			maskRaster, err := fetch(ctx, layerName)
			if err != nil {
				return nil, err
			}
			if maskRaster.RasterExtent != out.RasterExtent {
				return nil, &DimensionMismatchError{Layer: layerName, Want: out.RasterExtent, Got: maskRaster.RasterExtent}
			}
			allowed := toSet(values)
			for i, v := range out.Cells {
				if !IsData(v) {
					continue
				}
				mv := maskRaster.Cells[i]
				if !IsData(mv) || !allowed[mv] {
					out.Cells[i] = NoData
				}
			}
		}
		return out, nil
	}
}

func toSet(values []int32) map[int32]bool {
	set := make(map[int32]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// ThresholdMask retains a cell iff its value is >= t. t == NoData means
// "disabled" (identity mask).
func ThresholdMask(t int32) Mask {
	if t == NoData {
		return func(r *Raster) (*Raster, error) { return r, nil }
	}
	return func(r *Raster) (*Raster, error) {
		out := r.Clone()
		for i, v := range out.Cells {
			if !IsData(v) || v < t {
				out.Cells[i] = NoData
			}
		}
		return out, nil
	}
}
