package raster

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Producer fetches the raster for one named layer. Extent mode and tile
// mode each supply a different Producer over the same downstream
// overlay/mask/render pipeline (see internal/source).
type Producer func(ctx context.Context, layer string) (*Raster, error)

// DimensionMismatchError reports two rasters in one pipeline run that
// disagree on size.
type DimensionMismatchError struct {
	Layer string
	Want  RasterExtent
	Got   RasterExtent
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for layer %q: want %dx%d, got %dx%d",
		e.Layer, e.Want.Cols, e.Want.Rows, e.Got.Cols, e.Got.Rows)
}

// WeightedOverlay fetches each non-zero-weight layer via producer,
// promotes its cells, multiplies by the layer's integer weight, and sums
// pixelwise. NoData in any contributing layer at a cell makes the sum
// NoData at that cell.
//
// Zero-weight layers are skipped entirely, not fetched: a disabled layer
// with missing coverage must not force NoData onto an otherwise-complete
// result.
func WeightedOverlay(ctx context.Context, layers []string, weights []int, producer Producer) (*Raster, error) {
	if len(layers) != len(weights) {
		return nil, fmt.Errorf("layers/weights length mismatch: %d != %d", len(layers), len(weights))
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("weighted overlay requires at least one layer")
	}

	type contribution struct {
		idx int
		r   *Raster
		w   int
	}

	active := make([]int, 0, len(layers))
	for i, w := range weights {
		if w != 0 {
			active = append(active, i)
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("weighted overlay requires at least one non-zero weight")
	}

	contributions := make([]contribution, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for pos, i := range active {
		pos, i := pos, i
		g.Go(func() error {
			r, err := producer(gctx, layers[i])
			if err != nil {
				return fmt.Errorf("fetching layer %q: %w", layers[i], err)
			}
			contributions[pos] = contribution{idx: i, r: r, w: weights[i]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := contributions[0].r.RasterExtent
	for _, c := range contributions[1:] {
		if c.r.RasterExtent != base {
			return nil, &DimensionMismatchError{Layer: layers[c.idx], Want: base, Got: c.r.RasterExtent}
		}
	}

	out := NewRaster(base)
	for cell := range out.Cells {
		sum := int32(0)
		nodata := false
		for _, c := range contributions {
			v := c.r.Cells[cell]
			if !IsData(v) {
				nodata = true
				break
			}
			sum += promote8bit(v) * int32(c.w)
		}
		if nodata {
			out.Cells[cell] = NoData
		} else {
			out.Cells[cell] = sum
		}
	}
	return out, nil
}

// promote8bit clamps a cell value into the 8-bit range [0, 255];
// WeightedOverlay multiplies the result by the layer's weight.
func promote8bit(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
