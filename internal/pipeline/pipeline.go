// Package pipeline wires the catalog, geometry, raster, source, and
// analytics packages into the operations the HTTP surface calls: breaks,
// render, histogram, and point sampling, each in extent mode or tile
// mode over the same OverlayRequest shape.
package pipeline

import (
	"context"

	"github.com/gt-overlay/server/internal/analytics"
	"github.com/gt-overlay/server/internal/apierr"
	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/raster"
	"github.com/gt-overlay/server/internal/render"
	"github.com/gt-overlay/server/internal/source"
	"github.com/paulmach/orb"
)

// OverlayRequest is the parsed, reprojected form of the common HTTP
// parameters shared by the overlay-consuming endpoints (breaks, wo,
// tile, histogram).
type OverlayRequest struct {
	Layers    []string
	Weights   []int
	PolyMask  []orb.Polygon // already reprojected to 3857
	LayerMask map[string][]int32
	Threshold int32 // raster.NoData disables
}

// buildRaster runs the shared weighted-overlay-then-mask pipeline over
// producer, using fetcher for the layer mask stage.
func buildRaster(ctx context.Context, producer raster.Producer, fetcher raster.LayerFetcher, req OverlayRequest) (*raster.Raster, error) {
	base, err := raster.WeightedOverlay(ctx, req.Layers, req.Weights, producer)
	if err != nil {
		return nil, err
	}
	return raster.ApplyMasks(base,
		raster.PolygonMask(req.PolyMask),
		raster.LayerMask(ctx, req.LayerMask, fetcher),
		raster.ThresholdMask(req.Threshold),
	)
}

// ExtentRaster builds the fused, masked raster for extent mode: bbox
// materialized at gridSize x gridSize.
func ExtentRaster(ctx context.Context, cat *catalog.Catalog, bbox raster.Extent, gridSize int, req OverlayRequest) (*raster.Raster, error) {
	target := raster.RasterExtent{Extent: bbox, Cols: gridSize, Rows: gridSize}
	producer := source.FromExtent(cat, target)
	fetcher := source.LayerMaskFetcherForExtent(cat, target)
	return buildRaster(ctx, producer, fetcher, req)
}

// TileRaster builds the fused, masked raster for a single (z, x, y)
// tile.
func TileRaster(ctx context.Context, cat *catalog.Catalog, z, x, y int, req OverlayRequest) (*raster.Raster, error) {
	producer := source.FromTile(cat, z, x, y)
	fetcher := source.LayerMaskFetcherForTile(cat, z, x, y)
	return buildRaster(ctx, producer, fetcher, req)
}

// Breaks computes class breaks for an extent-mode overlay, translating
// the all-NoData sentinel into a domain UnableToCompute error.
func Breaks(ctx context.Context, cat *catalog.Catalog, bbox raster.Extent, gridSize int, req OverlayRequest, numBreaks int) ([]int32, error) {
	r, err := ExtentRaster(ctx, cat, bbox, gridSize, req)
	if err != nil {
		return nil, err
	}
	breaks := analytics.ClassBreaks(r, numBreaks)
	if len(breaks) == 1 && breaks[0] == raster.NoData {
		return nil, apierr.New(apierr.UnableToCompute, "Unable to calculate breaks (NODATA)")
	}
	return breaks, nil
}

// RenderExtent renders an extent-mode overlay to PNG.
func RenderExtent(ctx context.Context, cat *catalog.Catalog, r *render.Renderer, bbox raster.Extent, gridSize int, req OverlayRequest, breaks []int32, colorRamp string) ([]byte, error) {
	rst, err := ExtentRaster(ctx, cat, bbox, gridSize, req)
	if err != nil {
		return nil, err
	}
	return r.PNG(rst, breaks, colorRamp)
}

// RenderTile renders a single tile-mode overlay to PNG.
func RenderTile(ctx context.Context, cat *catalog.Catalog, r *render.Renderer, z, x, y int, req OverlayRequest, breaks []int32, colorRamp string) ([]byte, error) {
	rst, err := TileRaster(ctx, cat, z, x, y, req)
	if err != nil {
		return nil, err
	}
	return r.PNG(rst, breaks, colorRamp)
}

// Histogram computes a plain or zonal (over req.PolyMask) histogram of
// an extent-mode overlay.
func Histogram(ctx context.Context, cat *catalog.Catalog, bbox raster.Extent, gridSize int, req OverlayRequest) (map[int32]int64, error) {
	r, err := ExtentRaster(ctx, cat, bbox, gridSize, req)
	if err != nil {
		return nil, err
	}
	return analytics.Histogram(r, req.PolyMask), nil
}

// SampleExtent samples a single layer's raw values (no overlay, no
// masks) via the extent/readWindow reader.
func SampleExtent(ctx context.Context, cat *catalog.Catalog, layer string, srid int, points []analytics.PointInput) ([]analytics.Sample, error) {
	return analytics.SampleReadWindow(ctx, cat, layer, srid, points)
}

// SampleTile samples a single layer's raw values via the batched
// tile-reader path.
func SampleTile(ctx context.Context, cat *catalog.Catalog, layer string, srid int, points []analytics.PointInput) ([]analytics.Sample, error) {
	return analytics.SampleTileReader(ctx, cat, layer, srid, points)
}
