// Package source presents catalog layers as Raster producers, one per
// execution mode, over the identical downstream overlay/mask/analytics
// contract (internal/raster.Producer).
package source

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/raster"
)

var restrictionLogOnce sync.Map // layer name -> struct{}, logged at most once per process

// FromExtent returns a Producer that reads each named layer as a window
// over targetExtent via Catalog.ReadWindow.
func FromExtent(cat *catalog.Catalog, targetExtent raster.RasterExtent) raster.Producer {
	return func(ctx context.Context, layer string) (*raster.Raster, error) {
		r, err := cat.ReadWindow(ctx, layer, targetExtent)
		if err != nil {
			return nil, fmt.Errorf("source: reading extent window for %q: %w", layer, err)
		}
		return r, nil
	}
}

// FromTile returns a Producer that reads the single (z, x, y) tile for
// each named layer. Its RasterExtent is the tile's geographic extent in
// 3857 at the catalog's tile dimensions.
func FromTile(cat *catalog.Catalog, z, x, y int) raster.Producer {
	return func(ctx context.Context, layer string) (*raster.Raster, error) {
		if _, err := cat.Metadata(ctx, layer, z); err != nil {
			return nil, err
		}
		reader := cat.TileReader(layer, z)
		r, err := reader(ctx, catalog.TileKey{X: x, Y: y})
		if err != nil {
			return nil, fmt.Errorf("source: reading tile %d/%d/%d for %q: %w", z, x, y, layer, err)
		}
		return r, nil
	}
}

// LayerMaskFetcherForExtent adapts FromExtent to raster.LayerFetcher for
// the extent-mode layer mask stage.
func LayerMaskFetcherForExtent(cat *catalog.Catalog, targetExtent raster.RasterExtent) raster.LayerFetcher {
	producer := FromExtent(cat, targetExtent)
	return func(ctx context.Context, layer string) (*raster.Raster, error) {
		return producer(ctx, layer)
	}
}

// LayerMaskFetcherForTile resolves the mask layer at the requested
// tile's own zoom when the mask layer natively publishes that zoom. If
// it doesn't, it falls back to Catalog.ReadWindow over the geographic
// extent that (z, x, y) covers under the mask layer's own pyramid,
// resampled from whatever zoom the layer does have — and logs the
// restriction once per layer per process instead of silently disabling
// the mask (Open Question 2: never silently drop it).
func LayerMaskFetcherForTile(cat *catalog.Catalog, z, x, y int) raster.LayerFetcher {
	return func(ctx context.Context, layer string) (*raster.Raster, error) {
		if _, err := cat.Metadata(ctx, layer, z); err == nil {
			reader := cat.TileReader(layer, z)
			return reader(ctx, catalog.TileKey{X: x, Y: y})
		}

		nativeZoom, err := cat.NativeZoom(ctx, layer)
		if err != nil {
			return nil, err
		}
		nativeMeta, err := cat.Metadata(ctx, layer, nativeZoom)
		if err != nil {
			return nil, err
		}

		if _, logged := restrictionLogOnce.LoadOrStore(layer, struct{}{}); !logged {
			log.Printf("source: layer mask %q has no native coverage at zoom %d, "+
				"falling back to readWindow at zoom %d (restricted accuracy)", layer, z, nativeZoom)
		}

		targetExtent := catalog.TileExtentAtZoom(nativeMeta.WorldExtent, z, x, y)
		re := raster.RasterExtent{Extent: targetExtent, Cols: nativeMeta.TileCols, Rows: nativeMeta.TileRows}
		return cat.ReadWindow(ctx, layer, re)
	}
}
