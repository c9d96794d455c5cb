// Package catalog resolves (layer name, zoom) pairs to tile readers and
// window readers over a pyramidal, tiled raster catalog. Two backends
// implement the same contract: a filesystem backend (default) and an
// optional TileDB-backed dense array store (build tag "tiledb").
package catalog

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/gt-overlay/server/internal/apierr"
	"github.com/gt-overlay/server/internal/raster"
)

// TileKey identifies one tile in a layer's pyramid at a given zoom.
type TileKey struct {
	X, Y int
}

// LayerMetadata describes one (layer, zoom) pair: its CRS, tile pixel
// dimensions, and the affine mapTransform between geographic points,
// tile keys, and tile extents.
type LayerMetadata struct {
	Layer       string
	Zoom        int
	CRS         int
	TileCols    int
	TileRows    int
	WorldExtent raster.Extent // the layer's extent at zoom 0
}

func (m *LayerMetadata) tilesPerAxis() int {
	return 1 << uint(m.Zoom)
}

// TileExtent returns the geographic extent covered by tile key at this
// metadata's zoom.
func (m *LayerMetadata) TileExtent(key TileKey) raster.Extent {
	n := float64(m.tilesPerAxis())
	tw := m.WorldExtent.Width() / n
	th := m.WorldExtent.Height() / n
	xmin := m.WorldExtent.XMin + float64(key.X)*tw
	ymax := m.WorldExtent.YMax - float64(key.Y)*th
	return raster.Extent{XMin: xmin, YMin: ymax - th, XMax: xmin + tw, YMax: ymax}
}

// PointToTileKey locates the tile containing pt at this metadata's zoom.
func (m *LayerMetadata) PointToTileKey(pt orb.Point) TileKey {
	n := float64(m.tilesPerAxis())
	tw := m.WorldExtent.Width() / n
	th := m.WorldExtent.Height() / n
	x := int(math.Floor((pt[0] - m.WorldExtent.XMin) / tw))
	y := int(math.Floor((m.WorldExtent.YMax - pt[1]) / th))
	return TileKey{X: x, Y: y}
}

func (m *LayerMetadata) tileRasterExtent(key TileKey) raster.RasterExtent {
	return raster.RasterExtent{Extent: m.TileExtent(key), Cols: m.TileCols, Rows: m.TileRows}
}

// TileExtentAtZoom computes the geographic extent of tile (z, x, y) over
// a layer's WorldExtent, independent of any particular LayerMetadata's
// own zoom field. Used when a mask layer must be addressed at a zoom it
// doesn't natively publish (see source.LayerMaskFetcherForTile).
func TileExtentAtZoom(world raster.Extent, z, x, y int) raster.Extent {
	n := float64(int(1) << uint(z))
	tw := world.Width() / n
	th := world.Height() / n
	xmin := world.XMin + float64(x)*tw
	ymax := world.YMax - float64(y)*th
	return raster.Extent{XMin: xmin, YMin: ymax - th, XMax: xmin + tw, YMax: ymax}
}

// tileRange returns the inclusive range of tile keys overlapping ext.
func (m *LayerMetadata) tileRange(ext raster.Extent) (minX, maxX, minY, maxY int) {
	n := m.tilesPerAxis()
	tw := m.WorldExtent.Width() / float64(n)
	th := m.WorldExtent.Height() / float64(n)
	minX = int(math.Floor((ext.XMin - m.WorldExtent.XMin) / tw))
	maxX = int(math.Floor((ext.XMax - m.WorldExtent.XMin) / tw))
	minY = int(math.Floor((m.WorldExtent.YMax - ext.YMax) / th))
	maxY = int(math.Floor((m.WorldExtent.YMax - ext.YMin) / th))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > n-1 {
		maxX = n - 1
	}
	if maxY > n-1 {
		maxY = n - 1
	}
	return
}

// TileReader is a pure function from tile key to tile; a missing key
// returns an all-NoData tile of the catalog's declared tile dimensions,
// never an error.
type TileReader func(ctx context.Context, key TileKey) (*raster.Raster, error)

// Backend is implemented once per storage technology.
type Backend interface {
	Metadata(ctx context.Context, layer string, zoom int) (*LayerMetadata, error)
	NativeZoom(ctx context.Context, layer string) (int, error)
	ReadTile(ctx context.Context, layer string, zoom int, key TileKey) (*raster.Raster, error)
	Close() error
}

// Catalog is the process-wide handle opened once at startup and shared,
// read-only, across all requests.
type Catalog struct {
	backend   Backend
	metaCache *lru.Cache[metaKey, *LayerMetadata]
}

type metaKey struct {
	layer string
	zoom  int
}

// Open acquires a catalog rooted at the backend's location.
func Open(backend Backend) (*Catalog, error) {
	metaCache, err := lru.New[metaKey, *LayerMetadata](256)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating metadata cache: %w", err)
	}
	return &Catalog{backend: backend, metaCache: metaCache}, nil
}

// Close releases the catalog on process shutdown.
func (c *Catalog) Close() error {
	return c.backend.Close()
}

// Metadata returns CRS, tile dimensions, and mapTransform for (layer,
// zoom), memoized in a process-wide resolution cache. Fails with
// LayerNotFound if absent.
func (c *Catalog) Metadata(ctx context.Context, layer string, zoom int) (*LayerMetadata, error) {
	key := metaKey{layer: layer, zoom: zoom}
	if m, ok := c.metaCache.Get(key); ok {
		return m, nil
	}
	m, err := c.backend.Metadata(ctx, layer, zoom)
	if err != nil {
		return nil, apierr.Wrap(apierr.LayerNotFound, fmt.Sprintf("layer %q zoom %d not found", layer, zoom), err)
	}
	c.metaCache.Add(key, m)
	return m, nil
}

// NativeZoom is the zoom level extent-mode reads assemble from.
func (c *Catalog) NativeZoom(ctx context.Context, layer string) (int, error) {
	z, err := c.backend.NativeZoom(ctx, layer)
	if err != nil {
		return 0, apierr.Wrap(apierr.LayerNotFound, fmt.Sprintf("layer %q not found", layer), err)
	}
	return z, nil
}

// TileReader returns a pure key->tile function for (layer, zoom).
func (c *Catalog) TileReader(layer string, zoom int) TileReader {
	return func(ctx context.Context, key TileKey) (*raster.Raster, error) {
		r, err := c.backend.ReadTile(ctx, layer, zoom, key)
		if err != nil {
			return nil, fmt.Errorf("catalog: reading tile %v for %q/%d: %w", key, layer, zoom, err)
		}
		return r, nil
	}
}

// ReadWindow returns a Raster at the exact requested RasterExtent,
// assembled from the layer's native-zoom tiles and nearest-neighbor
// resampled into the target grid. Cells outside native coverage are
// NoData. Overlapping tile reads fan out concurrently and are
// deduplicated by a cache scoped to this single call only.
func (c *Catalog) ReadWindow(ctx context.Context, layer string, target raster.RasterExtent) (*raster.Raster, error) {
	zoom, err := c.NativeZoom(ctx, layer)
	if err != nil {
		return nil, err
	}
	meta, err := c.Metadata(ctx, layer, zoom)
	if err != nil {
		return nil, err
	}

	minX, maxX, minY, maxY := meta.tileRange(target.Extent)
	if maxX < minX || maxY < minY {
		return raster.NewRaster(target), nil
	}

	type fetched struct {
		key TileKey
		r   *raster.Raster
	}

	dedup, _ := lru.New[TileKey, *raster.Raster]((maxX - minX + 1) * (maxY - minY + 1))
	var keys []TileKey
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			keys = append(keys, TileKey{X: x, Y: y})
		}
	}

	results := make([]fetched, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	reader := c.TileReader(layer, zoom)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			if cached, ok := dedup.Get(key); ok {
				results[i] = fetched{key: key, r: cached}
				return nil
			}
			r, err := reader(gctx, key)
			if err != nil {
				return err
			}
			dedup.Add(key, r)
			results[i] = fetched{key: key, r: r}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Assemble a native-resolution mosaic covering the tile range, then
	// nearest-neighbor resample into the requested target grid.
	mosaicExtent := raster.Extent{
		XMin: meta.TileExtent(TileKey{X: minX, Y: minY}).XMin,
		YMax: meta.TileExtent(TileKey{X: minX, Y: minY}).YMax,
		XMax: meta.TileExtent(TileKey{X: maxX, Y: maxY}).XMax,
		YMin: meta.TileExtent(TileKey{X: maxX, Y: maxY}).YMin,
	}
	mosaicCols := (maxX - minX + 1) * meta.TileCols
	mosaicRows := (maxY - minY + 1) * meta.TileRows
	mosaic := raster.NewRaster(raster.RasterExtent{Extent: mosaicExtent, Cols: mosaicCols, Rows: mosaicRows})

	for _, f := range results {
		originCol := (f.key.X - minX) * meta.TileCols
		originRow := (f.key.Y - minY) * meta.TileRows
		for row := 0; row < meta.TileRows; row++ {
			for col := 0; col < meta.TileCols; col++ {
				mosaic.Set(originCol+col, originRow+row, f.r.At(col, row))
			}
		}
	}

	return resampleNearest(mosaic, target), nil
}

// resampleNearest maps each target cell's center into src and copies the
// nearest source cell, leaving NoData where src has no coverage.
func resampleNearest(src *raster.Raster, target raster.RasterExtent) *raster.Raster {
	out := raster.NewRaster(target)
	for row := 0; row < target.Rows; row++ {
		for col := 0; col < target.Cols; col++ {
			x, y := target.CellCenter(col, row)
			if !src.Contains(x, y) {
				continue
			}
			sc, sr := src.ColRow(x, y)
			out.Set(col, row, src.At(sc, sr))
		}
	}
	return out
}
