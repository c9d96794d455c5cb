//go:build tiledb

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/gt-overlay/server/internal/raster"
)

// tiledbMeta is the JSON blob stored as TileDB array metadata under the
// "gt_meta" key, mirroring the filesystem backend's metadata.json.
type tiledbMeta struct {
	CRS      int     `json:"crs"`
	TileCols int     `json:"tileCols"`
	TileRows int     `json:"tileRows"`
	XMin     float64 `json:"xmin"`
	YMin     float64 `json:"ymin"`
	XMax     float64 `json:"xmax"`
	YMax     float64 `json:"ymax"`
}

// TileDBBackend addresses one dense TileDB array per (layer, zoom),
// keyed by pixel coordinates spanning the whole zoom's tile grid, with
// the layer's LayerMetadata stashed in the array's own key-value
// metadata. Enabled with "-tags tiledb"; builds without that tag use the
// stub in tiledb_stub.go, whose read methods return ErrUnsupported.
type TileDBBackend struct {
	root string
	ctx  *tiledb.Context

	mu       sync.Mutex
	metaCache map[string]*LayerMetadata
}

func NewTileDBBackend(root string) (*TileDBBackend, error) {
	ctx, err := tiledb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("tiledb: creating context: %w", err)
	}
	return &TileDBBackend{root: root, ctx: ctx, metaCache: make(map[string]*LayerMetadata)}, nil
}

func (b *TileDBBackend) Supported() bool { return true }

func (b *TileDBBackend) arrayURI(layer string, zoom int) string {
	return filepath.Join(b.root, layer, strconv.Itoa(zoom))
}

func (b *TileDBBackend) openArray(layer string, zoom int, mode tiledb.QueryType) (*tiledb.Array, error) {
	arr, err := tiledb.NewArray(b.ctx, b.arrayURI(layer, zoom))
	if err != nil {
		return nil, fmt.Errorf("tiledb: opening array handle for %q/%d: %w", layer, zoom, err)
	}
	if err := arr.Open(mode); err != nil {
		arr.Free()
		return nil, fmt.Errorf("tiledb: opening array for %q/%d: %w", layer, zoom, err)
	}
	return arr, nil
}

func (b *TileDBBackend) Metadata(_ context.Context, layer string, zoom int) (*LayerMetadata, error) {
	cacheKey := layer + "/" + strconv.Itoa(zoom)
	b.mu.Lock()
	if m, ok := b.metaCache[cacheKey]; ok {
		b.mu.Unlock()
		return m, nil
	}
	b.mu.Unlock()

	arr, err := b.openArray(layer, zoom, tiledb.TILEDB_READ)
	if err != nil {
		return nil, err
	}
	defer arr.Free()
	defer arr.Close()

	raw, _, _, err := arr.GetMetadata("gt_meta")
	if err != nil {
		return nil, fmt.Errorf("tiledb: reading gt_meta for %q/%d: %w", layer, zoom, err)
	}
	blob, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("tiledb: gt_meta for %q/%d is not a string", layer, zoom)
	}
	var tm tiledbMeta
	if err := json.Unmarshal([]byte(blob), &tm); err != nil {
		return nil, fmt.Errorf("tiledb: parsing gt_meta for %q/%d: %w", layer, zoom, err)
	}

	m := &LayerMetadata{
		Layer: layer, Zoom: zoom, CRS: tm.CRS, TileCols: tm.TileCols, TileRows: tm.TileRows,
		WorldExtent: raster.Extent{XMin: tm.XMin, YMin: tm.YMin, XMax: tm.XMax, YMax: tm.YMax},
	}
	b.mu.Lock()
	b.metaCache[cacheKey] = m
	b.mu.Unlock()
	return m, nil
}

// NativeZoom picks the highest zoom with an array present on disk.
func (b *TileDBBackend) NativeZoom(ctx context.Context, layer string) (int, error) {
	best := -1
	for z := 0; z < 32; z++ {
		if _, err := tiledb.NewArray(b.ctx, b.arrayURI(layer, z)); err == nil {
			best = z
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("tiledb: layer %q has no zoom levels", layer)
	}
	return best, nil
}

// ReadTile reads the pixel window for key out of the (layer, zoom)
// dense array. A subarray query outside the array's declared domain
// (tile outside native coverage) is treated as all-NoData, not an
// error, per the tileReader contract.
func (b *TileDBBackend) ReadTile(ctx context.Context, layer string, zoom int, key TileKey) (*raster.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, err := b.Metadata(context.Background(), layer, zoom)
	if err != nil {
		return nil, err
	}
	re := meta.tileRasterExtent(key)
	out := raster.NewRaster(re)

	arr, err := b.openArray(layer, zoom, tiledb.TILEDB_READ)
	if err != nil {
		return out, nil
	}
	defer arr.Free()
	defer arr.Close()

	sub, err := arr.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("tiledb: creating subarray for %q/%d/%v: %w", layer, zoom, key, err)
	}
	defer sub.Free()

	rowStart := int32(key.Y * meta.TileRows)
	rowEnd := rowStart + int32(meta.TileRows) - 1
	colStart := int32(key.X * meta.TileCols)
	colEnd := colStart + int32(meta.TileCols) - 1

	if err := sub.AddRangeByName("row", tiledb.MakeRange[int32](rowStart, rowEnd)); err != nil {
		return out, nil
	}
	if err := sub.AddRangeByName("col", tiledb.MakeRange[int32](colStart, colEnd)); err != nil {
		return out, nil
	}

	query, err := tiledb.NewQuery(b.ctx, arr)
	if err != nil {
		return nil, fmt.Errorf("tiledb: creating query for %q/%d/%v: %w", layer, zoom, key, err)
	}
	defer query.Free()
	if err := query.SetSubarray(sub); err != nil {
		return nil, err
	}

	buf := make([]int32, meta.TileCols*meta.TileRows)
	if _, err := query.SetDataBuffer("value", buf); err != nil {
		return nil, err
	}
	if err := query.Submit(); err != nil {
		// Out-of-domain subarray: no coverage for this tile.
		return out, nil
	}

	copy(out.Cells, buf)
	return out, nil
}

func (b *TileDBBackend) Close() error {
	b.ctx.Free()
	return nil
}
