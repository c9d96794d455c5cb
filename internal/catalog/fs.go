package catalog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/gt-overlay/server/internal/raster"
)

// fsMetadata mirrors the on-disk metadata.json for one (layer, zoom).
type fsMetadata struct {
	CRS      int     `json:"crs"`
	TileCols int     `json:"tileCols"`
	TileRows int     `json:"tileRows"`
	XMin     float64 `json:"xmin"`
	YMin     float64 `json:"ymin"`
	XMax     float64 `json:"xmax"`
	YMax     float64 `json:"ymax"`
}

// FSBackend is the default catalog backend: a directory tree laid out as
// <root>/<layer>/<zoom>/metadata.json plus one zstd-compressed chunk file
// per tile key, <x>_<y>.rst, holding cols*rows little-endian int32 cells.
// A missing chunk file means "outside native coverage", not an error.
type FSBackend struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFSBackend opens a filesystem-rooted catalog. It does not itself
// require root to exist yet: metadata/tile lookups fail lazily per
// layer.
func NewFSBackend(root string) (*FSBackend, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating zstd decoder: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating zstd encoder: %w", err)
	}
	return &FSBackend{root: root, encoder: enc, decoder: dec}, nil
}

func (b *FSBackend) zoomDir(layer string, zoom int) string {
	return filepath.Join(b.root, layer, strconv.Itoa(zoom))
}

func (b *FSBackend) Metadata(_ context.Context, layer string, zoom int) (*LayerMetadata, error) {
	path := filepath.Join(b.zoomDir(layer, zoom), "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m fsMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &LayerMetadata{
		Layer:    layer,
		Zoom:     zoom,
		CRS:      m.CRS,
		TileCols: m.TileCols,
		TileRows: m.TileRows,
		WorldExtent: raster.Extent{
			XMin: m.XMin, YMin: m.YMin, XMax: m.XMax, YMax: m.YMax,
		},
	}, nil
}

// NativeZoom is the finest (highest-numbered) zoom directory present for
// layer, used by Catalog.ReadWindow.
func (b *FSBackend) NativeZoom(_ context.Context, layer string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(b.root, layer))
	if err != nil {
		return 0, fmt.Errorf("listing zooms for %q: %w", layer, err)
	}
	var zooms []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		z, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		zooms = append(zooms, z)
	}
	if len(zooms) == 0 {
		return 0, fmt.Errorf("layer %q has no zoom levels", layer)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(zooms)))
	return zooms[0], nil
}

func (b *FSBackend) chunkPath(layer string, zoom int, key TileKey) string {
	return filepath.Join(b.zoomDir(layer, zoom), fmt.Sprintf("%d_%d.rst", key.X, key.Y))
}

func (b *FSBackend) ReadTile(ctx context.Context, layer string, zoom int, key TileKey) (*raster.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, err := b.Metadata(ctx, layer, zoom)
	if err != nil {
		return nil, err
	}
	re := meta.tileRasterExtent(key)

	compressed, err := os.ReadFile(b.chunkPath(layer, zoom, key))
	if err != nil {
		if os.IsNotExist(err) {
			return raster.NewRaster(re), nil
		}
		return nil, fmt.Errorf("reading chunk %v: %w", key, err)
	}

	raw, err := b.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing chunk %v: %w", key, err)
	}
	want := meta.TileCols * meta.TileRows * 4
	if len(raw) != want {
		return nil, fmt.Errorf("chunk %v has %d bytes, want %d", key, len(raw), want)
	}

	out := raster.NewRaster(re)
	for i := range out.Cells {
		out.Cells[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// WriteTile persists a raster tile in the layout ReadTile understands.
// Not exercised by the HTTP surface (the pipeline is read-only per the
// catalog's Non-goals), but used by test fixtures and offline catalog
// population tooling.
func (b *FSBackend) WriteTile(layer string, zoom int, key TileKey, r *raster.Raster) error {
	dir := b.zoomDir(layer, zoom)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw := make([]byte, len(r.Cells)*4)
	for i, v := range r.Cells {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	compressed := b.encoder.EncodeAll(raw, nil)
	return os.WriteFile(b.chunkPath(layer, zoom, key), compressed, 0o644)
}

// WriteMetadata persists metadata.json for (layer, zoom).
func (b *FSBackend) WriteMetadata(layer string, zoom int, m *LayerMetadata) error {
	dir := b.zoomDir(layer, zoom)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(fsMetadata{
		CRS: m.CRS, TileCols: m.TileCols, TileRows: m.TileRows,
		XMin: m.WorldExtent.XMin, YMin: m.WorldExtent.YMin,
		XMax: m.WorldExtent.XMax, YMax: m.WorldExtent.YMax,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644)
}

func (b *FSBackend) Close() error { return nil }

// Layers lists the layer names present under the catalog root.
func (b *FSBackend) Layers() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
