package analytics

import (
	"context"
	"testing"

	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/geo"
	"github.com/gt-overlay/server/internal/raster"
)

func newFixtureCatalog(t *testing.T) (*catalog.Catalog, *catalog.FSBackend) {
	t.Helper()
	backend, err := catalog.NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	cat, err := catalog.Open(backend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return cat, backend
}

// writeQuadrantLayer publishes a single zoom-0 2x2 tile filled with 99
// over the world extent 0..2, so every point inside that extent samples
// 99 from the same tile.
func writeQuadrantLayer(t *testing.T, backend *catalog.FSBackend, layer string) *catalog.LayerMetadata {
	t.Helper()
	meta := &catalog.LayerMetadata{CRS: 3857, TileCols: 2, TileRows: 2, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 2, YMax: 2}}
	if err := backend.WriteMetadata(layer, 0, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	re := raster.RasterExtent{Extent: meta.TileExtent(catalog.TileKey{X: 0, Y: 0}), Cols: 2, Rows: 2}
	r := raster.NewRaster(re)
	for i := range r.Cells {
		r.Cells[i] = 99
	}
	if err := backend.WriteTile(layer, 0, catalog.TileKey{X: 0, Y: 0}, r); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	return meta
}

func TestSampleTileReaderReadsPublishedValue(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	writeQuadrantLayer(t, backend, "L")

	points := []PointInput{{ID: "a", X: 0.5, Y: 0.5}, {ID: "b", X: 1.5, Y: 1.5}}
	samples, err := SampleTileReader(context.Background(), cat, "L", geo.CRS3857, points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	for _, s := range samples {
		if s.Value != 99 {
			t.Fatalf("sample %q: got %d, want 99", s.ID, s.Value)
		}
	}
}

func TestSampleReadWindowMatchesTileReader(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	writeQuadrantLayer(t, backend, "L")

	points := []PointInput{{ID: "a", X: 0.5, Y: 0.5}}
	tileSamples, err := SampleTileReader(context.Background(), cat, "L", geo.CRS3857, points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	windowSamples, err := SampleReadWindow(context.Background(), cat, "L", geo.CRS3857, points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tileSamples[0].Value != windowSamples[0].Value {
		t.Fatalf("tile reader value %d != readWindow value %d", tileSamples[0].Value, windowSamples[0].Value)
	}
}

func TestSampleOutsideCoverageIsNoData(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	writeQuadrantLayer(t, backend, "L")

	points := []PointInput{{ID: "outside", X: 50, Y: 50}}
	samples, err := SampleReadWindow(context.Background(), cat, "L", geo.CRS3857, points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raster.IsData(samples[0].Value) {
		t.Fatalf("expected NoData outside coverage, got %d", samples[0].Value)
	}
}
