package pipeline

import (
	"context"
	"testing"

	"github.com/paulmach/orb"

	"github.com/gt-overlay/server/internal/analytics"
	"github.com/gt-overlay/server/internal/apierr"
	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/raster"
	"github.com/gt-overlay/server/internal/render"
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

func writeLayer(t *testing.T, backend *catalog.FSBackend, layer string, meta *catalog.LayerMetadata, key catalog.TileKey, v int32) {
	t.Helper()
	if err := backend.WriteMetadata(layer, meta.Zoom, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	re := raster.RasterExtent{Extent: meta.TileExtent(key), Cols: meta.TileCols, Rows: meta.TileRows}
	r := raster.NewRaster(re)
	for i := range r.Cells {
		r.Cells[i] = v
	}
	if err := backend.WriteTile(layer, meta.Zoom, key, r); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
}

// S1 — trivial breaks: a constant-5 256x256 layer, numBreaks=3, expect [5].
func TestBreaksScenarioS1(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	meta := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 256, TileRows: 256, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 256, YMax: 256}}
	writeLayer(t, backend, "L1", meta, catalog.TileKey{}, 5)

	req := OverlayRequest{Layers: []string{"L1"}, Weights: []int{1}, Threshold: raster.NoData}
	breaks, err := Breaks(context.Background(), cat, meta.WorldExtent, 256, req, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(breaks) != 1 || breaks[0] != 5 {
		t.Fatalf("got %v, want [5]", breaks)
	}
}

// S2 — weighted sum: A constant 2, B constant 3, weights 2,1 -> fused 7.
func TestBreaksScenarioS2(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	metaA := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 4, TileRows: 4, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 4, YMax: 4}}
	metaB := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 4, TileRows: 4, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 4, YMax: 4}}
	writeLayer(t, backend, "A", metaA, catalog.TileKey{}, 2)
	writeLayer(t, backend, "B", metaB, catalog.TileKey{}, 3)

	req := OverlayRequest{Layers: []string{"A", "B"}, Weights: []int{2, 1}, Threshold: raster.NoData}
	breaks, err := Breaks(context.Background(), cat, metaA.WorldExtent, 4, req, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(breaks) != 1 || breaks[0] != 7 {
		t.Fatalf("got %v, want [7]", breaks)
	}
}

// S3 — threshold mask: same as S2 with threshold=8; fused 7 < 8 masks
// everything out, so breaks reports UnableToCompute.
func TestBreaksScenarioS3(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	metaA := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 4, TileRows: 4, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 4, YMax: 4}}
	metaB := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 4, TileRows: 4, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 4, YMax: 4}}
	writeLayer(t, backend, "A", metaA, catalog.TileKey{}, 2)
	writeLayer(t, backend, "B", metaB, catalog.TileKey{}, 3)

	req := OverlayRequest{Layers: []string{"A", "B"}, Weights: []int{2, 1}, Threshold: 8}
	_, err := Breaks(context.Background(), cat, metaA.WorldExtent, 4, req, 2)
	if err == nil {
		t.Fatal("expected UnableToCompute error")
	}
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.UnableToCompute {
		t.Fatalf("got %v, want an UnableToCompute apierr.Error", err)
	}
	if apiErr.Message != "Unable to calculate breaks (NODATA)" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

// S4 — polygon mask: a 0..255 ramp, top-left quadrant polygon; histogram
// must contain only values 0..127 summing to 128*128 cells.
func TestHistogramScenarioS4(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	meta := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 256, TileRows: 256, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 256, YMax: 256}}
	if err := backend.WriteMetadata("L1", 0, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	re := raster.RasterExtent{Extent: meta.TileExtent(catalog.TileKey{}), Cols: 256, Rows: 256}
	ramp := raster.NewRaster(re)
	for row := 0; row < 256; row++ {
		for col := 0; col < 256; col++ {
			ramp.Set(col, row, int32(row))
		}
	}
	if err := backend.WriteTile("L1", 0, catalog.TileKey{}, ramp); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}

	quad := orb.Polygon{orb.Ring{{0, 128}, {128, 128}, {128, 256}, {0, 256}, {0, 128}}}
	req := OverlayRequest{Layers: []string{"L1"}, Weights: []int{1}, PolyMask: []orb.Polygon{quad}, Threshold: raster.NoData}

	hist, err := Histogram(context.Background(), cat, meta.WorldExtent, 256, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total int64
	for v, count := range hist {
		if v < 0 || v > 127 {
			t.Fatalf("unexpected value %d in top-left quadrant histogram", v)
		}
		total += count
	}
	if total != 128*128 {
		t.Fatalf("got %d cells, want %d", total, 128*128)
	}
}

// S5 — layer mask: A constant 10; mask layer M is 10 on the left half,
// 20 on the right. The fused raster keeps the left half and masks out
// the right half, and it renders to a non-empty PNG.
func TestRenderScenarioS5(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	meta := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 4, TileRows: 4, WorldExtent: raster.Extent{XMin: 0, YMin: 0, XMax: 4, YMax: 4}}
	writeLayer(t, backend, "A", meta, catalog.TileKey{}, 10)

	if err := backend.WriteMetadata("M", 0, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	re := raster.RasterExtent{Extent: meta.TileExtent(catalog.TileKey{}), Cols: 4, Rows: 4}
	m := raster.NewRaster(re)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if col < 2 {
				m.Set(col, row, 10)
			} else {
				m.Set(col, row, 20)
			}
		}
	}
	if err := backend.WriteTile("M", 0, catalog.TileKey{}, m); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}

	req := OverlayRequest{
		Layers: []string{"A"}, Weights: []int{1},
		LayerMask: map[string][]int32{"M": {10}}, Threshold: raster.NoData,
	}
	rst, err := ExtentRaster(context.Background(), cat, meta.WorldExtent, 4, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !raster.IsData(rst.At(0, 0)) {
		t.Fatal("left half should survive the layer mask")
	}
	if raster.IsData(rst.At(3, 0)) {
		t.Fatal("right half should be masked out")
	}

	renderer := render.New()
	png, err := renderer.PNG(rst, []int32{10}, "viridis")
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("expected non-empty PNG")
	}
}

// S6 — point sample: L1 has value 42 at Web Mercator (x0, y0).
func TestSampleScenarioS6(t *testing.T) {
	cat, backend := newFixtureCatalog(t)
	meta := &catalog.LayerMetadata{Zoom: 0, CRS: 3857, TileCols: 4, TileRows: 4, WorldExtent: raster.Extent{XMin: -4, YMin: -4, XMax: 4, YMax: 4}}
	writeLayer(t, backend, "L1", meta, catalog.TileKey{}, 42)

	samples, err := SampleTile(context.Background(), cat, "L1", 3857, []analytics.PointInput{{ID: "id1", X: 1, Y: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 || samples[0].Value != 42 {
		t.Fatalf("got %v, want value 42", samples)
	}
	if samples[0].ID != "id1" {
		t.Fatalf("got id %q, want id1", samples[0].ID)
	}
}
