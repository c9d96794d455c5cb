package raster

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
)

func rampRaster(re RasterExtent) *Raster {
	r := NewRaster(re)
	for row := 0; row < re.Rows; row++ {
		for col := 0; col < re.Cols; col++ {
			r.Set(col, row, int32(row*re.Cols+col))
		}
	}
	return r
}

// A polygon covering the top-left quadrant of a 256x256 ramp keeps only
// cells whose centers fall in [0,128)x[0,128).
func TestPolygonMask_TopLeftQuadrant(t *testing.T) {
	re := testExtent()
	r := rampRaster(re)

	quad := orb.Polygon{orb.Ring{
		{0, 128}, {128, 128}, {128, 256}, {0, 256}, {0, 128},
	}}

	masked, err := PolygonMask([]orb.Polygon{quad})(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kept := 0
	for row := 0; row < re.Rows; row++ {
		for col := 0; col < re.Cols; col++ {
			v := masked.At(col, row)
			if !IsData(v) {
				continue
			}
			kept++
			if col >= 128 || row >= 128 {
				t.Fatalf("cell (%d,%d) survived polygon mask outside top-left quadrant", col, row)
			}
		}
	}
	if kept != 128*128 {
		t.Fatalf("kept %d cells, want %d", kept, 128*128)
	}
}

func TestPolygonMask_EmptyIsIdentity(t *testing.T) {
	re := testExtent()
	r := rampRaster(re)
	masked, err := PolygonMask(nil)(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if masked != r {
		t.Fatal("expected identity mask to return the same raster")
	}
}

// A mask layer 10 on the left half, 20 on the right;
// allow-list {10} keeps only the left half.
func TestLayerMask_AllowList(t *testing.T) {
	re := testExtent()
	base := constantRaster(re, 10)

	maskLayer := NewRaster(re)
	for row := 0; row < re.Rows; row++ {
		for col := 0; col < re.Cols; col++ {
			if col < re.Cols/2 {
				maskLayer.Set(col, row, 10)
			} else {
				maskLayer.Set(col, row, 20)
			}
		}
	}

	fetch := func(_ context.Context, name string) (*Raster, error) {
		return maskLayer, nil
	}

	masked, err := LayerMask(context.Background(), map[string][]int32{"M": {10}}, fetch)(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := masked.At(0, 0); !IsData(got) {
		t.Fatal("left half should survive the layer mask")
	}
	if got := masked.At(re.Cols-1, 0); IsData(got) {
		t.Fatal("right half should be masked out")
	}
}

func TestThresholdMask(t *testing.T) {
	re := testExtent()
	r := constantRaster(re, 7)

	// Testable property 3: t <= min(R) is identity.
	low, err := ThresholdMask(5)(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := low.At(0, 0); got != 7 {
		t.Fatalf("threshold below min changed value: got %d", got)
	}

	// t > max(R) -> entirely NoData.
	high, err := ThresholdMask(8)(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := high.At(0, 0); IsData(got) {
		t.Fatalf("threshold above max should mask everything, got %d", got)
	}

	// t == NoData disables the mask.
	disabled, err := ThresholdMask(NoData)(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if disabled != r {
		t.Fatal("NoData threshold should be identity")
	}
}

// Testable property 4 (partial): any permutation of the three stages
// yields the same surviving cell set.
func TestMaskStagesCommute(t *testing.T) {
	re := testExtent()
	r := rampRaster(re)

	quad := orb.Polygon{orb.Ring{
		{0, 0}, {256, 0}, {256, 256}, {0, 256}, {0, 0},
	}}
	polyMask := PolygonMask([]orb.Polygon{quad})
	threshMask := ThresholdMask(100)

	order1, err := ApplyMasks(r, polyMask, threshMask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order2, err := ApplyMasks(r, threshMask, polyMask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range order1.Cells {
		if IsData(order1.Cells[i]) != IsData(order2.Cells[i]) {
			t.Fatalf("cell %d survival differs by mask order", i)
		}
	}
}
