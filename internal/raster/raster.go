// Package raster provides the core Raster value type and the weighted
// overlay and mask stages that operate on it.
package raster

// NoData is the sentinel cell value meaning "no measurement here".
// All pipeline arithmetic propagates it: any operation with a NoData
// input yields NoData.
const NoData int32 = -2147483648

// IsData reports whether v represents a real measurement.
func IsData(v int32) bool {
	return v != NoData
}

// Extent is an axis-aligned rectangle in a raster's projection.
type Extent struct {
	XMin, YMin, XMax, YMax float64
}

// Width returns the extent's horizontal span.
func (e Extent) Width() float64 { return e.XMax - e.XMin }

// Height returns the extent's vertical span.
func (e Extent) Height() float64 { return e.YMax - e.YMin }

// Contains reports whether the point (x, y) lies within the extent.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.XMin && x <= e.XMax && y >= e.YMin && y <= e.YMax
}

// RasterExtent is an Extent paired with a column/row grid, defining the
// affine mapping between geographic coordinates and cell indices.
type RasterExtent struct {
	Extent
	Cols, Rows int
}

// CellSize returns the width and height of one cell in projection units.
func (re RasterExtent) CellSize() (dx, dy float64) {
	if re.Cols <= 0 || re.Rows <= 0 {
		return 0, 0
	}
	return re.Width() / float64(re.Cols), re.Height() / float64(re.Rows)
}

// ColRow maps a geographic point to the (col, row) of the cell containing
// it (top-left origin). It does not bounds-check; callers check the
// result against Cols/Rows.
func (re RasterExtent) ColRow(x, y float64) (col, row int) {
	dx, dy := re.CellSize()
	if dx == 0 || dy == 0 {
		return -1, -1
	}
	col = int((x - re.XMin) / dx)
	row = int((re.YMax - y) / dy)
	return col, row
}

// CellCenter returns the geographic coordinate of the center of cell
// (col, row).
func (re RasterExtent) CellCenter(col, row int) (x, y float64) {
	dx, dy := re.CellSize()
	x = re.XMin + (float64(col)+0.5)*dx
	y = re.YMax - (float64(row)+0.5)*dy
	return x, y
}

// Raster is a RasterExtent plus a contiguous grid of cells in row-major
// order, top-left origin.
type Raster struct {
	RasterExtent
	Cells []int32
}

// NewRaster allocates a Raster of the given extent, all cells NoData.
func NewRaster(re RasterExtent) *Raster {
	cells := make([]int32, re.Cols*re.Rows)
	for i := range cells {
		cells[i] = NoData
	}
	return &Raster{RasterExtent: re, Cells: cells}
}

// At returns the cell value at (col, row), or NoData if out of bounds.
func (r *Raster) At(col, row int) int32 {
	if col < 0 || row < 0 || col >= r.Cols || row >= r.Rows {
		return NoData
	}
	return r.Cells[row*r.Cols+col]
}

// Set assigns the cell value at (col, row). Out-of-bounds sets are no-ops.
func (r *Raster) Set(col, row int, v int32) {
	if col < 0 || row < 0 || col >= r.Cols || row >= r.Rows {
		return
	}
	r.Cells[row*r.Cols+col] = v
}

// SameExtent reports whether two rasters share an identical RasterExtent.
func SameExtent(a, b *Raster) bool {
	return a.RasterExtent == b.RasterExtent
}

// MinMax returns the minimum and maximum non-NoData cell values. ok is
// false if every cell is NoData.
func (r *Raster) MinMax() (min, max int32, ok bool) {
	first := true
	for _, v := range r.Cells {
		if !IsData(v) {
			continue
		}
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, !first
}

// Clone returns a deep copy of r.
func (r *Raster) Clone() *Raster {
	cells := make([]int32, len(r.Cells))
	copy(cells, r.Cells)
	return &Raster{RasterExtent: r.RasterExtent, Cells: cells}
}
