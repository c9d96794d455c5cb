// Package render turns a fused Raster into a PNG using a pooled
// fogleman/gg drawing context, one break-bucketed color per cell.
package render

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/gt-overlay/server/internal/raster"
	"github.com/gt-overlay/server/pkg/colorramp"
)

// Renderer renders rasters to PNG. Its context and buffer pools are
// shared, read-only-after-construction resources; a Renderer is safe
// for concurrent use across requests.
type Renderer struct {
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

func (r *Renderer) context(cols, rows int) *gg.Context {
	if v := r.contextPool.Get(); v != nil {
		dc := v.(*gg.Context)
		if dc.Width() == cols && dc.Height() == rows {
			return dc
		}
	}
	return gg.NewContext(cols, rows)
}

// PNG renders raster r with the named color ramp interpolated to
// len(breaks) colors. For each cell: NoData draws a transparent pixel;
// otherwise the cell takes the color of the smallest break >= its value
// (upper-inclusive buckets), clamped to the first/last color for values
// outside the break range. An empty breaks slice renders the raster as
// fully transparent (the all-NoData / UnableToCompute case).
func (r *Renderer) PNG(rst *raster.Raster, breaks []int32, colorRampName string) ([]byte, error) {
	dc := r.context(rst.Cols, rst.Rows)
	defer r.contextPool.Put(dc)

	dc.SetColor(color.Transparent)
	dc.Clear()

	if len(breaks) > 0 {
		ramp := colorramp.Lookup(colorRampName)
		colors := ramp.Interpolate(len(breaks))
		for row := 0; row < rst.Rows; row++ {
			for col := 0; col < rst.Cols; col++ {
				v := rst.At(col, row)
				if !raster.IsData(v) {
					continue
				}
				dc.SetColor(bucketColor(v, breaks, colors))
				dc.DrawRectangle(float64(col), float64(row), 1, 1)
				dc.Fill()
			}
		}
	}

	return r.encode(dc)
}

// bucketColor returns the color for the smallest break >= v, clamping to
// the first color below the first break and the last color above the
// last break.
func bucketColor(v int32, breaks []int32, colors []color.RGBA) color.RGBA {
	for i, b := range breaks {
		if v <= b {
			return colors[i]
		}
	}
	return colors[len(colors)-1]
}

func (r *Renderer) encode(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
