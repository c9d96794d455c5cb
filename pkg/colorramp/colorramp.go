// Package colorramp provides named color ramps for break-bucketed
// raster rendering.
package colorramp

import "image/color"

// Ramp is a fixed, ordered list of RGBA stops, interpolated to the
// number of breaks at render time.
type Ramp struct {
	stops []color.RGBA
}

// Interpolate produces exactly n colors evenly spaced across the ramp's
// stops. n <= 0 yields an empty slice.
func (r Ramp) Interpolate(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []color.RGBA{r.at(0)}
	}
	out := make([]color.RGBA, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		out[i] = r.atFraction(t)
	}
	return out
}

func (r Ramp) at(i int) color.RGBA {
	if i < 0 {
		i = 0
	}
	if i >= len(r.stops) {
		i = len(r.stops) - 1
	}
	return r.stops[i]
}

func (r Ramp) atFraction(t float64) color.RGBA {
	if t <= 0 {
		return r.stops[0]
	}
	if t >= 1 {
		return r.stops[len(r.stops)-1]
	}
	idx := t * float64(len(r.stops)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(r.stops) {
		upper = len(r.stops) - 1
	}
	frac := idx - float64(lower)
	return blend(r.stops[lower], r.stops[upper], frac)
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + t*(float64(b.R)-float64(a.R))),
		G: uint8(float64(a.G) + t*(float64(b.G)-float64(a.G))),
		B: uint8(float64(a.B) + t*(float64(b.B)-float64(a.B))),
		A: 255,
	}
}

// Viridis is matplotlib's viridis ramp.
var Viridis = Ramp{stops: []color.RGBA{
	{68, 1, 84, 255},
	{72, 35, 116, 255},
	{64, 67, 135, 255},
	{52, 94, 141, 255},
	{41, 120, 142, 255},
	{32, 144, 140, 255},
	{34, 167, 132, 255},
	{68, 190, 112, 255},
	{121, 209, 81, 255},
	{189, 222, 38, 255},
	{253, 231, 37, 255},
}}

// Plasma is matplotlib's plasma ramp.
var Plasma = Ramp{stops: []color.RGBA{
	{13, 8, 135, 255},
	{75, 3, 161, 255},
	{125, 3, 168, 255},
	{168, 34, 150, 255},
	{203, 70, 121, 255},
	{229, 107, 93, 255},
	{248, 148, 65, 255},
	{253, 195, 40, 255},
	{240, 249, 33, 255},
}}

// Inferno is matplotlib's inferno ramp.
var Inferno = Ramp{stops: []color.RGBA{
	{0, 0, 4, 255},
	{40, 11, 84, 255},
	{101, 21, 110, 255},
	{159, 42, 99, 255},
	{212, 72, 66, 255},
	{245, 125, 21, 255},
	{250, 193, 39, 255},
	{252, 255, 164, 255},
}}

// Magma is matplotlib's magma ramp.
var Magma = Ramp{stops: []color.RGBA{
	{0, 0, 4, 255},
	{28, 16, 68, 255},
	{79, 18, 123, 255},
	{129, 37, 129, 255},
	{181, 54, 122, 255},
	{229, 80, 100, 255},
	{251, 135, 97, 255},
	{254, 194, 135, 255},
	{252, 253, 191, 255},
}}

// BlueToRed is the default ramp used when a requested name isn't
// registered.
var BlueToRed = Ramp{stops: []color.RGBA{
	{8, 48, 107, 255},
	{66, 146, 198, 255},
	{247, 247, 247, 255},
	{239, 101, 72, 255},
	{165, 15, 21, 255},
}}

// Default is the ramp name used when a request omits colorRamp or names
// one that isn't registered.
const Default = "blue-to-red"

var registry = map[string]Ramp{
	"viridis":      Viridis,
	"plasma":       Plasma,
	"inferno":      Inferno,
	"magma":        Magma,
	Default:        BlueToRed,
}

// Lookup returns the named ramp, falling back to Default if unknown.
func Lookup(name string) Ramp {
	if r, ok := registry[name]; ok {
		return r
	}
	return registry[Default]
}

// Names lists every registered ramp name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Registry returns the full name -> Ramp map, for enumeration endpoints
// like GET /gt/colors.
func Registry() map[string]Ramp {
	out := make(map[string]Ramp, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}
