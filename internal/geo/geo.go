// Package geo handles GeoJSON parsing and CRS reprojection between the
// two supported coordinate systems, geographic (4326) and Web Mercator
// (3857). All internal raster computation happens in 3857.
package geo

import (
	"log"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gt-overlay/server/internal/apierr"
)

const (
	CRS4326 = 4326
	CRS3857 = 3857

	earthRadius  = 6378137.0
	originShift  = math.Pi * earthRadius // half the Web Mercator world width, in meters
)

// ParsePolygons accepts a GeoJSON FeatureCollection and returns every
// polygon and multipolygon member polygon, concatenated in document
// order. Empty or unparseable input yields nil;
// malformed non-empty input is logged and treated as "no polygons",
// per the degrade-silently policy at the parse boundary.
func ParsePolygons(raw string) []orb.Polygon {
	if raw == "" {
		return nil
	}

	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		log.Printf("geo: ignoring unparseable polyMask: %v", err)
		return nil
	}

	var polys []orb.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		}
	}
	return polys
}

// ReprojectPolygons reprojects polys from srid into 3857, vertex-wise,
// with no densification. srid == 3857 is a no-op.
func ReprojectPolygons(polys []orb.Polygon, srid int) ([]orb.Polygon, error) {
	switch srid {
	case CRS3857:
		return polys, nil
	case CRS4326:
		out := make([]orb.Polygon, len(polys))
		for i, poly := range polys {
			rings := make(orb.Polygon, len(poly))
			for j, ring := range poly {
				pts := make(orb.Ring, len(ring))
				for k, pt := range ring {
					pts[k] = lngLatToMercator(pt)
				}
				rings[j] = pts
			}
			out[i] = rings
		}
		return out, nil
	default:
		return nil, apierr.New(apierr.UnsupportedCRS, unsupportedCRSMessage(srid))
	}
}

// ReprojectPoint applies the same policy as ReprojectPolygons to a
// single point.
func ReprojectPoint(pt orb.Point, srid int) (orb.Point, error) {
	switch srid {
	case CRS3857:
		return pt, nil
	case CRS4326:
		return lngLatToMercator(pt), nil
	default:
		return orb.Point{}, apierr.New(apierr.UnsupportedCRS, unsupportedCRSMessage(srid))
	}
}

func unsupportedCRSMessage(srid int) string {
	return "unsupported srid (only 4326 and 3857 are supported): " + strconv.Itoa(srid)
}

// lngLatToMercator applies the standard Web Mercator forward formulas.
func lngLatToMercator(pt orb.Point) orb.Point {
	lng, lat := pt[0], pt[1]
	x := lng * originShift / 180.0
	y := math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * originShift / 180.0
	return orb.Point{x, y}
}

// MercatorToLngLat is the inverse of the forward projection above, used
// by tests to check reprojection round-trips.
func MercatorToLngLat(pt orb.Point) orb.Point {
	x, y := pt[0], pt[1]
	lng := (x / originShift) * 180.0
	lat := (y / originShift) * 180.0
	lat = 180.0 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2)
	return orb.Point{lng, lat}
}
