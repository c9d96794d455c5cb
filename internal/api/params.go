package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/gt-overlay/server/internal/apierr"
	"github.com/gt-overlay/server/internal/geo"
	"github.com/gt-overlay/server/internal/pipeline"
	"github.com/gt-overlay/server/internal/raster"
)

// parsedRequest is every common form parameter, reprojected and
// validated, ready to hand to the pipeline package.
type parsedRequest struct {
	bbox      raster.Extent
	srid      int
	overlay   pipeline.OverlayRequest
	numBreaks int
	colorRamp string
	breaks    []int32
}

func parseSRID(form *http.Request) (int, error) {
	raw := strings.TrimSpace(form.FormValue("srid"))
	if raw == "" {
		return geo.CRS3857, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.New(apierr.BadRequest, "srid must be an integer")
	}
	return v, nil
}

func parseBBox(form *http.Request, srid int) (raster.Extent, error) {
	raw := strings.TrimSpace(form.FormValue("bbox"))
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return raster.Extent{}, apierr.New(apierr.BadRequest, "bbox must be xmin,ymin,xmax,ymax")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return raster.Extent{}, apierr.New(apierr.BadRequest, "bbox contains a non-numeric value")
		}
		vals[i] = v
	}
	min, err := geo.ReprojectPoint(orb.Point{vals[0], vals[1]}, srid)
	if err != nil {
		return raster.Extent{}, err
	}
	max, err := geo.ReprojectPoint(orb.Point{vals[2], vals[3]}, srid)
	if err != nil {
		return raster.Extent{}, err
	}
	return raster.Extent{XMin: min[0], YMin: min[1], XMax: max[0], YMax: max[1]}, nil
}

func parseLayersAndWeights(form *http.Request) ([]string, []int, error) {
	layersRaw := strings.TrimSpace(form.FormValue("layers"))
	if layersRaw == "" {
		return nil, nil, apierr.New(apierr.BadRequest, "layers is required")
	}
	layers := strings.Split(layersRaw, ",")
	for i := range layers {
		layers[i] = strings.TrimSpace(layers[i])
	}

	weightsRaw := strings.TrimSpace(form.FormValue("weights"))
	weightParts := strings.Split(weightsRaw, ",")
	if len(weightParts) != len(layers) {
		return nil, nil, apierr.New(apierr.BadRequest, "layers and weights must have the same length")
	}
	weights := make([]int, len(weightParts))
	for i, w := range weightParts {
		v, err := strconv.Atoi(strings.TrimSpace(w))
		if err != nil {
			return nil, nil, apierr.New(apierr.BadRequest, "weights must be integers")
		}
		weights[i] = v
	}
	return layers, weights, nil
}

func parseThreshold(form *http.Request) (int32, error) {
	raw := strings.TrimSpace(form.FormValue("threshold"))
	if raw == "" {
		return raster.NoData, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.New(apierr.BadRequest, "threshold must be an integer")
	}
	return int32(v), nil
}

func parsePolyMask(form *http.Request, srid int) ([]orb.Polygon, error) {
	raw := form.FormValue("polyMask")
	polys := geo.ParsePolygons(raw)
	if len(polys) == 0 {
		return nil, nil
	}
	return geo.ReprojectPolygons(polys, srid)
}

func parseLayerMask(form *http.Request) map[string][]int32 {
	raw := strings.TrimSpace(form.FormValue("layerMask"))
	if raw == "" {
		return nil
	}
	var decoded map[string][]int32
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		// Degrade silently to "no layer mask" on malformed JSON.
		return nil
	}
	return decoded
}

func parseNumBreaks(form *http.Request) (int, error) {
	raw := strings.TrimSpace(form.FormValue("numBreaks"))
	if raw == "" {
		return 8, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, apierr.New(apierr.BadRequest, "numBreaks must be a positive integer")
	}
	return v, nil
}

func parseBreaksParam(form *http.Request) []int32 {
	raw := strings.TrimSpace(form.FormValue("breaks"))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, int32(v))
	}
	return out
}

func parseColorRamp(form *http.Request, fallback string) string {
	raw := strings.TrimSpace(form.FormValue("colorRamp"))
	if raw == "" {
		return fallback
	}
	return raw
}

// parseCommonOverlayParams parses every field shared by breaks, wo,
// tile, and histogram.
func parseCommonOverlayParams(r *http.Request) (parsedRequest, error) {
	var out parsedRequest

	srid, err := parseSRID(r)
	if err != nil {
		return out, err
	}
	out.srid = srid

	layers, weights, err := parseLayersAndWeights(r)
	if err != nil {
		return out, err
	}

	threshold, err := parseThreshold(r)
	if err != nil {
		return out, err
	}

	polys, err := parsePolyMask(r, srid)
	if err != nil {
		return out, err
	}

	out.overlay = pipeline.OverlayRequest{
		Layers:    layers,
		Weights:   weights,
		PolyMask:  polys,
		LayerMask: parseLayerMask(r),
		Threshold: threshold,
	}
	return out, nil
}

// coordTriple is one parsed (id, x, y) input to a point-sample endpoint.
type coordTriple struct {
	ID   string
	X, Y float64
}

// parseCoords parses "id,x,y,id,x,y,..." skipping any triple whose x or y
// fails to parse.
func parseCoords(raw string) []coordTriple {
	fields := strings.Split(raw, ",")
	var out []coordTriple
	for i := 0; i+2 < len(fields); i += 3 {
		id := strings.TrimSpace(fields[i])
		x, errX := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(fields[i+2]), 64)
		if errX != nil || errY != nil {
			continue
		}
		out = append(out, coordTriple{ID: id, X: x, Y: y})
	}
	return out
}
