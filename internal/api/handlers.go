// Package api provides HTTP handlers for the raster overlay server.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gt-overlay/server/internal/analytics"
	"github.com/gt-overlay/server/internal/apierr"
	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/pipeline"
	"github.com/gt-overlay/server/internal/render"
	"github.com/gt-overlay/server/pkg/colorramp"
)

// Server holds the process-wide, read-only dependencies every handler
// closes over: the catalog handle, the PNG renderer, and rendering
// defaults.
type Server struct {
	Catalog          *catalog.Catalog
	Renderer         *render.Renderer
	GridSize         int
	DefaultColorRamp string
}

func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.StatusCode())
		json.NewEncoder(w).Encode(apiErr.Body())
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
}

// colorsHandler serves GET /gt/colors.
func (s *Server) colorsHandler(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]string)
	for name, ramp := range colorramp.Registry() {
		colors := ramp.Interpolate(5)
		hex := make([]string, len(colors))
		for i, c := range colors {
			hex[i] = rgbaToHex(c)
		}
		out[name] = hex
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func rgbaToHex(c interface{ RGBA() (r, g, b, a uint32) }) string {
	r, g, b, _ := c.RGBA()
	return "#" + hexByte(uint8(r>>8)) + hexByte(uint8(g>>8)) + hexByte(uint8(b>>8))
}

const hexDigits = "0123456789abcdef"

func hexByte(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}

// breaksHandler serves POST /gt/breaks.
func (s *Server) breaksHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parseCommonOverlayParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req.bbox, err = parseBBox(r, req.srid)
	if err != nil {
		writeError(w, err)
		return
	}
	numBreaks, err := parseNumBreaks(r)
	if err != nil {
		writeError(w, err)
		return
	}

	breaks, err := pipeline.Breaks(r.Context(), s.Catalog, req.bbox, s.GridSize, req.overlay, numBreaks)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"classBreaks": breaks})
}

// overlayHandler serves POST /gt/wo.
func (s *Server) overlayHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parseCommonOverlayParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req.bbox, err = parseBBox(r, req.srid)
	if err != nil {
		writeError(w, err)
		return
	}
	colorRamp := parseColorRamp(r, s.DefaultColorRamp)
	breaks := parseBreaksParam(r)

	png, err := pipeline.RenderExtent(r.Context(), s.Catalog, s.Renderer, req.bbox, s.GridSize, req.overlay, breaks, colorRamp)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// tileHandler serves POST /gt/tile/{z}/{x}/{y}.png.
func (s *Server) tileHandler(w http.ResponseWriter, r *http.Request) {
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil {
		writeError(w, apierr.New(apierr.BadRequest, "z/x/y must be integers"))
		return
	}

	req, err := parseCommonOverlayParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	colorRamp := parseColorRamp(r, s.DefaultColorRamp)
	breaks := parseBreaksParam(r)

	png, err := pipeline.RenderTile(r.Context(), s.Catalog, s.Renderer, z, x, y, req.overlay, breaks, colorRamp)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

// histogramHandler serves POST /gt/histogram.
func (s *Server) histogramHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parseCommonOverlayParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req.bbox, err = parseBBox(r, req.srid)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	hist, err := pipeline.Histogram(r.Context(), s.Catalog, req.bbox, s.GridSize, req.overlay)
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)

	strHist := make(map[string]int64, len(hist))
	for v, count := range hist {
		strHist[strconv.Itoa(int(v))] = count
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"elapsed":   elapsed.String(),
		"histogram": strHist,
	})
}

// valueHandler serves POST /gt/value (extent-based point reader).
func (s *Server) valueHandler(w http.ResponseWriter, r *http.Request) {
	s.sampleHandler(w, r, pipeline.SampleExtent)
}

// sparkValueHandler serves POST /gt/spark/value (tile-reader point
// sampler, canonicalized on the same [id,x,y,value] response shape as
// /gt/value per Open Question 3).
func (s *Server) sparkValueHandler(w http.ResponseWriter, r *http.Request) {
	s.sampleHandler(w, r, pipeline.SampleTile)
}

type samplerFunc func(context.Context, *catalog.Catalog, string, int, []analytics.PointInput) ([]analytics.Sample, error)

func (s *Server) sampleHandler(w http.ResponseWriter, r *http.Request, sample samplerFunc) {
	srid, err := parseSRID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	layers, _, err := parseLayersAndWeights(r)
	if err != nil {
		writeError(w, err)
		return
	}
	triples := parseCoords(r.FormValue("coords"))
	points := make([]analytics.PointInput, len(triples))
	for i, t := range triples {
		points[i] = analytics.PointInput{ID: t.ID, X: t.X, Y: t.Y}
	}

	samples, err := sample(r.Context(), s.Catalog, layers[0], srid, points)
	if err != nil {
		writeError(w, err)
		return
	}

	coords := make([][]interface{}, len(samples))
	for i, smp := range samples {
		coords[i] = []interface{}{smp.ID, smp.X, smp.Y, smp.Value}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"coords": coords})
}
