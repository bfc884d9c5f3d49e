package geoservice

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/model"
)

// Handler adapts a Service to HTTP (spec §6 "Geospatial service (provided)").
type Handler struct {
	svc *Service
}

// NewHandler builds a Handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers every geospatial route on r under its documented path.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/spatial/route-geometry/{routeId}", h.routeGeometry)
	r.Get("/spatial/nearby-buildings", h.nearbyBuildings)
	r.Get("/spatial/depot-catchment", h.depotCatchment)
	r.Post("/geocode/reverse", h.reverseGeocode)
	r.Post("/geofence/check", h.geofenceCheck)
}

func withLatency(start time.Time, body map[string]any) map[string]any {
	body["latency_ms"] = time.Since(start).Milliseconds()
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindInternal
	code := "internal_error"
	msg := err.Error()
	var ae *apperror.Error
	if as, ok := err.(*apperror.Error); ok {
		ae = as
	}
	if ae != nil {
		kind = ae.Kind
		code = ae.Code
		msg = ae.Message
	}
	writeJSON(w, apperror.HTTPStatus(kind), map[string]any{"error": code, "message": msg})
}

func parseLatLon(q map[string][]string) (model.LatLon, bool) {
	latStr, latOK := first(q, "lat")
	lonStr, lonOK := first(q, "lon")
	if !latOK || !lonOK {
		return model.LatLon{}, false
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return model.LatLon{}, false
	}
	return model.LatLon{Lat: lat, Lon: lon}, true
}

func first(q map[string][]string, key string) (string, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func parseFloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func (h *Handler) routeGeometry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	routeID := chi.URLParam(r, "routeId")
	geometry, err := h.svc.RouteGeometryFor(routeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withLatency(start, map[string]any{
		"coordinates": geometry.Coordinates,
		"length_m":    geometry.LengthM,
	}))
}

func (h *Handler) nearbyBuildings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	pt, ok := parseLatLon(q)
	if !ok {
		writeError(w, apperror.New(apperror.KindValidation, "bad_request", "lat and lon are required"))
		return
	}
	radius := parseFloatDefault(q.Get("radius_meters"), 500)
	limit := parseIntDefault(q.Get("limit"), 0)
	rows := h.svc.NearbyBuildings(pt, radius, limit)
	writeJSON(w, http.StatusOK, withLatency(start, map[string]any{"buildings": rows}))
}

func (h *Handler) depotCatchment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	pt, ok := parseLatLon(q)
	if !ok {
		writeError(w, apperror.New(apperror.KindValidation, "bad_request", "lat and lon are required"))
		return
	}
	radius := parseFloatDefault(q.Get("radius_meters"), 500)
	limit := parseIntDefault(q.Get("limit"), 0)
	buildings, pois := h.svc.DepotCatchment(pt, radius, limit)
	writeJSON(w, http.StatusOK, withLatency(start, map[string]any{"buildings": buildings, "pois": pois}))
}

type reverseGeocodeRequest struct {
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	HighwayRadiusMeters float64 `json:"highway_radius_meters"`
	POIRadiusMeters     float64 `json:"poi_radius_meters"`
}

func (h *Handler) reverseGeocode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req reverseGeocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.KindValidation, "bad_request", "invalid request body"))
		return
	}
	pt := model.LatLon{Lat: req.Latitude, Lon: req.Longitude}
	addr := h.svc.ReverseGeocode(pt, req.HighwayRadiusMeters, req.POIRadiusMeters)
	writeJSON(w, http.StatusOK, withLatency(start, map[string]any{
		"highway": addr.Highway, "poi": addr.POI, "parish": addr.Parish, "address": addr.Synthesized,
	}))
}

type geofenceCheckRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) geofenceCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req geofenceCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.KindValidation, "bad_request", "invalid request body"))
		return
	}
	result := h.svc.GeofenceCheck(model.LatLon{Lat: req.Latitude, Lon: req.Longitude})
	writeJSON(w, http.StatusOK, withLatency(start, map[string]any{
		"inside": result.Inside, "regions": result.Regions,
	}))
}
