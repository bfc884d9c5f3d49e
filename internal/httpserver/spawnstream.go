package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/spawner"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindInternal
	code := "internal_error"
	msg := err.Error()
	if ae, ok := err.(*apperror.Error); ok {
		kind = ae.Kind
		code = ae.Code
		msg = ae.Message
	}
	writeJSON(w, apperror.HTTPStatus(kind), map[string]any{"error": code, "message": msg})
}

// SpawnerLookup resolves a registered spawner by its Name() (spec §6
// "Spawner streaming endpoint"). *coordinator.Coordinator satisfies this.
type SpawnerLookup interface {
	Lookup(name string) (spawner.Spawner, bool)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// spawnStreamHandler serves GET /spawn/route/{routeId}, generalizing the
// original route_spawner_service's StreamingResponse over
// application/x-ndjson to a chunked http.Flusher loop.
type spawnStreamHandler struct {
	coord SpawnerLookup
}

func (h *spawnStreamHandler) mount(r chi.Router) {
	r.Get("/spawn/route/{routeId}", h.stream)
}

func (h *spawnStreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	s, ok := h.coord.Lookup("route:" + routeID)
	if !ok {
		writeError(w, apperror.New(apperror.KindGeometry, "unknown_route", "no spawner registered for route "+routeID))
		return
	}

	clock, err := parseSpawnClock(r.URL.Query().Get("time"), r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, apperror.New(apperror.KindValidation, "invalid_time", err.Error()))
		return
	}
	windowMinutes := 60
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, apperror.New(apperror.KindValidation, "invalid_window", "window must be a positive integer number of minutes"))
			return
		}
		windowMinutes = n
	}

	reqs, err := s.Spawn(r.Context(), clock, time.Duration(windowMinutes)*time.Minute)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for _, req := range reqs {
		if err := enc.Encode(req); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// parseSpawnClock resolves a time-of-day plus named weekday to the next
// calendar occurrence of that weekday, matching the original service's
// "days_ahead" rollover (today's weekday included, never in the past).
func parseSpawnClock(timeOfDay, day string) (time.Time, error) {
	if timeOfDay == "" {
		timeOfDay = "09:00:00"
	}
	if day == "" {
		day = "Monday"
	}
	tod, err := time.Parse("15:04:05", timeOfDay)
	if err != nil {
		return time.Time{}, apperror.New(apperror.KindValidation, "invalid_time", "time must be HH:MM:SS")
	}
	target, ok := weekdayNames[strings.ToLower(day)]
	if !ok {
		return time.Time{}, apperror.New(apperror.KindValidation, "invalid_day", "unrecognized weekday "+day)
	}

	now := time.Now()
	daysAhead := int(target-now.Weekday()+7) % 7
	spawnDate := now.AddDate(0, 0, daysAhead)
	return time.Date(spawnDate.Year(), spawnDate.Month(), spawnDate.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, spawnDate.Location()), nil
}
