package manifest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jwmdev/transitspawn/internal/apperror"
)

// Handler adapts a Service to HTTP (spec §6 "Manifest service (provided)").
type Handler struct {
	svc *Service
}

// NewHandler builds a Handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers every manifest route under its documented path.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/manifest", h.list)
	r.Get("/api/manifest/visualization/barchart", h.barChart)
	r.Get("/api/manifest/visualization/table", h.table)
	r.Get("/api/manifest/stats", h.stats)
	r.Delete("/api/manifest", h.delete)
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
	if ae, ok := err.(*apperror.Error); ok {
		kind = ae.Kind
		code = ae.Code
		msg = ae.Message
	}
	writeJSON(w, apperror.HTTPStatus(kind), map[string]any{"error": code, "message": msg})
}

func queryFromRequest(q map[string][]string) Query {
	get := func(key string) string {
		vals, ok := q[key]
		if !ok || len(vals) == 0 {
			return ""
		}
		return vals[0]
	}
	limit, _ := strconv.Atoi(get("limit"))
	return Query{
		Route:  get("route"),
		Depot:  get("depot"),
		Status: get("status"),
		Start:  get("start"),
		End:    get("end"),
		Limit:  limit,
		Sort:   get("sort"),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := queryFromRequest(r.URL.Query())
	rows, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

func (h *Handler) barChart(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := queryFromRequest(query)
	startHour, err := strconv.Atoi(query.Get("start_hour"))
	if err != nil {
		startHour = 0
	}
	endHour, err := strconv.Atoi(query.Get("end_hour"))
	if err != nil {
		endHour = 23
	}
	if query.Get("date") != "" {
		q.Start = query.Get("date") + "T00:00:00Z"
		q.End = query.Get("date") + "T23:59:59Z"
	}
	buckets, err := h.svc.BarChart(r.Context(), q, startHour, endHour)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := queryFromRequest(query)
	if query.Get("date") != "" {
		q.Start = query.Get("date") + "T00:00:00Z"
		q.End = query.Get("date") + "T23:59:59Z"
	}
	rows, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := queryFromRequest(query)
	if query.Get("date") != "" {
		q.Start = query.Get("date") + "T00:00:00Z"
		q.End = query.Get("date") + "T23:59:59Z"
	}
	stats, err := h.svc.Stats(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("confirm") != "true" {
		writeError(w, apperror.New(apperror.KindValidation, "confirm_required", "confirm=true is required to delete manifest rows"))
		return
	}
	q := queryFromRequest(query)
	result, err := h.svc.Delete(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": result.NOK, "failed": result.NFail})
}
