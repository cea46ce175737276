package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/observability"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// DefaultElevationEdges are used by /api/summary/elevation when no edges
// are given.
var DefaultElevationEdges = []float64{1500, 2000, 2500}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse wraps list results.
type PaginatedResponse struct {
	Data       any `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

type handler struct {
	results ResultStore
	table   *domain.ThresholdTable
	metrics *observability.Metrics
	logger  *slog.Logger
}

// GET /api/stations?basin=&category=&drought=&page=&limit=
func (h *handler) listStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := pagination(q.Get("page"), q.Get("limit"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	var droughtOnly bool
	if v := q.Get("drought"); v != "" {
		if droughtOnly, err = strconv.ParseBool(v); err != nil {
			sendError(w, http.StatusBadRequest, "invalid drought flag, expected true or false")
			return
		}
	}
	category := q.Get("category")
	if category != "" && h.table.Rank(category) < 0 {
		sendError(w, http.StatusBadRequest, "unknown category "+strconv.Quote(category))
		return
	}

	all, err := h.results.Results(r.Context())
	if err != nil {
		h.internalError(w, "list stations", err)
		return
	}
	all = filterResults(all, q.Get("basin"), category, droughtOnly)

	total := len(all)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	h.writeJSON(w, http.StatusOK, PaginatedResponse{
		Data:       all[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	})
}

// GET /api/stations/{id}
func (h *handler) getStation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.results.Result(r.Context(), id)
	if errors.Is(err, domain.ErrStationNotFound) {
		sendError(w, http.StatusNotFound, "station "+id+" not found")
		return
	}
	if err != nil {
		h.internalError(w, "get station", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// GET /api/summary/decades?station=&basin=
func (h *handler) decadeSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all, err := h.results.Results(r.Context())
	if err != nil {
		h.internalError(w, "decade summary", err)
		return
	}
	all = filterResults(all, q.Get("basin"), "", false)

	station := q.Get("station")
	var indices []domain.SeasonIndex
	for _, res := range all {
		if station != "" && res.Station.ID != station {
			continue
		}
		indices = append(indices, res.Seasons...)
	}
	h.writeJSON(w, http.StatusOK, domain.DroughtFrequencyByDecade(indices, h.table))
}

// GET /api/summary/elevation?edges=1500,2000,2500
func (h *handler) elevationSummary(w http.ResponseWriter, r *http.Request) {
	edges := DefaultElevationEdges
	if raw := r.URL.Query().Get("edges"); raw != "" {
		var err error
		if edges, err = parseEdges(raw); err != nil {
			sendError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	bands, err := domain.ElevationBands(edges)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	all, err := h.results.Results(r.Context())
	if err != nil {
		h.internalError(w, "elevation summary", err)
		return
	}
	h.writeJSON(w, http.StatusOK, domain.SummarizeByElevation(all, bands))
}

// GET /api/summary/categories
func (h *handler) categorySummary(w http.ResponseWriter, r *http.Request) {
	all, err := h.results.Results(r.Context())
	if err != nil {
		h.internalError(w, "category summary", err)
		return
	}
	h.writeJSON(w, http.StatusOK, domain.CategoryCounts(all, h.table))
}

func (h *handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("api request failed", "op", op, "error", err)
	sendError(w, http.StatusInternalServerError, "failed to "+op)
}

// writeJSON encodes v before writing the status so that an unencodable
// body is reported as a 500 instead of an empty 200.
func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.internalError(w, "encode response", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func sendError(w http.ResponseWriter, code int, msg string) {
	sharedobs.WriteJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: msg,
		Code:    code,
	})
}

// instrument records request count and latency per route template.
func (h *handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if h.metrics == nil {
			return
		}
		h.metrics.APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		h.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func pagination(pageStr, limitStr string) (page, limit int, err error) {
	page, limit = 1, defaultLimit
	if pageStr != "" {
		if page, err = strconv.Atoi(pageStr); err != nil || page < 1 {
			return 0, 0, errors.New("invalid page, expected a positive integer")
		}
	}
	if limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, errors.New("invalid limit, expected 1-" + strconv.Itoa(maxLimit))
		}
	}
	return page, limit, nil
}

func parseEdges(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	edges := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("invalid edges, expected comma separated numbers")
		}
		edges = append(edges, v)
	}
	return edges, nil
}

func filterResults(in []domain.StationResult, basin, category string, droughtOnly bool) []domain.StationResult {
	if basin == "" && category == "" && !droughtOnly {
		return in
	}
	out := make([]domain.StationResult, 0, len(in))
	for _, r := range in {
		if basin != "" && r.Station.Basin != basin {
			continue
		}
		if category != "" && !hasSeason(r, func(s domain.SeasonIndex) bool { return s.Category == category }) {
			continue
		}
		if droughtOnly && !hasSeason(r, func(s domain.SeasonIndex) bool { return s.Drought }) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasSeason(r domain.StationResult, pred func(domain.SeasonIndex) bool) bool {
	for _, s := range r.Seasons {
		if pred(s) {
			return true
		}
	}
	return false
}
