// Package httpapi serves the lookup, terminology and import operations as
// a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ontologycore/docs/schema/openapi"
	"ontologycore/internal/core"
	"ontologycore/internal/lookup"
	"ontologycore/internal/observability"
	"ontologycore/internal/termimport"
	"ontologycore/pkg/domain"
)

const (
	// DefaultLimit is the page size when no limit parameter is given.
	DefaultLimit = 20
	// MaxLimit caps the limit parameter.
	MaxLimit = 500
)

// Service is the application surface the handler exposes.
type Service interface {
	SearchClasses(ctx context.Context, f domain.Filter, offset, limit int, sort ...domain.SortOrder) (domain.Page[domain.Class], error)
	CountClasses(ctx context.Context, f domain.Filter) (int, error)
	SearchMeasurements(ctx context.Context, f domain.Filter, offset, limit int, sort ...domain.SortOrder) (domain.Page[domain.Measurement], error)
	CountMeasurements(ctx context.Context, f domain.Filter) (int, error)
	RegisterMeasurement(ctx context.Context, m domain.Measurement, sampleIDs []string) error
	ClassByCurie(ctx context.Context, curie string) (domain.Class, bool, error)
	Ontologies(ctx context.Context) ([]string, error)
	ResolveTerm(ctx context.Context, curie string) (domain.Term, bool, error)
	SearchTerminology(ctx context.Context, q string, offset, limit int) ([]domain.Term, error)
	SuggestTerminology(ctx context.Context, q string, offset, limit int) ([]domain.Term, error)
	ImportClasses(ctx context.Context, prefix string) ([]termimport.Result, error)
}

var _ Service = (*core.Service)(nil)

// Handler routes API requests to the service.
type Handler struct {
	svc    Service
	logger observability.Logger
	mux    *http.ServeMux
}

// NewHandler builds the API routes. When gatherer is not nil its metrics
// are served on /metrics.
func NewHandler(svc Service, gatherer prometheus.Gatherer, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handler{svc: svc, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /api/v1/classes", h.handleSearchClasses)
	h.mux.HandleFunc("GET /api/v1/classes/count", h.handleCountClasses)
	h.mux.HandleFunc("GET /api/v1/classes/{curie}", h.handleClassByCurie)
	h.mux.HandleFunc("GET /api/v1/ontologies", h.handleOntologies)
	h.mux.HandleFunc("GET /api/v1/measurements", h.handleSearchMeasurements)
	h.mux.HandleFunc("GET /api/v1/measurements/count", h.handleCountMeasurements)
	h.mux.HandleFunc("POST /api/v1/measurements", h.handleRegisterMeasurement)
	h.mux.HandleFunc("GET /api/v1/terms", h.handleSearchTerms)
	h.mux.HandleFunc("GET /api/v1/terms/suggest", h.handleSuggestTerms)
	h.mux.HandleFunc("GET /api/v1/terms/{curie}", h.handleResolveTerm)
	h.mux.HandleFunc("POST /api/v1/imports", h.handleImport)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	h.mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Spec())
	})
	if gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleSearchClasses(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := domain.NewFilter(q.str("q"), q.list("ontology")...)
	offset, limit, sort := q.window()
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	page, err := h.svc.SearchClasses(r.Context(), f, offset, limit, sort...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCountClasses(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	n, err := h.svc.CountClasses(r.Context(), domain.NewFilter(q.str("q"), q.list("ontology")...))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *Handler) handleClassByCurie(w http.ResponseWriter, r *http.Request) {
	class, found, err := h.svc.ClassByCurie(r.Context(), r.PathValue("curie"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "class not found")
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (h *Handler) handleOntologies(w http.ResponseWriter, r *http.Request) {
	ontologies, err := h.svc.Ontologies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ontologies == nil {
		ontologies = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ontologies": ontologies})
}

func measurementFilter(q *query) domain.Filter {
	f := domain.NewFilter(q.str("q"), q.list("sample")...).WithExcluded(q.list("exclude")...)
	if q.has("offset_ms") {
		f = f.AtClientTimeOffset(q.integer("offset_ms", 0))
	}
	if p := q.str("pattern"); p != "" {
		f = f.WithTimePattern(p)
	}
	return f
}

func (h *Handler) handleSearchMeasurements(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := measurementFilter(&q)
	offset, limit, sort := q.window()
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	page, err := h.svc.SearchMeasurements(r.Context(), f, offset, limit, sort...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCountMeasurements(w http.ResponseWriter, r *http.Request) {
	q := query{r: r}
	f := measurementFilter(&q)
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	n, err := h.svc.CountMeasurements(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

type registerRequest struct {
	Measurement domain.Measurement `json:"measurement"`
	SampleIDs   []string           `json:"sample_ids"`
}

func (h *Handler) handleRegisterMeasurement(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid measurement payload")
		return
	}
	if len(req.SampleIDs) == 0 {
		writeError(w, http.StatusBadRequest, "sample_ids required")
		return
	}
	if err := h.svc.RegisterMeasurement(r.Context(), req.Measurement, req.SampleIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "registered"})
}

func (h *Handler) handleResolveTerm(w http.ResponseWriter, r *http.Request) {
	curie := r.PathValue("curie")
	term, found, err := h.svc.ResolveTerm(r.Context(), curie)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "term not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"term": term, "class": term.Class()})
}

func (h *Handler) handleSearchTerms(w http.ResponseWriter, r *http.Request) {
	h.listTerms(w, r, h.svc.SearchTerminology)
}

func (h *Handler) handleSuggestTerms(w http.ResponseWriter, r *http.Request) {
	h.listTerms(w, r, h.svc.SuggestTerminology)
}

func (h *Handler) listTerms(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int, int) ([]domain.Term, error)) {
	q := query{r: r}
	offset, limit, _ := q.window()
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	terms, err := fn(r.Context(), q.str("q"), offset, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": terms, "offset": offset, "limit": limit})
}

type importRequest struct {
	Prefix string `json:"prefix"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid import request payload")
			return
		}
	}
	results, err := h.svc.ImportClasses(r.Context(), req.Prefix)
	if err != nil {
		var lineErr *termimport.LineError
		if errors.As(err, &lineErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "results": results})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// fail maps service errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSortKey), errors.Is(err, lookup.ErrInvalidWindow),
		errors.Is(err, domain.ErrMeasurementCodeRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLookupFailed):
		h.logger.Warn("terminology lookup failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, core.ErrNoTerminology):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// query reads URL parameters, keeping the first parse error.
type query struct {
	r   *http.Request
	err error
}

func (q *query) has(name string) bool { return q.r.URL.Query().Has(name) }

func (q *query) str(name string) string { return q.r.URL.Query().Get(name) }

// list accepts both repeated parameters and comma separated values.
func (q *query) list(name string) []string {
	var out []string
	for _, v := range q.r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (q *query) integer(name string, def int) int {
	raw := q.str(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil && q.err == nil {
		q.err = errors.New("invalid " + name + " parameter")
	}
	return n
}

func (q *query) window() (offset, limit int, sort []domain.SortOrder) {
	offset = q.integer("offset", 0)
	limit = min(q.integer("limit", DefaultLimit), MaxLimit)
	sort, err := domain.ParseSortOrders(q.r.URL.Query()["sort"]...)
	if err != nil && q.err == nil {
		q.err = err
	}
	return offset, limit, sort
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
