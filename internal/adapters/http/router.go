package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/ingest-sentinel/internal/config"
	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/ports"
	"github.com/kirillkom/ingest-sentinel/internal/observability/metrics"
)

// Router serves the read-only query surface over the dataset consolidated at
// startup. Handlers never mutate state, so there is no write path to guard.
type Router struct {
	cfg     config.Config
	query   ports.DatasetQuery
	metrics *metrics.HTTPServerMetrics
	log     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	query ports.DatasetQuery,
	httpMetrics *metrics.HTTPServerMetrics,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		cfg:     cfg,
		query:   query,
		metrics: httpMetrics,
		log:     log,
	}
}

// Handler assembles the middleware chain around the route mux. Order matters:
// request id and access log wrap everything, traffic control rejects before
// the OpenAPI validator spends cycles on doomed requests.
func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sources", rt.listSources)
	mux.HandleFunc("/v1/sources/", rt.getSourceDetail)
	mux.HandleFunc("/v1/execution-date", rt.executionDate)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler, err := openAPIValidationMiddleware(mux)
	if err != nil {
		return nil, err
	}

	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, backpressureWait, rt.recordBackpressure)
	handler = rt.rateLimitMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(rt.log, handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) recordBackpressure() {
	if rt.metrics != nil {
		rt.metrics.RecordBackpressure(rt.cfg.ServiceName)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.query.ListSources())
}

func (rt *Router) getSourceDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sources/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source id is required"})
		return
	}

	detail, err := rt.query.SourceDetail(id)
	if err != nil {
		if domain.IsKind(err, domain.ErrSourceNotFound) {
			writeJSON(w, http.StatusNotFound, domain.SourceNotFound{
				SourceID: id,
				Error:    domain.SourceNotFoundMarker,
			})
			return
		}
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (rt *Router) executionDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	info, err := rt.query.ExecutionDateInfo()
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
