package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/requirements-guard/internal/config"
	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
	"github.com/kirillkom/requirements-guard/internal/core/usecase"
	"github.com/kirillkom/requirements-guard/internal/observability/metrics"
	"github.com/kirillkom/requirements-guard/internal/report"
)

const (
	serviceName = "api"

	maxUploadBytes   = 64 << 20
	maxInFlight      = 64
	backpressureWait = 250 * time.Millisecond
)

type Router struct {
	analysis ports.AnalysisRunner
	history  ports.AnalysisHistory
	uploader ports.KnowledgeUploader
	searcher ports.KnowledgeSearcher
	metrics  *metrics.HTTPServerMetrics

	apiKey         string
	rateLimitRPS   float64
	rateLimitBurst int
	topK           int

	now func() time.Time
}

func NewRouter(
	cfg config.Config,
	analysis ports.AnalysisRunner,
	history ports.AnalysisHistory,
	uploader ports.KnowledgeUploader,
	searcher ports.KnowledgeSearcher,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	topK := cfg.RAGTopK
	if topK <= 0 {
		topK = 10
	}
	return &Router{
		analysis:       analysis,
		history:        history,
		uploader:       uploader,
		searcher:       searcher,
		metrics:        httpMetrics,
		apiKey:         cfg.APIKey,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		topK:           topK,
		now:            time.Now,
	}
}

// Handler assembles the API. Health and metrics stay outside auth and rate
// limiting so health checks keep working under load.
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/analysis", rt.startAnalysis)
	api.HandleFunc("GET /v1/analysis", rt.getAnalysis)
	api.HandleFunc("DELETE /v1/analysis", rt.clearAnalysis)
	api.HandleFunc("POST /v1/analysis/stop", rt.stopAnalysis)
	api.HandleFunc("GET /v1/analysis/report", rt.analysisReport)
	api.HandleFunc("GET /v1/analysis/runs", rt.listRuns)
	api.HandleFunc("GET /v1/analysis/runs/{id}", rt.getRun)
	api.HandleFunc("POST /v1/sentences/preview", rt.previewSentences)
	api.HandleFunc("GET /v1/knowledge", rt.knowledgeStats)
	api.HandleFunc("POST /v1/knowledge", rt.uploadKnowledge)
	api.HandleFunc("POST /v1/knowledge/search", rt.searchKnowledge)

	var v1 http.Handler = api
	openAPIRouter, err := loadOpenAPIRouter()
	if err != nil {
		slog.Error("openapi_validation_disabled", "error", err)
	} else {
		v1 = openAPIValidationMiddleware(v1, openAPIRouter)
	}
	v1 = backpressureMiddleware(v1, maxInFlight, backpressureWait)
	v1 = rateLimitMiddleware(v1, rt.rateLimitRPS, rt.rateLimitBurst)
	v1 = authMiddleware(v1, rt.apiKey)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", v1)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analysisRequest struct {
	Text               string `json:"text"`
	IncludeExplanation bool   `json:"include_explanation"`
}

type analysisResponse struct {
	domain.RunSnapshot
	Summary domain.Summary `json:"summary"`
}

func newAnalysisResponse(s domain.RunSnapshot) analysisResponse {
	if s.Results == nil {
		s.Results = []domain.AnalysisResult{}
	}
	return analysisResponse{RunSnapshot: s, Summary: domain.Summarize(s.Results)}
}

func (rt *Router) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snapshot, err := rt.analysis.Start(r.Context(), req.Text, req.IncludeExplanation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newAnalysisResponse(snapshot))
}

func (rt *Router) getAnalysis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newAnalysisResponse(rt.analysis.Snapshot()))
}

func (rt *Router) clearAnalysis(w http.ResponseWriter, _ *http.Request) {
	if err := rt.analysis.Clear(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) stopAnalysis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stop_requested": rt.analysis.Stop()})
}

func (rt *Router) analysisReport(w http.ResponseWriter, r *http.Request) {
	snapshot := rt.analysis.Snapshot()
	if len(snapshot.Results) == 0 {
		writeError(w, domain.WrapError(domain.ErrNotFound, "analysis report", errors.New("no results to report")))
		return
	}

	now := rt.now()
	stamp := now.Format("20060102_150405")
	switch format := r.URL.Query().Get("format"); format {
	case "", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="requirements_report_%s.txt"`, stamp))
		w.WriteHeader(http.StatusOK)
		if err := report.WriteText(w, snapshot.Results, now); err != nil {
			slog.Error("report_write_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="requirements_report_%s.xlsx"`, stamp))
		w.WriteHeader(http.StatusOK)
		if err := report.WriteXLSX(w, snapshot.Results, now); err != nil {
			slog.Error("report_write_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
	default:
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "analysis report", fmt.Errorf("unknown format %q", format)))
	}
}

func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeError(w, domain.WrapError(domain.ErrMissingConfig, "list runs", errors.New("run history is disabled")))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "list runs", fmt.Errorf("limit %q is not a number", raw)))
			return
		}
		limit = parsed
	}
	runs, err := rt.history.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (rt *Router) getRun(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeError(w, domain.WrapError(domain.ErrMissingConfig, "get run", errors.New("run history is disabled")))
		return
	}
	run, err := rt.history.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) previewSentences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sentences := usecase.SplitSentences(req.Text)
	if sentences == nil {
		sentences = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(sentences),
		"sentences": sentences,
	})
}

func (rt *Router) knowledgeStats(w http.ResponseWriter, r *http.Request) {
	count, err := rt.searcher.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"chunks": count})
}

func (rt *Router) uploadKnowledge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	key, err := rt.uploader.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"key":    key,
		"status": "queued",
	})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (rt *Router) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = rt.topK
	}

	start := time.Now()
	evidence, err := rt.searcher.Search(r.Context(), req.Query, topK)
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, len(evidence), time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    req.Query,
		"evidence": evidence,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json"))
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
		slog.Error("http_handler_failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: strings.TrimSpace(message)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
