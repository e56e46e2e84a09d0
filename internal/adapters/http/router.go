package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
	"github.com/kirillkom/securedoc-assistant/internal/observability/metrics"
)

const (
	defaultMaxUploadBytes = 50 << 20
	chatEndpoint          = "/api/chat"
)

type Options struct {
	Service        string
	MaxUploadBytes int64

	RateLimitRPS   float64
	RateLimitBurst int

	MaxInFlight      int
	BackpressureWait time.Duration

	// HealthCheck reports dependency readiness on /healthz; nil means always ready.
	HealthCheck func(context.Context) error
	Metrics     *metrics.HTTPServerMetrics
	Logger      *slog.Logger
}

type Router struct {
	uploader ports.DocumentUploader
	chat     ports.ChatService
	catalog  ports.DocumentCatalog
	opts     Options
	logger   *slog.Logger
}

func NewRouter(
	uploader ports.DocumentUploader,
	chat ports.ChatService,
	catalog ports.DocumentCatalog,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		uploader: uploader,
		chat:     chat,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /api/documents/upload", rt.uploadDocument)
	mux.HandleFunc("GET /api/documents", rt.listDocuments)
	mux.HandleFunc("GET /api/documents/{id}", rt.getDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST "+chatEndpoint, rt.chatHandler)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.opts.HealthCheck != nil {
		if err := rt.opts.HealthCheck(r.Context()); err != nil {
			rt.logger.WarnContext(r.Context(), "health_check_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		rt.recordUpload("rejected")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	ack, err := rt.uploader.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		rt.recordUpload("failed")
		rt.writeError(w, r, err)
		return
	}

	rt.recordUpload("accepted")
	writeJSON(w, http.StatusAccepted, ack)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.catalog.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

func (rt *Router) chatHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	answer, err := rt.chat.Chat(r.Context(), req.Question, req.Context)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordChat(rt.opts.Service, chatEndpoint, answer.Plan.Intent, answer.ContextChunks, time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recordUpload(outcome string) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordUpload(rt.opts.Service, outcome)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.ErrorContext(r.Context(), "request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
