package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/mapping"
	"github.com/triario/avatar-backend/internal/metrics"
	"github.com/triario/avatar-backend/internal/pipeline"
)

const (
	serviceName     = "avatar-backend"
	maxRequestBytes = 1 << 20
)

// Options configure the HTTP surface.
type Options struct {
	Port        int
	CORSOrigins []string
	// APIToken guards the mapping delete endpoint when set.
	APIToken string
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
}

type Server struct {
	router  *chi.Mux
	port    int
	proc    *pipeline.Processor
	store   mapping.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewServer(proc *pipeline.Processor, opts Options, logger *slog.Logger) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		router:  router,
		port:    opts.Port,
		proc:    proc,
		store:   proc.Store(),
		metrics: opts.Metrics,
		logger:  logger,
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	router.Post("/webhook", s.webhook)

	router.Route("/api", func(r chi.Router) {
		r.Post("/prospect", s.createProspect)
		r.Post("/enrich-context", s.enrichContext)
		r.Post("/conversation-engagement", s.logEngagement)
		r.Get("/conversations", s.listConversations)
		r.Get("/conversation/{id}", s.getConversation)
		r.Get("/conversation/{id}/hubspot", s.getHubSpotID)
		r.With(BearerAuthMiddleware(opts.APIToken)).Delete("/conversation/{id}", s.deleteConversation)
	})

	return s
}

// Handler returns the root handler, for use in an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the listen address derived from the configured port.
func (s *Server) Addr() string { return fmt.Sprintf(":%d", s.port) }

// BearerAuthMiddleware rejects requests without the expected bearer token.
// An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"status": "error", "message": msg}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := mapping.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid limit: "+raw))
			return
		}
		limit = n
	}

	listing := s.store.List(r.Context(), limit)
	s.metrics.MappingOps.WithLabelValues("list", metrics.Result(true)).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   listing,
	})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := s.store.Get(r.Context(), id)
	s.metrics.MappingOps.WithLabelValues("get", metrics.Result(ok)).Inc()
	if !ok {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"conversation_id": id,
		"mapping":         m,
	})
}

func (s *Server) getHubSpotID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	contactID, ok := s.store.ContactID(r.Context(), id)
	s.metrics.MappingOps.WithLabelValues("get", metrics.Result(ok)).Inc()
	if !ok {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "success",
		"conversation_id": id,
		"hubspot_id":      contactID,
	})
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok := s.store.Delete(r.Context(), id)
	s.metrics.MappingOps.WithLabelValues("delete", metrics.Result(ok)).Inc()
	if !ok {
		writeNotFound(w, id)
		return
	}
	s.logger.Info("mapping deleted", "conversation_id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "success",
		"conversation_id": id,
	})
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"status":          "not_found",
		"message":         "no mapping for conversation " + id,
		"conversation_id": id,
	})
}

// writeAPIError reports a downstream failure as {"status":"error", "error", "code"}.
func writeAPIError(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"status": "error"}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		body["error"] = apiErr.Message
		body["code"] = apiErr.Code
		if apiErr.Status != 0 {
			body["upstream_status"] = apiErr.Status
		}
	} else {
		body["error"] = err.Error()
		body["code"] = apierr.CodeAPIError
	}
	writeJSON(w, status, body)
}
