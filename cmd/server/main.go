package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/cartagen/generate"
	"github.com/liamcoop/cartagen/internal/config"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

type Server struct {
	plugins   *plugin.Manager
	generator *generate.Generator
	outputDir string
	router    *chi.Mux
}

func NewServer(plugins *plugin.Manager, outputDir string) *Server {
	s := &Server{
		plugins:   plugins,
		generator: generate.NewGenerator(plugins),
		outputDir: outputDir,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/plugins", func(r chi.Router) {
		r.Get("/", s.handleListPlugins)

		r.Route("/{pluginId}", func(r chi.Router) {
			r.Post("/generate", s.handleGenerate)
			r.Post("/validate", s.handleValidate)
			r.Post("/visibility", s.handleVisibility)
			r.Post("/invalidate", s.handleInvalidate)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ids, err := s.plugins.ListPlugins(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "plugin source unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Plugins:  len(ids),
		Counters: logger.Snapshot(),
	})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	ids, err := s.plugins.ListPlugins(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list plugins", err)
		return
	}
	respondJSON(w, http.StatusOK, PluginsListResponse{Plugins: ids})
}

// Generation handler. Validation failures answer 422 and other failures
// 500, both with the full result so callers see the trace id.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	genReq := generate.Request{
		DocumentType:   chi.URLParam(r, "pluginId"),
		Data:           req.Data,
		OutputDir:      s.outputDir,
		Validate:       req.Validate == nil || *req.Validate,
		FilenamePrefix: req.FilenamePrefix,
	}
	var result *generate.Result
	if len(req.Lists) > 0 {
		result = s.generator.GenerateFromForm(r.Context(), genReq, req.Lists)
	} else {
		result = s.generator.Generate(r.Context(), genReq)
	}

	switch {
	case result.Success:
		respondJSON(w, http.StatusOK, result)
	case len(result.ValidationErrors) > 0:
		logger.WarnHttp4xx()
		respondJSON(w, http.StatusUnprocessableEntity, result)
	default:
		logger.ErrorHttp5xx()
		respondJSON(w, http.StatusInternalServerError, result)
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts := validation.Options{SkipRequired: req.CheckRequired != nil && !*req.CheckRequired}

	result, err := s.generator.Validate(r.Context(), chi.URLParam(r, "pluginId"), req.Data, opts)
	if err != nil {
		respondPluginError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := s.generator.Visibility(r.Context(), chi.URLParam(r, "pluginId"), req.Data)
	if err != nil {
		respondPluginError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Drops the cached pack so edited configuration is picked up.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	s.plugins.Invalidate(r.Context(), chi.URLParam(r, "pluginId"))
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		logger.WarnHttp4xx()
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func respondPluginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plugin.ErrPluginNotFound):
		logger.WarnHttp4xx()
		respondError(w, http.StatusNotFound, "plugin not found", err)
	default:
		logger.ErrorHttp5xx()
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "request failed", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	plugins, closeSources, err := cfg.Manager(context.Background())
	if err != nil {
		logger.Fatal("failed to set up plugin source", "error", err)
	}
	defer closeSources()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewServer(plugins, cfg.OutputDir),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Port, "source", cfg.Source)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
