package api

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel"
	"github.com/ckd-aip/ckd-aip-go/pkg/predictor"
	"github.com/ckd-aip/ckd-aip-go/pkg/scheduler"
)

// Options configures optional collaborators of the server
type Options struct {
	Port        string
	CORSOrigins []string
	Logger      *logrus.Logger
	Models      *mlmodel.Service   // model registry, may be nil
	Pruner      *scheduler.Service // history pruning, may be nil
}

// Server provides the screening pages and the HTTP API
type Server struct {
	router     *mux.Router
	predictor  *predictor.Service
	models     *mlmodel.Service
	pruner     *scheduler.Service
	logger     *logrus.Logger
	pages      *template.Template
	port       string
	origins    []string
	httpServer *http.Server
	now        func() time.Time
}

// NewServer creates a new API server
func NewServer(p *predictor.Service, opts Options) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:    mux.NewRouter(),
		predictor: p,
		models:    opts.Models,
		pruner:    opts.Pruner,
		logger:    logger,
		pages:     pages,
		port:      opts.Port,
		origins:   origins,
		now:       time.Now,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes sets up the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.errorRecoveryMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "Not found: "+r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Pages
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/full", s.handleFullForm).Methods("GET")
	s.router.HandleFunc("/dashboard", s.handleDashboard).Methods("GET", "POST")

	// Prediction
	s.router.HandleFunc("/predict", s.handlePredict).Methods("POST")
	s.router.HandleFunc("/download_report", s.handleDownloadReport).Methods("POST")

	// Health check (no version)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/model", s.handleGetModel).Methods("GET")
	v1.HandleFunc("/models", s.handleListModels).Methods("GET")
	v1.HandleFunc("/predictions", s.handleListPredictions).Methods("GET")
	v1.HandleFunc("/predictions/{id}", s.handleGetPrediction).Methods("GET")
	v1.HandleFunc("/maintenance/prune", s.handlePruneStatus).Methods("GET")
	v1.HandleFunc("/maintenance/prune", s.handlePrune).Methods("POST")
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.WithField("port", s.port).Info("Starting CKD screening server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.predictor.Status()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"source": status.Source,
		"model":  status.Loaded,
	})
}
