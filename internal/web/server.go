package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/enroll"
	"github.com/kozaktomas/class-attendance/internal/metrics"
	"github.com/kozaktomas/class-attendance/internal/web/middleware"
)

// Services are the collaborators the HTTP API drives.
type Services struct {
	Students   database.StudentStore
	Attendance database.AttendanceStore
	Locator    detector.Locator
	Enroller   *enroll.Enroller
	// Run holds the default recognition options.
	Run      attendance.Options
	ImageDir string
	Registry *prometheus.Registry
}

// Server represents the web server
type Server struct {
	config     *config.Config
	services   Services
	metrics    *metrics.AttendanceMetrics
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, svc Services) (*Server, error) {
	if svc.Registry == nil {
		svc.Registry = prometheus.NewRegistry()
	}
	m, err := metrics.NewAttendanceMetrics(svc.Registry)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	s := &Server{
		config:   cfg,
		services: svc,
		metrics:  m,
		router:   r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // recognition over large photos
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
