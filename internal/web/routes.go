package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/class-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	studentsHandler := handlers.NewStudentsHandler(s.services.Students, s.services.Enroller, s.services.ImageDir, s.metrics)
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Students, s.services.Attendance, s.services.Locator, s.services.Run, s.metrics)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.services.Registry, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Students
		r.Get("/students", studentsHandler.List)
		r.Post("/students", studentsHandler.Create)

		// Attendance
		r.Get("/attendance", attendanceHandler.Latest)
		r.Post("/attendance", attendanceHandler.Mark)
		r.Get("/attendance/annotated", attendanceHandler.Annotated)
	})
}
