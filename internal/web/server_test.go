package web

import (
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/database/mock"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/enroll"
)

type noFaces struct{}

func (noFaces) Locate(img *image.Gray, p detector.Params) []image.Rectangle { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Web.AllowedOrigins = "http://localhost:5173"

	students := mock.NewStudentStore(database.StudentRecord{Name: "Ann", AttendanceID: "aaaa0001"})
	srv, err := NewServer(cfg, Services{
		Students:   students,
		Attendance: mock.NewAttendanceStore(),
		Locator:    noFaces{},
		Enroller:   enroll.New(students, enroll.Options{DatasetDir: t.TempDir(), Locator: noFaces{}}),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	return srv
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/api/v1/students", http.StatusOK, `"aaaa0001"`},
		{http.MethodGet, "/api/v1/attendance", http.StatusOK, `"records":[]`},
		{http.MethodGet, "/api/v1/attendance/annotated", http.StatusNotFound, ""},
		{http.MethodGet, "/metrics", http.StatusOK, "class_attendance_run_duration_seconds"},
		{http.MethodDelete, "/api/v1/students", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("expected body to contain %q, got %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/attendance", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected preflight status 200, got %d", rec.Code)
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
}
