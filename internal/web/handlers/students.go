package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/enroll"
	"github.com/kozaktomas/class-attendance/internal/imaging"
	"github.com/kozaktomas/class-attendance/internal/metrics"
)

// StudentsHandler lists and enrolls students.
type StudentsHandler struct {
	store    database.StudentStore
	enroller *enroll.Enroller
	imageDir string
	metrics  *metrics.AttendanceMetrics
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(store database.StudentStore, enroller *enroll.Enroller, imageDir string, m *metrics.AttendanceMetrics) *StudentsHandler {
	return &StudentsHandler{
		store:    store,
		enroller: enroller,
		imageDir: imageDir,
		metrics:  m,
	}
}

// StudentResponse is a student row with the state of its face sample.
type StudentResponse struct {
	database.StudentRecord
	ImageStatus string `json:"image_status"`
}

// StudentListResponse is returned by List.
type StudentListResponse struct {
	Students  []StudentResponse `json:"students"`
	Total     int               `json:"total"`
	Trainable int               `json:"trainable"`
}

// List returns all enrolled students in store order.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.LoadAll(r.Context())
	if err != nil {
		slog.Error("failed to load students", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load students")
		return
	}

	ts := attendance.BuildTrainingSet(students, h.imageDir)
	status := ts.RowStatus(len(students))

	resp := StudentListResponse{
		Students:  make([]StudentResponse, 0, len(students)),
		Total:     len(students),
		Trainable: ts.Trainable(),
	}
	for i, s := range students {
		resp.Students = append(resp.Students, StudentResponse{StudentRecord: s, ImageStatus: status[i]})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create enrolls a student from a multipart form with name, enrollment_no and image.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	data, err := readFormFile(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	img, err := imaging.Decode(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is not a valid picture")
		return
	}

	rec, err := h.enroller.Enroll(r.Context(), r.FormValue("name"), r.FormValue("enrollment_no"), img)
	if h.metrics != nil {
		h.metrics.RecordEnrollment(err)
	}
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, rec)
	case errors.Is(err, enroll.ErrMissingName):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, enroll.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, enroll.ErrIDExhausted):
		respondError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("enrollment failed", "name", sanitizeForLog(r.FormValue("name")), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to enroll student")
	}
}
