package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/imaging"
	"github.com/kozaktomas/class-attendance/internal/metrics"
)

// AttendanceHandler runs recognition over uploaded class photos. Runs are
// serialized: a run holds the handler lock until its output table is written.
type AttendanceHandler struct {
	students database.StudentReader
	output   database.AttendanceStore
	locator  detector.Locator
	opts     attendance.Options
	metrics  *metrics.AttendanceMetrics

	mu        sync.Mutex
	annotated []byte
}

// NewAttendanceHandler creates a new attendance handler. opts holds the
// defaults that form values may override per request.
func NewAttendanceHandler(students database.StudentReader, output database.AttendanceStore, locator detector.Locator, opts attendance.Options, m *metrics.AttendanceMetrics) *AttendanceHandler {
	return &AttendanceHandler{
		students: students,
		output:   output,
		locator:  locator,
		opts:     opts,
		metrics:  m,
	}
}

// FaceResponse is one located face in pixel coordinates of the uploaded photo.
type FaceResponse struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Label        int     `json:"label"`
	Distance     float64 `json:"distance"`
	Accepted     bool    `json:"accepted"`
	AttendanceID string  `json:"attendance_id,omitempty"`
	Name         string  `json:"name"`
}

// MarkResponse is the outcome of a recognition run.
type MarkResponse struct {
	Date     string                      `json:"date"`
	Trained  int                         `json:"trained"`
	Excluded int                         `json:"excluded"`
	Faces    []FaceResponse              `json:"faces"`
	Present  []string                    `json:"present"`
	Records  []database.AttendanceRecord `json:"records"`
}

func newMarkResponse(res *attendance.Result) MarkResponse {
	resp := MarkResponse{
		Date:     res.Date,
		Trained:  res.Trained,
		Excluded: len(res.Excluded),
		Faces:    make([]FaceResponse, 0, len(res.Faces)),
		Present:  res.Present,
		Records:  res.Records,
	}
	for _, f := range res.Faces {
		name := attendance.UnknownLabel
		if f.Accepted {
			name = f.Name
		}
		dist := f.Distance
		if math.IsInf(dist, 0) || math.IsNaN(dist) {
			dist = -1
		}
		resp.Faces = append(resp.Faces, FaceResponse{
			X:            f.Region.Min.X,
			Y:            f.Region.Min.Y,
			Width:        f.Region.Dx(),
			Height:       f.Region.Dy(),
			Label:        f.Label,
			Distance:     dist,
			Accepted:     f.Accepted,
			AttendanceID: f.AttendanceID,
			Name:         name,
		})
	}
	return resp
}

// runOptions applies the optional form overrides to the handler defaults.
func (h *AttendanceHandler) runOptions(r *http.Request) (attendance.Options, error) {
	opts := h.opts
	if opts.Params.ScaleFactor == 0 {
		opts.Params = detector.DefaultParams()
	}

	if v, ok, err := formFloat(r, "confidence_threshold", 0); err != nil {
		return opts, err
	} else if ok {
		opts.Threshold = v
	}
	if v, ok, err := formFloat(r, "scale_factor", 1); err != nil {
		return opts, err
	} else if ok {
		opts.Params.ScaleFactor = v
	}
	if v, ok, err := formInt(r, "min_neighbors", 1); err != nil {
		return opts, err
	} else if ok {
		opts.Params.MinNeighbors = v
	}
	if v, ok, err := formInt(r, "min_size", 1); err != nil {
		return opts, err
	} else if ok {
		opts.Params.MinSize.X = v
		opts.Params.MinSize.Y = v
	}
	return opts, nil
}

// Mark runs recognition over the multipart "photo" and writes the attendance table.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	opts, err := h.runOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := readFormFile(r, "photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	photo, err := imaging.Decode(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, attendance.ErrPhotoUnreadable.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	res, err := attendance.New(h.students, h.output, h.locator, opts).Run(r.Context(), photo)
	h.record(res, time.Since(start), err)
	if err != nil {
		if errors.Is(err, attendance.ErrNoTrainableSamples) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("attendance run failed", "error", err)
		respondError(w, http.StatusInternalServerError, "attendance run failed")
		return
	}

	var buf bytes.Buffer
	if err := imaging.EncodeJPEG(&buf, attendance.Annotate(photo, res.Faces), constants.AnnotatedJPEGQuality); err != nil {
		slog.Warn("failed to render annotated photo", "error", err)
		h.annotated = nil
	} else {
		h.annotated = buf.Bytes()
	}

	respondJSON(w, http.StatusOK, newMarkResponse(res))
}

func (h *AttendanceHandler) record(res *attendance.Result, d time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	var stats metrics.RunStats
	if res != nil {
		stats.Faces = len(res.Faces)
		stats.Excluded = len(res.Excluded)
		stats.Present = res.PresentCount()
		stats.Absent = len(res.Records) - stats.Present
		for _, f := range res.Faces {
			if f.Accepted {
				stats.Recognized++
			}
		}
	}
	h.metrics.RecordRun(stats, d, err)
}

// Latest returns the attendance table written by the last run.
func (h *AttendanceHandler) Latest(w http.ResponseWriter, r *http.Request) {
	records, err := h.output.LoadAttendance(r.Context())
	if err != nil {
		slog.Error("failed to load attendance", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	if records == nil {
		records = []database.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

// Annotated returns the annotated JPEG of the last successful run of this process.
func (h *AttendanceHandler) Annotated(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	data := h.annotated
	h.mu.Unlock()

	if data == nil {
		respondError(w, http.StatusNotFound, "no annotated photo yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
