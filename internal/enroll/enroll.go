// Package enroll registers students: it cuts a face sample out of a picture,
// stores it under the dataset directory and appends the student to the store.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/facematch"
	"github.com/kozaktomas/class-attendance/internal/imaging"
)

var (
	// ErrNoFace is returned when face detection is enabled and finds nothing.
	ErrNoFace = errors.New("no face found in image")

	// ErrIDExhausted is returned when every generated attendance ID collided.
	ErrIDExhausted = errors.New("could not generate a unique attendance ID")

	// ErrMissingName is returned for an empty student name.
	ErrMissingName = errors.New("student name is required")
)

// NewID returns a short random attendance ID taken from a v4 UUID.
func NewID() string {
	return uuid.New().String()[:constants.AttendanceIDLength]
}

// Options configures an Enroller.
type Options struct {
	// DatasetDir receives the face sample images.
	DatasetDir string
	// PathBase, when set, makes stored sample paths relative to it if the
	// sample lies below it. Tables resolve relative paths against their own directory.
	PathBase string
	// Locator finds faces in the submitted picture. Nil stores the whole picture.
	Locator detector.Locator
	Params  detector.Params
	// NewID overrides the ID generator.
	NewID func() string
}

// Enroller adds students to a StudentStore.
type Enroller struct {
	store database.StudentStore
	opts  Options
}

// New creates an Enroller writing to store.
func New(store database.StudentStore, opts Options) *Enroller {
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	if opts.Params.ScaleFactor == 0 {
		opts.Params = detector.Params{
			ScaleFactor:  constants.EnrollScaleFactor,
			MinNeighbors: constants.EnrollMinNeighbors,
			MinSize:      image.Pt(constants.EnrollMinSize, constants.EnrollMinSize),
		}
	}
	return &Enroller{store: store, opts: opts}
}

// Enroll stores a face sample of img and appends the student. The returned
// record is what was persisted.
func (e *Enroller) Enroll(ctx context.Context, name, enrollmentNo string, img image.Image) (database.StudentRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return database.StudentRecord{}, ErrMissingName
	}

	face, err := e.faceSample(img)
	if err != nil {
		return database.StudentRecord{}, err
	}

	existing, err := e.store.LoadAll(ctx)
	if err != nil {
		return database.StudentRecord{}, fmt.Errorf("load students: %w", err)
	}
	id, err := e.uniqueID(existing)
	if err != nil {
		return database.StudentRecord{}, err
	}

	samplePath := filepath.Join(e.opts.DatasetDir, facematch.SampleFileName(name, id))
	if err := imaging.SaveJPEG(samplePath, face, constants.AnnotatedJPEGQuality); err != nil {
		return database.StudentRecord{}, fmt.Errorf("save face sample: %w", err)
	}

	rec := database.StudentRecord{
		Name:          name,
		EnrollmentNo:  strings.TrimSpace(enrollmentNo),
		AttendanceID:  id,
		FaceImagePath: e.storedPath(samplePath),
	}
	if err := e.store.Append(ctx, rec); err != nil {
		if rmErr := os.Remove(samplePath); rmErr != nil {
			slog.Warn("failed to remove orphaned face sample", "path", samplePath, "error", rmErr)
		}
		return database.StudentRecord{}, fmt.Errorf("append student: %w", err)
	}

	slog.Info("enrolled student", "name", rec.Name, "attendance_id", rec.AttendanceID, "sample", samplePath)
	return rec, nil
}

// EnrollFile is Enroll for an image file on disk.
func (e *Enroller) EnrollFile(ctx context.Context, name, enrollmentNo, path string) (database.StudentRecord, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return database.StudentRecord{}, err
	}
	return e.Enroll(ctx, name, enrollmentNo, img)
}

func (e *Enroller) faceSample(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrNoFace)
	}
	gray := imaging.ToGray(img)
	if e.opts.Locator == nil {
		return gray, nil
	}

	faces := e.opts.Locator.Locate(gray, e.opts.Params)
	i := facematch.Largest(faces)
	if i < 0 {
		return nil, ErrNoFace
	}
	if len(faces) > 1 {
		slog.Debug("multiple faces found, keeping the largest", "count", len(faces), "region", faces[i])
	}
	return imaging.Crop(gray, faces[i]), nil
}

func (e *Enroller) uniqueID(existing []database.StudentRecord) (string, error) {
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s.AttendanceID] = true
	}
	for range constants.MaxIDAttempts {
		id := e.opts.NewID()
		if id != "" && !taken[id] {
			return id, nil
		}
		slog.Debug("attendance ID collision, regenerating", "id", id)
	}
	return "", ErrIDExhausted
}

func (e *Enroller) storedPath(samplePath string) string {
	if e.opts.PathBase == "" {
		return samplePath
	}
	absBase, err := filepath.Abs(e.opts.PathBase)
	if err != nil {
		return samplePath
	}
	absSample, err := filepath.Abs(samplePath)
	if err != nil {
		return samplePath
	}
	rel, err := filepath.Rel(absBase, absSample)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absSample
	}
	return rel
}
