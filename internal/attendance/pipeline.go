// Package attendance runs recognition over a class photo: it trains an LBPH
// model on the enrolled face samples, classifies every face found in the photo
// and marks each enrolled student Present or Absent.
package attendance

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/imaging"
	"github.com/kozaktomas/class-attendance/internal/lbph"
)

var (
	// ErrNoTrainableSamples is returned when no student has a usable face sample.
	ErrNoTrainableSamples = errors.New("no trainable face samples: check student image paths")

	// ErrPhotoUnreadable is returned when the class photo cannot be decoded.
	ErrPhotoUnreadable = errors.New("class photo is unreadable")

	// ErrInvalidThreshold is returned for a confidence threshold that is not a positive number.
	ErrInvalidThreshold = errors.New("confidence threshold must be positive")
)

// Recognizer classifies a grayscale face as the closest training label and
// its distance. Lower distances are better matches.
type Recognizer interface {
	Predict(img *image.Gray) (label int, distance float64)
}

// TrainFunc builds a Recognizer from labeled samples.
type TrainFunc func(samples []lbph.Sample) (Recognizer, error)

// LBPHTrainer returns a TrainFunc producing LBPH models, cached in cacheDir
// when it is not empty.
func LBPHTrainer(cacheDir string) TrainFunc {
	return func(samples []lbph.Sample) (Recognizer, error) {
		model, cached, err := lbph.TrainCached(cacheDir, samples)
		if model == nil {
			return nil, err
		}
		if err != nil {
			slog.Warn("model cache write failed", "dir", cacheDir, "error", err)
		}
		slog.Debug("recognition model ready", "samples", len(samples), "cached", cached)
		return model, nil
	}
}

// Options configures a recognition run.
type Options struct {
	// Threshold is the exclusive upper bound on accepted distances.
	Threshold float64
	Params    detector.Params
	// ImageDir resolves relative face sample paths.
	ImageDir string
	Train    TrainFunc
	// Now stamps the run date. Defaults to time.Now.
	Now func() time.Time
	// Progress is called after each classified face.
	Progress func(done, total int)
}

// Face is one located region of the class photo and its classification.
type Face struct {
	Region       image.Rectangle
	Label        int
	Distance     float64
	Accepted     bool
	AttendanceID string
	Name         string
}

// Result is the outcome of one run.
type Result struct {
	Date     string
	Trained  int
	Excluded []Excluded
	Faces    []Face
	// Present holds the accepted attendance IDs, sorted.
	Present []string
	Records []database.AttendanceRecord
}

// PresentCount returns the number of output rows marked Present.
func (r *Result) PresentCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == database.StatusPresent {
			n++
		}
	}
	return n
}

// Pipeline ties the student store, face locator, recognizer and output table together.
type Pipeline struct {
	students database.StudentReader
	output   database.AttendanceWriter
	locator  detector.Locator
	opts     Options
}

// New creates a Pipeline. Zero detection params, trainer and clock fall back to
// defaults; the threshold has no default and is checked on every run.
func New(students database.StudentReader, output database.AttendanceWriter, locator detector.Locator, opts Options) *Pipeline {
	if opts.Params.ScaleFactor == 0 {
		opts.Params = detector.DefaultParams()
	}
	if opts.Train == nil {
		opts.Train = LBPHTrainer("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{students: students, output: output, locator: locator, opts: opts}
}

// Accept reports whether a face at distance is accepted as the predicted student.
func Accept(distance, threshold float64) bool {
	return distance < threshold
}

// RunFile loads the class photo at path and runs the pipeline on it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	return p.run(ctx, func() (image.Image, error) {
		return imaging.Load(path)
	})
}

// Run classifies the faces in photo and writes the attendance table.
func (p *Pipeline) Run(ctx context.Context, photo image.Image) (*Result, error) {
	return p.run(ctx, func() (image.Image, error) {
		if photo == nil || photo.Bounds().Empty() {
			return nil, errors.New("empty image")
		}
		return photo, nil
	})
}

func (p *Pipeline) run(ctx context.Context, loadPhoto func() (image.Image, error)) (*Result, error) {
	if err := p.opts.Params.Validate(); err != nil {
		return nil, err
	}
	if !(p.opts.Threshold > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, p.opts.Threshold)
	}

	students, err := p.students.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load student table: %w", err)
	}

	ts := BuildTrainingSet(students, p.opts.ImageDir)
	if ts.Trainable() == 0 {
		return nil, fmt.Errorf("%w (%d rows, %d excluded)", ErrNoTrainableSamples, len(students), len(ts.Excluded))
	}

	model, err := p.opts.Train(ts.Samples)
	if err != nil {
		return nil, fmt.Errorf("train recognizer: %w", err)
	}
	slog.Info("trained recognizer", "samples", ts.Trainable(), "excluded", len(ts.Excluded))

	photo, err := loadPhoto()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPhotoUnreadable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	faces := p.classify(imaging.EqualizeHist(imaging.ToGray(photo)), model, ts.Labels)

	present := make(map[string]bool)
	for _, f := range faces {
		if f.Accepted && f.AttendanceID != "" {
			present[f.AttendanceID] = true
		}
	}

	date := database.FormatDate(p.opts.Now())
	records := MarkAttendance(students, present, date)
	if err := p.output.WriteAttendance(ctx, records); err != nil {
		return nil, fmt.Errorf("write attendance table: %w", err)
	}

	presentIDs := make([]string, 0, len(present))
	for id := range present {
		presentIDs = append(presentIDs, id)
	}
	slices.Sort(presentIDs)

	return &Result{
		Date:     date,
		Trained:  ts.Trainable(),
		Excluded: ts.Excluded,
		Faces:    faces,
		Present:  presentIDs,
		Records:  records,
	}, nil
}

// classify locates faces in the equalized photo and classifies each region.
// Faces are returned top to bottom, left to right.
func (p *Pipeline) classify(gray *image.Gray, model Recognizer, labels LabelMap) []Face {
	regions := p.locator.Locate(gray, p.opts.Params)
	slices.SortFunc(regions, func(a, b image.Rectangle) int {
		return cmp.Or(cmp.Compare(a.Min.Y, b.Min.Y), cmp.Compare(a.Min.X, b.Min.X))
	})
	slog.Info("located faces in class photo", "count", len(regions))

	faces := make([]Face, 0, len(regions))
	for i, r := range regions {
		label, dist := model.Predict(imaging.Crop(gray, r))
		f := Face{Region: r, Label: label, Distance: dist}

		if id, name, ok := labels.Lookup(label); ok && Accept(dist, p.opts.Threshold) {
			f.Accepted = true
			f.AttendanceID = id
			f.Name = name
		}
		slog.Debug("classified face", "region", r, "label", label, "distance", dist, "accepted", f.Accepted)

		faces = append(faces, f)
		if p.opts.Progress != nil {
			p.opts.Progress(i+1, len(regions))
		}
	}
	return faces
}

// MarkAttendance stamps every student with Present or Absent and the run date.
func MarkAttendance(students []database.StudentRecord, present map[string]bool, date string) []database.AttendanceRecord {
	records := make([]database.AttendanceRecord, 0, len(students))
	for _, s := range students {
		status := database.StatusAbsent
		if present[s.AttendanceID] {
			status = database.StatusPresent
		}
		records = append(records, database.AttendanceRecord{StudentRecord: s, Status: status, Date: date})
	}
	return records
}
