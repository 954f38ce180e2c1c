package attendance

import (
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/imaging"
	"github.com/kozaktomas/class-attendance/internal/lbph"
)

// ExclusionReason explains why a student row did not make it into training.
type ExclusionReason string

const (
	ReasonNoImagePath     ExclusionReason = "no image path"
	ReasonImageMissing    ExclusionReason = "image missing"
	ReasonImageUnreadable ExclusionReason = "image unreadable"
)

// Excluded is a student row left out of training.
type Excluded struct {
	Row     int
	Student database.StudentRecord
	Reason  ExclusionReason
	Err     error
}

// LabelMap maps the training labels of one run back to students. Label n is
// the n-th trainable row. It is never modified after construction.
type LabelMap struct {
	ids   []string
	names []string
}

// Len returns the number of labels.
func (m LabelMap) Len() int {
	return len(m.ids)
}

// Lookup returns the attendance ID and name for label.
func (m LabelMap) Lookup(label int) (attendanceID, name string, ok bool) {
	if label < 0 || label >= len(m.ids) {
		return "", "", false
	}
	return m.ids[label], m.names[label], true
}

// TrainingSet is the trainable/excluded partition of a student table.
type TrainingSet struct {
	Samples  []lbph.Sample
	Labels   LabelMap
	Rows     []int // Rows[label] is the student row index of that label
	Excluded []Excluded
}

// ImageOK is the RowStatus of a trainable row.
const ImageOK = "ok"

// RowStatus returns, for each of the first rows student rows, ImageOK or the
// reason the row was excluded.
func (ts TrainingSet) RowStatus(rows int) []string {
	status := make([]string, rows)
	for _, r := range ts.Rows {
		if r < rows {
			status[r] = ImageOK
		}
	}
	for _, e := range ts.Excluded {
		if e.Row < rows {
			status[e.Row] = string(e.Reason)
		}
	}
	return status
}

// Trainable reports how many rows have a usable face sample.
func (ts TrainingSet) Trainable() int {
	return len(ts.Samples)
}

// BuildTrainingSet loads and equalizes the face sample of every student.
// Relative image paths are resolved against imageDir. Rows without a usable
// sample are recorded in Excluded and do not consume a label.
func BuildTrainingSet(students []database.StudentRecord, imageDir string) TrainingSet {
	var (
		ts    TrainingSet
		ids   []string
		names []string
	)
	for row, s := range students {
		img, reason, err := loadSample(s.FaceImagePath, imageDir)
		if reason != "" {
			ts.Excluded = append(ts.Excluded, Excluded{Row: row, Student: s, Reason: reason, Err: err})
			slog.Warn("excluding student from training",
				"row", row, "name", s.Name, "attendance_id", s.AttendanceID, "reason", reason, "error", err)
			continue
		}

		label := len(ts.Samples)
		ts.Samples = append(ts.Samples, lbph.Sample{Image: imaging.EqualizeHist(img), Label: label})
		ts.Rows = append(ts.Rows, row)
		ids = append(ids, s.AttendanceID)
		names = append(names, s.Name)
	}
	ts.Labels = LabelMap{ids: ids, names: names}
	return ts
}

// ResolveImagePath joins relative paths onto dir.
func ResolveImagePath(path, dir string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

func loadSample(path, dir string) (img *image.Gray, reason ExclusionReason, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ReasonNoImagePath, nil
	}
	resolved := ResolveImagePath(path, dir)
	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ReasonImageMissing, err
		}
		return nil, ReasonImageUnreadable, err
	}
	gray, err := imaging.LoadGray(resolved)
	if err != nil {
		return nil, ReasonImageUnreadable, err
	}
	if gray.Bounds().Empty() {
		return nil, ReasonImageUnreadable, errors.New("image has no pixels")
	}
	return gray, "", nil
}
