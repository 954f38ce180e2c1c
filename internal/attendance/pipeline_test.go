package attendance

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/database/mock"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/lbph"
)

var fixedNow = func() time.Time { return time.Date(2024, time.September, 2, 8, 30, 0, 0, time.UTC) }

type fakeLocator struct {
	regions []image.Rectangle
	calls   int
}

func (f *fakeLocator) Locate(img *image.Gray, p detector.Params) []image.Rectangle {
	f.calls++
	return slices.Clone(f.regions)
}

// widthRecognizer classifies a crop by its width.
type widthRecognizer map[int]struct {
	label int
	dist  float64
}

func (w widthRecognizer) Predict(img *image.Gray) (int, float64) {
	if p, ok := w[img.Bounds().Dx()]; ok {
		return p.label, p.dist
	}
	return 0, 1e9
}

func fakeTrainer(r Recognizer, got *[]lbph.Sample) TrainFunc {
	return func(samples []lbph.Sample) (Recognizer, error) {
		if got != nil {
			*got = samples
		}
		return r, nil
	}
}

func classPhoto() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := range 240 {
		for x := range 320 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func enrolledStudents(t *testing.T, n int, missing ...int) ([]database.StudentRecord, string) {
	t.Helper()
	dir := t.TempDir()
	var students []database.StudentRecord
	for i := range n {
		name := string(rune('A' + i))
		path := filepath.Join("dataset", name+".png")
		if !slices.Contains(missing, i) {
			writePNG(t, filepath.Join(dir, path), gradientGray(24+i, 24))
		}
		students = append(students, database.StudentRecord{
			Name:          "Student " + name,
			EnrollmentNo:  "E" + name,
			AttendanceID:  "id-" + name,
			FaceImagePath: path,
		})
	}
	return students, dir
}

func statuses(records []database.AttendanceRecord) []database.Status {
	out := make([]database.Status, len(records))
	for i, r := range records {
		out[i] = r.Status
	}
	return out
}

func TestRun_TwoOfThreePresent(t *testing.T) {
	students, dir := enrolledStudents(t, 3)
	output := mock.NewAttendanceStore()
	locator := &fakeLocator{regions: []image.Rectangle{
		image.Rect(200, 50, 270, 120),
		image.Rect(20, 40, 80, 100),
	}}
	recognizer := widthRecognizer{
		60: {label: 0, dist: 42},
		70: {label: 2, dist: 77},
	}

	p := New(mock.NewStudentStore(students...), output, locator, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(recognizer, nil),
		Now:       fixedNow,
	})
	res, err := p.Run(context.Background(), classPhoto())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []database.Status{database.StatusPresent, database.StatusAbsent, database.StatusPresent}
	if got := statuses(res.Records); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	if !slices.Equal(res.Present, []string{"id-A", "id-C"}) {
		t.Errorf("Present = %v", res.Present)
	}
	if res.PresentCount() != 2 {
		t.Errorf("PresentCount() = %d, want 2", res.PresentCount())
	}
	for _, r := range res.Records {
		if r.Date != "2024-09-02" {
			t.Errorf("record %s date = %q", r.AttendanceID, r.Date)
		}
	}

	// faces are ordered top to bottom
	if len(res.Faces) != 2 || res.Faces[0].Name != "Student A" || res.Faces[1].Name != "Student C" {
		t.Errorf("Faces = %+v", res.Faces)
	}

	written, _ := output.LoadAttendance(context.Background())
	if !slices.Equal(written, res.Records) {
		t.Error("written table differs from result records")
	}
}

func TestRun_MissingSampleIsAlwaysAbsent(t *testing.T) {
	students, dir := enrolledStudents(t, 2, 1)
	var trained []lbph.Sample
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(10, 10, 60, 60)}}
	recognizer := widthRecognizer{50: {label: 0, dist: 10}}

	p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), locator, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(recognizer, &trained),
		Now:       fixedNow,
	})
	res, err := p.Run(context.Background(), classPhoto())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(trained) != 1 || res.Trained != 1 {
		t.Errorf("trained on %d samples (result says %d), want 1", len(trained), res.Trained)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].Reason != ReasonImageMissing {
		t.Errorf("Excluded = %+v", res.Excluded)
	}
	want := []database.Status{database.StatusPresent, database.StatusAbsent}
	if got := statuses(res.Records); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestRun_NoFacesMarksEveryoneAbsent(t *testing.T) {
	students, dir := enrolledStudents(t, 3)
	output := mock.NewAttendanceStore()

	p := New(mock.NewStudentStore(students...), output, &fakeLocator{}, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(widthRecognizer{}, nil),
		Now:       fixedNow,
	})
	res, err := p.Run(context.Background(), classPhoto())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(res.Present) != 0 || len(res.Faces) != 0 {
		t.Errorf("Present = %v, Faces = %v, want none", res.Present, res.Faces)
	}
	for _, r := range res.Records {
		if r.Status != database.StatusAbsent {
			t.Errorf("%s is %s, want Absent", r.AttendanceID, r.Status)
		}
	}
	if output.Writes() != 1 {
		t.Errorf("output written %d times, want 1", output.Writes())
	}
}

func TestRun_NoTrainableSamples(t *testing.T) {
	students, dir := enrolledStudents(t, 2, 0, 1)
	output := mock.NewAttendanceStore()
	locator := &fakeLocator{}

	p := New(mock.NewStudentStore(students...), output, locator, Options{Threshold: 100, ImageDir: dir})
	_, err := p.Run(context.Background(), classPhoto())
	if !errors.Is(err, ErrNoTrainableSamples) {
		t.Fatalf("Run() error = %v, want ErrNoTrainableSamples", err)
	}
	if output.Writes() != 0 {
		t.Error("output must not be written")
	}
	if locator.calls != 0 {
		t.Error("detection must not run")
	}
}

func TestRun_EmptyStore(t *testing.T) {
	p := New(mock.NewStudentStore(), mock.NewAttendanceStore(), &fakeLocator{}, Options{Threshold: 100})
	if _, err := p.Run(context.Background(), classPhoto()); !errors.Is(err, ErrNoTrainableSamples) {
		t.Errorf("Run() error = %v, want ErrNoTrainableSamples", err)
	}
}

func TestRunFile_PhotoUnreadable(t *testing.T) {
	students, dir := enrolledStudents(t, 1)
	output := mock.NewAttendanceStore()

	p := New(mock.NewStudentStore(students...), output, &fakeLocator{}, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(widthRecognizer{}, nil),
	})
	_, err := p.RunFile(context.Background(), filepath.Join(dir, "missing.jpg"))
	if !errors.Is(err, ErrPhotoUnreadable) {
		t.Fatalf("RunFile() error = %v, want ErrPhotoUnreadable", err)
	}
	if output.Writes() != 0 {
		t.Error("output must not be written")
	}

	if _, err := p.Run(context.Background(), nil); !errors.Is(err, ErrPhotoUnreadable) {
		t.Errorf("Run(nil) error = %v, want ErrPhotoUnreadable", err)
	}
}

func TestRun_StoreErrors(t *testing.T) {
	students, dir := enrolledStudents(t, 1)

	t.Run("load", func(t *testing.T) {
		store := mock.NewStudentStore(students...)
		store.LoadAllError = errors.New("locked")
		p := New(store, mock.NewAttendanceStore(), &fakeLocator{}, Options{Threshold: 100, ImageDir: dir})
		if _, err := p.Run(context.Background(), classPhoto()); !errors.Is(err, store.LoadAllError) {
			t.Errorf("Run() error = %v, want wrapped load error", err)
		}
	})

	t.Run("write", func(t *testing.T) {
		output := mock.NewAttendanceStore()
		output.WriteError = errors.New("read-only")
		p := New(mock.NewStudentStore(students...), output, &fakeLocator{}, Options{
			Threshold: 100,
			ImageDir:  dir,
			Train:     fakeTrainer(widthRecognizer{}, nil),
		})
		if _, err := p.Run(context.Background(), classPhoto()); !errors.Is(err, output.WriteError) {
			t.Errorf("Run() error = %v, want wrapped write error", err)
		}
	})
}

func TestRun_InvalidParams(t *testing.T) {
	students, dir := enrolledStudents(t, 1)
	p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), &fakeLocator{}, Options{
		Threshold: 100,
		ImageDir:  dir,
		Params:    detector.Params{ScaleFactor: 0.9, MinNeighbors: 1, MinSize: image.Pt(10, 10)},
	})
	if _, err := p.Run(context.Background(), classPhoto()); err == nil {
		t.Error("expected error for scale factor below 1")
	}
}

func TestRun_InvalidThreshold(t *testing.T) {
	students, dir := enrolledStudents(t, 1)
	for _, threshold := range []float64{0, -1, math.NaN()} {
		output := mock.NewAttendanceStore()
		locator := &fakeLocator{regions: []image.Rectangle{image.Rect(0, 0, 30, 30)}}
		p := New(mock.NewStudentStore(students...), output, locator, Options{
			Threshold: threshold,
			ImageDir:  dir,
			Train:     fakeTrainer(widthRecognizer{30: {label: 0, dist: 1}}, nil),
		})
		if _, err := p.Run(context.Background(), classPhoto()); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: Run() error = %v, want ErrInvalidThreshold", threshold, err)
		}
		if output.Writes() != 0 || locator.calls != 0 {
			t.Errorf("threshold %v: run must stop before detection and output", threshold)
		}
	}
}

func TestRun_UnmappedLabelIsUnknown(t *testing.T) {
	students, dir := enrolledStudents(t, 1)
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(0, 0, 30, 30)}}
	recognizer := widthRecognizer{30: {label: 5, dist: 1}}

	p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), locator, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(recognizer, nil),
	})
	res, err := p.Run(context.Background(), classPhoto())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Faces[0].Accepted || len(res.Present) != 0 {
		t.Errorf("face with unmapped label must stay Unknown: %+v", res.Faces[0])
	}
}

func TestRun_DuplicateMatchesCountOnce(t *testing.T) {
	students, dir := enrolledStudents(t, 2)
	locator := &fakeLocator{regions: []image.Rectangle{
		image.Rect(0, 0, 40, 40),
		image.Rect(100, 100, 140, 140),
	}}
	recognizer := widthRecognizer{40: {label: 1, dist: 5}}

	p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), locator, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(recognizer, nil),
	})
	res, err := p.Run(context.Background(), classPhoto())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !slices.Equal(res.Present, []string{"id-B"}) || res.PresentCount() != 1 {
		t.Errorf("Present = %v, PresentCount = %d", res.Present, res.PresentCount())
	}
}

func TestRun_ThresholdMonotonic(t *testing.T) {
	students, dir := enrolledStudents(t, 1)
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(0, 0, 30, 30)}}
	recognizer := widthRecognizer{30: {label: 0, dist: 50}}

	accepted := false
	for _, threshold := range []float64{10, 49.9, 50, 50.1, 80, 1000} {
		p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), locator, Options{
			Threshold: threshold,
			ImageDir:  dir,
			Train:     fakeTrainer(recognizer, nil),
		})
		res, err := p.Run(context.Background(), classPhoto())
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if res.Faces[0].Distance != 50 {
			t.Errorf("threshold %v changed distance to %v", threshold, res.Faces[0].Distance)
		}
		if accepted && !res.Faces[0].Accepted {
			t.Errorf("threshold %v rejected a face accepted at a lower threshold", threshold)
		}
		accepted = res.Faces[0].Accepted
		if want := threshold > 50; accepted != want {
			t.Errorf("threshold %v: accepted = %v, want %v", threshold, accepted, want)
		}
	}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		distance, threshold float64
		want                bool
	}{
		{0, 100, true},
		{99.99, 100, true},
		{100, 100, false},
		{150, 100, false},
	}
	for _, tt := range tests {
		if got := Accept(tt.distance, tt.threshold); got != tt.want {
			t.Errorf("Accept(%v, %v) = %v, want %v", tt.distance, tt.threshold, got, tt.want)
		}
	}
}

func TestRun_Progress(t *testing.T) {
	students, dir := enrolledStudents(t, 1)
	locator := &fakeLocator{regions: []image.Rectangle{
		image.Rect(0, 0, 30, 30), image.Rect(50, 0, 80, 30), image.Rect(100, 0, 130, 30),
	}}
	var calls [][2]int
	p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), locator, Options{
		Threshold: 100,
		ImageDir:  dir,
		Train:     fakeTrainer(widthRecognizer{}, nil),
		Progress:  func(done, total int) { calls = append(calls, [2]int{done, total}) },
	})
	if _, err := p.Run(context.Background(), classPhoto()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if want := [][2]int{{1, 3}, {2, 3}, {3, 3}}; !slices.Equal(calls, want) {
		t.Errorf("progress calls = %v, want %v", calls, want)
	}
}

func noise(w, h int, seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.IntN(256))
	}
	return img
}

func TestRun_LBPHEndToEnd(t *testing.T) {
	dir := t.TempDir()
	var students []database.StudentRecord
	textures := []*image.Gray{noise(64, 64, 1), noise(64, 64, 2), noise(64, 64, 3)}
	for i, tex := range textures {
		name := string(rune('a' + i))
		writePNG(t, filepath.Join(dir, name+".png"), tex)
		students = append(students, database.StudentRecord{Name: name, AttendanceID: "id-" + name, FaceImagePath: name + ".png"})
	}

	// The class photo is exactly the second sample, so its equalized crop
	// matches that training image pixel for pixel.
	photo := textures[1]
	locator := &fakeLocator{regions: []image.Rectangle{photo.Bounds()}}

	run := func() *Result {
		p := New(mock.NewStudentStore(students...), mock.NewAttendanceStore(), locator, Options{
			Threshold: 100,
			ImageDir:  dir,
			Now:       fixedNow,
		})
		res, err := p.Run(context.Background(), photo)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		return res
	}

	first := run()
	if len(first.Faces) != 1 {
		t.Fatalf("Faces = %d, want 1", len(first.Faces))
	}
	f := first.Faces[0]
	if f.Label != 1 || f.Distance != 0 || !f.Accepted || f.AttendanceID != "id-b" {
		t.Errorf("face = %+v, want exact match of id-b", f)
	}
	want := []database.Status{database.StatusAbsent, database.StatusPresent, database.StatusAbsent}
	if got := statuses(first.Records); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	second := run()
	if !slices.Equal(first.Present, second.Present) || !slices.Equal(first.Records, second.Records) {
		t.Error("repeated run on unchanged inputs produced a different outcome")
	}
}

func TestLBPHTrainer_Cache(t *testing.T) {
	dir := t.TempDir()
	samples := []lbph.Sample{{Image: noise(32, 32, 7), Label: 0}}

	train := LBPHTrainer(dir)
	r1, err := train(samples)
	if err != nil {
		t.Fatalf("train() error: %v", err)
	}
	r2, err := train(samples)
	if err != nil {
		t.Fatalf("train() error: %v", err)
	}

	l1, d1 := r1.Predict(samples[0].Image)
	l2, d2 := r2.Predict(samples[0].Image)
	if l1 != l2 || d1 != d2 {
		t.Errorf("cached model disagrees: (%d, %v) vs (%d, %v)", l1, d1, l2, d2)
	}
}

func TestMarkAttendance(t *testing.T) {
	students := []database.StudentRecord{
		{Name: "A", AttendanceID: "1"},
		{Name: "B", AttendanceID: "2"},
		{Name: "C", AttendanceID: "3"},
	}
	records := MarkAttendance(students, map[string]bool{"3": true, "9": true}, "2024-01-01")

	want := []database.Status{database.StatusAbsent, database.StatusAbsent, database.StatusPresent}
	if got := statuses(records); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	for i, r := range records {
		if r.StudentRecord != students[i] || r.Date != "2024-01-01" {
			t.Errorf("record %d = %+v", i, r)
		}
	}
}
