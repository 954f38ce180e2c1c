package cmd

import (
	"fmt"
	"image"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/imaging"
)

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Mark attendance from a class photo",
	Long: `Train the recognizer on the enrolled face samples, recognize the faces
in a class photo and write the attendance table. Every student is marked
Present when recognized in the photo and Absent otherwise.

An annotated copy of the photo is written next to the table, with recognized
faces boxed in green and unknown faces in red.`,
	Args: cobra.NoArgs,
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)

	markCmd.Flags().String("student-file", "", "Student table (.xlsx or .csv), defaults to ATTENDANCE_STUDENT_FILE")
	markCmd.Flags().String("class-photo", "", "Class photo to recognize, defaults to ATTENDANCE_CLASS_PHOTO")
	markCmd.Flags().String("output-file", "", "Attendance table to write, defaults to ATTENDANCE_OUTPUT_FILE")
	markCmd.Flags().String("annotated-file", "", "Annotated photo to write, defaults to ATTENDANCE_ANNOTATED_FILE")
	markCmd.Flags().String("cascade", "", "Face cascade file, defaults to ATTENDANCE_CASCADE_FILE or the built-in facefinder")
	markCmd.Flags().String("model-cache-dir", "", "Directory caching trained models (empty disables)")
	markCmd.Flags().Float64("confidence-threshold", constants.DefaultConfidenceThreshold, "Maximum distance accepted as a match (lower is stricter)")
	markCmd.Flags().Int("min-neighbors", constants.DefaultMinNeighbors, "Overlapping detections required to accept a face")
	markCmd.Flags().Int("min-size", constants.DefaultMinSize, "Smallest face side length in pixels")
	markCmd.Flags().Float64("scale-factor", constants.DefaultScaleFactor, "Step between detection scales (must be > 1)")
	markCmd.Flags().Bool("no-annotate", false, "Do not write the annotated photo")
}

func runMark(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	studentFile := flagOrString(cmd, "student-file", cfg.Attendance.StudentFile)
	classPhoto := flagOrString(cmd, "class-photo", cfg.Attendance.ClassPhoto)
	outputFile := flagOrString(cmd, "output-file", cfg.Attendance.OutputFile)
	annotatedFile := flagOrString(cmd, "annotated-file", cfg.Attendance.AnnotatedFile)
	cascadeFile := flagOrString(cmd, "cascade", cfg.Detector.CascadeFile)
	cacheDir := flagOrString(cmd, "model-cache-dir", cfg.Attendance.ModelCacheDir)
	threshold := flagOrFloat64(cmd, "confidence-threshold", cfg.Attendance.ConfidenceThreshold)
	minSize := flagOrInt(cmd, "min-size", cfg.Detector.MinSize)
	noAnnotate := mustGetBool(cmd, "no-annotate")

	params := detector.Params{
		ScaleFactor:  flagOrFloat64(cmd, "scale-factor", cfg.Detector.ScaleFactor),
		MinNeighbors: flagOrInt(cmd, "min-neighbors", cfg.Detector.MinNeighbors),
		MinSize:      image.Pt(minSize, minSize),
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if threshold <= 0 {
		return fmt.Errorf("%w, got %g", attendance.ErrInvalidThreshold, threshold)
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStores(ctx, cfg, studentFile, outputFile)
	if err != nil {
		return err
	}
	defer closeStores()

	locator, err := loadLocator(cfg, cascadeFile)
	if err != nil {
		return err
	}

	fmt.Printf("Students: %s\n", st.backend)
	fmt.Printf("Class photo: %s\n", classPhoto)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Recognizing faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("faces"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Add(1)
	}

	startTime := time.Now()
	pipeline := attendance.New(st.students, st.output, locator, attendance.Options{
		Threshold: threshold,
		Params:    params,
		ImageDir:  st.imageDir,
		Train:     attendance.LBPHTrainer(cacheDir),
		Progress:  progress,
	})
	res, err := pipeline.RunFile(ctx, classPhoto)
	if bar != nil {
		fmt.Println()
	}
	if err != nil {
		return err
	}

	for _, ex := range res.Excluded {
		fmt.Printf("Skipped %s (%s): %s\n", ex.Student.Name, ex.Student.AttendanceID, ex.Reason)
	}
	printAttendance(res)

	if cfg.Database.UsesDatabase() {
		fmt.Println("Attendance written to PostgreSQL")
	} else {
		fmt.Printf("Attendance written to %s\n", outputFile)
	}

	if !noAnnotate && annotatedFile != "" {
		if err := saveAnnotated(classPhoto, annotatedFile, res.Faces); err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			fmt.Printf("Annotated photo written to %s\n", annotatedFile)
		}
	}

	fmt.Printf("Completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func printAttendance(res *attendance.Result) {
	recognized := 0
	for _, f := range res.Faces {
		if f.Accepted {
			recognized++
		}
	}

	rows := make([][]string, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, []string{r.Name, r.EnrollmentNo, r.AttendanceID, string(r.Status)})
	}
	fmt.Println(renderTable([]string{"Name", "Enrollment No", "Attendance ID", "Status"}, rows))

	fmt.Printf("Date: %s\n", res.Date)
	fmt.Printf("Faces: %d located, %d recognized\n", len(res.Faces), recognized)
	fmt.Printf("Present: %d of %d (%d trained, %d skipped)\n",
		res.PresentCount(), len(res.Records), res.Trained, len(res.Excluded))
}

func saveAnnotated(photoPath, outPath string, faces []attendance.Face) error {
	photo, err := imaging.Load(photoPath)
	if err != nil {
		return fmt.Errorf("failed to reload class photo: %w", err)
	}
	if err := imaging.SaveJPEG(outPath, attendance.Annotate(photo, faces), constants.AnnotatedJPEGQuality); err != nil {
		return fmt.Errorf("failed to write annotated photo: %w", err)
	}
	return nil
}
