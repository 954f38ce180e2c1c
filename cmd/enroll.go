package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/enroll"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a student with a face picture",
	Long: `Enroll a student: the largest face found in the picture is stored as a
grayscale sample in the dataset directory and the student is appended to the
student table with a newly generated attendance ID.

Use --no-detect when the picture is already a cropped face.`,
	Args: cobra.NoArgs,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Student name (required)")
	enrollCmd.Flags().String("enrollment-no", "", "Enrollment number")
	enrollCmd.Flags().String("image", "", "Picture containing the student's face (required)")
	enrollCmd.Flags().Bool("no-detect", false, "Store the whole picture instead of the detected face")
	enrollCmd.Flags().String("student-file", "", "Student table (.xlsx or .csv), defaults to ATTENDANCE_STUDENT_FILE")
	enrollCmd.Flags().String("dataset-dir", "", "Directory for face samples, defaults to ATTENDANCE_DATASET_DIR")
	enrollCmd.Flags().String("cascade", "", "Face cascade file, defaults to ATTENDANCE_CASCADE_FILE or the built-in facefinder")

	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("image")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	name := mustGetString(cmd, "name")
	enrollmentNo := mustGetString(cmd, "enrollment-no")
	imagePath := mustGetString(cmd, "image")
	noDetect := mustGetBool(cmd, "no-detect")
	studentFile := flagOrString(cmd, "student-file", cfg.Attendance.StudentFile)
	datasetDir := flagOrString(cmd, "dataset-dir", cfg.Enrollment.DatasetDir)
	cascadeFile := flagOrString(cmd, "cascade", cfg.Detector.CascadeFile)

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStores(ctx, cfg, studentFile, "")
	if err != nil {
		return err
	}
	defer closeStores()

	opts := enroll.Options{
		DatasetDir: datasetDir,
		PathBase:   st.imageDir,
	}
	if noDetect {
		fmt.Println("Face detection disabled, storing the whole picture")
	} else {
		cascade, err := loadLocator(cfg, cascadeFile)
		if err != nil {
			return err
		}
		opts.Locator = cascade
	}

	rec, err := enroll.New(st.students, opts).EnrollFile(ctx, name, enrollmentNo, imagePath)
	if err != nil {
		if errors.Is(err, enroll.ErrNoFace) {
			return fmt.Errorf("no face found in %s (try --no-detect for cropped faces): %w", imagePath, err)
		}
		return err
	}

	fmt.Printf("Enrolled %s\n", rec.Name)
	fmt.Printf("  Enrollment No: %s\n", rec.EnrollmentNo)
	fmt.Printf("  Attendance ID: %s\n", rec.AttendanceID)
	fmt.Printf("  Face sample:   %s\n", rec.FaceImagePath)
	fmt.Printf("  Stored in:     %s\n", st.backend)
	return nil
}
