package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/config"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List enrolled students",
	Long: `List the enrolled students in store order together with the state of
their face sample. Only students whose sample is "ok" take part in training.`,
	Args: cobra.NoArgs,
	RunE: runStudents,
}

func init() {
	rootCmd.AddCommand(studentsCmd)

	studentsCmd.Flags().String("student-file", "", "Student table (.xlsx or .csv), defaults to ATTENDANCE_STUDENT_FILE")
}

func runStudents(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	studentFile := flagOrString(cmd, "student-file", cfg.Attendance.StudentFile)

	ctx := context.Background()
	st, err := openStores(ctx, cfg, studentFile, "")
	if err != nil {
		return err
	}
	defer closeStores()

	students, err := st.students.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}
	if len(students) == 0 {
		fmt.Printf("No students enrolled in %s\n", st.backend)
		return nil
	}

	ts := attendance.BuildTrainingSet(students, st.imageDir)
	status := ts.RowStatus(len(students))

	rows := make([][]string, 0, len(students))
	for i, s := range students {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), s.Name, s.EnrollmentNo, s.AttendanceID, s.FaceImagePath, status[i],
		})
	}
	fmt.Println(renderTable([]string{"#", "Name", "Enrollment No", "Attendance ID", "Face Image", "Image"}, rows, 0))
	fmt.Printf("%d students, %d trainable\n", len(students), ts.Trainable())
	return nil
}
