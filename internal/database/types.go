package database

import "time"

// StudentRecord is one enrolled student. AttendanceID is the identity key.
type StudentRecord struct {
	Name          string `json:"name"`
	EnrollmentNo  string `json:"enrollment_no"`
	AttendanceID  string `json:"attendance_id"`
	FaceImagePath string `json:"face_image_path"`
}

// Status is the presence outcome of one student in a recognition run.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// AttendanceRecord is a StudentRecord stamped with the outcome of a run.
type AttendanceRecord struct {
	StudentRecord
	Status Status `json:"status"`
	Date   string `json:"date"`
}

// DateLayout is the format of AttendanceRecord.Date.
const DateLayout = time.DateOnly

// FormatDate formats t as an attendance date in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
