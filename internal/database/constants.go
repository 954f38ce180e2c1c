package database

// Column headers of the student and attendance tables.
const (
	ColumnName          = "Name"
	ColumnEnrollmentNo  = "Enrollment_No"
	ColumnAttendanceID  = "Attendance_ID"
	ColumnFaceImagePath = "Face_Image_Path"
	ColumnStatus        = "Status"
	ColumnDate          = "Date"
)

// StudentColumns is the canonical header of a student table.
var StudentColumns = []string{ColumnName, ColumnEnrollmentNo, ColumnAttendanceID, ColumnFaceImagePath}

// AttendanceColumns is the canonical header of an attendance output table.
var AttendanceColumns = []string{ColumnName, ColumnEnrollmentNo, ColumnAttendanceID, ColumnFaceImagePath, ColumnStatus, ColumnDate}
