package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrSameTable is returned when the attendance output would overwrite the student table.
var ErrSameTable = errors.New("output table must differ from the student table")

// ErrInvalidStatus is returned when an attendance record is neither Present nor Absent.
var ErrInvalidStatus = errors.New("invalid attendance status")

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// LoadAll returns every student in insertion order. An absent or empty table yields no rows.
	LoadAll(ctx context.Context) ([]StudentRecord, error)
}

// StudentWriter adds students to the store
type StudentWriter interface {
	// Append persists one student after all existing rows. It does not check AttendanceID uniqueness.
	Append(ctx context.Context, rec StudentRecord) error
}

// StudentStore is a readable and appendable student table
type StudentStore interface {
	StudentReader
	StudentWriter
}

// AttendanceReader provides access to the last written attendance table
type AttendanceReader interface {
	LoadAttendance(ctx context.Context) ([]AttendanceRecord, error)
}

// AttendanceWriter persists the outcome of a recognition run
type AttendanceWriter interface {
	// WriteAttendance replaces the whole output table with records.
	WriteAttendance(ctx context.Context, records []AttendanceRecord) error
}

// AttendanceStore is a readable and writable attendance output table
type AttendanceStore interface {
	AttendanceReader
	AttendanceWriter
}

// CheckDistinctTables returns ErrSameTable when both paths resolve to the same file.
func CheckDistinctTables(studentFile, outputFile string) error {
	a, err := filepath.Abs(studentFile)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", studentFile, err)
	}
	b, err := filepath.Abs(outputFile)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", outputFile, err)
	}
	if a == b {
		return fmt.Errorf("%w: %s", ErrSameTable, outputFile)
	}
	return nil
}
