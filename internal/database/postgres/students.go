package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/class-attendance/internal/database"
)

// StudentRepository provides PostgreSQL-backed student storage
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// LoadAll returns all students ordered by insertion
func (r *StudentRepository) LoadAll(ctx context.Context) ([]database.StudentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, enrollment_no, attendance_id, face_image_path
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	defer rows.Close()

	var students []database.StudentRecord
	for rows.Next() {
		var s database.StudentRecord
		if err := rows.Scan(&s.Name, &s.EnrollmentNo, &s.AttendanceID, &s.FaceImagePath); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Append stores one student after all existing rows
func (r *StudentRepository) Append(ctx context.Context, rec database.StudentRecord) error {
	query := `
		INSERT INTO students (name, enrollment_no, attendance_id, face_image_path)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, rec.Name, rec.EnrollmentNo, rec.AttendanceID, rec.FaceImagePath)
	if err != nil {
		return fmt.Errorf("append student %s: %w", rec.AttendanceID, err)
	}
	return nil
}
