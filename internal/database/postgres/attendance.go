package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/class-attendance/internal/database"
)

// AttendanceRepository stores the output table of the last recognition run
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// WriteAttendance replaces the attendance_marked table in a single transaction
func (r *AttendanceRepository) WriteAttendance(ctx context.Context, records []database.AttendanceRecord) error {
	for _, rec := range records {
		if !rec.Status.Valid() {
			return fmt.Errorf("%w: %q for %s", database.ErrInvalidStatus, rec.Status, rec.AttendanceID)
		}
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_marked"); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance_marked
			(position, name, enrollment_no, attendance_id, face_image_path, status, marked_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare attendance insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, i, rec.Name, rec.EnrollmentNo, rec.AttendanceID,
			rec.FaceImagePath, string(rec.Status), rec.Date); err != nil {
			return fmt.Errorf("insert attendance for %s: %w", rec.AttendanceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

// LoadAttendance returns the last written attendance table in row order
func (r *AttendanceRepository) LoadAttendance(ctx context.Context) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, enrollment_no, attendance_id, face_image_path, status, marked_on
		FROM attendance_marked
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var (
			rec    database.AttendanceRecord
			status string
			date   time.Time
		)
		if err := rows.Scan(&rec.Name, &rec.EnrollmentNo, &rec.AttendanceID, &rec.FaceImagePath, &status, &date); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Status = database.Status(status)
		rec.Date = database.FormatDate(date)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
