// Package tablefile stores student and attendance tables in .xlsx or .csv files.
//
// Every operation reads or rewrites the whole file. Writers hold an exclusive
// advisory lock on "<path>.lock" and replace the file atomically.
package tablefile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"log/slog"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"github.com/kozaktomas/class-attendance/internal/database"
)

// DefaultSheet is the worksheet written to new .xlsx files.
const DefaultSheet = "Sheet1"

const lockRetryDelay = 50 * time.Millisecond

// ErrUnsupportedFormat is returned for paths without a .xlsx or .csv extension.
var ErrUnsupportedFormat = errors.New("unsupported table format")

type format int

const (
	formatXLSX format = iota
	formatCSV
)

// Table is a student or attendance table backed by a single file. A Table is
// safe for concurrent use; the flock only excludes other processes, so calls
// within this process are serialized by mu.
type Table struct {
	path   string
	format format

	mu   sync.Mutex
	lock *flock.Flock
}

var (
	_ database.StudentStore    = (*Table)(nil)
	_ database.AttendanceStore = (*Table)(nil)
)

// New returns a Table for path. The file does not need to exist.
func New(path string) (*Table, error) {
	var f format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f = formatXLSX
	case ".csv":
		f = formatCSV
	default:
		return nil, fmt.Errorf("%w: %s (use .xlsx or .csv)", ErrUnsupportedFormat, path)
	}
	return &Table{path: path, format: f, lock: flock.New(path + ".lock")}, nil
}

// Path returns the table file path.
func (t *Table) Path() string {
	return t.path
}

// Dir returns the directory relative image paths are resolved against.
func (t *Table) Dir() string {
	return filepath.Dir(t.path)
}

// LoadAll returns every student row in file order.
func (t *Table) LoadAll(ctx context.Context) ([]database.StudentRecord, error) {
	var grid *sheet
	err := t.withLock(ctx, false, func() error {
		var err error
		grid, err = t.read()
		return err
	})
	if err != nil {
		return nil, err
	}
	return grid.students(), nil
}

// Append adds rec after the last row and rewrites the file. Columns unknown to
// the student table are preserved.
func (t *Table) Append(ctx context.Context, rec database.StudentRecord) error {
	return t.withLock(ctx, true, func() error {
		grid, err := t.read()
		if err != nil {
			return err
		}
		grid.ensureColumns(database.StudentColumns)
		grid.appendRow(map[string]string{
			database.ColumnName:          rec.Name,
			database.ColumnEnrollmentNo:  rec.EnrollmentNo,
			database.ColumnAttendanceID:  rec.AttendanceID,
			database.ColumnFaceImagePath: rec.FaceImagePath,
		})
		return t.write(grid)
	})
}

// LoadAttendance reads an attendance output table.
func (t *Table) LoadAttendance(ctx context.Context) ([]database.AttendanceRecord, error) {
	var grid *sheet
	err := t.withLock(ctx, false, func() error {
		var err error
		grid, err = t.read()
		return err
	})
	if err != nil {
		return nil, err
	}
	return grid.attendance(), nil
}

// WriteAttendance overwrites the file with records under the attendance header.
func (t *Table) WriteAttendance(ctx context.Context, records []database.AttendanceRecord) error {
	grid := newSheet(database.AttendanceColumns)
	for _, r := range records {
		if !r.Status.Valid() {
			return fmt.Errorf("%w: %q for %s", database.ErrInvalidStatus, r.Status, r.AttendanceID)
		}
		grid.appendRow(map[string]string{
			database.ColumnName:          r.Name,
			database.ColumnEnrollmentNo:  r.EnrollmentNo,
			database.ColumnAttendanceID:  r.AttendanceID,
			database.ColumnFaceImagePath: r.FaceImagePath,
			database.ColumnStatus:        string(r.Status),
			database.ColumnDate:          r.Date,
		})
	}
	return t.withLock(ctx, true, func() error {
		return t.write(grid)
	})
}

func (t *Table) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if exclusive {
		if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
			return fmt.Errorf("create table directory: %w", err)
		}
	}

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = t.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = t.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		if !exclusive && lockFileUnavailable(err) {
			slog.Debug("reading table without lock", "path", t.path, "error", err)
			return fn()
		}
		return fmt.Errorf("lock %s: %w", t.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", t.path)
	}
	defer t.lock.Unlock()

	return fn()
}

// lockFileUnavailable reports whether the lock file cannot be created, as in a
// read-only or missing directory.
func lockFileUnavailable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.EROFS)
}

// read loads the file into a sheet. A missing file yields an empty student sheet.
func (t *Table) read() (*sheet, error) {
	var (
		rows [][]string
		err  error
	)
	switch t.format {
	case formatCSV:
		rows, err = readCSV(t.path)
	default:
		rows, err = readXLSX(t.path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return newSheet(database.StudentColumns), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", t.path, err)
	}
	return parseSheet(rows), nil
}

func (t *Table) write(grid *sheet) error {
	var (
		data []byte
		err  error
	)
	switch t.format {
	case formatCSV:
		data, err = encodeCSV(grid.rows())
	default:
		data, err = encodeXLSX(grid.rows())
	}
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.path, err)
	}
	if err := writeFileAtomic(t.path, data); err != nil {
		return fmt.Errorf("write table %s: %w", t.path, err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readXLSX(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func encodeXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
