package tablefile

import (
	"strings"

	"github.com/kozaktomas/class-attendance/internal/database"
)

// sheet is a header row plus data rows. Columns are addressed by header name,
// matched case-insensitively and ignoring surrounding spaces.
type sheet struct {
	header []string
	index  map[string]int
	data   [][]string
}

func newSheet(columns []string) *sheet {
	s := &sheet{index: make(map[string]int)}
	s.ensureColumns(columns)
	return s
}

// parseSheet treats the first non-empty row as the header and skips blank rows.
func parseSheet(rows [][]string) *sheet {
	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return newSheet(database.StudentColumns)
	}

	s := &sheet{index: make(map[string]int)}
	for i, h := range rows[start] {
		h = strings.TrimSpace(h)
		s.header = append(s.header, h)
		key := columnKey(h)
		if _, dup := s.index[key]; !dup && key != "" {
			s.index[key] = i
		}
	}
	for _, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		s.data = append(s.data, row)
	}
	return s
}

func columnKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ensureColumns appends any of columns missing from the header.
func (s *sheet) ensureColumns(columns []string) {
	for _, c := range columns {
		if _, ok := s.index[columnKey(c)]; ok {
			continue
		}
		s.index[columnKey(c)] = len(s.header)
		s.header = append(s.header, c)
	}
}

func (s *sheet) appendRow(values map[string]string) {
	row := make([]string, len(s.header))
	for name, v := range values {
		if i, ok := s.index[columnKey(name)]; ok {
			row[i] = v
		}
	}
	s.data = append(s.data, row)
}

func (s *sheet) get(row []string, column string) string {
	i, ok := s.index[columnKey(column)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (s *sheet) rows() [][]string {
	out := make([][]string, 0, len(s.data)+1)
	out = append(out, s.header)
	for _, row := range s.data {
		padded := make([]string, len(s.header))
		copy(padded, row)
		out = append(out, padded)
	}
	return out
}

func (s *sheet) student(row []string) database.StudentRecord {
	return database.StudentRecord{
		Name:          s.get(row, database.ColumnName),
		EnrollmentNo:  s.get(row, database.ColumnEnrollmentNo),
		AttendanceID:  s.get(row, database.ColumnAttendanceID),
		FaceImagePath: s.get(row, database.ColumnFaceImagePath),
	}
}

func (s *sheet) students() []database.StudentRecord {
	out := make([]database.StudentRecord, 0, len(s.data))
	for _, row := range s.data {
		out = append(out, s.student(row))
	}
	return out
}

func (s *sheet) attendance() []database.AttendanceRecord {
	out := make([]database.AttendanceRecord, 0, len(s.data))
	for _, row := range s.data {
		out = append(out, database.AttendanceRecord{
			StudentRecord: s.student(row),
			Status:        database.Status(s.get(row, database.ColumnStatus)),
			Date:          s.get(row, database.ColumnDate),
		})
	}
	return out
}
