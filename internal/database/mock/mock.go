// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/class-attendance/internal/database"
)

// StudentStore is an in-memory database.StudentStore
type StudentStore struct {
	mu       sync.RWMutex
	students []database.StudentRecord

	// Error injection
	LoadAllError error
	AppendError  error
}

// NewStudentStore creates a store holding students in order
func NewStudentStore(students ...database.StudentRecord) *StudentStore {
	return &StudentStore{students: slices.Clone(students)}
}

// LoadAll returns a copy of all students
func (m *StudentStore) LoadAll(ctx context.Context) ([]database.StudentRecord, error) {
	if m.LoadAllError != nil {
		return nil, m.LoadAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.students), nil
}

// Append adds a student at the end
func (m *StudentStore) Append(ctx context.Context, rec database.StudentRecord) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = append(m.students, rec)
	return nil
}

// Len returns the number of stored students
func (m *StudentStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students)
}

// AttendanceStore is an in-memory database.AttendanceStore
type AttendanceStore struct {
	mu      sync.RWMutex
	records []database.AttendanceRecord
	writes  int

	// Error injection
	WriteError error
	LoadError  error
}

// NewAttendanceStore creates an empty attendance store
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{}
}

// WriteAttendance replaces the stored records
func (m *AttendanceStore) WriteAttendance(ctx context.Context, records []database.AttendanceRecord) error {
	if m.WriteError != nil {
		return m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = slices.Clone(records)
	m.writes++
	return nil
}

// LoadAttendance returns the last written records
func (m *AttendanceStore) LoadAttendance(ctx context.Context) ([]database.AttendanceRecord, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

// Writes returns how many times WriteAttendance succeeded
func (m *AttendanceStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
