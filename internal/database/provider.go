package database

import (
	"context"
	"fmt"
)

var (
	postgresStudentStore    func() StudentStore
	postgresAttendanceStore func() AttendanceStore
	postgresInitialized     bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(students func() StudentStore, attendance func() AttendanceStore) {
	postgresStudentStore = students
	postgresAttendanceStore = attendance
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetStudentStore returns a StudentStore from the PostgreSQL backend
func GetStudentStore(ctx context.Context) (StudentStore, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresStudentStore == nil {
		return nil, fmt.Errorf("PostgreSQL student store not registered")
	}
	return postgresStudentStore(), nil
}

// GetAttendanceStore returns an AttendanceStore from the PostgreSQL backend
func GetAttendanceStore(ctx context.Context) (AttendanceStore, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresAttendanceStore == nil {
		return nil, fmt.Errorf("PostgreSQL attendance store not registered")
	}
	return postgresAttendanceStore(), nil
}
