package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/database/postgres"
	"github.com/kozaktomas/class-attendance/internal/database/tablefile"
	"github.com/kozaktomas/class-attendance/internal/detector"
)

// stores holds the student table and, when requested, the attendance output.
type stores struct {
	students database.StudentStore
	output   database.AttendanceStore
	// imageDir is the directory relative face image paths resolve against.
	imageDir string
	backend  string
}

// openStores selects PostgreSQL when DATABASE_URL is set and table files
// otherwise. outputFile may be empty when no attendance is written.
func openStores(ctx context.Context, cfg *config.Config, studentFile, outputFile string) (*stores, error) {
	if cfg.Database.UsesDatabase() {
		if !database.IsInitialized() {
			if err := postgres.Initialize(&cfg.Database); err != nil {
				return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
			}
		}
		students, err := database.GetStudentStore(ctx)
		if err != nil {
			return nil, err
		}
		s := &stores{students: students, backend: "PostgreSQL"}
		if outputFile != "" {
			if s.output, err = database.GetAttendanceStore(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil
	}

	studentTable, err := tablefile.New(studentFile)
	if err != nil {
		return nil, fmt.Errorf("student file: %w", err)
	}
	s := &stores{students: studentTable, imageDir: studentTable.Dir(), backend: studentTable.Path()}
	if outputFile != "" {
		if err := database.CheckDistinctTables(studentFile, outputFile); err != nil {
			return nil, err
		}
		out, err := tablefile.New(outputFile)
		if err != nil {
			return nil, fmt.Errorf("output file: %w", err)
		}
		s.output = out
	}
	return s, nil
}

// closeStores releases the PostgreSQL pool if one was opened.
func closeStores() {
	if pool := postgres.GetGlobalPool(); pool != nil {
		pool.Close()
	}
}

func loadLocator(cfg *config.Config, cascadeFile string) (*detector.Cascade, error) {
	if cascadeFile == "" {
		return detector.DefaultCascade(cfg.Detector.ShiftFactor)
	}
	cascade, err := detector.LoadCascade(cascadeFile, cfg.Detector.ShiftFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to load face cascade: %w", err)
	}
	return cascade, nil
}

// signalContext returns a context canceled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nReceived interrupt signal...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
