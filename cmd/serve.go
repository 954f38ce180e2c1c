package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/detector"
	"github.com/kozaktomas/class-attendance/internal/enroll"
	"github.com/kozaktomas/class-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the Class Attendance HTTP API.
The API enrolls students from uploaded pictures, marks attendance from an
uploaded class photo and exposes Prometheus metrics on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", constants.DefaultWebPort, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", constants.DefaultWebHost, "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("student-file", "", "Student table (.xlsx or .csv), defaults to ATTENDANCE_STUDENT_FILE")
	serveCmd.Flags().String("output-file", "", "Attendance table to write, defaults to ATTENDANCE_OUTPUT_FILE")
	serveCmd.Flags().String("cascade", "", "Face cascade file, defaults to ATTENDANCE_CASCADE_FILE or the built-in facefinder")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	cfg.Web.Port = flagOrInt(cmd, "port", cfg.Web.Port)
	cfg.Web.Host = flagOrString(cmd, "host", cfg.Web.Host)
	studentFile := flagOrString(cmd, "student-file", cfg.Attendance.StudentFile)
	outputFile := flagOrString(cmd, "output-file", cfg.Attendance.OutputFile)
	cascadeFile := flagOrString(cmd, "cascade", cfg.Detector.CascadeFile)

	st, err := openStores(context.Background(), cfg, studentFile, outputFile)
	if err != nil {
		return err
	}
	defer closeStores()
	fmt.Printf("Using student store %s\n", st.backend)

	locator, err := loadLocator(cfg, cascadeFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := web.Services{
		Students:   st.students,
		Attendance: st.output,
		Locator:    locator,
		Enroller: enroll.New(st.students, enroll.Options{
			DatasetDir: cfg.Enrollment.DatasetDir,
			PathBase:   st.imageDir,
			Locator:    locator,
		}),
		Run: attendance.Options{
			Threshold: cfg.Attendance.ConfidenceThreshold,
			Params: detector.Params{
				ScaleFactor:  cfg.Detector.ScaleFactor,
				MinNeighbors: cfg.Detector.MinNeighbors,
				MinSize:      image.Pt(cfg.Detector.MinSize, cfg.Detector.MinSize),
			},
			ImageDir: st.imageDir,
			Train:    attendance.LBPHTrainer(cfg.Attendance.ModelCacheDir),
		},
		ImageDir: st.imageDir,
		Registry: registry,
	}

	server, err := web.NewServer(cfg, svc)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Class Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
