// Package metrics provides Prometheus metrics for enrollment and recognition runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "class_attendance"

// RunStats summarizes one recognition run.
type RunStats struct {
	Faces      int
	Recognized int
	Present    int
	Absent     int
	Excluded   int
}

// AttendanceMetrics contains the Prometheus metrics of the attendance service.
type AttendanceMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	facesDetected   prometheus.Counter
	facesRecognized prometheus.Counter
	studentsPresent prometheus.Gauge
	studentsAbsent  prometheus.Gauge
	samplesExcluded prometheus.Gauge
	enrollments     *prometheus.CounterVec
}

// NewAttendanceMetrics creates the metrics and registers them with registry.
func NewAttendanceMetrics(registry prometheus.Registerer) (*AttendanceMetrics, error) {
	m := &AttendanceMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of recognition runs by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of recognition runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		facesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_detected_total",
			Help:      "Total number of faces located in class photos.",
		}),
		facesRecognized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_recognized_total",
			Help:      "Total number of located faces accepted as an enrolled student.",
		}),
		studentsPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "students_present",
			Help:      "Students marked Present by the last successful run.",
		}),
		studentsAbsent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "students_absent",
			Help:      "Students marked Absent by the last successful run.",
		}),
		samplesExcluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples_excluded",
			Help:      "Students left out of training by the last successful run.",
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Total number of enrollment attempts by result.",
		}, []string{"result"}),
	}

	collectors := []prometheus.Collector{
		m.runs, m.runDuration, m.facesDetected, m.facesRecognized,
		m.studentsPresent, m.studentsAbsent, m.samplesExcluded, m.enrollments,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register attendance metrics: %w", err)
		}
	}
	return m, nil
}

// RecordRun records a finished recognition run. Gauges only move on success.
func (m *AttendanceMetrics) RecordRun(stats RunStats, duration time.Duration, err error) {
	m.runDuration.Observe(duration.Seconds())
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.facesDetected.Add(float64(stats.Faces))
	m.facesRecognized.Add(float64(stats.Recognized))
	m.studentsPresent.Set(float64(stats.Present))
	m.studentsAbsent.Set(float64(stats.Absent))
	m.samplesExcluded.Set(float64(stats.Excluded))
}

// RecordEnrollment records one enrollment attempt.
func (m *AttendanceMetrics) RecordEnrollment(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.enrollments.WithLabelValues(result).Inc()
}
