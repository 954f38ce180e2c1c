package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Attendance AttendanceConfig `yaml:"attendance"`
	Detector   DetectorConfig   `yaml:"detector"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Database   DatabaseConfig   `yaml:"database"`
	Web        WebConfig        `yaml:"web"`
}

// AttendanceConfig drives a recognition run.
type AttendanceConfig struct {
	StudentFile         string  `yaml:"student_file"`
	ClassPhoto          string  `yaml:"class_photo"`
	OutputFile          string  `yaml:"output_file"`
	AnnotatedFile       string  `yaml:"annotated_file"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"` // lower is stricter
	ModelCacheDir       string  `yaml:"model_cache_dir"`      // empty disables the trained model cache
}

type DetectorConfig struct {
	CascadeFile  string  `yaml:"cascade_file"` // pigo cascade binary, empty uses the built-in facefinder
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
}

type EnrollmentConfig struct {
	DatasetDir string `yaml:"dataset_dir"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // PostgreSQL connection URL, empty means table files
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections
}

type WebConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AllowedOrigins string `yaml:"-"` // comma-separated CORS whitelist
}

// UsesDatabase reports whether the Sample Store lives in PostgreSQL instead of table files.
func (c *DatabaseConfig) UsesDatabase() bool {
	return c.URL != ""
}

// envString returns the environment variable or the default when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float strictly greater than min.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal, min float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > min {
		return f
	}
	return defaultVal
}

// Defaults returns the configuration baked into the binary, without environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Attendance = AttendanceConfig{
		StudentFile:         envString("ATTENDANCE_STUDENT_FILE", cfg.Attendance.StudentFile),
		ClassPhoto:          envString("ATTENDANCE_CLASS_PHOTO", cfg.Attendance.ClassPhoto),
		OutputFile:          envString("ATTENDANCE_OUTPUT_FILE", cfg.Attendance.OutputFile),
		AnnotatedFile:       envString("ATTENDANCE_ANNOTATED_FILE", cfg.Attendance.AnnotatedFile),
		ConfidenceThreshold: envFloat("ATTENDANCE_CONFIDENCE_THRESHOLD", cfg.Attendance.ConfidenceThreshold, 0),
		ModelCacheDir:       envString("ATTENDANCE_MODEL_CACHE_DIR", cfg.Attendance.ModelCacheDir),
	}
	cfg.Detector = DetectorConfig{
		CascadeFile:  envString("ATTENDANCE_CASCADE_FILE", cfg.Detector.CascadeFile),
		ScaleFactor:  envFloat("ATTENDANCE_SCALE_FACTOR", cfg.Detector.ScaleFactor, 1),
		MinNeighbors: envInt("ATTENDANCE_MIN_NEIGHBORS", cfg.Detector.MinNeighbors),
		MinSize:      envInt("ATTENDANCE_MIN_SIZE", cfg.Detector.MinSize),
		ShiftFactor:  envFloat("ATTENDANCE_SHIFT_FACTOR", cfg.Detector.ShiftFactor, 0),
	}
	cfg.Enrollment.DatasetDir = envString("ATTENDANCE_DATASET_DIR", cfg.Enrollment.DatasetDir)
	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns),
	}
	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", cfg.Web.Host),
		Port:           envInt("WEB_PORT", cfg.Web.Port),
		AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
	}

	return cfg
}
