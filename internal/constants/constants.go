// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Detection defaults for the recognition run
const (
	// DefaultScaleFactor is the step between successive cascade scales
	DefaultScaleFactor = 1.1

	// DefaultMinNeighbors is the number of overlapping raw detections required to emit a face
	DefaultMinNeighbors = 7

	// DefaultMinSize is the smallest face side length in pixels
	DefaultMinSize = 50

	// DefaultShiftFactor is the sliding window step relative to the window size
	DefaultShiftFactor = 0.1

	// GroupingIoUThreshold is the minimum Intersection over Union for two raw
	// detections to be counted as neighbors of the same face
	GroupingIoUThreshold = 0.2
)

// Enrollment detection parameters, matching the live capture loop
const (
	// EnrollScaleFactor is the cascade scale step used while enrolling
	EnrollScaleFactor = 1.3

	// EnrollMinNeighbors is the neighbor agreement used while enrolling
	EnrollMinNeighbors = 5

	// EnrollMinSize is the smallest face accepted as an enrollment sample
	EnrollMinSize = 30
)

// Recognition constants
const (
	// DefaultConfidenceThreshold is the maximum LBPH distance accepted as a match
	// Lower values = stricter matching
	DefaultConfidenceThreshold = 100
)

// Display constants for the annotated class photo
const (
	// DisplayMaxWidth is the maximum width of the annotated image
	DisplayMaxWidth = 800

	// DisplayMaxHeight is the maximum height of the annotated image
	DisplayMaxHeight = 600

	// AnnotatedJPEGQuality is the JPEG quality for annotated and sample images
	AnnotatedJPEGQuality = 90
)

// Identifier constants
const (
	// AttendanceIDLength is the number of characters kept from a random UUID
	AttendanceIDLength = 8

	// MaxIDAttempts bounds regeneration when a generated ID already exists
	MaxIDAttempts = 5
)
