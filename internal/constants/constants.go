// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultDistanceThreshold is the maximum Euclidean distance for an
	// accepted face match. Lower values = stricter matching.
	DefaultDistanceThreshold = 0.5

	// DefaultMatchMargin is the minimum gap between the best and the best
	// competing person required to accept a match.
	DefaultMatchMargin = 0.05
)

// Detection constants
const (
	// DefaultMinConfidence is the minimum detector score for a usable face.
	DefaultMinConfidence = 0.8

	// DefaultMinFaceWidth is the minimum face box width in pixels. Smaller
	// faces produce unreliable descriptors.
	DefaultMinFaceWidth = 120

	// DefaultDetectorInputSize is the input resolution passed to the
	// detection model.
	DefaultDetectorInputSize = 320
)

// Enrollment constants
const (
	// DefaultSamplesPerPose is the number of descriptors collected for
	// each pose during guided enrollment.
	DefaultSamplesPerPose = 3

	// DefaultTickIntervalMS caps the capture rate of the enrollment and
	// verification loops.
	DefaultTickIntervalMS = 200

	// DefaultPosePauseMS gives the user time to reposition between poses.
	DefaultPosePauseMS = 1500
)

// Event streaming constants
const (
	// EventChannelBuffer is the buffer size for session event listeners.
	// Slow SSE clients drop events instead of blocking the loop.
	EventChannelBuffer = 100
)
