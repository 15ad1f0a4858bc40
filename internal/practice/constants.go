package practice

import "time"

// Practice session constants
const (
	// DefaultLetter is selected for new sessions.
	DefaultLetter = "A"

	// DefaultSessionID is used when a capture names no session.
	DefaultSessionID = "default"

	// Perceptual hash Hamming distance at or below which two captures are duplicates.
	MaxHashDistance = 5

	// How often idle sessions are purged.
	JanitorInterval = time.Minute
)
