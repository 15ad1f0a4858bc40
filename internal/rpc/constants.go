package rpc

import "time"

// Service and method names
const (
	ServiceName   = "handwriting.v1.Scorer"
	ScoreMethod   = "/" + ServiceName + "/Score"
	LettersMethod = "/" + ServiceName + "/Letters"
)

// Client configuration defaults
const (
	DefaultCallTimeout = 10 * time.Second

	// Keepalive configuration
	DefaultKeepaliveTime    = 30 * time.Second
	DefaultKeepaliveTimeout = 5 * time.Second

	// Responses carry the overlay as a data URI, which can outgrow the capture.
	DefaultMaxResponseBytes = 64 << 20

	// Headroom for the JSON envelope around the base64 image
	messageSlack = 64 << 10
)
