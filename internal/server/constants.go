// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection WebSocket rate limiting
	RateLimitMessages = 10          // Max messages per connection per window
	RateLimitWindow   = time.Second // Sliding window duration

	// Global IP-based rate limiting for REST scoring (prevents multi-connection bypass)
	IPRateLimitMessages        = 30               // Max requests per IP per window
	IPRateLimitWindow          = time.Second      // Sliding window duration
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries

	// Letter guide image sizes
	DefaultGuideSize = 200
	MaxGuideSize     = 1024

	// Slack for JSON framing and base64 expansion on top of MaxImageBytes
	jsonBodySlack = 4096

	// Max time a broadcast write may block on one connection
	broadcastTimeout = 5 * time.Second
)
