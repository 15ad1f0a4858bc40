package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	limit      int
	window     time.Duration
	mu         sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window}
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	return r.allowAt(time.Now())
}

func (r *rateLimiter) allowAt(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= r.limit {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

type ipEntry struct {
	limiter  *rateLimiter
	lastSeen time.Time
}

// ipRateLimiter applies a sliding window per client IP.
type ipRateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*ipEntry
	lastCleanup time.Time
}

func newIPRateLimiter() *ipRateLimiter {
	return &ipRateLimiter{entries: make(map[string]*ipEntry), lastCleanup: time.Now()}
}

func (l *ipRateLimiter) allow(ip string) bool {
	return l.allowAt(ip, time.Now())
}

func (l *ipRateLimiter) allowAt(ip string, now time.Time) bool {
	l.mu.Lock()
	if now.Sub(l.lastCleanup) >= IPRateLimitCleanupInterval {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > IPRateLimitEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: newRateLimiter(IPRateLimitMessages, IPRateLimitWindow)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.allowAt(now)
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// clientIP returns the remote host of the request without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
