// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/config"
	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/glyph"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

// client is one WebSocket connection bound to a practice session.
type client struct {
	sessionID string
	limiter   *rateLimiter
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	mgr      *practice.Manager
	glyphs   *glyph.Renderer
	cfg      *config.Config
	ipLimits *ipRateLimiter

	mu    sync.RWMutex
	conns map[*websocket.Conn]*client
}

// New creates a new server and starts broadcasting attempt events.
func New(mgr *practice.Manager, cfg *config.Config) (*Server, error) {
	glyphs, err := glyph.NewRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		mgr:      mgr,
		glyphs:   glyphs,
		cfg:      cfg,
		ipLimits: newIPRateLimiter(),
		conns:    make(map[*websocket.Conn]*client),
	}

	go s.broadcastHistory()

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/score", s.handleScore)
	mux.HandleFunc("GET /api/letters", s.handleLetters)
	mux.HandleFunc("GET /api/letters/{letter}/guide.png", s.handleGuide)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionState)
	mux.HandleFunc("GET /api/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/sessions/{id}/stats", s.handleStats)
	mux.HandleFunc("POST /api/sessions/{id}/letter", s.handleSelect)
	mux.HandleFunc("POST /api/sessions/{id}/retry", s.handleRetry)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Apply middleware: trace -> CORS
	return corsMiddleware(s.cfg.AllowedOrigins)(trace.Middleware(mux))
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); slices.Contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originPatterns converts AllowedOrigins into websocket.AcceptOptions patterns,
// which match on host only.
func (s *Server) originPatterns() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		patterns = append(patterns, o)
	}
	return patterns
}

func (s *Server) broadcastHistory() {
	for evt := range s.mgr.Events() {
		if evt.Duplicate {
			continue
		}
		attempts, err := s.mgr.History(evt.SessionID)
		if err != nil {
			continue
		}
		msg := HistoryMessage{Type: "history", Attempts: attempts}

		s.mu.RLock()
		for conn, c := range s.conns {
			if c.sessionID != evt.SessionID {
				continue
			}
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeError renders err as a JSON error body with the status its code maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperrors.From(err)
	status := ae.HTTPStatus()

	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "code", ae.Code.String(), "error", err)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "code", ae.Code.String(), "error", err)
	}

	writeJSON(w, status, errorBody{Error: errorPayload{
		Code:     ae.Code.String(),
		Message:  ae.Message,
		Metadata: ae.Metadata,
	}})
}
