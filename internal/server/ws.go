package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice/history"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(int64(s.cfg.MaxImageBytes)/3*4 + jsonBodySlack)

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = practice.NewSessionID()
	}
	c := &client{sessionID: sessionID, limiter: newRateLimiter(RateLimitMessages, RateLimitWindow)}

	s.mu.Lock()
	s.conns[conn] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx).With("session", sessionID)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	letter := practice.DefaultLetter
	if st, err := s.mgr.State(sessionID); err == nil {
		letter = st.Letter
	}
	_ = wsjson.Write(baseCtx, conn, SessionMessage{Type: "session", SessionID: sessionID, Letter: letter})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.replyError(baseCtx, conn, apperrors.New(apperrors.Unavailable, "rate limit exceeded"))
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			s.replyError(baseCtx, conn, apperrors.Wrap(err, apperrors.InvalidArgument, "malformed message"))
			continue
		}

		switch base.Type {
		case "select":
			var sel SelectMessage
			if err := json.Unmarshal(msg, &sel); err != nil {
				continue
			}
			s.handleSelectMessage(baseCtx, conn, sessionID, sel.Letter)
		case "capture":
			var capture CaptureMessage
			if err := json.Unmarshal(msg, &capture); err != nil {
				continue
			}
			// Extract trace_id from message or create new trace context
			ctx := baseCtx
			if capture.TraceID != "" {
				ctx = trace.Continue(ctx, capture.TraceID)
			} else {
				ctx, _ = trace.EnsureContext(ctx)
			}
			s.handleCaptureMessage(ctx, conn, sessionID, capture)
		case "retry":
			s.handleRetryMessage(baseCtx, conn, sessionID)
		case "history":
			s.handleHistoryMessage(baseCtx, conn, sessionID)
		default:
			s.replyError(baseCtx, conn, apperrors.Newf(apperrors.InvalidArgument, "unknown message type %q", base.Type).
				WithMetadata("type", base.Type))
		}
	}
}

func (s *Server) handleSelectMessage(ctx context.Context, conn *websocket.Conn, sessionID, letter string) {
	st, err := s.mgr.Select(ctx, sessionID, letter)
	if err != nil {
		s.replyError(ctx, conn, err)
		return
	}
	_ = wsjson.Write(ctx, conn, StateMessage{Type: "state", State: st})
}

func (s *Server) handleCaptureMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg CaptureMessage) {
	ctx, span := trace.StartSpan(ctx, "ws_capture")
	defer span.End()

	_ = wsjson.Write(ctx, conn, AnalyzingMessage{Type: "analyzing", Letter: msg.Letter})

	withOverlay := true
	if msg.Overlay != nil {
		withOverlay = *msg.Overlay
	}

	out, err := s.mgr.Submit(ctx, practice.Capture{
		SessionID: sessionID,
		Letter:    msg.Letter,
		Image:     []byte(msg.Image),
		Overlay:   withOverlay,
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		s.replyError(ctx, conn, err)
		return
	}

	_ = wsjson.Write(ctx, conn, ScoreMessage{Type: "score", scoreResponse: newScoreResponse(out)})
}

func (s *Server) handleRetryMessage(ctx context.Context, conn *websocket.Conn, sessionID string) {
	st, err := s.mgr.Retry(ctx, sessionID)
	if err != nil {
		s.replyError(ctx, conn, err)
		return
	}
	_ = wsjson.Write(ctx, conn, StateMessage{Type: "state", State: st})
}

func (s *Server) handleHistoryMessage(ctx context.Context, conn *websocket.Conn, sessionID string) {
	attempts, err := s.mgr.History(sessionID)
	if err != nil && !apperrors.IsCode(err, apperrors.SessionNotFound) {
		s.replyError(ctx, conn, err)
		return
	}
	if attempts == nil {
		attempts = []history.Attempt{}
	}
	_ = wsjson.Write(ctx, conn, HistoryMessage{Type: "history", Attempts: attempts})
}

func (s *Server) replyError(ctx context.Context, conn *websocket.Conn, err error) {
	ae := apperrors.From(err)
	trace.Logger(ctx).Debug("websocket error reply", "code", ae.Code.String(), "error", err)
	_ = wsjson.Write(ctx, conn, ErrorMessage{
		Type:     "error",
		Code:     ae.Code.String(),
		Message:  ae.Message,
		Metadata: ae.Metadata,
	})
}
