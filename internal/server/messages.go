package server

import (
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice/history"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// Client → server.

type SelectMessage struct {
	Type   string `json:"type"`
	Letter string `json:"letter"`
}

type CaptureMessage struct {
	Type    string `json:"type"`
	Image   string `json:"image"`            // data URI
	Letter  string `json:"letter,omitempty"` // defaults to the selected letter
	Overlay *bool  `json:"overlay,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Server → client.

type SessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Letter    string `json:"letter"`
}

type StateMessage struct {
	Type  string         `json:"type"`
	State practice.State `json:"state"`
}

type AnalyzingMessage struct {
	Type   string `json:"type"`
	Letter string `json:"letter,omitempty"`
}

type ScoreMessage struct {
	Type string `json:"type"`
	scoreResponse
}

type HistoryMessage struct {
	Type     string            `json:"type"`
	Attempts []history.Attempt `json:"attempts"`
}

type ErrorMessage struct {
	Type     string            `json:"type"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// scoreResponse is the scoring payload shared by REST and WebSocket.
type scoreResponse struct {
	SessionID string `json:"session_id"`
	Letter    string `json:"letter"`
	Alignment int    `json:"alignment"`
	Form      int    `json:"form"`
	Overall   int    `json:"overall"`
	Grade     string `json:"grade"`
	Passing   bool   `json:"passing"`
	Feedback  string `json:"feedback"`
	Supported bool   `json:"supported"`
	Duplicate bool   `json:"duplicate"`
	Overlay   string `json:"overlay,omitempty"`
}

func newScoreResponse(out *practice.Outcome) scoreResponse {
	return scoreResponse{
		SessionID: out.SessionID,
		Letter:    out.Letter,
		Alignment: out.Score.Alignment,
		Form:      out.Score.Form,
		Overall:   out.Score.Overall,
		Grade:     out.Score.Grade().String(),
		Passing:   out.Score.Passing(),
		Feedback:  out.Score.Feedback(),
		Supported: out.Supported,
		Duplicate: out.Duplicate,
		Overlay:   out.Overlay,
	}
}
