package practice

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
)

// Phase is where a session sits in the capture → analyze → display loop.
type Phase int

const (
	PhaseCapture Phase = iota
	PhaseAnalyzing
	PhaseDisplay
)

var phaseNames = [...]string{"capture", "analyzing", "display"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// State is a snapshot of one session.
type State struct {
	ID      string                `json:"id"`
	Letter  string                `json:"letter"`
	Phase   Phase                 `json:"phase"`
	Current *analysis.LetterScore `json:"current,omitempty"`
}

type sessionState struct {
	letter     string
	phase      Phase
	current    *analysis.LetterScore
	lastHash   *goimagehash.ImageHash
	lastLetter string
	lastSeen   time.Time
}

func (s sessionState) snapshot(id string) State {
	st := State{ID: id, Letter: s.letter, Phase: s.phase}
	if s.current != nil {
		c := *s.current
		st.Current = &c
	}
	return st
}

// NewSessionID returns a random 64-bit session id, 16 hex chars.
func NewSessionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
