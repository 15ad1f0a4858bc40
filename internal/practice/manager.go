// Package practice runs handwriting practice sessions: scoring captures, keeping
// per-session history and flagging repeated captures.
package practice

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/config"
	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/overlay"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice/history"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/syncx"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

// Event re-exported for API compatibility
type Event = history.Event

// Capture is one submitted image.
type Capture struct {
	SessionID string
	Letter    string // empty means the session's selected letter
	Image     []byte // encoded image or data URI
	Overlay   bool   // render the overlay data URI into the outcome
}

// Outcome is the result of a submitted capture.
type Outcome struct {
	SessionID string               `json:"session_id"`
	Letter    string               `json:"letter"`
	Score     analysis.LetterScore `json:"score"`
	Supported bool                 `json:"supported"`
	Duplicate bool                 `json:"duplicate"`
	Overlay   string               `json:"overlay,omitempty"`
	Attempt   history.Attempt      `json:"-"`
}

// Stats summarizes a session's kept attempts.
type Stats struct {
	Attempts      int     `json:"attempts"` // including evicted attempts
	Recent        int     `json:"recent"`
	MeanOverall   float64 `json:"mean_overall"`
	MeanAlignment float64 `json:"mean_alignment"`
	MeanForm      float64 `json:"mean_form"`
	BestOverall   int     `json:"best_overall"`
}

type session struct {
	id    string
	state *syncx.RWGuard[sessionState]
}

// Manager coordinates practice sessions.
type Manager struct {
	cfg       *config.Config
	processor *analysis.Processor
	overlay   *overlay.Renderer
	history   history.Store

	mu       sync.RWMutex
	sessions map[string]*session

	maxHashDistance int
	now             func() time.Time
	stopOnce        sync.Once
	stopCh          chan struct{}
}

// New creates a manager.
func New(cfg *config.Config) (*Manager, error) {
	renderer, err := overlay.NewRenderer()
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:             cfg,
		processor:       analysis.NewProcessor(cfg.MaxImagePixels),
		overlay:         renderer,
		history:         history.NewStore(cfg.HistorySize, history.DefaultEventBuffer),
		sessions:        make(map[string]*session),
		maxHashDistance: MaxHashDistance,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}, nil
}

// Processor returns the scoring pipeline used by the manager.
func (m *Manager) Processor() *analysis.Processor {
	return m.processor
}

// Events returns channel for attempt events
func (m *Manager) Events() <-chan Event {
	return m.history.Events()
}

// Submit scores a capture within its session.
func (m *Manager) Submit(ctx context.Context, c Capture) (*Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "submit_capture")
	defer span.End()

	if c.SessionID == "" {
		c.SessionID = DefaultSessionID
	}
	span.SetAttr("session", c.SessionID)
	log := trace.Logger(ctx)

	s := m.session(c.SessionID, true)
	letter, err := m.resolveLetter(s, c.Letter)
	if err != nil {
		return nil, err
	}
	span.SetAttr("letter", letter)

	s.state.Write(func(st *sessionState) { st.phase = PhaseAnalyzing })

	img, format, err := m.processor.Decode(c.Image)
	if err != nil {
		m.setPhase(s, PhaseCapture)
		log.Warn("capture decode failed", "bytes", len(c.Image), "error", err)
		return nil, err
	}

	res, err := m.processor.AnalyzeImage(ctx, img, letter)
	if err != nil {
		m.setPhase(s, PhaseCapture)
		return nil, err
	}
	res.Format = format

	duplicate := m.isDuplicate(s, img, letter)
	rendered := m.overlay.Render(img, res.Score)

	out := &Outcome{
		SessionID: s.id,
		Letter:    res.Letter,
		Score:     res.Score,
		Supported: res.Supported,
		Duplicate: duplicate,
	}
	if c.Overlay {
		uri, err := overlay.DataURI(rendered, m.overlayFormat(format))
		if err != nil {
			m.setPhase(s, PhaseCapture)
			return nil, err
		}
		out.Overlay = uri
	}

	out.Attempt = history.Attempt{
		Letter:    res.Letter,
		Alignment: res.Score.Alignment,
		Form:      res.Score.Form,
		Overall:   res.Score.Overall,
		Supported: res.Supported,
		Timestamp: m.now(),
		Thumbnail: m.thumbnail(ctx, rendered),
	}
	if !duplicate && !m.record(s, out.Attempt) {
		log.Debug("session purged during submit", "session", s.id)
	}
	m.history.Emit(Event{SessionID: s.id, Attempt: out.Attempt, Duplicate: duplicate})

	score := res.Score
	s.state.Write(func(st *sessionState) {
		st.phase = PhaseDisplay
		st.current = &score
	})

	span.SetAttr("overall", score.Overall)
	span.SetAttr("duplicate", duplicate)
	log.Info("capture scored",
		"session", s.id,
		"letter", res.Letter,
		"alignment", score.Alignment,
		"form", score.Form,
		"overall", score.Overall,
		"grade", score.Grade().String(),
		"duplicate", duplicate,
	)
	return out, nil
}

// Select switches the session's letter and returns it to the capture phase.
func (m *Manager) Select(ctx context.Context, sessionID, letter string) (State, error) {
	norm, ok := analysis.NormalizeLetter(letter)
	if !ok {
		return State{}, invalidLetter(letter)
	}

	s := m.session(sessionID, true)
	st := syncx.Modify(s.state, func(st *sessionState) State {
		st.letter = norm
		st.phase = PhaseCapture
		st.current = nil
		return st.snapshot(s.id)
	})
	trace.Logger(ctx).Debug("letter selected", "session", s.id, "letter", norm)
	return st, nil
}

// Retry clears the current score so the next capture starts fresh. The previous
// capture no longer counts as a duplicate.
func (m *Manager) Retry(ctx context.Context, sessionID string) (State, error) {
	s := m.session(sessionID, false)
	if s == nil {
		return State{}, sessionNotFound(sessionID)
	}

	st := syncx.Modify(s.state, func(st *sessionState) State {
		st.phase = PhaseCapture
		st.current = nil
		st.lastHash = nil
		st.lastLetter = ""
		return st.snapshot(s.id)
	})
	trace.Logger(ctx).Debug("session retry", "session", s.id)
	return st, nil
}

// State returns a snapshot of the session.
func (m *Manager) State(sessionID string) (State, error) {
	s := m.session(sessionID, false)
	if s == nil {
		return State{}, sessionNotFound(sessionID)
	}
	return syncx.View(s.state, func(st sessionState) State { return st.snapshot(s.id) }), nil
}

// History returns the session's recent attempts, newest first.
func (m *Manager) History(sessionID string) ([]history.Attempt, error) {
	if m.session(sessionID, false) == nil {
		return nil, sessionNotFound(sessionID)
	}
	return m.history.Recent(sessionID), nil
}

// Stats summarizes the session's recent attempts.
func (m *Manager) Stats(sessionID string) (Stats, error) {
	if m.session(sessionID, false) == nil {
		return Stats{}, sessionNotFound(sessionID)
	}

	attempts := m.history.Recent(sessionID)
	st := Stats{Attempts: m.history.Total(sessionID), Recent: len(attempts)}
	if len(attempts) == 0 {
		return st, nil
	}

	overall := make([]float64, len(attempts))
	alignment := make([]float64, len(attempts))
	form := make([]float64, len(attempts))
	for i, a := range attempts {
		overall[i] = float64(a.Overall)
		alignment[i] = float64(a.Alignment)
		form[i] = float64(a.Form)
	}
	st.MeanOverall = stat.Mean(overall, nil)
	st.MeanAlignment = stat.Mean(alignment, nil)
	st.MeanForm = stat.Mean(form, nil)
	st.BestOverall = int(floats.Max(overall))
	return st, nil
}

// Sessions returns the number of live sessions.
func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start runs the idle session janitor until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	go m.janitorLoop(ctx)
}

// Stop stops the janitor.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if n := m.purgeIdle(); n > 0 {
				trace.Logger(ctx).Debug("purged idle sessions", "count", n)
			}
		}
	}
}

// purgeIdle drops sessions untouched for longer than SessionTTL.
func (m *Manager) purgeIdle() int {
	if m.cfg.SessionTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.SessionTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, s := range m.sessions {
		lastSeen := syncx.View(s.state, func(st sessionState) time.Time { return st.lastSeen })
		if lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			m.history.Delete(id)
			purged++
		}
	}
	return purged
}

// session looks up a session, creating it when create is set. Every lookup counts
// as activity.
func (m *Manager) session(id string, create bool) *session {
	if id == "" {
		id = DefaultSessionID
	}
	now := m.now()

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		if !create {
			return nil
		}
		m.mu.Lock()
		if s, ok = m.sessions[id]; !ok {
			s = &session{id: id, state: syncx.NewGuard(sessionState{letter: DefaultLetter, lastSeen: now})}
			m.sessions[id] = s
		}
		m.mu.Unlock()
	}

	s.state.Write(func(st *sessionState) { st.lastSeen = now })
	return s
}

func (m *Manager) resolveLetter(s *session, requested string) (string, error) {
	if requested == "" {
		return syncx.View(s.state, func(st sessionState) string { return st.letter }), nil
	}
	letter, ok := analysis.NormalizeLetter(requested)
	if !ok {
		return "", invalidLetter(requested)
	}
	s.state.Write(func(st *sessionState) { st.letter = letter })
	return letter, nil
}

// record adds a to the session's history unless the session was purged meanwhile.
func (m *Manager) record(s *session, a history.Attempt) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sessions[s.id] != s {
		return false
	}
	m.history.Add(s.id, a)
	return true
}

// overlayFormat keeps the capture's encoding when the overlay can be written in it.
func (m *Manager) overlayFormat(input string) string {
	switch input {
	case "png", "jpeg":
		return input
	}
	return m.cfg.OverlayFormat
}

func (m *Manager) setPhase(s *session, p Phase) {
	s.state.Write(func(st *sessionState) { st.phase = p })
}

// isDuplicate reports whether img matches the previous capture of the same letter.
func (m *Manager) isDuplicate(s *session, img image.Image, letter string) bool {
	if !m.cfg.DuplicateDetection {
		return false
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	return syncx.Modify(s.state, func(st *sessionState) bool {
		prev, prevLetter := st.lastHash, st.lastLetter
		st.lastHash, st.lastLetter = hash, letter
		if prev == nil || prevLetter != letter {
			return false
		}
		dist, err := prev.Distance(hash)
		return err == nil && dist <= m.maxHashDistance
	})
}

func (m *Manager) thumbnail(ctx context.Context, img image.Image) []byte {
	if m.cfg.ThumbnailWidth <= 0 {
		return nil
	}
	small := resize.Resize(uint(m.cfg.ThumbnailWidth), 0, img, resize.Bilinear)
	data, err := overlay.Encode(small, "png")
	if err != nil {
		trace.Logger(ctx).Warn("thumbnail encode failed", "error", err)
		return nil
	}
	return data
}

func invalidLetter(letter string) error {
	return apperrors.Newf(apperrors.LetterInvalid, "invalid letter %q", letter).
		WithMetadata("letter", letter)
}

func sessionNotFound(id string) error {
	return apperrors.Newf(apperrors.SessionNotFound, "session %q not found", id).
		WithMetadata("session_id", id)
}
