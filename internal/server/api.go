package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/overlay"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/practice"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

// scoreRequest is the JSON form of POST /api/score.
type scoreRequest struct {
	SessionID string `json:"session_id"`
	Letter    string `json:"letter"`
	Image     string `json:"image"` // data URI
	Overlay   bool   `json:"overlay"`
}

type lettersResponse struct {
	Alphabet  []string `json:"alphabet"`
	Supported []string `json:"supported"`
}

type selectRequest struct {
	Letter string `json:"letter"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "http_score")
	defer span.End()

	if !s.ipLimits.allow(clientIP(r)) {
		writeError(w, r, apperrors.New(apperrors.Unavailable, "rate limit exceeded"))
		return
	}

	capture, err := s.readCapture(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.mgr.Submit(ctx, capture)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScoreResponse(out))
}

// readCapture parses a multipart (image file) or JSON (data URI) score request.
func (s *Server) readCapture(w http.ResponseWriter, r *http.Request) (practice.Capture, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxImageBytes)+jsonBodySlack)
		if err := r.ParseMultipartForm(int64(s.cfg.MaxImageBytes)); err != nil {
			return practice.Capture{}, bodyError(err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return practice.Capture{}, apperrors.Wrap(err, apperrors.ImageEmpty, "missing image file")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, int64(s.cfg.MaxImageBytes)+1))
		if err != nil {
			return practice.Capture{}, bodyError(err)
		}
		if len(data) > s.cfg.MaxImageBytes {
			return practice.Capture{}, tooLarge(s.cfg.MaxImageBytes)
		}
		overlayOn, _ := strconv.ParseBool(r.FormValue("overlay"))
		return practice.Capture{
			SessionID: r.FormValue("session_id"),
			Letter:    r.FormValue("letter"),
			Image:     data,
			Overlay:   overlayOn,
		}, nil
	}

	// base64 grows the payload by a third.
	limit := int64(s.cfg.MaxImageBytes)/3*4 + jsonBodySlack
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return practice.Capture{}, bodyError(err)
	}
	return practice.Capture{
		SessionID: req.SessionID,
		Letter:    req.Letter,
		Image:     []byte(req.Image),
		Overlay:   req.Overlay,
	}, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLarge(int(maxErr.Limit))
	}
	return apperrors.Wrap(err, apperrors.InvalidArgument, "malformed request body")
}

func tooLarge(limit int) error {
	return apperrors.Newf(apperrors.ImageTooLarge, "request exceeds %d bytes", limit).
		WithMetadata("limit", strconv.Itoa(limit))
}

func (s *Server) handleLetters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lettersResponse{
		Alphabet:  strings.Split(analysis.Alphabet, ""),
		Supported: analysis.SupportedLetters(),
	})
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	letter, ok := analysis.NormalizeLetter(r.PathValue("letter"))
	if !ok {
		writeError(w, r, apperrors.Newf(apperrors.LetterInvalid, "invalid letter %q", r.PathValue("letter")))
		return
	}

	size := DefaultGuideSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxGuideSize {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "size must be 1..%d", MaxGuideSize).
				WithMetadata("size", v))
			return
		}
		size = n
	}

	data, err := overlay.Encode(s.glyphs.Guide(letter, size), "png")
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	st, err := s.mgr.State(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	attempts, err := s.mgr.History(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "attempts": attempts})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.mgr.Stats(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodySlack)

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, bodyError(err))
		return
	}

	st, err := s.mgr.Select(r.Context(), r.PathValue("id"), req.Letter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	st, err := s.mgr.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.mgr.Sessions()})
}
