package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tesoro-app/tesoro/internal/audiostore"
	"github.com/tesoro-app/tesoro/internal/cards"
	"github.com/tesoro-app/tesoro/internal/observe"
	"github.com/tesoro-app/tesoro/internal/speech"
	"github.com/tesoro-app/tesoro/internal/turn"
)

type startRequest struct {
	StoryTitle string             `json:"story_title"`
	Fluent     *turn.LanguageSpec `json:"fluent"`
	Learning   *turn.LanguageSpec `json:"learning"`
}

type startResponse struct {
	SessionID   string            `json:"session_id"`
	StoryTitle  string            `json:"story_title"`
	ActiveCards []cards.Card      `json:"active_cards"`
	Fluent      turn.LanguageSpec `json:"fluent"`
	Learning    turn.LanguageSpec `json:"learning"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		s.httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var fluent, learning turn.LanguageSpec
	if req.Fluent != nil {
		fluent = *req.Fluent
	}
	if req.Learning != nil {
		learning = *req.Learning
	}

	sess := s.sessions.Start(r.Context(), req.StoryTitle, fluent, learning)
	observe.TagSession(r.Context(), sess.ID)
	s.log.InfoContext(r.Context(), "session started",
		"session_id", sess.ID, "story_title", sess.StoryTitle, "cards", len(sess.ActiveCards))

	s.writeJSON(w, http.StatusOK, startResponse{
		SessionID:   sess.ID,
		StoryTitle:  sess.StoryTitle,
		ActiveCards: sess.ActiveCards,
		Fluent:      sess.Fluent,
		Learning:    sess.Learning,
	})
}

type turnRequest struct {
	turn.TurnInput
	StoryTitle string `json:"story_title"`
}

type turnResponse struct {
	*turn.TurnResult
	AudioFiles        []speech.Artifact `json:"audio_files"`
	AudioFileEn       string            `json:"audio_file_en"`
	AudioFileLearning string            `json:"audio_file_learning"`
	NewCards          []cards.Card      `json:"new_cards"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		s.httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	in := req.TurnInput
	if sess, ok := s.sessions.Get(in.SessionID); ok {
		if len(in.ActiveCards) == 0 {
			in.ActiveCards = sess.ActiveCards
		}
		if in.Fluent.Code == "" {
			in.Fluent = sess.Fluent
		}
		if in.Learning.Code == "" {
			in.Learning = sess.Learning
		}
	}
	if in.Fluent.Code == "" {
		in.Fluent = turn.LanguageSpec{Code: "en", Name: "English"}
	}
	if in.Learning.Code == "" {
		in.Learning = turn.LanguageSpec{Code: "es", Name: "Spanish"}
	}
	if in.SessionID == "" {
		in.SessionID = "sess_" + uuid.NewString()
	}
	observe.TagSession(ctx, in.SessionID)

	res, err := s.orch.ProcessTurn(ctx, in)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordTurn(ctx, "rejected", s.orch.MockMode())
		}
		if errors.Is(err, turn.ErrEmptyTranscript) {
			s.httpError(w, http.StatusBadRequest, "transcript required")
			return
		}
		s.log.ErrorContext(ctx, "turn processing failed", "session_id", in.SessionID, "error", err)
		s.httpError(w, http.StatusInternalServerError, "turn processing failed")
		return
	}

	artifacts := s.synth.SynthesizeTurn(ctx, in.SessionID, res.TurnID, res.AudioChunks)
	fileEn, fileLearning := convenienceFiles(artifacts, in.Learning)

	if s.metrics != nil {
		s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.RecordTurn(ctx, "ok", s.orch.MockMode())
		source := "llm"
		if s.orch.MockMode() {
			source = "fuzzy"
		}
		s.metrics.RecordCardsDetected(ctx, source, int64(len(res.UsedCardIDs)))
	}
	s.log.InfoContext(ctx, "turn processed",
		"session_id", in.SessionID, "turn_id", res.TurnID,
		"used_cards", len(res.UsedCardIDs), "audio_files", len(artifacts),
		"duration", time.Since(start))

	s.writeJSON(w, http.StatusOK, turnResponse{
		TurnResult:        res,
		AudioFiles:        artifacts,
		AudioFileEn:       fileEn,
		AudioFileLearning: fileLearning,
		NewCards:          []cards.Card{},
	})
}

// convenienceFiles picks the first English and first learning-language
// artifact URLs. Purpose wins over locale so a Spanish learner practising
// English still gets the right pairing.
func convenienceFiles(artifacts []speech.Artifact, learning turn.LanguageSpec) (en, learn string) {
	prefix := learning.Code
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	for _, a := range artifacts {
		lang := strings.ToLower(a.Lang)
		if en == "" && (a.Purpose == turn.PurposeNativeTranslation || strings.HasPrefix(lang, "en")) {
			en = a.URL
		}
		if learn == "" && (a.Purpose == turn.PurposeCorrectedSentence || (prefix != "" && strings.HasPrefix(lang, prefix))) {
			learn = a.URL
		}
	}
	return en, learn
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	if !s.sessions.End(r.Context(), id) {
		s.httpError(w, http.StatusNotFound, "session not found")
		return
	}
	s.log.InfoContext(r.Context(), "session ended", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var in turn.CheckInput
	if err := decodeJSON(r, &in); err != nil {
		s.httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.orch.CheckAnswer(r.Context(), in)
	if err != nil {
		s.httpError(w, http.StatusBadRequest, "user_answer required")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	filename := r.PathValue("filename")

	if s.cache != nil {
		if data, ok := s.cache.Get(filename); ok {
			w.Header().Set("Content-Type", "audio/wav")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	rc, err := s.audio.Open(session, filename)
	if err != nil {
		if errors.Is(err, audiostore.ErrNotFound) {
			s.httpError(w, http.StatusNotFound, "audio not found")
			return
		}
		s.log.ErrorContext(r.Context(), "failed to open audio artifact",
			"session", session, "filename", filename, "error", err)
		s.httpError(w, http.StatusInternalServerError, "failed to read audio")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
