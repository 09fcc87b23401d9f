package server

import (
	"errors"
	"net/http"

	"github.com/tesoro-app/tesoro/internal/conversation"
	"github.com/tesoro-app/tesoro/internal/turn"
)

type saveConversationRequest struct {
	Messages         []map[string]any   `json:"messages"`
	FluentLanguage   *turn.LanguageSpec `json:"fluent_language"`
	LearningLanguage *turn.LanguageSpec `json:"learning_language"`
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	// Mock sessions are throwaway; nothing is persisted.
	if s.mock {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sessionID := r.PathValue("session")

	var req saveConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Messages == nil {
		s.httpError(w, http.StatusBadRequest, "messages field required")
		return
	}

	conv := &conversation.Conversation{
		SessionID:        sessionID,
		Messages:         req.Messages,
		FluentLanguage:   req.FluentLanguage,
		LearningLanguage: req.LearningLanguage,
	}
	if err := s.conversations.Save(r.Context(), conv); err != nil {
		s.log.ErrorContext(r.Context(), "failed to save conversation",
			"session_id", sessionID, "error", err)
		s.httpError(w, http.StatusInternalServerError, "failed to save conversation")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"detail":     "saved",
		"session_id": sessionID,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.conversations.List(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list conversations", "error", err)
		s.httpError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if summaries == nil {
		summaries = []conversation.Summary{}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleLoadConversation(w http.ResponseWriter, r *http.Request) {
	if s.mock {
		s.httpError(w, http.StatusNotFound, "no saved conversations in mock mode")
		return
	}

	sessionID := r.PathValue("session")
	conv, err := s.conversations.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			s.httpError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.ErrorContext(r.Context(), "failed to load conversation",
			"session_id", sessionID, "error", err)
		s.httpError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}
