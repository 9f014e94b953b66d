package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/finlens/finlens/internal/llm"
	"github.com/finlens/finlens/internal/session"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	answer, err := sess.Ask(r.Context(), question)
	if err != nil {
		s.writeAskError(w, sess, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":      answer,
		"answer_html": renderMarkdown(answer),
		"state":       sess.State(),
		"turns":       len(sess.History()),
	})
}

// writeAskError maps session and LLM failures onto HTTP statuses. LLM
// failures leave the session in a recoverable Failed state, which the
// response body spells out for the UI.
func (s *Server) writeAskError(w http.ResponseWriter, sess *session.Session, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, session.ErrFailed), errors.Is(err, session.ErrNoContext):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}

	status := http.StatusBadGateway
	if llm.KindOf(err) == llm.KindRateLimit {
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", "10")
	}
	writeJSON(w, status, map[string]any{
		"error":       err.Error(),
		"kind":        llm.KindOf(err).String(),
		"state":       sess.State(),
		"recoverable": true,
	})
}

func (s *Server) handleResetError(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	if err := sess.ResetError(); err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": sess.State()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	doc := sess.Document()
	history := sess.History()

	type turnView struct {
		Role        llm.Role  `json:"role"`
		Content     string    `json:"content"`
		ContentHTML string    `json:"content_html,omitempty"`
		At          time.Time `json:"at"`
	}
	turns := make([]turnView, len(history))
	for i, t := range history {
		turns[i] = turnView{Role: t.Role, Content: t.Content, At: t.At}
		if t.Role == llm.RoleAssistant {
			turns[i].ContentHTML = renderMarkdown(t.Content)
		}
	}

	resp := map[string]any{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
		"state":      sess.State(),
		"turns":      turns,
	}
	if doc != nil {
		resp["page_count"] = doc.PageCount
		resp["image_count"] = len(doc.Images)
		resp["truncated"] = doc.Truncated
	}
	if err := sess.LastErr(); err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts an assistant reply to HTML for transcript
// consumers. Rendering failures fall back to an empty string; the raw
// markdown is always present alongside.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
