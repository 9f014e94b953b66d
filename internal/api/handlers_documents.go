package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/finlens/finlens/internal/docctx"
	"github.com/finlens/finlens/internal/extractor"
	"github.com/finlens/finlens/internal/session"
)

// handleUploadDocument runs the whole "start new document" flow: extract,
// build the context, open a session, and (unless analyze=false) block for
// the initial analysis. Extraction and context errors abort the flow;
// an initial-analysis failure leaves a recoverable session behind and is
// reported alongside the created session instead of discarding it.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	extractCtx, cancel := context.WithTimeout(r.Context(), s.cfg.ExtractTimeout)
	defer cancel()

	pages, err := s.extractor.Extract(extractCtx, data)
	if err != nil {
		switch {
		case errors.Is(err, extractor.ErrEmptyDocument),
			errors.Is(err, extractor.ErrCorruptDocument),
			errors.Is(err, context.DeadlineExceeded):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			jsonError(w, "extraction failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	doc, err := docctx.Build(pages, s.cfg.MaxImages, s.cfg.MaxContextChars)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	sess := session.New(s.llmClient, session.Options{
		AttachImages: s.cfg.AttachImages,
		Timeout:      s.cfg.LLMTimeout,
		Stats:        s.llmStats,
	})
	if err := sess.Start(doc); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Put(sess); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{
		"session_id":  sess.ID,
		"page_count":  doc.PageCount,
		"image_count": len(doc.Images),
		"truncated":   doc.Truncated,
	}

	if r.FormValue("analyze") != "false" {
		analysis, err := sess.Analyze(r.Context())
		if err != nil {
			s.log.Warn("initial analysis failed", "session_id", sess.ID, "error", err)
			resp["analysis_error"] = err.Error()
		} else {
			resp["analysis"] = analysis
			resp["analysis_html"] = renderMarkdown(analysis)
		}
	}
	resp["state"] = sess.State()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}
