package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/finlens/finlens/internal/config"
	"github.com/finlens/finlens/internal/document"
	"github.com/finlens/finlens/internal/extractor"
	"github.com/finlens/finlens/internal/llm"
	"github.com/finlens/finlens/internal/market"
	"github.com/finlens/finlens/internal/session"
)

const testAPIKey = "test-secret"

type scriptedClient struct {
	reply string
	err   error
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *scriptedClient) Close() {}

func testConfig() config.Config {
	return config.Config{
		Port:            "0",
		APIKey:          testAPIKey,
		MaxUploadBytes:  1 << 20,
		MaxImages:       5,
		MaxContextChars: 10000,
		AttachImages:    2,
		LLMTimeout:      5 * time.Second,
		ExtractTimeout:  5 * time.Second,
		MarketTimeout:   time.Second,
		SessionTTL:      time.Hour,
		MaxSessions:     10,
	}
}

func newTestServer(client llm.Client) (*Server, *session.Store) {
	store := session.NewStore(time.Hour, 10)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(extractor.New(), store, client, llm.NewStats(time.Hour),
		market.NewGateway("demo", time.Second), log, testConfig())
	return srv, store
}

// startedSession registers a ready session grounded in a small context.
func startedSession(store *session.Store, client llm.Client) *session.Session {
	sess := session.New(client, session.Options{AttachImages: 2})
	sess.Start(&document.Context{
		FullText:  document.PageDelimiter(0) + "\nRevenue was $10 million.",
		PageCount: 1,
	})
	store.Put(sess)
	return sess
}

func doRequest(srv *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(&scriptedClient{reply: "ok"})

	// Health is public.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	// API routes need the key.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing auth status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad key status = %d, want 401", rec.Code)
	}
}

func TestAsk_Success(t *testing.T) {
	client := &scriptedClient{reply: "Revenue is **$10 million** (page 0)."}
	srv, store := newTestServer(client)
	sess := startedSession(store, client)

	body := strings.NewReader(`{"question":"What is revenue?"}`)
	rec := doRequest(srv, http.MethodPost, "/api/sessions/"+sess.ID+"/ask", body, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Answer     string `json:"answer"`
		AnswerHTML string `json:"answer_html"`
		State      string `json:"state"`
		Turns      int    `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != client.reply {
		t.Errorf("answer = %q", resp.Answer)
	}
	if !strings.Contains(resp.AnswerHTML, "<strong>") {
		t.Errorf("answer_html = %q, want rendered markdown", resp.AnswerHTML)
	}
	if resp.State != string(session.StateAnswered) || resp.Turns != 2 {
		t.Errorf("state = %s turns = %d", resp.State, resp.Turns)
	}
}

func TestAsk_Validation(t *testing.T) {
	client := &scriptedClient{reply: "ok"}
	srv, store := newTestServer(client)
	sess := startedSession(store, client)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/missing/ask",
		strings.NewReader(`{"question":"hi"}`), "application/json")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/api/sessions/"+sess.ID+"/ask",
		strings.NewReader(`{"question":"  "}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank question status = %d, want 400", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/api/sessions/"+sess.ID+"/ask",
		strings.NewReader(`{broken`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}
}

func TestAsk_RateLimitLeavesRecoverableSession(t *testing.T) {
	client := &scriptedClient{err: &llm.Error{Kind: llm.KindRateLimit, Status: 429, Message: "slow down"}}
	srv, store := newTestServer(client)
	sess := startedSession(store, client)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/"+sess.ID+"/ask",
		strings.NewReader(`{"question":"hi"}`), "application/json")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if sess.State() != session.StateFailed {
		t.Errorf("session state = %s, want failed", sess.State())
	}
	if len(sess.History()) != 0 {
		t.Error("failed ask must not touch history")
	}

	// Reset brings it back.
	rec = doRequest(srv, http.MethodPost, "/api/sessions/"+sess.ID+"/reset", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if sess.State() != session.StateReady {
		t.Errorf("state after reset = %s, want ready", sess.State())
	}

	// Resetting a healthy session is a conflict.
	rec = doRequest(srv, http.MethodPost, "/api/sessions/"+sess.ID+"/reset", nil, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second reset status = %d, want 409", rec.Code)
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	client := &scriptedClient{reply: "An answer with *emphasis*."}
	srv, store := newTestServer(client)
	sess := startedSession(store, client)
	if _, err := sess.Ask(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodGet, "/api/sessions/"+sess.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var resp struct {
		State string `json:"state"`
		Turns []struct {
			Role        string `json:"role"`
			Content     string `json:"content"`
			ContentHTML string `json:"content_html"`
		} `json:"turns"`
		PageCount int `json:"page_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(resp.Turns))
	}
	if resp.Turns[0].ContentHTML != "" {
		t.Error("user turns must not carry rendered html")
	}
	if !strings.Contains(resp.Turns[1].ContentHTML, "<em>") {
		t.Errorf("assistant turn html = %q", resp.Turns[1].ContentHTML)
	}
	if resp.PageCount != 1 {
		t.Errorf("page_count = %d", resp.PageCount)
	}

	rec = doRequest(srv, http.MethodDelete, "/api/sessions/"+sess.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(srv, http.MethodGet, "/api/sessions/"+sess.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestUploadDocument_Validation(t *testing.T) {
	srv, _ := newTestServer(&scriptedClient{reply: "ok"})

	// No file field.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("analyze", "false")
	mw.Close()
	rec := doRequest(srv, http.MethodPost, "/api/documents", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d, want 400", rec.Code)
	}

	// Garbage bytes are rejected as a corrupt document.
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "report.pdf")
	fw.Write([]byte("definitely not a pdf"))
	mw.Close()
	rec = doRequest(srv, http.MethodPost, "/api/documents", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("corrupt file status = %d, want 422, body = %s", rec.Code, rec.Body)
	}
}

func TestQuote_InvalidRange(t *testing.T) {
	srv, _ := newTestServer(&scriptedClient{})
	rec := doRequest(srv, http.MethodGet, "/api/quotes/AAPL?range=13m", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLLMStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(&scriptedClient{})
	rec := doRequest(srv, http.MethodGet, "/api/stats/llm", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap llm.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
}
